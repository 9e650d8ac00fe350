package evolve

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func testRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// conn builds an enabled connection gene.
func conn(src, dst int, w float64, innov int) ConnectionGene {
	return ConnectionGene{Source: src, Target: dst, Weight: w, Enabled: true, Innovation: innov}
}

// withInnovations builds a genome with one input, the bias and one output
// whose connections carry exactly the given innovation ids. Endpoints are
// taken from a pool of hidden neurons so every gene is legal.
func withInnovations(innovations ...int) *NEATGenome {
	g := &NEATGenome{
		InputCount:  1,
		OutputCount: 1,
		Activation:  "tanh",
		Neurons: []NeuronGene{
			{ID: 0, Role: RoleInput, Innovation: NoInnovation},
			{ID: 1, Role: RoleBias, Innovation: NoInnovation},
			{ID: 2, Role: RoleOutput, Innovation: NoInnovation},
		},
	}
	for i, innov := range innovations {
		hidden := 3 + i
		g.Neurons = append(g.Neurons, NeuronGene{ID: hidden, Role: RoleHidden, Innovation: innov})
		g.Connections = append(g.Connections, conn(hidden, 2, float64(i)+0.5, innov))
	}
	return g
}

func innovationsOf(genes []ConnectionGene) []int {
	out := make([]int, 0, len(genes))
	for _, c := range genes {
		out = append(out, c.Innovation)
	}
	return out
}

// sequentialIDs returns an IDSource producing g1, g2, ...
func sequentialIDs() IDSource {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("g%d", n)
	}
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	return cfg
}

// requireFeedForward fails when g breaks a structural invariant.
func requireFeedForward(t *testing.T, g *NEATGenome, msgAndArgs ...any) {
	t.Helper()
	require.NoError(t, g.Validate(), msgAndArgs...)
	for _, c := range g.Connections {
		src, _ := g.Neuron(c.Source)
		dst, _ := g.Neuron(c.Target)
		require.NotEqual(t, RoleOutput, src.Role, msgAndArgs...)
		require.NotEqual(t, RoleInput, dst.Role, msgAndArgs...)
		require.NotEqual(t, RoleBias, dst.Role, msgAndArgs...)
	}
}
