package evolve

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func singleConnection() *NEATGenome {
	return &NEATGenome{
		InputCount:  1,
		OutputCount: 1,
		Activation:  "tanh",
		Neurons: []NeuronGene{
			{ID: 0, Role: RoleInput, Innovation: NoInnovation},
			{ID: 1, Role: RoleOutput, Innovation: NoInnovation},
		},
		Connections: []ConnectionGene{conn(0, 1, 0.7, 0)},
	}
}

func TestNewNEATGenomeMinimalTopology(t *testing.T) {
	counter := NewInnovationCounter()
	cfg := DefaultConfig().NEAT
	a := NewNEATGenome(testRand(1), 3, 2, "tanh", cfg, counter)
	b := NewNEATGenome(testRand(2), 3, 2, "tanh", cfg, counter)

	assert.Len(t, a.Neurons, 3+1+2)
	assert.Len(t, a.Connections, (3+1)*2)
	assert.Equal(t, 3, a.BiasID())
	assert.Equal(t, []int{0, 1, 2}, a.InputIDs())
	assert.Equal(t, []int{4, 5}, a.OutputIDs())
	assert.Equal(t, innovationsOf(a.Connections), innovationsOf(b.Connections))
	requireFeedForward(t, a)

	depth, err := a.Depth()
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
}

func TestValidateReportsDefects(t *testing.T) {
	cases := map[string]func(g *NEATGenome){
		"missing neuron": func(g *NEATGenome) {
			g.Connections = append(g.Connections, conn(0, 9, 1, 5))
		},
		"into input": func(g *NEATGenome) {
			g.Neurons = append(g.Neurons, NeuronGene{ID: 2, Role: RoleHidden})
			g.Connections = append(g.Connections, conn(2, 0, 1, 5))
		},
		"out of output": func(g *NEATGenome) {
			g.Neurons = append(g.Neurons, NeuronGene{ID: 2, Role: RoleHidden})
			g.Connections = append(g.Connections, conn(1, 2, 1, 5))
		},
		"duplicate innovation": func(g *NEATGenome) {
			g.Neurons = append(g.Neurons, NeuronGene{ID: 2, Role: RoleHidden})
			g.Connections = append(g.Connections, conn(0, 2, 1, 0))
		},
		"cycle": func(g *NEATGenome) {
			g.Neurons = append(g.Neurons,
				NeuronGene{ID: 2, Role: RoleHidden}, NeuronGene{ID: 3, Role: RoleHidden})
			g.Connections = append(g.Connections, conn(2, 3, 1, 5), conn(3, 2, 1, 6))
		},
	}
	require.NoError(t, singleConnection().Validate())
	for name, corrupt := range cases {
		t.Run(name, func(t *testing.T) {
			g := singleConnection()
			corrupt(g)
			assert.Error(t, g.Validate())
		})
	}
}

func TestDisabledCycleIsLegal(t *testing.T) {
	g := singleConnection()
	g.Neurons = append(g.Neurons, NeuronGene{ID: 2, Role: RoleHidden}, NeuronGene{ID: 3, Role: RoleHidden})
	back := conn(3, 2, 1, 6)
	back.Enabled = false
	g.Connections = append(g.Connections, conn(2, 3, 1, 5), back)
	assert.NoError(t, g.Validate())
}

func TestMutateAddNodeSplitsConnection(t *testing.T) {
	cfg := DefaultConfig().NEAT
	for seed := int64(0); seed < 20; seed++ {
		g := singleConnection()
		counter := NewInnovationCounter()
		counter.Observe(g)

		child, ok := MutateAddNode(testRand(seed), g, counter, cfg)
		require.True(t, ok)

		require.Len(t, child.Connections, 3)
		assert.False(t, child.Connections[0].Enabled, "split connection is disabled, not deleted")
		assert.Equal(t, 1, child.HiddenCount())

		hidden := child.Neurons[len(child.Neurons)-1]
		assert.Equal(t, RoleHidden, hidden.Role)
		assert.Equal(t, 2, hidden.ID)

		var weights []float64
		for _, c := range child.Connections[1:] {
			assert.True(t, c.Enabled)
			weights = append(weights, c.Weight)
		}
		assert.ElementsMatch(t, []float64{1.0, 0.7}, weights)
		requireFeedForward(t, child)

		assert.True(t, g.Connections[0].Enabled, "input untouched")
		assert.Len(t, g.Neurons, 2)
	}
}

func TestMutateAddNodeNoOps(t *testing.T) {
	cfg := DefaultConfig().NEAT

	full := DefaultConfig().NEAT
	full.MaxHiddenNeurons = 0
	g := singleConnection()
	out, ok := MutateAddNode(testRand(1), g, NewInnovationCounter(), full)
	assert.False(t, ok)
	assert.Same(t, g, out)

	g.Connections[0].Enabled = false
	out, ok = MutateAddNode(testRand(1), g, NewInnovationCounter(), cfg)
	assert.False(t, ok)
	assert.Same(t, g, out)
}

func TestMutateAddConnection(t *testing.T) {
	cfg := DefaultConfig().NEAT
	counter := NewInnovationCounter()
	g := NewNEATGenome(testRand(1), 2, 1, "tanh", cfg, counter)

	// Inputs and bias already reach the only output.
	out, ok := MutateAddConnection(testRand(1), g, counter, cfg)
	assert.False(t, ok)
	assert.Same(t, g, out)

	g, ok = MutateAddNode(testRand(2), g, counter, cfg)
	require.True(t, ok)
	added := 0
	for seed := int64(0); seed < 50; seed++ {
		next, ok := MutateAddConnection(testRand(seed), g, counter, cfg)
		if !ok {
			continue
		}
		added++
		require.Len(t, next.Connections, len(g.Connections)+1)
		last := next.Connections[len(next.Connections)-1]
		assert.Equal(t, counter.ConnectionInnovation(last.Source, last.Target), last.Innovation)
		requireFeedForward(t, next)
		g = next
	}
	assert.Positive(t, added)
}

func TestMutateToggleNeverReenablesCycle(t *testing.T) {
	cfg := DefaultConfig().NEAT
	cfg.DisableProb = 0
	g := singleConnection()
	g.Neurons = append(g.Neurons, NeuronGene{ID: 2, Role: RoleHidden}, NeuronGene{ID: 3, Role: RoleHidden})
	back := conn(3, 2, 1, 6)
	back.Enabled = false
	g.Connections = append(g.Connections, conn(2, 3, 1, 5), back)

	for seed := int64(0); seed < 30; seed++ {
		child, ok := MutateToggleConnection(testRand(seed), g, cfg)
		require.True(t, ok)
		requireFeedForward(t, child)
		assert.False(t, child.Connections[2].Enabled)
	}
}

func TestMutateToggleReenables(t *testing.T) {
	cfg := DefaultConfig().NEAT
	g := singleConnection()
	g.Connections[0].Enabled = false
	child, ok := MutateToggleConnection(testRand(1), g, cfg)
	require.True(t, ok)
	assert.True(t, child.Connections[0].Enabled)
	assert.False(t, g.Connections[0].Enabled)
}

func TestMutateWeights(t *testing.T) {
	cfg := DefaultConfig().NEAT
	cfg.WeightMutateRate = 0
	g := NewNEATGenome(testRand(1), 2, 2, "tanh", cfg, NewInnovationCounter())
	out, ok := MutateWeights(testRand(1), g, cfg)
	assert.False(t, ok)
	assert.Same(t, g, out)

	cfg.WeightMutateRate = 1
	out, ok = MutateWeights(testRand(1), g, cfg)
	require.True(t, ok)
	changed := 0
	for i, c := range out.Connections {
		assert.GreaterOrEqual(t, c.Weight, cfg.WeightMin)
		assert.LessOrEqual(t, c.Weight, cfg.WeightMax)
		if c.Weight != g.Connections[i].Weight {
			changed++
		}
	}
	assert.Positive(t, changed)
}

func TestAlignGenes(t *testing.T) {
	a := withInnovations(0, 1, 2)
	b := withInnovations(0, 1, 5)
	al := AlignGenes(a, b)
	require.Len(t, al.Matching, 2)
	assert.Equal(t, 0, al.Matching[0].A.Innovation)
	assert.Equal(t, 1, al.Matching[1].B.Innovation)
	assert.Equal(t, []int{2}, innovationsOf(al.ExcessA))
	assert.Equal(t, []int{5}, innovationsOf(al.ExcessB))
	assert.Zero(t, al.Disjoint())

	c := withInnovations(0, 3, 4, 8)
	d := withInnovations(0, 2, 4, 6)
	al = AlignGenes(c, d)
	assert.Equal(t, []int{3}, innovationsOf(al.DisjointA))
	assert.Equal(t, []int{2}, innovationsOf(al.DisjointB))
	assert.Equal(t, []int{8}, innovationsOf(al.ExcessA))
	assert.Equal(t, []int{6}, innovationsOf(al.ExcessB))
}

func TestAlignGenesWithItself(t *testing.T) {
	g := NewNEATGenome(testRand(1), 3, 2, "tanh", DefaultConfig().NEAT, NewInnovationCounter())
	al := AlignGenes(g, g)
	assert.Len(t, al.Matching, len(g.Connections))
	assert.Zero(t, al.Disjoint())
	assert.Zero(t, al.Excess())
}

func TestCrossoverInheritsOnlyFitterUniqueGenes(t *testing.T) {
	cfg := DefaultConfig().NEAT
	fit := withInnovations(0, 1, 6, 10)
	weak := withInnovations(0, 5, 6)
	al := AlignGenes(fit, weak)
	require.Equal(t, []int{10}, innovationsOf(al.ExcessA))
	require.Equal(t, []int{5}, innovationsOf(al.DisjointB))

	for seed := int64(0); seed < 30; seed++ {
		for _, order := range []bool{true, false} {
			var child *NEATGenome
			if order {
				child = NEATCrossover(testRand(seed), fit, weak, 2.0, 1.0, cfg)
			} else {
				child = NEATCrossover(testRand(seed), weak, fit, 1.0, 2.0, cfg)
			}
			innovs := innovationsOf(child.Connections)
			assert.Contains(t, innovs, 10)
			assert.NotContains(t, innovs, 5)
			requireFeedForward(t, child)
		}
	}
}

func TestCrossoverDisabledInheritance(t *testing.T) {
	cfg := DefaultConfig().NEAT
	a := singleConnection()
	b := singleConnection()
	b.Connections[0].Enabled = false

	cfg.DisabledInheritProb = 1
	for seed := int64(0); seed < 10; seed++ {
		child := NEATCrossover(testRand(seed), a, b, 1, 0, cfg)
		assert.False(t, child.Connections[0].Enabled)
	}
	cfg.DisabledInheritProb = 0
	for seed := int64(0); seed < 10; seed++ {
		child := NEATCrossover(testRand(seed), a, b, 1, 0, cfg)
		assert.True(t, child.Connections[0].Enabled)
	}
}

func TestCrossoverEqualFitnessUnionsNeurons(t *testing.T) {
	cfg := DefaultConfig().NEAT
	a := withInnovations(0, 1)
	b := withInnovations(0, 1, 2, 3)
	b.Neurons[len(b.Neurons)-1].ID = 9
	b.Connections[len(b.Connections)-1].Source = 9

	sawExtra := false
	for seed := int64(0); seed < 30; seed++ {
		child := NEATCrossover(testRand(seed), a, b, 1, 1, cfg)
		_, ok := child.Neuron(9)
		assert.True(t, ok, "equal fitness takes the union of neurons")
		requireFeedForward(t, child)
		if len(child.Connections) > 2 {
			sawExtra = true
		}
	}
	assert.True(t, sawExtra)
}

func TestCrossoverDropsCyclesAndDuplicatePairs(t *testing.T) {
	cfg := DefaultConfig().NEAT
	neurons := []NeuronGene{
		{ID: 0, Role: RoleInput, Innovation: NoInnovation},
		{ID: 1, Role: RoleOutput, Innovation: NoInnovation},
		{ID: 2, Role: RoleHidden},
		{ID: 3, Role: RoleHidden},
	}
	// Same innovation, different endpoints in each parent: the child may end
	// up holding 2->3 from one and 3->2 from the other.
	a := &NEATGenome{InputCount: 1, OutputCount: 1, Activation: "tanh",
		Neurons:     append([]NeuronGene(nil), neurons...),
		Connections: []ConnectionGene{conn(2, 3, 1, 4), conn(3, 2, 1, 7), conn(0, 2, 1, 8)}}
	a.Connections[1].Enabled = false
	b := &NEATGenome{InputCount: 1, OutputCount: 1, Activation: "tanh",
		Neurons:     append([]NeuronGene(nil), neurons...),
		Connections: []ConnectionGene{conn(2, 3, 1, 4), conn(3, 2, 1, 7), conn(2, 3, 1, 9)}}
	b.Connections[0].Enabled = false

	for seed := int64(0); seed < 50; seed++ {
		child := NEATCrossover(testRand(seed), a, b, 1, 1, cfg)
		requireFeedForward(t, child, fmt.Sprintf("seed %d", seed))
	}
}

// Structural invariants hold for any sequence of operators.
func TestNEATOperatorsPreserveInvariants(t *testing.T) {
	cfg := DefaultConfig().NEAT
	cfg.AddNodeProb = 0.5
	cfg.AddConnectionProb = 0.8
	cfg.ToggleProb = 0.3

	for seed := int64(0); seed < 40; seed++ {
		rng := testRand(seed)
		counter := NewInnovationCounter()
		pop := make([]*NEATGenome, 6)
		for i := range pop {
			pop[i] = NewNEATGenome(rng, 3, 2, "tanh", cfg, counter)
		}
		for gen := 0; gen < 15; gen++ {
			counter.NewGeneration()
			next := make([]*NEATGenome, len(pop))
			for i := range pop {
				a, b := pop[rng.Intn(len(pop))], pop[rng.Intn(len(pop))]
				child := NEATCrossover(rng, a, b, rng.Float64(), rng.Float64(), cfg)
				child, _ = MutateNEAT(rng, child, counter, cfg)
				requireFeedForward(t, child, fmt.Sprintf("seed %d generation %d", seed, gen))
				next[i] = child
			}
			pop = next
		}
	}
}
