package evolve

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/baldhumanity/creature-evo/evolve/netgraph"
)

// NEATGenome is a variable-topology controller. Neuron ids follow a fixed
// layout: inputs 0..InputCount-1, the bias neuron InputCount, outputs
// InputCount+1..InputCount+OutputCount, hidden neurons above that.
type NEATGenome struct {
	InputCount  int
	OutputCount int
	Activation  string
	Neurons     []NeuronGene
	Connections []ConnectionGene
}

func (g *NEATGenome) Kind() ControllerKind { return ControllerNEAT }

func (g *NEATGenome) cloneController() Controller { return g.Clone() }

// NewNEATGenome builds the minimal topology: every input and the bias neuron
// connected to every output. Innovation ids come from counter, so every
// genome built in the same generation agrees on them.
func NewNEATGenome(rng *rand.Rand, inputs, outputs int, activation string, cfg NEATConfig, counter *InnovationCounter) *NEATGenome {
	g := &NEATGenome{
		InputCount:  inputs,
		OutputCount: outputs,
		Activation:  activation,
	}
	for i := 0; i < inputs; i++ {
		g.Neurons = append(g.Neurons, NeuronGene{ID: i, Role: RoleInput, Innovation: NoInnovation})
	}
	g.Neurons = append(g.Neurons, NeuronGene{ID: g.BiasID(), Role: RoleBias, Bias: 0, Innovation: NoInnovation})
	for o := 0; o < outputs; o++ {
		g.Neurons = append(g.Neurons, NeuronGene{
			ID:         g.BiasID() + 1 + o,
			Role:       RoleOutput,
			Bias:       initFloatAttribute(rng, 0, cfg.WeightInitStdev, cfg.BiasRange()),
			Innovation: NoInnovation,
		})
	}
	for src := 0; src <= g.BiasID(); src++ {
		for o := 0; o < outputs; o++ {
			dst := g.BiasID() + 1 + o
			g.Connections = append(g.Connections, ConnectionGene{
				Source:     src,
				Target:     dst,
				Weight:     initFloatAttribute(rng, 0, cfg.WeightInitStdev, cfg.WeightRange()),
				Enabled:    true,
				Innovation: counter.ConnectionInnovation(src, dst),
			})
		}
	}
	return g
}

// BiasID returns the id of the bias neuron.
func (g *NEATGenome) BiasID() int { return g.InputCount }

// InputIDs returns the ids of the input neurons.
func (g *NEATGenome) InputIDs() []int {
	ids := make([]int, g.InputCount)
	for i := range ids {
		ids[i] = i
	}
	return ids
}

// OutputIDs returns the ids of the output neurons.
func (g *NEATGenome) OutputIDs() []int {
	ids := make([]int, g.OutputCount)
	for i := range ids {
		ids[i] = g.BiasID() + 1 + i
	}
	return ids
}

// Clone returns a deep copy.
func (g *NEATGenome) Clone() *NEATGenome {
	return &NEATGenome{
		InputCount:  g.InputCount,
		OutputCount: g.OutputCount,
		Activation:  g.Activation,
		Neurons:     append([]NeuronGene(nil), g.Neurons...),
		Connections: append([]ConnectionGene(nil), g.Connections...),
	}
}

// Neuron returns the neuron with the given id.
func (g *NEATGenome) Neuron(id int) (NeuronGene, bool) {
	for _, n := range g.Neurons {
		if n.ID == id {
			return n, true
		}
	}
	return NeuronGene{}, false
}

func (g *NEATGenome) roles() map[int]NeuronRole {
	roles := make(map[int]NeuronRole, len(g.Neurons))
	for _, n := range g.Neurons {
		roles[n.ID] = n.Role
	}
	return roles
}

// HiddenCount returns the number of hidden neurons.
func (g *NEATGenome) HiddenCount() int {
	count := 0
	for _, n := range g.Neurons {
		if n.Role == RoleHidden {
			count++
		}
	}
	return count
}

// MaxNeuronID returns the largest neuron id, -1 for an empty genome.
func (g *NEATGenome) MaxNeuronID() int {
	maxID := -1
	for _, n := range g.Neurons {
		if n.ID > maxID {
			maxID = n.ID
		}
	}
	return maxID
}

// MaxInnovation returns the largest connection innovation, -1 when there are none.
func (g *NEATGenome) MaxInnovation() int {
	maxInnov := -1
	for _, c := range g.Connections {
		if c.Innovation > maxInnov {
			maxInnov = c.Innovation
		}
	}
	return maxInnov
}

// HasConnection reports whether source -> target exists, enabled or not.
func (g *NEATGenome) HasConnection(source, target int) bool {
	for _, c := range g.Connections {
		if c.Source == source && c.Target == target {
			return true
		}
	}
	return false
}

// EnabledCount returns the number of enabled connections.
func (g *NEATGenome) EnabledCount() int {
	count := 0
	for _, c := range g.Connections {
		if c.Enabled {
			count++
		}
	}
	return count
}

// Graph returns the graph view over every neuron and the enabled connections.
func (g *NEATGenome) Graph() *netgraph.View {
	ids := make([]int, 0, len(g.Neurons))
	for _, n := range g.Neurons {
		ids = append(ids, n.ID)
	}
	edges := make([]netgraph.Edge, 0, len(g.Connections))
	for _, c := range g.Connections {
		if c.Enabled {
			edges = append(edges, netgraph.Edge{From: c.Source, To: c.Target})
		}
	}
	return netgraph.Build(ids, edges)
}

// EvaluationOrder returns the neuron ids in feed-forward evaluation order.
func (g *NEATGenome) EvaluationOrder() ([]int, error) {
	return g.Graph().Order()
}

// Depth returns the longest enabled path through the network.
func (g *NEATGenome) Depth() (int, error) {
	return g.Graph().MaxDepth()
}

// sortConnections orders connections by innovation id.
func (g *NEATGenome) sortConnections() {
	sort.SliceStable(g.Connections, func(i, j int) bool {
		return g.Connections[i].Innovation < g.Connections[j].Innovation
	})
}

// sortNeurons orders neurons by id.
func (g *NEATGenome) sortNeurons() {
	sort.SliceStable(g.Neurons, func(i, j int) bool {
		return g.Neurons[i].ID < g.Neurons[j].ID
	})
}

// Validate reports structural defects: dangling neuron references, illegal
// endpoints, duplicate ids or innovations, and cycles among enabled connections.
func (g *NEATGenome) Validate() error {
	roles := make(map[int]NeuronRole, len(g.Neurons))
	for _, n := range g.Neurons {
		if _, dup := roles[n.ID]; dup {
			return fmt.Errorf("duplicate neuron id %d", n.ID)
		}
		roles[n.ID] = n.Role
	}
	innovations := make(map[int]bool, len(g.Connections))
	pairs := make(map[ConnectionKey]bool, len(g.Connections))
	for _, c := range g.Connections {
		src, ok := roles[c.Source]
		if !ok {
			return fmt.Errorf("connection %d references missing neuron %d", c.Innovation, c.Source)
		}
		dst, ok := roles[c.Target]
		if !ok {
			return fmt.Errorf("connection %d references missing neuron %d", c.Innovation, c.Target)
		}
		if !src.canSource() {
			return fmt.Errorf("connection %d originates at %s neuron %d", c.Innovation, src, c.Source)
		}
		if !dst.canTarget() {
			return fmt.Errorf("connection %d targets %s neuron %d", c.Innovation, dst, c.Target)
		}
		if innovations[c.Innovation] {
			return fmt.Errorf("duplicate connection innovation %d", c.Innovation)
		}
		innovations[c.Innovation] = true
		if pairs[c.Key()] {
			return fmt.Errorf("duplicate connection %d->%d", c.Source, c.Target)
		}
		pairs[c.Key()] = true
	}
	if _, err := g.Graph().Order(); err != nil {
		return fmt.Errorf("enabled connections are not acyclic: %w", err)
	}
	return nil
}
