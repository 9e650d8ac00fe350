package evolve

import (
	"math/rand"
)

// Every NEAT mutation works on a private copy and is all-or-nothing: on
// success the copy is returned with ok=true, otherwise the untouched input is
// returned with ok=false. Inputs are never modified.

// MutateAddConnection tries to connect a random source (input, hidden or
// bias) to a random target (hidden or output). A pair is rejected when it
// already exists, enabled or not, or when it would close a cycle among
// enabled connections. Gives up after cfg.MaxConnectionAttempts samples.
func MutateAddConnection(rng *rand.Rand, g *NEATGenome, counter *InnovationCounter, cfg NEATConfig) (*NEATGenome, bool) {
	var sources, targets []int
	for _, n := range g.Neurons {
		if n.Role.canSource() {
			sources = append(sources, n.ID)
		}
		if n.Role.canTarget() {
			targets = append(targets, n.ID)
		}
	}
	if len(sources) == 0 || len(targets) == 0 {
		return g, false
	}

	view := g.Graph()
	for attempt := 0; attempt < cfg.MaxConnectionAttempts; attempt++ {
		src := sources[rng.Intn(len(sources))]
		dst := targets[rng.Intn(len(targets))]
		if src == dst || g.HasConnection(src, dst) || view.WouldCycle(src, dst) {
			continue
		}

		child := g.Clone()
		child.Connections = append(child.Connections, ConnectionGene{
			Source:     src,
			Target:     dst,
			Weight:     initFloatAttribute(rng, 0, cfg.WeightInitStdev, cfg.WeightRange()),
			Enabled:    true,
			Innovation: counter.ConnectionInnovation(src, dst),
		})
		return child, true
	}
	return g, false
}

// MutateAddNode splits a random enabled connection. The connection is
// disabled, a hidden neuron is inserted with id max+1, and two connections
// replace it: source->new with weight 1.0 and new->target with the original
// weight. The new neuron's innovation is keyed on the split connection's
// innovation so genomes splitting the same connection this generation agree.
func MutateAddNode(rng *rand.Rand, g *NEATGenome, counter *InnovationCounter, cfg NEATConfig) (*NEATGenome, bool) {
	if g.HiddenCount() >= cfg.MaxHiddenNeurons {
		return g, false
	}
	var enabled []int
	for i, c := range g.Connections {
		if c.Enabled {
			enabled = append(enabled, i)
		}
	}
	if len(enabled) == 0 {
		return g, false
	}

	idx := enabled[rng.Intn(len(enabled))]
	split := g.Connections[idx]
	nodeInnov := counter.NodeInnovation(split.Innovation)
	inInnov, outInnov := counter.SplitInnovations(split.Innovation)

	// This genome already split the same connection this generation.
	for _, c := range g.Connections {
		if c.Innovation == inInnov || c.Innovation == outInnov {
			return g, false
		}
	}

	child := g.Clone()
	child.Connections[idx].Enabled = false
	newID := g.MaxNeuronID() + 1
	child.Neurons = append(child.Neurons, NeuronGene{
		ID:         newID,
		Role:       RoleHidden,
		Bias:       0,
		Innovation: nodeInnov,
	})
	child.Connections = append(child.Connections,
		ConnectionGene{Source: split.Source, Target: newID, Weight: 1.0, Enabled: true, Innovation: inInnov},
		ConnectionGene{Source: newID, Target: split.Target, Weight: split.Weight, Enabled: true, Innovation: outInnov},
	)
	return child, true
}

// MutateToggleConnection disables an enabled connection or re-enables a
// disabled one. Re-enabling is legal only when it would not close a cycle in
// the current topology. When both moves are legal, disabling is chosen with
// probability cfg.DisableProb.
func MutateToggleConnection(rng *rand.Rand, g *NEATGenome, cfg NEATConfig) (*NEATGenome, bool) {
	view := g.Graph()
	var canDisable, canEnable []int
	for i, c := range g.Connections {
		if c.Enabled {
			canDisable = append(canDisable, i)
		} else if c.Source != c.Target && !view.WouldCycle(c.Source, c.Target) {
			canEnable = append(canEnable, i)
		}
	}

	var disable bool
	switch {
	case len(canDisable) > 0 && len(canEnable) > 0:
		disable = rng.Float64() < cfg.DisableProb
	case len(canDisable) > 0:
		disable = true
	case len(canEnable) > 0:
		disable = false
	default:
		return g, false
	}

	child := g.Clone()
	if disable {
		child.Connections[canDisable[rng.Intn(len(canDisable))]].Enabled = false
	} else {
		child.Connections[canEnable[rng.Intn(len(canEnable))]].Enabled = true
	}
	return child, true
}

// MutateWeights mutates every connection weight and every hidden/output bias
// independently with probability cfg.WeightMutateRate. Most mutations are
// gaussian perturbations; a cfg.WeightReplaceRate share are full resets.
func MutateWeights(rng *rand.Rand, g *NEATGenome, cfg NEATConfig) (*NEATGenome, bool) {
	child := g.Clone()
	changed := false
	for i := range child.Connections {
		w, ok := mutateFloatAttribute(rng, child.Connections[i].Weight, cfg.WeightMutateRate, cfg.WeightReplaceRate,
			cfg.WeightMutatePower, cfg.WeightInitStdev, cfg.WeightRange())
		child.Connections[i].Weight = w
		changed = changed || ok
	}
	for i := range child.Neurons {
		if child.Neurons[i].Role != RoleHidden && child.Neurons[i].Role != RoleOutput {
			continue
		}
		b, ok := mutateFloatAttribute(rng, child.Neurons[i].Bias, cfg.WeightMutateRate, cfg.WeightReplaceRate,
			cfg.WeightMutatePower, cfg.WeightInitStdev, cfg.BiasRange())
		child.Neurons[i].Bias = b
		changed = changed || ok
	}
	if !changed {
		return g, false
	}
	return child, true
}

// NEATMutation summarises what MutateNEAT changed.
type NEATMutation struct {
	AddedNode       bool
	AddedConnection bool
	Toggled         bool
	Weights         bool
}

// Structural reports whether the topology changed.
func (m NEATMutation) Structural() bool {
	return m.AddedNode || m.AddedConnection || m.Toggled
}

// MutateNEAT applies the structural mutations at their configured
// probabilities followed by weight mutation.
func MutateNEAT(rng *rand.Rand, g *NEATGenome, counter *InnovationCounter, cfg NEATConfig) (*NEATGenome, NEATMutation) {
	var report NEATMutation
	out := g
	if rng.Float64() < cfg.AddNodeProb {
		out, report.AddedNode = MutateAddNode(rng, out, counter, cfg)
	}
	if rng.Float64() < cfg.AddConnectionProb {
		out, report.AddedConnection = MutateAddConnection(rng, out, counter, cfg)
	}
	if rng.Float64() < cfg.ToggleProb {
		out, report.Toggled = MutateToggleConnection(rng, out, cfg)
	}
	out, report.Weights = MutateWeights(rng, out, cfg)
	return out, report
}
