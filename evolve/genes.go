package evolve

import (
	"fmt"
	"math/rand"
)

// NoInnovation marks neurons that are never created structurally
// (inputs, outputs and the bias neuron).
const NoInnovation = -1

// NeuronRole is the function of a neuron in a NEAT network.
type NeuronRole int

const (
	RoleInput NeuronRole = iota
	RoleHidden
	RoleOutput
	RoleBias
)

func (r NeuronRole) String() string {
	switch r {
	case RoleInput:
		return "input"
	case RoleHidden:
		return "hidden"
	case RoleOutput:
		return "output"
	case RoleBias:
		return "bias"
	default:
		return fmt.Sprintf("NeuronRole(%d)", int(r))
	}
}

// canSource reports whether a connection may originate at this role.
func (r NeuronRole) canSource() bool {
	return r == RoleInput || r == RoleHidden || r == RoleBias
}

// canTarget reports whether a connection may end at this role.
func (r NeuronRole) canTarget() bool {
	return r == RoleHidden || r == RoleOutput
}

// --------------------------- NeuronGene ---------------------------

// NeuronGene is a neuron of a NEAT controller. ID is unique within one genome only.
type NeuronGene struct {
	ID         int
	Role       NeuronRole
	Bias       float64
	Innovation int // node innovation that created it, NoInnovation for input/output/bias
}

// String returns a string representation of the NeuronGene.
func (n NeuronGene) String() string {
	return fmt.Sprintf("Neuron(ID: %d, Role: %s, Bias: %.3f, Innovation: %d)", n.ID, n.Role, n.Bias, n.Innovation)
}

// --------------------------- ConnectionGene ---------------------------

// ConnectionKey identifies a connection by its endpoints.
type ConnectionKey struct {
	Source int
	Target int
}

// ConnectionGene is a weighted link between two neurons. Two genes with the
// same Innovation in different genomes stem from the same historical event.
type ConnectionGene struct {
	Source     int
	Target     int
	Weight     float64
	Enabled    bool
	Innovation int
}

// Key returns the endpoint pair of the connection.
func (c ConnectionGene) Key() ConnectionKey {
	return ConnectionKey{Source: c.Source, Target: c.Target}
}

// String returns a string representation of the ConnectionGene.
func (c ConnectionGene) String() string {
	return fmt.Sprintf("Conn(%d->%d, Weight: %.3f, Enabled: %t, Innovation: %d)",
		c.Source, c.Target, c.Weight, c.Enabled, c.Innovation)
}

// --------------------------- Attribute Helpers ---------------------------

// initFloatAttribute draws a gaussian value clamped to r.
func initFloatAttribute(rng *rand.Rand, mean, stdev float64, r Range) float64 {
	return r.Clamp(rng.NormFloat64()*stdev + mean)
}

// mutateFloatAttribute mutates value with probability rate. Of the mutated
// values a replaceShare fraction is redrawn from scratch, the rest get a
// gaussian perturbation of the given power.
func mutateFloatAttribute(rng *rand.Rand, value, rate, replaceShare, power, initStdev float64, r Range) (float64, bool) {
	if rng.Float64() >= rate {
		return value, false
	}
	if rng.Float64() < replaceShare {
		return initFloatAttribute(rng, 0, initStdev, r), true
	}
	return r.Clamp(value + rng.NormFloat64()*power), true
}

// perturbInRange applies a gaussian step scaled by a fraction of the range
// width with probability rate.
func perturbInRange(rng *rand.Rand, value, rate, magnitude float64, r Range) (float64, bool) {
	if rng.Float64() >= rate {
		return value, false
	}
	return r.Clamp(value + rng.NormFloat64()*magnitude*r.Width()), true
}

// uniformIn draws uniformly from r.
func uniformIn(rng *rand.Rand, r Range) float64 {
	return r.Min + rng.Float64()*r.Width()
}
