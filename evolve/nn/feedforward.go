// Package nn turns NEAT controllers into runnable feed-forward networks.
package nn

import (
	"fmt"

	"github.com/baldhumanity/creature-evo/evolve"
)

// neuralNode represents a neuron during network activation.
type neuralNode struct {
	ID     int
	Bias   float64
	Inputs []evolve.ConnectionGene // enabled incoming connections
}

// FeedForwardNetwork is the phenotype of a NEAT controller.
type FeedForwardNetwork struct {
	InputIDs      []int
	OutputIDs     []int
	BiasID        int
	NodeEvalOrder []int // hidden and output neurons in Kahn order
	Nodes         map[int]neuralNode
	Activation    evolve.ActivationFunc
}

// FromGenome builds a network from g. Only enabled connections take part.
// Fails when g is structurally invalid or names an unknown activation.
func FromGenome(g *evolve.NEATGenome) (*FeedForwardNetwork, error) {
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genome: %w", err)
	}
	act, err := evolve.GetActivation(g.Activation)
	if err != nil {
		return nil, err
	}
	order, err := g.EvaluationOrder()
	if err != nil {
		return nil, fmt.Errorf("failed topological sort: %w", err)
	}

	nodes := make(map[int]neuralNode, len(g.Neurons))
	for _, n := range g.Neurons {
		if n.Role == evolve.RoleHidden || n.Role == evolve.RoleOutput {
			nodes[n.ID] = neuralNode{ID: n.ID, Bias: n.Bias}
		}
	}
	for _, c := range g.Connections {
		if !c.Enabled {
			continue
		}
		node := nodes[c.Target]
		node.Inputs = append(node.Inputs, c)
		nodes[c.Target] = node
	}

	evalOrder := make([]int, 0, len(nodes))
	for _, id := range order {
		if _, ok := nodes[id]; ok {
			evalOrder = append(evalOrder, id)
		}
	}

	return &FeedForwardNetwork{
		InputIDs:      g.InputIDs(),
		OutputIDs:     g.OutputIDs(),
		BiasID:        g.BiasID(),
		NodeEvalOrder: evalOrder,
		Nodes:         nodes,
		Activation:    act,
	}, nil
}

// Activate computes the outputs for one input vector. The bias neuron emits
// 1.0; every other neuron emits activation(bias + sum of weighted inputs).
// Outputs without enabled inputs emit activation(bias).
func (net *FeedForwardNetwork) Activate(inputs []float64) ([]float64, error) {
	if len(inputs) != len(net.InputIDs) {
		return nil, fmt.Errorf("mismatch between input count (%d) and network input nodes (%d)", len(inputs), len(net.InputIDs))
	}

	values := make(map[int]float64, len(net.Nodes)+len(inputs)+1)
	for i, id := range net.InputIDs {
		values[id] = inputs[i]
	}
	values[net.BiasID] = 1.0

	for _, id := range net.NodeEvalOrder {
		node := net.Nodes[id]
		sum := node.Bias
		for _, c := range node.Inputs {
			sum += values[c.Source] * c.Weight
		}
		values[id] = net.Activation(sum)
	}

	outputs := make([]float64, len(net.OutputIDs))
	for i, id := range net.OutputIDs {
		outputs[i] = values[id]
	}
	return outputs, nil
}
