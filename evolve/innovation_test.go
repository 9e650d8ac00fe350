package evolve

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionInnovationIsCachedPerGeneration(t *testing.T) {
	c := NewInnovationCounter()
	a := c.ConnectionInnovation(0, 3)
	b := c.ConnectionInnovation(1, 3)
	assert.Equal(t, 0, a)
	assert.Equal(t, 1, b)
	assert.Equal(t, a, c.ConnectionInnovation(0, 3))

	c.NewGeneration()
	again := c.ConnectionInnovation(0, 3)
	assert.Greater(t, again, b, "counters never reset")
}

func TestCounterFromPopulationStartsAboveExistingIDs(t *testing.T) {
	g := withInnovations(4, 9)
	g.Neurons[len(g.Neurons)-1].Innovation = 7
	c := NewInnovationCounterFrom([]*Genome{{Controller: g}, {}})
	nextConn, nextNode := c.Next()
	assert.Equal(t, 10, nextConn)
	assert.Equal(t, 8, nextNode)
}

func TestSplitSameConnectionAgreesWithinGeneration(t *testing.T) {
	cfg := DefaultConfig().NEAT
	base := &NEATGenome{
		InputCount:  1,
		OutputCount: 1,
		Neurons: []NeuronGene{
			{ID: 0, Role: RoleInput, Innovation: NoInnovation},
			{ID: 1, Role: RoleOutput, Innovation: NoInnovation},
		},
		Connections: []ConnectionGene{conn(0, 1, 0.7, 0)},
	}
	// A second genome whose local neuron ids differ but which carries the
	// same historical connection.
	other := base.Clone()
	other.Neurons = append(other.Neurons, NeuronGene{ID: 5, Role: RoleHidden, Innovation: 40})

	counter := NewInnovationCounter()
	counter.Observe(base)

	c1, ok := MutateAddNode(testRand(1), base, counter, cfg)
	require.True(t, ok)
	c2, ok := MutateAddNode(testRand(2), other, counter, cfg)
	require.True(t, ok)

	h1 := c1.Neurons[len(c1.Neurons)-1]
	h2 := c2.Neurons[len(c2.Neurons)-1]
	assert.NotEqual(t, h1.ID, h2.ID, "local ids differ")
	assert.Equal(t, h1.Innovation, h2.Innovation)
	assert.Equal(t, innovationsOf(c1.Connections), innovationsOf(c2.Connections))

	counter.NewGeneration()
	c3, ok := MutateAddNode(testRand(3), base, counter, cfg)
	require.True(t, ok)
	h3 := c3.Neurons[len(c3.Neurons)-1]
	assert.Greater(t, h3.Innovation, h1.Innovation)
	assert.Greater(t, c3.MaxInnovation(), c1.MaxInnovation())
}

func TestCounterIsSafeForConcurrentUse(t *testing.T) {
	c := NewInnovationCounter()
	var wg sync.WaitGroup
	results := make([]int, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.ConnectionInnovation(i%4, 10)
		}(i)
	}
	wg.Wait()

	seen := map[int]bool{}
	for _, r := range results {
		seen[r] = true
	}
	assert.Len(t, seen, 4)
	next, _ := c.Next()
	assert.Equal(t, 4, next)
}
