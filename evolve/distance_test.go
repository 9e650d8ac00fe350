package evolve

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNEATDistance(t *testing.T) {
	cfg := DefaultConfig().Speciation
	cfg.NormalizeBySize = false
	cfg.WeightCoefficient = 1

	a := withInnovations(0, 1, 2)
	b := withInnovations(0, 1, 5)
	b.Connections[1].Weight += 0.5

	// Two excess genes plus a mean weight difference of 0.25 over two matches.
	assert.InDelta(t, 2.25, NEATDistance(a, b, cfg), 1e-12)
	assert.Zero(t, NEATDistance(a, a, cfg))
	assert.Equal(t, NEATDistance(a, b, cfg), NEATDistance(b, a, cfg))

	cfg.NormalizeBySize = true
	assert.InDelta(t, 2.0/3+0.25, NEATDistance(a, b, cfg), 1e-12)
}

func TestNEATDistanceCountsDisabledGenes(t *testing.T) {
	cfg := DefaultConfig().Speciation
	a := withInnovations(0, 1)
	b := withInnovations(0, 1, 2)
	d := NEATDistance(a, b, cfg)

	b.Connections[2].Enabled = false
	assert.Equal(t, d, NEATDistance(a, b, cfg))
}

func TestFixedDistance(t *testing.T) {
	cfg := DefaultConfig().Speciation
	cfg.WeightCoefficient = 2

	a := NewFixedTopology(1, 1, 1, "tanh")
	b := a.Clone()
	assert.Zero(t, FixedDistance(a, b, cfg))

	b.OutputBias[0] = 1
	assert.InDelta(t, 2*1.0/4, FixedDistance(a, b, cfg), 1e-12)

	c := NewFixedTopology(1, 2, 1, "tanh")
	assert.True(t, math.IsInf(FixedDistance(a, c, cfg), 1))
}

func TestBodyDistance(t *testing.T) {
	cfg := DefaultConfig().Speciation
	a := &Genome{Nodes: make([]Node, 3), Muscles: make([]Muscle, 2), FrequencyMultiplier: 1}
	b := &Genome{Nodes: make([]Node, 5), Muscles: make([]Muscle, 6), FrequencyMultiplier: 1.5}
	want := cfg.BodyNodeCoefficient*2 + cfg.BodyMuscleCoefficient*4 + cfg.BodyFrequencyCoefficient*0.5
	assert.InDelta(t, want, BodyDistance(a, b, cfg), 1e-12)
	assert.InDelta(t, want, Distance(a, b, cfg), 1e-12)
	assert.Zero(t, Distance(a, a, cfg))
}

func TestDistanceMixedKindsIsInfinite(t *testing.T) {
	cfg := DefaultConfig().Speciation
	neat := &Genome{Controller: withInnovations(0)}
	fixed := &Genome{Controller: NewFixedTopology(1, 1, 1, "tanh")}
	bare := &Genome{}
	assert.True(t, math.IsInf(Distance(neat, fixed, cfg), 1))
	assert.True(t, math.IsInf(Distance(fixed, bare, cfg), 1))
	assert.True(t, math.IsInf(Distance(bare, neat, cfg), 1))
	assert.Zero(t, Distance(neat, neat, cfg))
}

func TestDistanceCache(t *testing.T) {
	cfg := DefaultConfig().Speciation
	a := &Genome{ID: "a", Controller: withInnovations(0, 1)}
	b := &Genome{ID: "b", Controller: withInnovations(0, 3)}
	cache := NewDistanceCache(cfg)

	d := cache.Distance(a, b)
	assert.Equal(t, Distance(a, b, cfg), d)
	assert.Equal(t, d, cache.Distance(b, a))
	assert.Equal(t, 1, cache.Misses)
	assert.Equal(t, 1, cache.Hits)

	anon := &Genome{Controller: withInnovations(0)}
	cache.Distance(a, anon)
	cache.Distance(a, anon)
	assert.Equal(t, 1, cache.Misses, "genomes without id are not cached")
	require.Equal(t, 1, cache.Hits)
}
