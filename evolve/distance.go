package evolve

import (
	"math"
)

// DistanceFunc measures genetic distance between two genomes.
type DistanceFunc func(a, b *Genome) float64

// NEATDistance is the compatibility distance between two NEAT controllers:
//
//	(c1*E + c2*D)/N + c3*W
//
// with E excess and D disjoint gene counts, W the mean absolute weight
// difference over matching genes, and N the larger connection count (1 when
// size normalization is off or both genomes are empty). Disabled genes count
// like enabled ones.
func NEATDistance(a, b *NEATGenome, cfg SpeciationConfig) float64 {
	al := AlignGenes(a, b)

	n := 1.0
	if cfg.NormalizeBySize {
		if l := math.Max(float64(len(a.Connections)), float64(len(b.Connections))); l > 1 {
			n = l
		}
	}

	d := (cfg.ExcessCoefficient*float64(al.Excess()) + cfg.DisjointCoefficient*float64(al.Disjoint())) / n
	if len(al.Matching) > 0 {
		sum := 0.0
		for _, p := range al.Matching {
			sum += math.Abs(p.A.Weight - p.B.Weight)
		}
		d += cfg.WeightCoefficient * sum / float64(len(al.Matching))
	}
	return d
}

// FixedDistance is the weight coefficient times the mean absolute difference
// of the flattened parameters. Controllers of different shapes are maximally
// distant (+Inf).
func FixedDistance(a, b *FixedTopology, cfg SpeciationConfig) float64 {
	if !a.SameShape(b) {
		return math.Inf(1)
	}
	wa, wb := a.Flatten(), b.Flatten()
	if len(wa) != len(wb) {
		return math.Inf(1)
	}
	if len(wa) == 0 {
		return 0
	}
	sum := 0.0
	for i := range wa {
		sum += math.Abs(wa[i] - wb[i])
	}
	return cfg.WeightCoefficient * sum / float64(len(wa))
}

// BodyDistance is a coarse structural distance from node count, muscle count
// and frequency multiplier differences.
func BodyDistance(a, b *Genome, cfg SpeciationConfig) float64 {
	return cfg.BodyNodeCoefficient*float64(absInt(len(a.Nodes)-len(b.Nodes))) +
		cfg.BodyMuscleCoefficient*float64(absInt(len(a.Muscles)-len(b.Muscles))) +
		cfg.BodyFrequencyCoefficient*math.Abs(a.FrequencyMultiplier-b.FrequencyMultiplier)
}

// Distance picks the measure by controller kind: NEAT distance for two NEAT
// controllers, weight distance for two fixed controllers, body distance when
// neither has a controller. Mixed kinds are +Inf.
func Distance(a, b *Genome, cfg SpeciationConfig) float64 {
	ka, kb := a.ControllerKind(), b.ControllerKind()
	if ka != kb {
		return math.Inf(1)
	}
	switch ka {
	case ControllerNEAT:
		return NEATDistance(a.NEAT(), b.NEAT(), cfg)
	case ControllerFixed:
		return FixedDistance(a.Fixed(), b.Fixed(), cfg)
	default:
		return BodyDistance(a, b, cfg)
	}
}

// --------------------------- DistanceCache ---------------------------

type genomePair struct {
	a, b string
}

// DistanceCache memoizes Distance by genome id pair. Genomes without an id
// are never cached. Not safe for concurrent use.
type DistanceCache struct {
	Config    SpeciationConfig
	distances map[genomePair]float64
	Hits      int
	Misses    int
}

// NewDistanceCache creates an empty cache.
func NewDistanceCache(cfg SpeciationConfig) *DistanceCache {
	return &DistanceCache{
		Config:    cfg,
		distances: make(map[genomePair]float64),
	}
}

// Distance calculates or retrieves the distance between two genomes.
func (dc *DistanceCache) Distance(a, b *Genome) float64 {
	if a.ID == "" || b.ID == "" {
		return Distance(a, b, dc.Config)
	}
	key := genomePair{a.ID, b.ID}
	if key.a > key.b {
		key.a, key.b = key.b, key.a
	}
	if d, ok := dc.distances[key]; ok {
		dc.Hits++
		return d
	}
	dc.Misses++
	d := Distance(a, b, dc.Config)
	dc.distances[key] = d
	return d
}
