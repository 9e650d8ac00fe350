package evolve

import (
	"math"
	"math/rand"
	"sort"
)

// Scored pairs a genome with its fitness. Higher is better.
type Scored struct {
	Genome  *Genome
	Fitness float64
}

// sortByFitness returns a copy of pop sorted by descending fitness. The sort
// is stable; NaN fitness sorts last.
func sortByFitness(pop []Scored) []Scored {
	sorted := make([]Scored, len(pop))
	copy(sorted, pop)
	sort.SliceStable(sorted, func(i, j int) bool {
		fi, fj := sorted[i].Fitness, sorted[j].Fitness
		if math.IsNaN(fj) {
			return !math.IsNaN(fi)
		}
		return fi > fj
	})
	return sorted
}

// TruncationSelection keeps the best max(1, floor(n*rate)) genomes. Survivors
// and culled together are exactly the input. A rate outside (0, 1] is a
// configuration error.
func TruncationSelection(pop []Scored, rate float64) (survivors, culled []Scored, err error) {
	if !(rate > 0 && rate <= 1) {
		return nil, nil, invalid("survival rate %v must be in (0, 1]", rate)
	}
	if len(pop) == 0 {
		return nil, nil, nil
	}
	sorted := sortByFitness(pop)
	keep := int(math.Floor(float64(len(sorted)) * rate))
	if keep < 1 {
		keep = 1
	}
	return sorted[:keep], sorted[keep:], nil
}

// TournamentSelection runs count tournaments. Each samples size contestants
// without replacement from the remaining pool; the fittest wins and leaves
// the pool. Fewer than count winners are returned once the pool drains.
func TournamentSelection(rng *rand.Rand, pop []Scored, count, size int) []Scored {
	pool := make([]Scored, len(pop))
	copy(pool, pop)
	if size < 1 {
		size = 1
	}

	winners := make([]Scored, 0, count)
	for len(winners) < count && len(pool) > 0 {
		k := size
		if k > len(pool) {
			k = len(pool)
		}
		best := -1
		for _, idx := range rng.Perm(len(pool))[:k] {
			if best == -1 || pool[idx].Fitness > pool[best].Fitness {
				best = idx
			}
		}
		winners = append(winners, pool[best])
		pool = append(pool[:best], pool[best+1:]...)
	}
	return winners
}

// RankProbabilities converts fitness values to selection probabilities by
// rank: the worst gets 1/T, the best n/T, with T = n(n+1)/2. The result is
// aligned with the input order.
func RankProbabilities(fitness []float64) []float64 {
	n := len(fitness)
	probs := make([]float64, n)
	if n == 0 {
		return probs
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		fi, fj := fitness[order[i]], fitness[order[j]]
		if math.IsNaN(fi) {
			return !math.IsNaN(fj)
		}
		return fi < fj
	})
	triangular := float64(n*(n+1)) / 2
	for rank, idx := range order {
		probs[idx] = float64(rank+1) / triangular
	}
	return probs
}

// WeightedDraw picks an index by roulette wheel over probs, which need not be
// normalized. A rounding shortfall falls back to the last index. Returns -1
// for empty input; a non-positive total draws uniformly.
func WeightedDraw(rng *rand.Rand, probs []float64) int {
	if len(probs) == 0 {
		return -1
	}
	total := 0.0
	for _, p := range probs {
		total += p
	}
	if !(total > 0) {
		return rng.Intn(len(probs))
	}
	r := rng.Float64() * total
	cumulative := 0.0
	for i, p := range probs {
		cumulative += p
		if r < cumulative {
			return i
		}
	}
	return len(probs) - 1
}

// Elite returns the k fittest genomes, best first.
func Elite(pop []Scored, k int) []Scored {
	if k <= 0 {
		return nil
	}
	sorted := sortByFitness(pop)
	if k > len(sorted) {
		k = len(sorted)
	}
	return sorted[:k]
}
