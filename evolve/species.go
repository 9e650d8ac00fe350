package evolve

import (
	"math"
	"sort"
)

// Species represents a group of genetically similar genomes.
type Species struct {
	ID             int      // 1-based, sequential in founding order.
	Representative *Genome  // First member; fixed for the generation.
	Members        []Scored // Members with their fitness, in assignment order.
}

// Fitnesses returns the fitness values of all members.
func (s *Species) Fitnesses() []float64 {
	out := make([]float64, len(s.Members))
	for i, m := range s.Members {
		out[i] = m.Fitness
	}
	return out
}

// Best returns the highest member fitness, -Inf for an empty species.
func (s *Species) Best() float64 {
	_, hi := MinMax(s.Fitnesses())
	return hi
}

// Mean returns the mean member fitness.
func (s *Species) Mean() float64 {
	return Mean(s.Fitnesses())
}

// AssignSpecies partitions pop in order. Each genome joins the first species
// whose representative lies within threshold, otherwise it founds a new
// species and becomes its representative. The result depends on input order.
func AssignSpecies(pop []Scored, threshold float64, distance DistanceFunc) []*Species {
	var species []*Species
	for _, s := range pop {
		placed := false
		for _, sp := range species {
			if distance(sp.Representative, s.Genome) < threshold {
				sp.Members = append(sp.Members, s)
				placed = true
				break
			}
		}
		if !placed {
			species = append(species, &Species{
				ID:             len(species) + 1,
				Representative: s.Genome,
				Members:        []Scored{s},
			})
		}
	}
	return species
}

// SelectWithinSpecies picks survivors species by species. The global budget is
// floor(populationSize*(1-cullPercentage)). Species are ranked by their best
// member; each is first guaranteed up to minSpeciesSize survivors while the
// budget lasts, then the rest of the budget is shared in proportion to
// species size. The total never exceeds the budget.
//
// The returned species hold only their survivors, best first; species left
// without survivors are omitted.
func SelectWithinSpecies(species []*Species, populationSize int, cullPercentage float64, minSpeciesSize int) []*Species {
	budget := int(math.Floor(float64(populationSize) * (1 - cullPercentage)))
	if budget <= 0 || len(species) == 0 {
		return nil
	}
	if minSpeciesSize < 0 {
		minSpeciesSize = 0
	}

	ranked := make([]*Species, len(species))
	copy(ranked, species)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Best() > ranked[j].Best() })

	alloc := make([]int, len(ranked))
	left := budget
	total := 0
	for i, sp := range ranked {
		total += len(sp.Members)
		g := minInt(minSpeciesSize, len(sp.Members), left)
		alloc[i] = g
		left -= g
	}

	// Proportional share of what the guarantees left over.
	if left > 0 && total > 0 {
		pool := left
		for i, sp := range ranked {
			share := int(math.Floor(float64(pool) * float64(len(sp.Members)) / float64(total)))
			share = minInt(share, len(sp.Members)-alloc[i], left)
			alloc[i] += share
			left -= share
		}
		// Flooring remainder goes to the best species with room.
		for left > 0 {
			given := false
			for i, sp := range ranked {
				if left == 0 {
					break
				}
				if alloc[i] < len(sp.Members) {
					alloc[i]++
					left--
					given = true
				}
			}
			if !given {
				break
			}
		}
	}

	// Trim from the weakest species should the allocation overshoot.
	sum := 0
	for _, a := range alloc {
		sum += a
	}
	for i := len(ranked) - 1; i >= 0 && sum > budget; i-- {
		cut := minInt(alloc[i], sum-budget)
		alloc[i] -= cut
		sum -= cut
	}

	var out []*Species
	for i, sp := range ranked {
		if alloc[i] == 0 {
			continue
		}
		out = append(out, &Species{
			ID:             sp.ID,
			Representative: sp.Representative,
			Members:        sortByFitness(sp.Members)[:alloc[i]],
		})
	}
	return out
}

// Members flattens the members of every species, species by species.
func Members(species []*Species) []Scored {
	var out []Scored
	for _, sp := range species {
		out = append(out, sp.Members...)
	}
	return out
}

// SpeciesSummary is a per-species snapshot for statistics.
type SpeciesSummary struct {
	ID   int
	Size int
	Best float64
	Mean float64
}

// Summarize returns one summary per species, in species order.
func Summarize(species []*Species) []SpeciesSummary {
	out := make([]SpeciesSummary, len(species))
	for i, sp := range species {
		out[i] = SpeciesSummary{ID: sp.ID, Size: len(sp.Members), Best: sp.Best(), Mean: sp.Mean()}
	}
	return out
}

func minInt(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
