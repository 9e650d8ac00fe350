package evolve

import "math"

// SharingKernel is sh(d) = 1 - (d/sigma)^alpha for d < sigma, otherwise 0.
func SharingKernel(d, sigma, alpha float64) float64 {
	if !(d < sigma) {
		return 0
	}
	return 1 - math.Pow(d/sigma, alpha)
}

// SharedFitness deflates each raw fitness by its niche count, the sum of the
// sharing kernel over the whole population including the genome itself.
// The result is aligned with pop.
func SharedFitness(pop []Scored, distance DistanceFunc, sigma, alpha float64) []float64 {
	shared := make([]float64, len(pop))
	for i := range pop {
		niche := 0.0
		for j := range pop {
			if i == j {
				niche++
				continue
			}
			niche += SharingKernel(distance(pop[i].Genome, pop[j].Genome), sigma, alpha)
		}
		shared[i] = pop[i].Fitness / niche
	}
	return shared
}
