package evolve

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scoredPop builds genomes named g0, g1, ... with the given fitness values.
func scoredPop(fitness ...float64) []Scored {
	pop := make([]Scored, len(fitness))
	for i, f := range fitness {
		pop[i] = Scored{Genome: &Genome{ID: fmt.Sprintf("g%d", i)}, Fitness: f}
	}
	return pop
}

func idsOf(pop []Scored) []string {
	out := make([]string, len(pop))
	for i, s := range pop {
		out[i] = s.Genome.ID
	}
	return out
}

func TestTruncationSelectionPartitions(t *testing.T) {
	pop := scoredPop(3, 9, 1, 7, 5)
	survivors, culled, err := TruncationSelection(pop, 0.4)
	require.NoError(t, err)
	assert.Equal(t, []string{"g1", "g3"}, idsOf(survivors))
	assert.Equal(t, []string{"g4", "g0", "g2"}, idsOf(culled))
	assert.ElementsMatch(t, idsOf(pop), append(idsOf(survivors), idsOf(culled)...))
}

func TestTruncationSelectionKeepsAtLeastOne(t *testing.T) {
	survivors, culled, err := TruncationSelection(scoredPop(1, 2, 3), 0.01)
	require.NoError(t, err)
	assert.Equal(t, []string{"g2"}, idsOf(survivors))
	assert.Len(t, culled, 2)

	survivors, culled, err = TruncationSelection(nil, 0.5)
	require.NoError(t, err)
	assert.Empty(t, survivors)
	assert.Empty(t, culled)
}

func TestTruncationSelectionRejectsRate(t *testing.T) {
	for _, rate := range []float64{0, -0.1, 1.5, math.NaN()} {
		_, _, err := TruncationSelection(scoredPop(1), rate)
		assert.ErrorIs(t, err, ErrInvalidConfig, "rate %v", rate)
	}
}

func TestTruncationSelectionSortsNaNLast(t *testing.T) {
	survivors, culled, err := TruncationSelection(scoredPop(math.NaN(), 2, 1), 0.5)
	require.NoError(t, err)
	assert.Equal(t, []string{"g1"}, idsOf(survivors))
	assert.Equal(t, []string{"g2", "g0"}, idsOf(culled))
}

func TestTournamentSelection(t *testing.T) {
	pop := scoredPop(1, 2, 3, 4, 5, 6)

	// A tournament over the whole pool always picks the best remaining.
	winners := TournamentSelection(testRand(1), pop, 3, len(pop))
	assert.Equal(t, []string{"g5", "g4", "g3"}, idsOf(winners))

	// The pool drains without repeats.
	winners = TournamentSelection(testRand(2), pop, 10, 2)
	assert.Len(t, winners, len(pop))
	assert.ElementsMatch(t, idsOf(pop), idsOf(winners))

	assert.Empty(t, TournamentSelection(testRand(3), nil, 2, 2))
	assert.Len(t, pop, 6, "input untouched")
}

func TestRankProbabilities(t *testing.T) {
	probs := RankProbabilities([]float64{10, 30, 20})
	assert.InDeltaSlice(t, []float64{1.0 / 6, 3.0 / 6, 2.0 / 6}, probs, 1e-12)

	sum := 0.0
	for _, p := range RankProbabilities([]float64{5, 1, 4, 4, 2, 8, 0}) {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
	assert.Empty(t, RankProbabilities(nil))
}

func TestWeightedDraw(t *testing.T) {
	rng := testRand(1)
	assert.Equal(t, -1, WeightedDraw(rng, nil))
	for i := 0; i < 20; i++ {
		assert.Equal(t, 1, WeightedDraw(rng, []float64{0, 2, 0}))
	}

	counts := make([]int, 2)
	for i := 0; i < 2000; i++ {
		counts[WeightedDraw(rng, []float64{1, 3})]++
	}
	assert.InDelta(t, 1500, counts[1], 150)

	for i := 0; i < 20; i++ {
		idx := WeightedDraw(rng, []float64{0, 0, 0})
		assert.GreaterOrEqual(t, idx, 0)
		assert.Less(t, idx, 3)
	}
}

func TestElite(t *testing.T) {
	pop := scoredPop(4, 8, 6)
	assert.Equal(t, []string{"g1", "g2"}, idsOf(Elite(pop, 2)))
	assert.Len(t, Elite(pop, 10), 3)
	assert.Empty(t, Elite(pop, 0))
}
