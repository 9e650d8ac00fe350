package evolve

import (
	"fmt"
	"math"
)

// Trend classifies recent progress of the best fitness.
type Trend int

const (
	TrendUnknown Trend = iota // not enough history yet
	TrendImproving
	TrendMarginal
	TrendStagnating
)

func (t Trend) String() string {
	switch t {
	case TrendUnknown:
		return "unknown"
	case TrendImproving:
		return "improving"
	case TrendMarginal:
		return "marginal"
	case TrendStagnating:
		return "stagnating"
	default:
		return fmt.Sprintf("Trend(%d)", int(t))
	}
}

// Thresholds and factors of the adaptive schedule. Experiments depend on
// these exact values.
const (
	improvingThreshold  = 0.05
	stagnatingThreshold = 0.01
	improvingFactor     = 0.9
	stagnatingFactor    = 1.5
	trendTrim           = 0.1
)

// AdaptiveMutation tracks the best fitness per generation and scales the
// mutation rate: down while the population improves, up while it stagnates.
type AdaptiveMutation struct {
	Config  *MutationConfig
	Rate    float64   // current mutation rate
	History []float64 // best fitness per generation, at most 2*AdaptiveWindow entries
	Trend   Trend     // classification from the last Update
}

// NewAdaptiveMutation starts at the configured base rate.
func NewAdaptiveMutation(config *MutationConfig) *AdaptiveMutation {
	return &AdaptiveMutation{
		Config: config,
		Rate:   config.Rate,
	}
}

// Update records the best fitness of a generation and returns the mutation
// rate to use next, with the trend that produced it.
//
// Once 2*window generations are recorded, the trimmed mean (10% dropped at
// each end) of the last window bests is compared to that of the window
// before. A relative change above 0.05 is improving and multiplies the rate
// by 0.9; below 0.01 is stagnating and multiplies it by 1.5; anything else is
// marginal and keeps it. The rate stays within [MinRate, MaxRate]. With
// adaptation disabled the base rate is returned unchanged.
func (a *AdaptiveMutation) Update(best float64) (float64, Trend) {
	if !a.Config.Adaptive {
		a.Rate = a.Config.Rate
		a.Trend = TrendUnknown
		return a.Rate, a.Trend
	}

	window := a.Config.AdaptiveWindow
	a.History = append(a.History, best)
	if len(a.History) > 2*window {
		a.History = a.History[len(a.History)-2*window:]
	}
	if len(a.History) < 2*window {
		a.Trend = TrendUnknown
		return a.Rate, a.Trend
	}

	previous := TrimmedMean(a.History[:window], trendTrim)
	recent := TrimmedMean(a.History[window:], trendTrim)
	change := relativeChange(previous, recent)

	switch {
	case change > improvingThreshold:
		a.Trend = TrendImproving
		a.Rate *= improvingFactor
	case change < stagnatingThreshold:
		a.Trend = TrendStagnating
		a.Rate *= stagnatingFactor
	default:
		a.Trend = TrendMarginal
	}
	a.Rate = clamp(a.Rate, a.Config.MinRate, a.Config.MaxRate)
	return a.Rate, a.Trend
}

// relativeChange is (recent-previous)/|previous|, or the plain difference
// when previous is zero.
func relativeChange(previous, recent float64) float64 {
	denom := math.Abs(previous)
	if denom == 0 {
		denom = 1
	}
	return (recent - previous) / denom
}
