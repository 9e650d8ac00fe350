package evolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func adaptiveConfig() *MutationConfig {
	return &MutationConfig{
		Rate:           0.1,
		Adaptive:       true,
		AdaptiveWindow: 2,
		MinRate:        0.01,
		MaxRate:        0.5,
	}
}

func feed(a *AdaptiveMutation, bests ...float64) (float64, Trend) {
	var rate float64
	var trend Trend
	for _, b := range bests {
		rate, trend = a.Update(b)
	}
	return rate, trend
}

func TestAdaptiveMutationNeedsTwoWindows(t *testing.T) {
	a := NewAdaptiveMutation(adaptiveConfig())
	for _, best := range []float64{1, 2, 3} {
		rate, trend := a.Update(best)
		assert.Equal(t, 0.1, rate)
		assert.Equal(t, TrendUnknown, trend)
	}
}

func TestAdaptiveMutationTrends(t *testing.T) {
	cases := []struct {
		name  string
		bests []float64
		trend Trend
		rate  float64
	}{
		{"improving", []float64{1, 1, 2, 2}, TrendImproving, 0.09},
		{"stagnating", []float64{1, 1, 1, 1}, TrendStagnating, 0.15},
		{"declining", []float64{2, 2, 1, 1}, TrendStagnating, 0.15},
		{"marginal", []float64{1, 1, 1.03, 1.03}, TrendMarginal, 0.1},
		{"from zero", []float64{0, 0, 1, 1}, TrendImproving, 0.09},
		{"negative fitness", []float64{-2, -2, -1, -1}, TrendImproving, 0.09},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := NewAdaptiveMutation(adaptiveConfig())
			rate, trend := feed(a, tc.bests...)
			assert.Equal(t, tc.trend, trend)
			assert.InDelta(t, tc.rate, rate, 1e-12)
			assert.Equal(t, tc.trend, a.Trend)
		})
	}
}

func TestAdaptiveMutationClamps(t *testing.T) {
	cfg := adaptiveConfig()
	cfg.MaxRate = 0.2
	a := NewAdaptiveMutation(cfg)
	rate, _ := feed(a, 1, 1, 1, 1, 1, 1, 1)
	assert.Equal(t, 0.2, rate)
	assert.Len(t, a.History, 4)

	cfg = adaptiveConfig()
	cfg.MinRate = 0.08
	a = NewAdaptiveMutation(cfg)
	rate, trend := feed(a, 1, 2, 4, 8, 16, 32, 64, 128)
	assert.Equal(t, TrendImproving, trend)
	assert.Equal(t, 0.08, rate)
}

func TestAdaptiveMutationDisabled(t *testing.T) {
	cfg := adaptiveConfig()
	cfg.Adaptive = false
	a := NewAdaptiveMutation(cfg)
	rate, trend := feed(a, 1, 1, 1, 1, 1, 1)
	assert.Equal(t, 0.1, rate)
	assert.Equal(t, TrendUnknown, trend)
	assert.Empty(t, a.History)
}

func TestTrendString(t *testing.T) {
	assert.Equal(t, "stagnating", TrendStagnating.String())
	assert.Equal(t, "Trend(9)", Trend(9).String())
}
