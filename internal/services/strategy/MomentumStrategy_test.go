package strategy

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MomentumTradeBot/internal/models"
)

// breakoutSeries builds 50 bars: 20 bars alternating 90/110 (wide bands),
// 29 flat bars at 100 (squeeze), then one configurable final bar. With a
// 20-bar band window and 30-bar percentile lookback, the final bar is the
// first one that can trigger.
func breakoutSeries(finalClose, finalVolume float64) []models.Candle {
	var candles []models.Candle
	add := func(close, volume float64) {
		candles = append(candles, models.Candle{
			Symbol:   "TESTUSDT",
			OpenTime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(len(candles)) * 4 * time.Hour),
			Open:     close,
			High:     close,
			Low:      close,
			Close:    close,
			Volume:   volume,
		})
	}

	for i := 0; i < 20; i++ {
		if i%2 == 0 {
			add(90, 1000)
		} else {
			add(110, 1000)
		}
	}
	for i := 0; i < 29; i++ {
		add(100, 1000)
	}
	add(finalClose, finalVolume)
	return candles
}

func TestSignalsTriggerOnBreakoutFromSqueeze(t *testing.T) {
	strat := NewMomentumStrategy(0.40, 2.0, 20, 30)
	candles := breakoutSeries(110, 5000)
	require.Len(t, candles, strat.MinBars())

	signals := strat.Signals(candles)
	require.Len(t, signals, 50)

	last := signals[49]
	assert.True(t, last.SqueezeOK)
	assert.True(t, last.BreakoutOK)
	assert.True(t, last.VolumeOK)
	assert.True(t, last.TrendOK)
	assert.True(t, last.Triggered)

	// 10 of the 29 other widths in the lookback window are below the
	// breakout bar's width.
	assert.InDelta(t, 10.0/29.0, last.BBWidthPercentile, 1e-9)
	assert.InDelta(t, 104.8589, last.UpperBand, 1e-3)
	assert.InDelta(t, 4.166667, last.VolumeRatio, 1e-6)
	assert.InDelta(t, 100.5, last.MA, 1e-9)

	// Only the breakout bar triggers.
	for i := 0; i < 49; i++ {
		assert.False(t, signals[i].Triggered, "bar %d should not trigger", i)
	}
}

func TestSignalStrengthComponents(t *testing.T) {
	strat := NewMomentumStrategy(0.40, 2.0, 20, 30)
	signals := strat.Signals(breakoutSeries(110, 5000))

	// squeeze 1-10/29, volume 4.1667/5, trend ((110-100.5)/100.5)/0.1
	squeeze := 1 - 10.0/29.0
	volume := (5000.0 / 1200.0) / 5.0
	trend := ((110 - 100.5) / 100.5) / 0.1
	want := (squeeze + volume + trend) / 3

	assert.InDelta(t, want, signals[49].Strength, 1e-9)
	assert.Greater(t, signals[49].Strength, 0.5)
	assert.Less(t, signals[49].Strength, 1.0)
}

func TestStrengthSkipsZeroVolumeBar(t *testing.T) {
	strat := NewMomentumStrategy(0.40, 2.0, 20, 30)
	signals := strat.Signals(breakoutSeries(110, 0))

	last := signals[49]
	assert.Zero(t, last.VolumeRatio)
	assert.False(t, last.VolumeOK)

	// A bar with no volume has no participation to score; the composite
	// averages the remaining components instead of dragging in a zero.
	squeeze := 1 - 10.0/29.0
	trend := ((110 - 100.5) / 100.5) / 0.1
	assert.InDelta(t, (squeeze+trend)/2, last.Strength, 1e-9)
}

func TestSignalsRequireEveryCriterion(t *testing.T) {
	t.Run("no volume surge", func(t *testing.T) {
		strat := NewMomentumStrategy(0.40, 2.0, 20, 30)
		signals := strat.Signals(breakoutSeries(110, 1000))

		last := signals[49]
		assert.True(t, last.SqueezeOK)
		assert.True(t, last.BreakoutOK)
		assert.False(t, last.VolumeOK)
		assert.False(t, last.Triggered)
	})

	t.Run("no breakout", func(t *testing.T) {
		strat := NewMomentumStrategy(0.40, 2.0, 20, 30)
		signals := strat.Signals(breakoutSeries(100, 5000))

		last := signals[49]
		assert.False(t, last.BreakoutOK)
		assert.False(t, last.Triggered)
	})

	t.Run("expansion ranks high against a short tight window", func(t *testing.T) {
		// With a 10-bar lookback the window holds only squeeze bars, so
		// the width expansion itself ranks at the 100th percentile.
		strat := NewMomentumStrategy(0.40, 2.0, 20, 10)
		signals := strat.Signals(breakoutSeries(110, 5000))

		last := signals[49]
		assert.InDelta(t, 1.0, last.BBWidthPercentile, 1e-9)
		assert.False(t, last.SqueezeOK)
		assert.True(t, last.BreakoutOK)
		assert.False(t, last.Triggered)
	})
}

func TestSignalsWarmupNeverTriggers(t *testing.T) {
	strat := NewMomentumStrategy(0.40, 2.0, 20, 30)
	signals := strat.Signals(breakoutSeries(110, 5000))

	// Before the first full band window there is no data to compare
	// against. Positive closes alone must not count as "above MA".
	warm := signals[18]
	assert.True(t, math.IsNaN(warm.UpperBand))
	assert.True(t, math.IsNaN(warm.MA))
	assert.False(t, warm.TrendOK)
	assert.False(t, warm.BreakoutOK)
	assert.False(t, warm.Triggered)
}

func TestSignalsShortSeries(t *testing.T) {
	strat := NewMomentumStrategy(0.40, 2.0, 20, 30)
	signals := strat.Signals(breakoutSeries(110, 5000)[:10])

	require.Len(t, signals, 10)
	for _, sig := range signals {
		assert.False(t, sig.Triggered)
		assert.Zero(t, sig.Strength)
	}
}

func TestLatestMatchesLastSignal(t *testing.T) {
	strat := NewMomentumStrategy(0.40, 2.0, 20, 30)
	candles := breakoutSeries(110, 5000)

	last := strat.Latest(candles)
	signals := strat.Signals(candles)

	assert.Equal(t, signals[len(signals)-1], last)
	assert.Equal(t, EntrySignal{}, strat.Latest(nil))
}
