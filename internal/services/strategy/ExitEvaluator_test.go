package strategy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MomentumTradeBot/internal/models"
)

func bars(highs, closePrices []float64) []models.Candle {
	candles := make([]models.Candle, len(highs))
	for i := range highs {
		candles[i] = models.Candle{High: highs[i], Close: closePrices[i]}
	}
	return candles
}

func TestTrailingStopTracksPeakSinceEntry(t *testing.T) {
	eval := NewExitEvaluator(0.10, 20, true, false)
	candles := bars(
		[]float64{100, 110, 120, 119, 118},
		[]float64{100, 109, 119, 110, 107.5},
	)

	// Close 110 sits above the 108 stop implied by the 120 peak.
	sig := eval.Check(candles, 0, 3)
	assert.False(t, sig.Triggered)
	assert.InDelta(t, 120.0, sig.PeakPrice, 1e-9)
	assert.InDelta(t, 108.0, sig.StopLevel, 1e-9)

	sig = eval.Check(candles, 0, 4)
	require.True(t, sig.Triggered)
	assert.Equal(t, models.ExitReasonTrailingStop, sig.Reason)
	assert.InDelta(t, 107.5, sig.Close, 1e-9)
	assert.InDelta(t, 108.0, sig.StopLevel, 1e-9)
	assert.Equal(t, 4, sig.HoldingBars)
}

func TestTrailingStopIncludesEntryBarHigh(t *testing.T) {
	// The peak never advances past the entry bar, so the stop anchors there.
	eval := NewExitEvaluator(0.10, 20, true, false)
	candles := bars(
		[]float64{100, 95, 94},
		[]float64{98, 94, 89.9},
	)

	sig := eval.Check(candles, 0, 1)
	assert.False(t, sig.Triggered)
	assert.InDelta(t, 100.0, sig.PeakPrice, 1e-9)

	sig = eval.Check(candles, 0, 2)
	require.True(t, sig.Triggered)
	assert.Equal(t, models.ExitReasonTrailingStop, sig.Reason)
	assert.InDelta(t, 90.0, sig.StopLevel, 1e-9)
}

func TestMovingAverageExit(t *testing.T) {
	eval := NewExitEvaluator(0.50, 3, true, true)
	candles := bars(
		[]float64{100, 100, 100, 100},
		[]float64{100, 100, 100, 98},
	)

	sig := eval.Check(candles, 0, 3)
	require.True(t, sig.Triggered)
	assert.Equal(t, models.ExitReasonMAExit, sig.Reason)
	assert.InDelta(t, (100.0+100.0+98.0)/3.0, sig.MA, 1e-9)
	assert.Equal(t, 3, sig.HoldingBars)
}

func TestTrailingStopOutranksMAExit(t *testing.T) {
	eval := NewExitEvaluator(0.01, 2, true, true)
	candles := bars(
		[]float64{100, 98},
		[]float64{100, 98},
	)

	// Both conditions hold on this bar; trailing stop wins.
	sig := eval.Check(candles, 0, 1)
	require.True(t, sig.Triggered)
	assert.Equal(t, models.ExitReasonTrailingStop, sig.Reason)
}

func TestMAExitDisabled(t *testing.T) {
	eval := NewExitEvaluator(0.50, 3, true, false)
	candles := bars(
		[]float64{100, 99, 98, 97},
		[]float64{100, 99, 98, 97},
	)

	sig := eval.Check(candles, 0, 3)
	assert.False(t, sig.Triggered)
	assert.True(t, math.IsNaN(sig.MA))
}

func TestTrailingStopDisabled(t *testing.T) {
	eval := NewExitEvaluator(0.10, 3, false, false)
	candles := bars(
		[]float64{100, 120, 119},
		[]float64{100, 118, 80},
	)

	// Close is far below the stop level, but the trailing exit is off.
	sig := eval.Check(candles, 0, 2)
	assert.False(t, sig.Triggered)
	assert.InDelta(t, 108.0, sig.StopLevel, 1e-9)
}

func TestMAExitSkippedDuringWarmup(t *testing.T) {
	eval := NewExitEvaluator(0.50, 5, true, true)
	candles := bars(
		[]float64{100, 99, 98},
		[]float64{100, 99, 98},
	)

	sig := eval.Check(candles, 0, 2)
	assert.False(t, sig.Triggered)
	assert.True(t, math.IsNaN(sig.MA))
}

func TestCheckWithPeakCarriesExternalHigh(t *testing.T) {
	eval := NewExitEvaluator(0.10, 20, true, false)
	// A short fetched window that no longer contains the entry bar.
	candles := bars(
		[]float64{101, 102},
		[]float64{100, 107.5},
	)

	// The externally tracked peak of 120 dominates the window highs.
	sig := eval.CheckWithPeak(candles, 1, 120)
	require.True(t, sig.Triggered)
	assert.Equal(t, models.ExitReasonTrailingStop, sig.Reason)
	assert.InDelta(t, 120.0, sig.PeakPrice, 1e-9)
	assert.InDelta(t, 108.0, sig.StopLevel, 1e-9)

	// The current bar's high still advances a stale peak.
	sig = eval.CheckWithPeak(candles, 1, 50)
	assert.InDelta(t, 102.0, sig.PeakPrice, 1e-9)
	assert.False(t, sig.Triggered)
}

func TestCheckRejectsBadIndices(t *testing.T) {
	eval := NewExitEvaluator(0.10, 20, true, true)
	candles := bars([]float64{100, 100}, []float64{100, 100})

	assert.False(t, eval.Check(candles, 0, 2).Triggered)
	assert.False(t, eval.Check(candles, -1, 1).Triggered)
	assert.False(t, eval.Check(candles, 1, 0).Triggered)
}

func TestStopPrice(t *testing.T) {
	eval := NewExitEvaluator(0.10, 20, true, false)
	assert.InDelta(t, 108.0, eval.StopPrice(120), 1e-9)
	assert.InDelta(t, 0.10, eval.TrailingStopPct(), 1e-9)
}
