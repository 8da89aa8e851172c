package strategy

import (
	"math"

	"MomentumTradeBot/internal/models"
	"MomentumTradeBot/internal/services/indicators"
)

// ExitEvaluator decides when an open position should close. Unlike entries,
// exits depend on position state (the entry bar), so they are evaluated per
// position rather than precomputed per series.
type ExitEvaluator struct {
	trailingStopPct float64
	maPeriod        int
	useTrailingStop bool
	useMAExit       bool

	sma *indicators.SMAService
}

func NewExitEvaluator(trailingStopPct float64, maPeriod int, useTrailingStop, useMAExit bool) *ExitEvaluator {
	return &ExitEvaluator{
		trailingStopPct: trailingStopPct,
		maPeriod:        maPeriod,
		useTrailingStop: useTrailingStop,
		useMAExit:       useMAExit,
		sma:             indicators.NewSMAService(),
	}
}

// Check evaluates exit conditions at currentIndex for a position opened at
// entryIndex. The trailing stop tracks the highest high since entry,
// including the entry bar; it outranks the moving-average exit when both
// fire on the same bar.
func (e *ExitEvaluator) Check(candles []models.Candle, entryIndex, currentIndex int) ExitSignal {
	sig := ExitSignal{HoldingBars: currentIndex - entryIndex}
	if entryIndex < 0 || currentIndex < entryIndex || currentIndex >= len(candles) {
		sig.HoldingBars = 0
		sig.MA = math.NaN()
		return sig
	}

	peak := candles[entryIndex].High
	for i := entryIndex + 1; i <= currentIndex; i++ {
		if candles[i].High > peak {
			peak = candles[i].High
		}
	}

	e.evaluate(candles, currentIndex, peak, &sig)
	return sig
}

// CheckWithPeak evaluates against an externally tracked peak instead of
// rescanning from the entry bar. Live checks use this once the entry bar has
// rolled out of the fetched window; the current bar's high still counts.
func (e *ExitEvaluator) CheckWithPeak(candles []models.Candle, currentIndex int, peak float64) ExitSignal {
	sig := ExitSignal{MA: math.NaN()}
	if currentIndex < 0 || currentIndex >= len(candles) {
		return sig
	}

	if high := candles[currentIndex].High; high > peak {
		peak = high
	}

	e.evaluate(candles, currentIndex, peak, &sig)
	return sig
}

func (e *ExitEvaluator) evaluate(candles []models.Candle, currentIndex int, peak float64, sig *ExitSignal) {
	close := candles[currentIndex].Close
	sig.Close = close
	sig.MA = math.NaN()
	sig.PeakPrice = peak
	sig.StopLevel = e.StopPrice(peak)

	if e.useTrailingStop && close <= sig.StopLevel {
		sig.Triggered = true
		sig.Reason = models.ExitReasonTrailingStop
		return
	}

	if e.useMAExit {
		start := currentIndex - e.maPeriod + 1
		if start >= 0 {
			window := make([]float64, 0, e.maPeriod)
			for i := start; i <= currentIndex; i++ {
				window = append(window, candles[i].Close)
			}
			ma := e.sma.CalculateOne(window, e.maPeriod)
			sig.MA = ma
			if !math.IsNaN(ma) && close < ma {
				sig.Triggered = true
				sig.Reason = models.ExitReasonMAExit
			}
		}
	}
}

// StopPrice is the stop level implied by a peak price.
func (e *ExitEvaluator) StopPrice(peak float64) float64 {
	return peak * (1 - e.trailingStopPct)
}

// TrailingStopPct exposes the configured distance for exchange-side stops.
func (e *ExitEvaluator) TrailingStopPct() float64 {
	return e.trailingStopPct
}
