package strategy

import (
	"math"

	"MomentumTradeBot/internal/models"
	"MomentumTradeBot/internal/services/indicators"
)

type MomentumStrategy struct {
	// Bollinger settings
	bbPeriod     int
	bbDeviations float64

	// Entry thresholds
	bbWidthThreshold     float64 // squeeze: width percentile must be below
	volumeRatioThreshold float64 // participation: relative volume must be above
	maPeriod             int
	lookbackPeriod       int // window for the width percentile rank
	volumePeriod         int

	// Indicator services
	bbands      *indicators.BBandsService
	sma         *indicators.SMAService
	volumeRatio *indicators.VolumeRatioService
}

func NewMomentumStrategy(bbWidthThreshold, volumeRatioThreshold float64, maPeriod, lookbackPeriod int) *MomentumStrategy {
	return &MomentumStrategy{
		bbPeriod:             20,
		bbDeviations:         2.0,
		bbWidthThreshold:     bbWidthThreshold,
		volumeRatioThreshold: volumeRatioThreshold,
		maPeriod:             maPeriod,
		lookbackPeriod:       lookbackPeriod,
		volumePeriod:         20,
		bbands:               indicators.NewBBandsService(),
		sma:                  indicators.NewSMAService(),
		volumeRatio:          indicators.NewVolumeRatioService(),
	}
}

// MinBars is the series length needed before signals can trigger. Shorter
// series still evaluate, they just never pass the squeeze criterion.
func (s *MomentumStrategy) MinBars() int {
	min := s.bbPeriod + s.lookbackPeriod
	if s.maPeriod > min {
		min = s.maPeriod
	}
	return min
}

// Signals evaluates every bar of the series. The setup looks for a
// volatility squeeze resolving upward: tight bands, a close through the
// upper band, elevated volume and price above its moving average.
func (s *MomentumStrategy) Signals(candles []models.Candle) []EntrySignal {
	signals := make([]EntrySignal, len(candles))
	for i, c := range candles {
		signals[i].Close = c.Close
		signals[i].BBWidthPercentile = math.NaN()
		signals[i].UpperBand = math.NaN()
		signals[i].VolumeRatio = math.NaN()
		signals[i].MA = math.NaN()
	}

	closePrices := closes(candles)
	bands := s.bbands.Calculate(closePrices, s.bbPeriod, s.bbDeviations)
	if bands == nil {
		return signals
	}

	pct := s.bbands.WidthPercentile(bands.Width, s.lookbackPeriod)
	ma := s.sma.Calculate(closePrices, s.maPeriod)
	rvr := s.volumeRatio.Calculate(volumes(candles), s.volumePeriod)

	for i := range candles {
		sig := &signals[i]
		sig.BBWidthPercentile = pct[i]
		sig.UpperBand = bands.Upper[i]
		sig.VolumeRatio = rvr[i]
		sig.MA = ma[i]

		// NaN comparisons are false, so warmup bars never trigger.
		sig.SqueezeOK = pct[i] < s.bbWidthThreshold
		sig.BreakoutOK = sig.Close > bands.Upper[i]
		sig.VolumeOK = rvr[i] > s.volumeRatioThreshold
		sig.TrendOK = sig.Close > ma[i]
		sig.Triggered = sig.SqueezeOK && sig.BreakoutOK && sig.VolumeOK && sig.TrendOK

		sig.Strength = s.strength(sig.Close, pct[i], rvr[i], ma[i])
	}

	return signals
}

// Latest evaluates only the final bar, for live polling.
func (s *MomentumStrategy) Latest(candles []models.Candle) EntrySignal {
	if len(candles) == 0 {
		return EntrySignal{}
	}
	signals := s.Signals(candles)
	return signals[len(signals)-1]
}

// strength averages whichever components have data:
//   - squeeze tightness: 1 - percentile
//   - volume surge: ratio / 5, capped at 1, only when volume printed
//   - trend distance: (close-ma)/ma scaled so +10% saturates, capped at 1
//
// The trend component can go negative below the MA; that is deliberate, it
// ranks weak setups down without zeroing them. A bar with zero volume has
// no participation to score, so the volume component drops out entirely.
func (s *MomentumStrategy) strength(close, widthPct, volumeRatio, ma float64) float64 {
	var parts []float64

	if !math.IsNaN(widthPct) {
		parts = append(parts, 1-widthPct)
	}
	if volumeRatio > 0 {
		parts = append(parts, math.Min(volumeRatio/5.0, 1.0))
	}
	if !math.IsNaN(ma) && ma != 0 {
		parts = append(parts, math.Min((close-ma)/ma/0.1, 1.0))
	}

	if len(parts) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range parts {
		sum += p
	}
	return sum / float64(len(parts))
}
