package strategy

import "MomentumTradeBot/internal/models"

// EntrySignal is the per-bar output of entry evaluation. All four criteria
// must hold for Triggered; Strength is computed either way so rankings stay
// comparable across bars.
type EntrySignal struct {
	Triggered bool

	// Individual criteria
	SqueezeOK  bool // bandwidth percentile below threshold
	BreakoutOK bool // close above upper band
	VolumeOK   bool // relative volume above threshold
	TrendOK    bool // close above moving average

	// Inputs behind the decision
	Close             float64
	BBWidthPercentile float64
	UpperBand         float64
	VolumeRatio       float64
	MA                float64

	// Composite score in roughly [0, 1], used to rank candidates
	Strength float64
}

// ExitSignal is the output of exit evaluation for one open position at one
// bar. Reason is set only when Triggered.
type ExitSignal struct {
	Triggered   bool
	Reason      string
	Close       float64
	StopLevel   float64
	PeakPrice   float64
	MA          float64
	HoldingBars int
}

// Helper extractors for candle series
func closes(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

func volumes(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}
