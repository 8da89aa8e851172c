package price

import (
	"errors"
	"fmt"
	"math"
	"time"

	"MomentumTradeBot/internal/models"
)

var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrBadPrice         = errors.New("bad price data")
	ErrDuplicateBars    = errors.New("duplicate bars")
	ErrOutOfOrder       = errors.New("bars out of order")
)

// Validator screens a series before it is traded on. A symbol that fails
// is dropped from the run; indicator warmup handles short windows, but
// garbage rows would silently poison every signal downstream.
type Validator struct {
	minBars int
}

func NewValidator(minBars int) *Validator {
	return &Validator{minBars: minBars}
}

func (v *Validator) Validate(symbol string, candles []models.Candle) error {
	if len(candles) < v.minBars {
		return fmt.Errorf("%s has %d bars, need %d: %w", symbol, len(candles), v.minBars, ErrInsufficientData)
	}

	for i, c := range candles {
		if badValue(c.Open) || badValue(c.High) || badValue(c.Low) || badValue(c.Close) {
			return fmt.Errorf("%s bar %d at %s: %w", symbol, i, c.OpenTime.Format(time.RFC3339), ErrBadPrice)
		}
		if c.High < c.Low {
			return fmt.Errorf("%s bar %d at %s high below low: %w", symbol, i, c.OpenTime.Format(time.RFC3339), ErrBadPrice)
		}
		if i == 0 {
			continue
		}
		if c.OpenTime.Equal(candles[i-1].OpenTime) {
			return fmt.Errorf("%s bar %d at %s: %w", symbol, i, c.OpenTime.Format(time.RFC3339), ErrDuplicateBars)
		}
		if c.OpenTime.Before(candles[i-1].OpenTime) {
			return fmt.Errorf("%s bar %d at %s: %w", symbol, i, c.OpenTime.Format(time.RFC3339), ErrOutOfOrder)
		}
	}

	return nil
}

// GapRatio is the share of expected bars missing from the series. Gaps are
// tolerated at runtime, this only feeds a warning so thin data is visible.
func GapRatio(candles []models.Candle, interval time.Duration) float64 {
	if len(candles) < 2 || interval <= 0 {
		return 0
	}
	span := candles[len(candles)-1].OpenTime.Sub(candles[0].OpenTime)
	expected := int(span/interval) + 1
	if expected <= len(candles) {
		return 0
	}
	return float64(expected-len(candles)) / float64(expected)
}

func badValue(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0) || v <= 0
}
