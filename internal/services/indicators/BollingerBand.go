package indicators

import "math"

type BBandsService struct{}

type BBandsResult struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
	Width  []float64 // Volatility indicator
}

func NewBBandsService() *BBandsService {
	return &BBandsService{}
}

func (s *BBandsService) Calculate(prices []float64, period int, deviations float64) *BBandsResult {
	if len(prices) < period || period <= 0 {
		return nil
	}

	// Initialize result arrays
	upper := make([]float64, len(prices))
	middle := make([]float64, len(prices))
	lower := make([]float64, len(prices))
	width := make([]float64, len(prices))

	// No value until a full window is available
	for i := 0; i < period-1; i++ {
		upper[i] = math.NaN()
		middle[i] = math.NaN()
		lower[i] = math.NaN()
		width[i] = math.NaN()
	}

	// Calculate SMA and Standard Deviation for each point
	for i := period - 1; i < len(prices); i++ {
		// Get subset of prices for this period
		subset := prices[i-period+1 : i+1]

		// Calculate middle band (SMA)
		sum := 0.0
		for _, price := range subset {
			sum += price
		}
		sma := sum / float64(period)
		middle[i] = sma

		// Calculate standard deviation
		squareSum := 0.0
		for _, price := range subset {
			diff := price - sma
			squareSum += diff * diff
		}
		stdDev := math.Sqrt(squareSum / float64(period))

		// Calculate bands
		upper[i] = sma + (deviations * stdDev)
		lower[i] = sma - (deviations * stdDev)

		// Calculate bandwidth
		width[i] = (upper[i] - lower[i]) / middle[i]
	}

	return &BBandsResult{
		Upper:  upper,
		Middle: middle,
		Lower:  lower,
		Width:  width,
	}
}

// WidthPercentile ranks each width value against the preceding lookback
// window. A value of 0.15 means the current width is lower than 85% of the
// window. Entries without a full window of real widths are NaN.
func (s *BBandsService) WidthPercentile(width []float64, lookback int) []float64 {
	pct := make([]float64, len(width))
	for i := range pct {
		pct[i] = math.NaN()
	}
	if lookback < 2 {
		return pct
	}

	for i := lookback - 1; i < len(width); i++ {
		window := width[i-lookback+1 : i+1]
		current := window[len(window)-1]

		valid := true
		below := 0
		for _, w := range window {
			if math.IsNaN(w) {
				valid = false
				break
			}
			if w < current {
				below++
			}
		}
		if !valid {
			continue
		}
		pct[i] = float64(below) / float64(lookback-1)
	}

	return pct
}

// ValidatePeriod checks if we have enough data
func (s *BBandsService) ValidatePeriod(prices []float64, period int) bool {
	return len(prices) >= period && period > 0
}
