package indicators

import "math"

type SMAService struct{}

func NewSMAService() *SMAService {
	return &SMAService{}
}

// Calculate computes a simple moving average over the series. Entries before
// the first full window are NaN so callers can tell "not ready" from zero.
func (s *SMAService) Calculate(prices []float64, period int) []float64 {
	sma := make([]float64, len(prices))
	if period <= 0 || len(prices) < period {
		for i := range sma {
			sma[i] = math.NaN()
		}
		return sma
	}

	for i := 0; i < period-1; i++ {
		sma[i] = math.NaN()
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	sma[period-1] = sum / float64(period)

	for i := period; i < len(prices); i++ {
		sum += prices[i] - prices[i-period]
		sma[i] = sum / float64(period)
	}

	return sma
}

// CalculateOne returns the SMA of the last period values, or NaN when the
// series is too short.
func (s *SMAService) CalculateOne(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period {
		return math.NaN()
	}
	sum := 0.0
	for _, price := range prices[len(prices)-period:] {
		sum += price
	}
	return sum / float64(period)
}
