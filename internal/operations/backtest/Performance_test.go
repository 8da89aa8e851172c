package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MomentumTradeBot/internal/models"
)

func trade(symbol string, returnPct, returnUSD float64, holdingBars int, reason string) models.Trade {
	return models.Trade{
		Symbol:      symbol,
		ReturnPct:   returnPct,
		ReturnUSD:   returnUSD,
		HoldingBars: holdingBars,
		ExitReason:  reason,
	}
}

func equityCurve(equities ...float64) []models.EquityPoint {
	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	curve := make([]models.EquityPoint, len(equities))
	for i, eq := range equities {
		curve[i] = models.EquityPoint{Timestamp: ts.Add(time.Duration(i) * 4 * time.Hour), Equity: eq}
	}
	return curve
}

func TestCalculatePerformanceAggregates(t *testing.T) {
	trades := []models.Trade{
		trade("BTCUSDT", 0.10, 100, 10, models.ExitReasonTrailingStop),
		trade("BTCUSDT", -0.05, -50, 5, models.ExitReasonMAExit),
		trade("ETHUSDT", 0.02, 20, 3, models.ExitReasonTrailingStop),
	}
	curve := equityCurve(10000, 10100, 10050, 10120)

	m := CalculatePerformance(10000, trades, curve)

	assert.Equal(t, 3, m.TotalTrades)
	assert.Equal(t, 2, m.Wins)
	assert.Equal(t, 1, m.Losses)
	assert.InDelta(t, 2.0/3.0, m.WinRate, 1e-9)

	assert.InDelta(t, 0.07/3.0, m.AvgReturnPct, 1e-9)
	assert.InDelta(t, 0.02, m.MedianReturnPct, 1e-9)
	assert.InDelta(t, 0.0612826, m.StdReturnPct, 1e-5)
	assert.InDelta(t, 6.0, m.AvgHoldingBars, 1e-9)

	assert.InDelta(t, 0.06, m.AvgWinPct, 1e-9)
	assert.InDelta(t, 0.10, m.MaxWinPct, 1e-9)
	assert.InDelta(t, -0.05, m.AvgLossPct, 1e-9)
	assert.InDelta(t, -0.05, m.MaxLossPct, 1e-9)

	assert.InDelta(t, 70.0, m.TotalReturnUSD, 1e-9)
	assert.InDelta(t, 0.007, m.TotalReturnPct, 1e-9)
	assert.InDelta(t, 10120.0, m.FinalEquity, 1e-9)
	assert.InDelta(t, 120.0/50.0, m.ProfitFactor, 1e-9)

	assert.InDelta(t, -50.0/10100.0, m.MaxDrawdownPct, 1e-9)
	assert.Greater(t, m.SharpeRatio, 0.0)

	assert.Equal(t, map[string]int{
		models.ExitReasonTrailingStop: 2,
		models.ExitReasonMAExit:       1,
	}, m.ExitReasons)

	btc := m.SymbolStats["BTCUSDT"]
	assert.Equal(t, 2, btc.Trades)
	assert.Equal(t, 1, btc.Wins)
	assert.InDelta(t, 0.5, btc.WinRate, 1e-9)
	assert.InDelta(t, 50.0, btc.TotalReturnUSD, 1e-9)

	eth := m.SymbolStats["ETHUSDT"]
	assert.Equal(t, 1, eth.Trades)
	assert.InDelta(t, 1.0, eth.WinRate, 1e-9)
	assert.InDelta(t, 20.0, eth.TotalReturnUSD, 1e-9)
}

func TestCalculatePerformanceNoTrades(t *testing.T) {
	m := CalculatePerformance(10000, nil, nil)

	assert.Equal(t, 0, m.TotalTrades)
	assert.Zero(t, m.WinRate)
	assert.Zero(t, m.ProfitFactor)
	assert.Zero(t, m.MaxDrawdownPct)
	assert.Zero(t, m.SharpeRatio)
	assert.Equal(t, 10000.0, m.FinalEquity)
	require.NotNil(t, m.ExitReasons)
	require.NotNil(t, m.SymbolStats)
	assert.Empty(t, m.ExitReasons)
	assert.Empty(t, m.SymbolStats)

	withCurve := CalculatePerformance(10000, nil, equityCurve(10000, 10000))
	assert.Equal(t, 10000.0, withCurve.FinalEquity)
}

func TestCalculatePerformanceProfitFactorNoLosses(t *testing.T) {
	trades := []models.Trade{
		trade("BTCUSDT", 0.05, 50, 4, models.ExitReasonTrailingStop),
		trade("ETHUSDT", 0.03, 30, 2, models.ExitReasonTrailingStop),
	}

	m := CalculatePerformance(10000, trades, equityCurve(10000, 10080))

	assert.True(t, math.IsInf(m.ProfitFactor, 1))
	assert.Equal(t, 2, m.Wins)
	assert.Equal(t, 0, m.Losses)
	assert.Zero(t, m.AvgLossPct)
}

func TestCalculatePerformanceZeroReturnCountsAsLoss(t *testing.T) {
	trades := []models.Trade{trade("BTCUSDT", 0, -1, 2, models.ExitReasonMAExit)}

	m := CalculatePerformance(10000, trades, equityCurve(10000, 9999))

	assert.Equal(t, 0, m.Wins)
	assert.Equal(t, 1, m.Losses)
	assert.Zero(t, m.ProfitFactor)
}

func TestMaxDrawdownDeepestFromRunningPeak(t *testing.T) {
	curve := equityCurve(100, 120, 90, 110, 80)
	assert.InDelta(t, -1.0/3.0, maxDrawdown(curve), 1e-9)

	assert.Zero(t, maxDrawdown(nil))
	assert.Zero(t, maxDrawdown(equityCurve(100, 110, 120)))
}

func TestRiskAdjustedRatios(t *testing.T) {
	// Step returns 0.10, -0.05, -0.10, 0.08.
	curve := equityCurve(100, 110, 104.5, 94.05, 101.574)

	sharpe, sortino := riskAdjusted(curve)

	rets := []float64{0.10, -0.05, -0.10, 0.08}
	wantSharpe := mean(rets) / stdSample(rets) * math.Sqrt(365)
	assert.InDelta(t, wantSharpe, sharpe, 1e-9)

	wantSortino := mean(rets) / math.Sqrt(0.00125) * math.Sqrt(365)
	assert.InDelta(t, wantSortino, sortino, 1e-9)
}

func TestRiskAdjustedDegenerateCurves(t *testing.T) {
	sharpe, sortino := riskAdjusted(equityCurve(100))
	assert.Zero(t, sharpe)
	assert.Zero(t, sortino)

	// Constant equity has zero deviation.
	sharpe, sortino = riskAdjusted(equityCurve(100, 100, 100))
	assert.Zero(t, sharpe)
	assert.Zero(t, sortino)

	// A single losing step leaves the downside sample too small for Sortino.
	sharpe, sortino = riskAdjusted(equityCurve(100, 110, 99, 108))
	assert.NotZero(t, sharpe)
	assert.Zero(t, sortino)
}

func TestStatHelpers(t *testing.T) {
	assert.InDelta(t, 2.0, mean([]float64{1, 2, 3}), 1e-9)
	assert.Zero(t, mean(nil))

	assert.InDelta(t, 2.0, median([]float64{3, 1, 2}), 1e-9)
	assert.InDelta(t, 2.5, median([]float64{4, 1, 3, 2}), 1e-9)
	assert.Zero(t, median(nil))

	sample := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assert.InDelta(t, 2.0, stdPop(sample), 1e-9)
	assert.InDelta(t, math.Sqrt(32.0/7.0), stdSample(sample), 1e-9)
	assert.Zero(t, stdSample([]float64{5}))
}
