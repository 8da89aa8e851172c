package backtest

import (
	"math"
	"sort"

	"MomentumTradeBot/internal/models"
)

// CalculatePerformance aggregates trades and the equity curve into run
// metrics. Wins and losses partition on the percentage return; a zero
// return counts as a loss since it still paid commission.
func CalculatePerformance(initialCapital float64, trades []models.Trade, curve []models.EquityPoint) PerformanceMetrics {
	m := PerformanceMetrics{
		ExitReasons: make(map[string]int),
		SymbolStats: make(map[string]SymbolStats),
		FinalEquity: initialCapital,
	}
	if len(curve) > 0 {
		m.FinalEquity = curve[len(curve)-1].Equity
	}
	if len(trades) == 0 {
		return m
	}

	m.MaxDrawdownPct = maxDrawdown(curve)
	m.SharpeRatio, m.SortinoRatio = riskAdjusted(curve)

	returns := make([]float64, len(trades))
	totalHolding := 0.0
	var winPcts, lossPcts []float64
	var winUSD, lossUSD float64

	for i, tr := range trades {
		returns[i] = tr.ReturnPct
		totalHolding += float64(tr.HoldingBars)
		m.TotalReturnUSD += tr.ReturnUSD
		m.ExitReasons[tr.ExitReason]++

		stats := m.SymbolStats[tr.Symbol]
		stats.Trades++
		stats.TotalReturnUSD += tr.ReturnUSD
		if tr.ReturnPct > 0 {
			stats.Wins++
			winPcts = append(winPcts, tr.ReturnPct)
			winUSD += tr.ReturnUSD
		} else {
			lossPcts = append(lossPcts, tr.ReturnPct)
			lossUSD += tr.ReturnUSD
		}
		m.SymbolStats[tr.Symbol] = stats
	}

	for sym, stats := range m.SymbolStats {
		stats.WinRate = float64(stats.Wins) / float64(stats.Trades)
		m.SymbolStats[sym] = stats
	}

	m.TotalTrades = len(trades)
	m.Wins = len(winPcts)
	m.Losses = len(lossPcts)
	m.WinRate = float64(m.Wins) / float64(m.TotalTrades)
	m.AvgReturnPct = mean(returns)
	m.MedianReturnPct = median(returns)
	m.StdReturnPct = stdPop(returns)
	m.AvgHoldingBars = totalHolding / float64(m.TotalTrades)
	if initialCapital != 0 {
		m.TotalReturnPct = m.TotalReturnUSD / initialCapital
	}

	if len(winPcts) > 0 {
		m.AvgWinPct = mean(winPcts)
		m.MaxWinPct = maxVal(winPcts)
	}
	if len(lossPcts) > 0 {
		m.AvgLossPct = mean(lossPcts)
		m.MaxLossPct = minVal(lossPcts)
	}

	grossLoss := math.Abs(lossUSD)
	switch {
	case grossLoss > 0:
		m.ProfitFactor = winUSD / grossLoss
	case winUSD > 0:
		m.ProfitFactor = math.Inf(1)
	}

	return m
}

// maxDrawdown is the deepest equity drop from a running peak, zero or
// negative.
func maxDrawdown(curve []models.EquityPoint) float64 {
	maxDD := 0.0
	peak := math.Inf(-1)
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak <= 0 {
			continue
		}
		if dd := (p.Equity - peak) / peak; dd < maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// riskAdjusted computes Sharpe and Sortino from per-step equity returns,
// annualized on a 365-day calendar. Sortino deviates only on downside
// steps.
func riskAdjusted(curve []models.EquityPoint) (float64, float64) {
	if len(curve) < 2 {
		return 0, 0
	}

	rets := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			continue
		}
		rets = append(rets, (curve[i].Equity-prev)/prev)
	}
	if len(rets) < 2 {
		return 0, 0
	}

	avg := mean(rets)
	sharpe := 0.0
	if sd := stdSample(rets); sd > 0 {
		sharpe = avg / sd * math.Sqrt(365)
	}

	var downside []float64
	for _, r := range rets {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	sortino := 0.0
	if len(downside) > 1 {
		if dsd := stdSample(downside); dsd > 0 {
			sortino = avg / dsd * math.Sqrt(365)
		}
	}

	return sharpe, sortino
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// stdPop is the population standard deviation, used for the trade return
// spread.
func stdPop(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	avg := mean(vals)
	ss := 0.0
	for _, v := range vals {
		d := v - avg
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(vals)))
}

// stdSample is the sample standard deviation, used for ratio denominators.
func stdSample(vals []float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	avg := mean(vals)
	ss := 0.0
	for _, v := range vals {
		d := v - avg
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(vals)-1))
}

func maxVal(vals []float64) float64 {
	out := vals[0]
	for _, v := range vals[1:] {
		if v > out {
			out = v
		}
	}
	return out
}

func minVal(vals []float64) float64 {
	out := vals[0]
	for _, v := range vals[1:] {
		if v < out {
			out = v
		}
	}
	return out
}
