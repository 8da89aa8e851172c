package backtest

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

const reportRule = "================================================================================"

// RenderReport formats a run result as the plain-text summary printed after
// a backtest.
func RenderReport(res *RunResult) string {
	var b strings.Builder
	m := res.Metrics

	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format+"\n", args...)
	}

	line(reportRule)
	line("PERFORMANCE REPORT")
	line(reportRule)

	line("\nRUN:")
	line("  Run ID: %s", res.RunID)
	line("  Period: %s to %s", res.Start.Format("2006-01-02"), res.End.Format("2006-01-02"))
	line("  Initial Capital: $%.2f", res.InitialCapital)
	line("  Final Equity: $%.2f", m.FinalEquity)

	line("\nTRADING ACTIVITY:")
	line("  Total Trades: %d", m.TotalTrades)
	line("  Winning Trades: %d", m.Wins)
	line("  Losing Trades: %d", m.Losses)
	line("  Win Rate: %.2f%%", m.WinRate*100)

	line("\nRETURNS:")
	line("  Total Return: $%.2f (%.2f%%)", m.TotalReturnUSD, m.TotalReturnPct*100)
	line("  Average Return per Trade: %.2f%%", m.AvgReturnPct*100)
	line("  Median Return per Trade: %.2f%%", m.MedianReturnPct*100)
	line("  Average Win: %.2f%%", m.AvgWinPct*100)
	line("  Average Loss: %.2f%%", m.AvgLossPct*100)
	line("  Max Win: %.2f%%", m.MaxWinPct*100)
	line("  Max Loss: %.2f%%", m.MaxLossPct*100)

	line("\nRISK METRICS:")
	line("  Profit Factor: %s", formatProfitFactor(m.ProfitFactor))
	line("  Max Drawdown: %.2f%%", m.MaxDrawdownPct*100)
	line("  Sharpe Ratio: %.2f", m.SharpeRatio)
	line("  Sortino Ratio: %.2f", m.SortinoRatio)

	line("\nHOLDING PERIOD:")
	line("  Average: %.1f bars", m.AvgHoldingBars)

	if len(m.ExitReasons) > 0 {
		line("\nEXIT REASONS:")
		for _, reason := range sortedReasons(m.ExitReasons) {
			count := m.ExitReasons[reason]
			line("  %s: %d (%.1f%%)", reason, count, float64(count)/float64(m.TotalTrades)*100)
		}
	}

	if len(m.SymbolStats) > 0 {
		line("\nTOP PERFORMING SYMBOLS:")
		for _, sym := range topSymbols(m.SymbolStats, 5) {
			stats := m.SymbolStats[sym]
			line("  %s: %d trades, %.1f%% win rate, $%.2f total return",
				sym, stats.Trades, stats.WinRate*100, stats.TotalReturnUSD)
		}
	}

	if len(res.RiskEvents) > 0 {
		counts := make(map[string]int)
		for _, ev := range res.RiskEvents {
			counts[ev.EventType]++
		}
		line("\nRISK EVENTS:")
		for _, event := range sortedReasons(counts) {
			line("  %s: %d", event, counts[event])
		}
	}

	if len(res.SkippedSymbols) > 0 {
		symbols := make([]string, 0, len(res.SkippedSymbols))
		for sym := range res.SkippedSymbols {
			symbols = append(symbols, sym)
		}
		sort.Strings(symbols)
		line("\nSKIPPED SYMBOLS:")
		for _, sym := range symbols {
			line("  %s: %s", sym, res.SkippedSymbols[sym])
		}
	}

	line("\n" + reportRule)
	return b.String()
}

func formatProfitFactor(pf float64) string {
	if math.IsInf(pf, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.2f", pf)
}

// sortedReasons orders a count map by count descending, then name, so the
// report is stable run to run.
func sortedReasons(counts map[string]int) []string {
	reasons := make([]string, 0, len(counts))
	for reason := range counts {
		reasons = append(reasons, reason)
	}
	sort.Slice(reasons, func(i, j int) bool {
		if counts[reasons[i]] != counts[reasons[j]] {
			return counts[reasons[i]] > counts[reasons[j]]
		}
		return reasons[i] < reasons[j]
	})
	return reasons
}

// topSymbols returns up to n symbols ranked by total dollar return.
func topSymbols(stats map[string]SymbolStats, n int) []string {
	symbols := make([]string, 0, len(stats))
	for sym := range stats {
		symbols = append(symbols, sym)
	}
	sort.Slice(symbols, func(i, j int) bool {
		ri, rj := stats[symbols[i]].TotalReturnUSD, stats[symbols[j]].TotalReturnUSD
		if ri != rj {
			return ri > rj
		}
		return symbols[i] < symbols[j]
	})
	if len(symbols) > n {
		symbols = symbols[:n]
	}
	return symbols
}
