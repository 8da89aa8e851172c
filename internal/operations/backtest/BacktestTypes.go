package backtest

import (
	"time"

	"MomentumTradeBot/internal/models"
)

// SymbolStats is the per-symbol slice of a run's results.
type SymbolStats struct {
	Trades         int
	Wins           int
	WinRate        float64
	TotalReturnUSD float64
}

// PerformanceMetrics aggregates a finished run. Percentages are fractions
// (0.05 means 5%); MaxDrawdownPct is zero or negative.
type PerformanceMetrics struct {
	// Trade metrics
	TotalTrades     int
	Wins            int
	Losses          int
	WinRate         float64
	AvgReturnPct    float64
	MedianReturnPct float64
	StdReturnPct    float64
	AvgWinPct       float64
	MaxWinPct       float64
	AvgLossPct      float64
	MaxLossPct      float64
	AvgHoldingBars  float64

	// Capital metrics
	TotalReturnUSD float64
	TotalReturnPct float64
	FinalEquity    float64
	ProfitFactor   float64

	// Risk metrics
	MaxDrawdownPct float64
	SharpeRatio    float64
	SortinoRatio   float64

	// Breakdowns
	ExitReasons map[string]int
	SymbolStats map[string]SymbolStats
}

// RunResult is everything a finished historical run produced.
type RunResult struct {
	RunID          string
	Start          time.Time
	End            time.Time
	InitialCapital float64
	FinalCash      float64

	Metrics     PerformanceMetrics
	Trades      []models.Trade
	EquityCurve []models.EquityPoint
	RiskEvents  []models.RiskEvent

	// Symbols dropped by validation, with the reason.
	SkippedSymbols map[string]string
}
