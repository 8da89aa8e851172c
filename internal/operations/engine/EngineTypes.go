package engine

import (
	"context"
	"time"

	"MomentumTradeBot/internal/models"
	"MomentumTradeBot/internal/services/strategy"
)

// Config holds the cost model and run parameters shared by historical and
// live execution.
type Config struct {
	InitialCapital float64
	CommissionPct  float64
	SlippagePct    float64

	// BarInterval is the series timeframe, used to estimate holding bars
	// for positions whose entry bar predates the available window.
	BarInterval time.Duration
}

// SymbolStep is one symbol's view of a single step: its candle series, the
// index of the bar belonging to this step and the precomputed entry signal
// at that bar.
type SymbolStep struct {
	Candles []models.Candle
	Index   int
	Entry   strategy.EntrySignal
}

// StepContext is everything the engine needs to process one step. Symbols
// in the universe but missing from Series simply have no data this step.
// An empty Universe is authoritative and exits every open position, so a
// driver that fails to resolve membership passes its previous members, not
// an empty list.
type StepContext struct {
	Timestamp time.Time
	Universe  []string
	Series    map[string]SymbolStep
}

// ExitChecker evaluates exit conditions for one open position.
// strategy.ExitEvaluator is the production implementation.
type ExitChecker interface {
	Check(candles []models.Candle, entryIndex, currentIndex int) strategy.ExitSignal
	CheckWithPeak(candles []models.Candle, currentIndex int, peak float64) strategy.ExitSignal
}

// Execution places the orders behind engine decisions. The engine computes
// fills and accounting itself; an implementation only has to make the order
// happen. An error from OpenLong means no position is created.
type Execution interface {
	OpenLong(ctx context.Context, symbol string, quantity, notionalUSD, price float64) error
	CloseLong(ctx context.Context, symbol string, quantity float64) error
}

// Ledger persists engine output. Failures are logged and skipped; a dead
// database must never stall trading decisions.
type Ledger interface {
	PositionOpened(ctx context.Context, pos *models.Position) error
	PositionClosed(ctx context.Context, pos *models.Position) error
	RecordTrade(ctx context.Context, trade *models.Trade) error
	RecordEquityPoint(ctx context.Context, point *models.EquityPoint) error
	RecordRiskEvent(ctx context.Context, event *models.RiskEvent) error
}

// Notifier receives engine events for alerting and metrics.
type Notifier interface {
	PositionOpened(pos *models.Position)
	TradeClosed(trade *models.Trade)
	RiskEvent(event *models.RiskEvent)
}

// NopLedger discards everything; historical runs without a database use it.
type NopLedger struct{}

func (NopLedger) PositionOpened(context.Context, *models.Position) error      { return nil }
func (NopLedger) PositionClosed(context.Context, *models.Position) error      { return nil }
func (NopLedger) RecordTrade(context.Context, *models.Trade) error            { return nil }
func (NopLedger) RecordEquityPoint(context.Context, *models.EquityPoint) error { return nil }
func (NopLedger) RecordRiskEvent(context.Context, *models.RiskEvent) error    { return nil }

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) PositionOpened(*models.Position) {}
func (NopNotifier) TradeClosed(*models.Trade)       {}
func (NopNotifier) RiskEvent(*models.RiskEvent)     {}

// MultiNotifier fans events out to several notifiers.
type MultiNotifier []Notifier

func (m MultiNotifier) PositionOpened(pos *models.Position) {
	for _, n := range m {
		n.PositionOpened(pos)
	}
}

func (m MultiNotifier) TradeClosed(trade *models.Trade) {
	for _, n := range m {
		n.TradeClosed(trade)
	}
}

func (m MultiNotifier) RiskEvent(event *models.RiskEvent) {
	for _, n := range m {
		n.RiskEvent(event)
	}
}
