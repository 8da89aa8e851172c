package engine

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"MomentumTradeBot/internal/models"
	"MomentumTradeBot/internal/services/risk"
	"MomentumTradeBot/internal/services/sizing"
	"MomentumTradeBot/internal/services/strategy"
)

// DecisionEngine runs the per-step trading sequence over whatever data a
// driver feeds it. One engine serves both historical and live runs; the
// driver owns data loading and pacing, the Execution seam owns orders.
//
// Step order is fixed: universe exits, signal exits, risk evaluation,
// ranked entries, equity mark. Exits always run before entries so a slot
// freed this step can be refilled this step.
type DecisionEngine struct {
	cfg    Config
	runID  string
	sizer  *sizing.PositionSizer
	limits *risk.LimitController
	exits  ExitChecker
	exec   Execution
	ledger Ledger
	notify Notifier

	cash        float64
	positions   map[string]*models.Position
	lastMarks   map[string]float64
	trades      []models.Trade
	equityCurve []models.EquityPoint
	riskEvents  []models.RiskEvent
}

type entryCandidate struct {
	symbol string
	step   SymbolStep
}

func NewDecisionEngine(cfg Config, sizer *sizing.PositionSizer, limits *risk.LimitController, exits ExitChecker, exec Execution, ledger Ledger, notify Notifier) *DecisionEngine {
	if exec == nil {
		exec = NewSimulatedExecution()
	}
	if ledger == nil {
		ledger = NopLedger{}
	}
	if notify == nil {
		notify = NopNotifier{}
	}
	return &DecisionEngine{
		cfg:       cfg,
		runID:     uuid.NewString(),
		sizer:     sizer,
		limits:    limits,
		exits:     exits,
		exec:      exec,
		ledger:    ledger,
		notify:    notify,
		cash:      cfg.InitialCapital,
		positions: make(map[string]*models.Position),
		lastMarks: make(map[string]float64),
	}
}

// Step processes one bar across all symbols. Exits are evaluated even when
// risk limits are breached; limits only gate new entries.
func (e *DecisionEngine) Step(ctx context.Context, sc StepContext) {
	e.checkUniverseExits(ctx, sc)
	e.checkSignalExits(ctx, sc)

	for _, event := range e.limits.Evaluate(sc.Timestamp, e.markedEquity(sc.Series)) {
		e.recordRiskEvent(ctx, event)
	}

	if e.limits.MayOpenNewPosition() {
		e.openEntries(ctx, sc)
	}

	e.markEquity(ctx, sc.Timestamp, sc.Series)
}

// CheckExits runs only the exit half of a step. The live loop calls this
// between full steps so trailing stops react faster than the bar interval.
// No equity point is recorded.
func (e *DecisionEngine) CheckExits(ctx context.Context, sc StepContext) {
	e.checkSignalExits(ctx, sc)
}

// CloseAll force-closes every open position at its last available close,
// slippage applied. Positions without data are left open and logged; they
// can be retried with fresher data.
func (e *DecisionEngine) CloseAll(ctx context.Context, ts time.Time, series map[string]SymbolStep, reason string) {
	for _, symbol := range e.sortedOpenSymbols() {
		pos := e.positions[symbol]
		step, ok := series[symbol]
		if !ok || step.Index < 0 || step.Index >= len(step.Candles) {
			log.Warn().Str("symbol", symbol).Msg("no price for forced close, position left open")
			continue
		}
		fill := step.Candles[step.Index].Close * (1 - e.cfg.SlippagePct)
		entryIdx := e.entryIndexIn(step.Candles, pos)
		e.closeTrade(ctx, pos, fill, ts, e.holdingBars(pos, entryIdx, step.Index, ts), reason,
			maxAdverseExcursion(step.Candles, entryIdx, step.Index, pos.EntryPrice), true)
	}
	e.markEquity(ctx, ts, series)
}

// RecordExternalClose books a close that already happened on the exchange,
// such as an exchange-side trailing stop. No order is placed; only the
// accounting and the trade record are updated.
func (e *DecisionEngine) RecordExternalClose(ctx context.Context, symbol string, fillPrice float64, ts time.Time, step SymbolStep) {
	pos, ok := e.positions[symbol]
	if !ok {
		return
	}
	entryIdx := -1
	if len(step.Candles) > 0 {
		entryIdx = e.entryIndexIn(step.Candles, pos)
	}
	e.closeTrade(ctx, pos, fillPrice, ts, e.holdingBars(pos, entryIdx, step.Index, ts), models.ExitReasonExchangeStop,
		maxAdverseExcursion(step.Candles, entryIdx, step.Index, pos.EntryPrice), false)
}

// Restore adopts positions recovered from the ledger after a restart. Cash
// must already exclude the capital tied up in them. Positions mark at their
// entry price until the next bar arrives.
func (e *DecisionEngine) Restore(positions []models.Position, cash float64) {
	e.cash = cash
	for i := range positions {
		pos := positions[i]
		e.positions[pos.Symbol] = &pos
		e.lastMarks[pos.Symbol] = pos.EntryPrice
	}
}

// checkUniverseExits closes positions whose symbol is no longer a member.
// An empty universe is taken at face value: everything held exits.
func (e *DecisionEngine) checkUniverseExits(ctx context.Context, sc StepContext) {
	member := make(map[string]bool, len(sc.Universe))
	for _, symbol := range sc.Universe {
		member[symbol] = true
	}

	for _, symbol := range e.sortedOpenSymbols() {
		if member[symbol] {
			continue
		}
		pos := e.positions[symbol]
		step, ok := sc.Series[symbol]
		if !ok || step.Index < 0 || step.Index >= len(step.Candles) {
			continue
		}
		// Delisting exits fill at the raw close. Slippage models an
		// order racing the book; here the position is simply marked out.
		fill := step.Candles[step.Index].Close
		entryIdx := e.entryIndexIn(step.Candles, pos)
		log.Info().Str("symbol", symbol).Msg("symbol left universe, closing position")
		e.closeTrade(ctx, pos, fill, sc.Timestamp, e.holdingBars(pos, entryIdx, step.Index, sc.Timestamp),
			models.ExitReasonRemovedFromUniverse,
			maxAdverseExcursion(step.Candles, entryIdx, step.Index, pos.EntryPrice), true)
	}
}

func (e *DecisionEngine) checkSignalExits(ctx context.Context, sc StepContext) {
	for _, symbol := range e.sortedOpenSymbols() {
		pos := e.positions[symbol]
		step, ok := sc.Series[symbol]
		if !ok || step.Index < 0 || step.Index >= len(step.Candles) {
			continue
		}

		entryIdx := e.entryIndexIn(step.Candles, pos)
		sig := e.exitSignal(step, pos, entryIdx)
		pos.UpdatePeak(sig.PeakPrice, sc.Timestamp)
		if !sig.Triggered {
			continue
		}

		fill := sig.Close * (1 - e.cfg.SlippagePct)
		e.closeTrade(ctx, pos, fill, sc.Timestamp, e.holdingBars(pos, entryIdx, step.Index, sc.Timestamp), sig.Reason,
			maxAdverseExcursion(step.Candles, entryIdx, step.Index, pos.EntryPrice), true)
	}
}

func (e *DecisionEngine) exitSignal(step SymbolStep, pos *models.Position, entryIdx int) strategy.ExitSignal {
	if entryIdx >= 0 {
		return e.exits.Check(step.Candles, entryIdx, step.Index)
	}
	// Entry bar no longer in the window; fall back to the tracked peak.
	return e.exits.CheckWithPeak(step.Candles, step.Index, pos.PeakPrice)
}

func (e *DecisionEngine) openEntries(ctx context.Context, sc StepContext) {
	slots := e.sizer.MaxPositions() - len(e.positions)
	if slots <= 0 {
		return
	}

	var candidates []entryCandidate
	for _, symbol := range sc.Universe {
		if _, open := e.positions[symbol]; open {
			continue
		}
		step, ok := sc.Series[symbol]
		if !ok || !step.Entry.Triggered {
			continue
		}
		candidates = append(candidates, entryCandidate{symbol: symbol, step: step})
	}
	if len(candidates) == 0 {
		return
	}

	// Strongest first; ties break on symbol so runs are reproducible.
	sort.SliceStable(candidates, func(i, j int) bool {
		si, sj := candidates[i].step.Entry.Strength, candidates[j].step.Entry.Strength
		if si != sj {
			return si > sj
		}
		return candidates[i].symbol < candidates[j].symbol
	})

	if len(candidates) > slots {
		candidates = candidates[:slots]
	}
	for _, cand := range candidates {
		e.openPosition(ctx, sc.Timestamp, cand.symbol, cand.step)
	}
}

func (e *DecisionEngine) openPosition(ctx context.Context, ts time.Time, symbol string, step SymbolStep) {
	entryPrice := step.Entry.Close * (1 + e.cfg.SlippagePct)
	res := e.sizer.Calculate(e.cash, entryPrice, len(e.positions))
	if !res.CanOpen {
		log.Debug().Str("symbol", symbol).Str("reason", res.Reason).Msg("entry skipped")
		return
	}

	mult := e.limits.SizeMultiplier()
	sizeUSD := res.SizeUSD * mult
	quantity := res.Quantity * mult
	if sizeUSD <= 0 || quantity <= 0 {
		return
	}
	commission := sizeUSD * e.cfg.CommissionPct

	if err := e.exec.OpenLong(ctx, symbol, quantity, sizeUSD, entryPrice); err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("entry order rejected")
		return
	}

	pos := &models.Position{
		RunID:       e.runID,
		Symbol:      symbol,
		EntryTime:   ts,
		EntryIndex:  step.Index,
		EntryPrice:  entryPrice,
		NotionalUSD: sizeUSD - commission,
		Quantity:    quantity,
		// The slipped fill can sit above the entry bar's own high. The
		// watermark starts at the fill and only ever rises from there.
		PeakPrice: entryPrice,
		PeakTime:  ts,
		Status:    models.PositionStatusOpen,
	}
	e.cash -= sizeUSD
	e.positions[symbol] = pos
	e.lastMarks[symbol] = step.Candles[step.Index].Close

	log.Info().
		Str("symbol", symbol).
		Float64("entry_price", entryPrice).
		Float64("size_usd", sizeUSD).
		Float64("quantity", quantity).
		Float64("strength", step.Entry.Strength).
		Msg("position opened")

	if err := e.ledger.PositionOpened(ctx, pos); err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("position ledger write failed")
	}
	e.notify.PositionOpened(pos)
}

// closeTrade books the close of pos at fillPrice. When viaExecution is set
// the order goes through the Execution seam first; a failed close keeps the
// position open for the next step.
func (e *DecisionEngine) closeTrade(ctx context.Context, pos *models.Position, fillPrice float64, ts time.Time, holdingBars int, reason string, mae float64, viaExecution bool) {
	if pos.Quantity <= 0 || pos.EntryPrice <= 0 || fillPrice <= 0 {
		log.Fatal().
			Str("symbol", pos.Symbol).
			Float64("quantity", pos.Quantity).
			Float64("entry_price", pos.EntryPrice).
			Float64("fill_price", fillPrice).
			Msg("corrupt position state on close, accounting is no longer trustworthy")
	}
	if viaExecution {
		if err := e.exec.CloseLong(ctx, pos.Symbol, pos.Quantity); err != nil {
			log.Error().Err(err).Str("symbol", pos.Symbol).Msg("close order failed, position stays open")
			return
		}
	}

	gross := pos.Quantity * (fillPrice - pos.EntryPrice)
	exitCommission := pos.Quantity * fillPrice * e.cfg.CommissionPct
	returnUSD := gross - exitCommission
	returnPct := (fillPrice - pos.EntryPrice) / pos.EntryPrice

	e.cash += pos.Quantity*fillPrice - exitCommission
	delete(e.positions, pos.Symbol)
	delete(e.lastMarks, pos.Symbol)
	pos.Status = models.PositionStatusClosed

	trade := models.Trade{
		RunID:               e.runID,
		Symbol:              pos.Symbol,
		EntryTime:           pos.EntryTime,
		EntryPrice:          pos.EntryPrice,
		ExitTime:            ts,
		ExitPrice:           fillPrice,
		NotionalUSD:         pos.NotionalUSD,
		Quantity:            pos.Quantity,
		ReturnPct:           returnPct,
		ReturnUSD:           returnUSD,
		HoldingBars:         holdingBars,
		ExitReason:          reason,
		PeakPrice:           pos.PeakPrice,
		MaxAdverseExcursion: mae,
	}
	e.trades = append(e.trades, trade)

	log.Info().
		Str("symbol", trade.Symbol).
		Str("reason", reason).
		Float64("exit_price", fillPrice).
		Float64("return_pct", returnPct).
		Float64("return_usd", returnUSD).
		Int("holding_bars", holdingBars).
		Msg("position closed")

	if err := e.ledger.PositionClosed(ctx, pos); err != nil {
		log.Warn().Err(err).Str("symbol", pos.Symbol).Msg("position ledger write failed")
	}
	if err := e.ledger.RecordTrade(ctx, &trade); err != nil {
		log.Warn().Err(err).Str("symbol", trade.Symbol).Msg("trade ledger write failed")
	}
	e.notify.TradeClosed(&trade)
}

func (e *DecisionEngine) recordRiskEvent(ctx context.Context, event models.RiskEvent) {
	event.RunID = e.runID
	e.riskEvents = append(e.riskEvents, event)

	log.Warn().
		Str("event", event.EventType).
		Float64("loss_pct", event.LossPct).
		Float64("capital", event.Capital).
		Msg("risk limit breached")

	if err := e.ledger.RecordRiskEvent(ctx, &event); err != nil {
		log.Warn().Err(err).Str("event", event.EventType).Msg("risk ledger write failed")
	}
	e.notify.RiskEvent(&event)
}

// markedEquity is cash plus open positions valued at the step's close,
// falling back to the last seen close for symbols without a bar. Loss
// limits compare this figure, not raw cash, so neither an entry debit nor
// a data gap reads as a loss.
func (e *DecisionEngine) markedEquity(series map[string]SymbolStep) float64 {
	equity := e.cash
	for _, symbol := range e.sortedOpenSymbols() {
		pos := e.positions[symbol]
		mark := e.lastMarks[symbol]
		if step, ok := series[symbol]; ok && step.Index >= 0 && step.Index < len(step.Candles) {
			mark = step.Candles[step.Index].Close
			e.lastMarks[symbol] = mark
		}
		equity += pos.Quantity * mark
	}
	return equity
}

// markEquity values open positions at the step's raw close. Positions with
// no data this step contribute nothing rather than a stale value.
func (e *DecisionEngine) markEquity(ctx context.Context, ts time.Time, series map[string]SymbolStep) {
	positionsValue := 0.0
	for _, symbol := range e.sortedOpenSymbols() {
		pos := e.positions[symbol]
		step, ok := series[symbol]
		if !ok || step.Index < 0 || step.Index >= len(step.Candles) {
			continue
		}
		positionsValue += pos.Quantity * step.Candles[step.Index].Close
	}

	point := models.EquityPoint{
		RunID:          e.runID,
		Timestamp:      ts,
		Cash:           e.cash,
		PositionsValue: positionsValue,
		Equity:         e.cash + positionsValue,
		OpenPositions:  len(e.positions),
	}
	// A forced close can land on a step that was already marked. The
	// remark supersedes that step's point; the curve never carries two
	// samples at the same instant.
	if n := len(e.equityCurve); n > 0 && e.equityCurve[n-1].Timestamp.Equal(ts) {
		e.equityCurve[n-1] = point
	} else {
		e.equityCurve = append(e.equityCurve, point)
	}

	if err := e.ledger.RecordEquityPoint(ctx, &point); err != nil {
		log.Warn().Err(err).Msg("equity ledger write failed")
	}
}

// entryIndexIn locates the position's entry bar in the given series, or -1
// when it predates the window. The stored index is trusted only if the
// timestamp still matches, since live windows slide between fetches.
func (e *DecisionEngine) entryIndexIn(candles []models.Candle, pos *models.Position) int {
	if pos.EntryIndex >= 0 && pos.EntryIndex < len(candles) &&
		candles[pos.EntryIndex].OpenTime.Equal(pos.EntryTime) {
		return pos.EntryIndex
	}
	for i := range candles {
		if candles[i].OpenTime.Equal(pos.EntryTime) {
			return i
		}
	}
	return -1
}

func (e *DecisionEngine) holdingBars(pos *models.Position, entryIdx, currentIdx int, ts time.Time) int {
	if entryIdx >= 0 && currentIdx >= entryIdx {
		return currentIdx - entryIdx
	}
	if e.cfg.BarInterval > 0 {
		return int(ts.Sub(pos.EntryTime) / e.cfg.BarInterval)
	}
	return 0
}

func (e *DecisionEngine) sortedOpenSymbols() []string {
	symbols := make([]string, 0, len(e.positions))
	for symbol := range e.positions {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// maxAdverseExcursion is the worst drawdown against entry while the
// position was open, measured on lows. Never positive: the entry fill sits
// at or above the entry bar's low.
func maxAdverseExcursion(candles []models.Candle, entryIndex, exitIndex int, entryPrice float64) float64 {
	if entryIndex < 0 || exitIndex < entryIndex || exitIndex >= len(candles) || entryPrice == 0 {
		return 0
	}
	low := candles[entryIndex].Low
	for i := entryIndex + 1; i <= exitIndex; i++ {
		if candles[i].Low < low {
			low = candles[i].Low
		}
	}
	return (low - entryPrice) / entryPrice
}

func (e *DecisionEngine) RunID() string { return e.runID }

func (e *DecisionEngine) Cash() float64 { return e.cash }

// LastEquity returns the most recent equity mark, or the initial capital
// before the first step.
func (e *DecisionEngine) LastEquity() float64 {
	if len(e.equityCurve) == 0 {
		return e.cfg.InitialCapital
	}
	return e.equityCurve[len(e.equityCurve)-1].Equity
}

func (e *DecisionEngine) Halted() bool { return e.limits.SystemHalted() }

func (e *DecisionEngine) OpenPositionCount() int { return len(e.positions) }

// OpenPositions returns open positions sorted by symbol.
func (e *DecisionEngine) OpenPositions() []models.Position {
	out := make([]models.Position, 0, len(e.positions))
	for _, symbol := range e.sortedOpenSymbols() {
		out = append(out, *e.positions[symbol])
	}
	return out
}

func (e *DecisionEngine) Trades() []models.Trade {
	out := make([]models.Trade, len(e.trades))
	copy(out, e.trades)
	return out
}

func (e *DecisionEngine) EquityCurve() []models.EquityPoint {
	out := make([]models.EquityPoint, len(e.equityCurve))
	copy(out, e.equityCurve)
	return out
}

func (e *DecisionEngine) RiskEvents() []models.RiskEvent {
	out := make([]models.RiskEvent, len(e.riskEvents))
	copy(out, e.riskEvents)
	return out
}
