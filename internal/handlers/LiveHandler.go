package handlers

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"MomentumTradeBot/config"
	"MomentumTradeBot/internal/models"
	"MomentumTradeBot/internal/operations/engine"
	"MomentumTradeBot/internal/operations/price"
	"MomentumTradeBot/internal/operations/universe"
	"MomentumTradeBot/internal/services/strategy"
)

const (
	// settleDelay is how long after a bar boundary the full step waits, so
	// the exchange has finalized the closed bar before it is fetched.
	settleDelay = 10 * time.Second

	// exitCheckEvery paces the exit-only checks between full steps while
	// positions are open.
	exitCheckEvery = 5 * time.Minute

	// closeTimeout bounds the force-close pass on shutdown or halt.
	closeTimeout = 30 * time.Second

	fetchExtraBars = 10
)

// ExchangeState reads position state back from the exchange, to catch
// positions the exchange-side trailing stop already closed. A nil
// implementation disables the check; simulated runs have no exchange state.
type ExchangeState interface {
	GetPositionAmt(ctx context.Context, symbol string) (float64, error)
	GetMarkPrice(ctx context.Context, symbol string) (float64, error)
}

// StepObserver is told about each completed step. telemetry.Metrics
// implements it.
type StepObserver interface {
	MarkStep(cash, equity float64)
}

// LiveHandler drives the decision engine against the real market. Full
// steps run once per bar, aligned to the bar grid; between them a faster
// exit-only check keeps stops responsive. Entries evaluate closed bars
// only, exits see the forming bar so they track the live price.
type LiveHandler struct {
	strategyCfg config.StrategyConfig

	// Collaborators
	provider   price.Provider
	membership universe.Membership
	exchange   ExchangeState
	eng        *engine.DecisionEngine
	observer   StepObserver

	// Built once from config
	strat     *strategy.MomentumStrategy
	validator *price.Validator
	interval  time.Duration

	// Last successfully resolved universe, reused when a rescan fails
	members []string
}

func NewLiveHandler(
	strategyCfg config.StrategyConfig,
	provider price.Provider,
	membership universe.Membership,
	exchange ExchangeState,
	eng *engine.DecisionEngine,
	observer StepObserver,
) (*LiveHandler, error) {
	interval, err := price.IntervalDuration(strategyCfg.Timeframe)
	if err != nil {
		return nil, fmt.Errorf("live handler: %w", err)
	}
	return &LiveHandler{
		strategyCfg: strategyCfg,
		provider:    provider,
		membership:  membership,
		exchange:    exchange,
		eng:         eng,
		observer:    observer,
		strat: strategy.NewMomentumStrategy(
			strategyCfg.BBWidthThreshold,
			strategyCfg.RVRThreshold,
			strategyCfg.MAPeriod,
			strategyCfg.LookbackPeriod,
		),
		// Structural screening only. Short series self-gate through
		// indicator warmup, so no length floor here.
		validator: price.NewValidator(2),
		interval:  interval,
	}, nil
}

// Run blocks until the context is canceled or a loss limit halts the
// system. Open positions are force-closed on the way out either way.
func (h *LiveHandler) Run(ctx context.Context) error {
	log.Info().
		Str("run_id", h.eng.RunID()).
		Str("timeframe", h.strategyCfg.Timeframe).
		Int("open_positions", h.eng.OpenPositionCount()).
		Msg("live trading started")

	// Catch up on the last closed bar immediately instead of idling until
	// the next boundary.
	h.step(ctx)

	for {
		if h.eng.Halted() {
			log.Warn().Msg("loss limit halted the system, closing positions and stopping")
			h.forceCloseAll(models.ExitReasonEndOfRun)
			return nil
		}

		next := time.Now().UTC().Truncate(h.interval).Add(h.interval + settleDelay)
		if err := h.waitUntil(ctx, next); err != nil {
			log.Info().Msg("shutdown requested, closing positions")
			h.forceCloseAll(models.ExitReasonShutdown)
			return nil
		}
		h.step(ctx)
	}
}

// step runs one full decision pass on the most recently closed bar.
func (h *LiveHandler) step(ctx context.Context) {
	now := time.Now().UTC()
	barTime := now.Truncate(h.interval).Add(-h.interval)

	resolved, err := h.membership.EffectiveUniverse(ctx, now)
	if err != nil {
		log.Warn().Err(err).Msg("universe resolution failed, keeping previous members")
	} else {
		h.members = resolved
	}

	// An empty universe exits every position. If no scan has succeeded yet,
	// restored positions have no membership to check against; hold them as
	// members for this step so the failure does not read as a delisting.
	members := h.members
	if err != nil && len(members) == 0 {
		for _, pos := range h.eng.OpenPositions() {
			members = append(members, pos.Symbol)
		}
	}

	series := h.stepSeries(ctx, now, barTime)

	h.detectExternalCloses(ctx, now, series)

	h.eng.Step(ctx, engine.StepContext{
		Timestamp: barTime,
		Universe:  members,
		Series:    series,
	})

	if h.observer != nil {
		h.observer.MarkStep(h.eng.Cash(), h.eng.LastEquity())
	}

	log.Info().
		Time("bar", barTime).
		Int("symbols", len(series)).
		Int("open_positions", h.eng.OpenPositionCount()).
		Float64("cash", h.eng.Cash()).
		Msg("step complete")
}

// stepSeries fetches the full lookback window for every symbol in play and
// evaluates the entry signal on its last closed bar. Symbols whose data is
// stale keep their exit coverage but cannot trigger entries.
func (h *LiveHandler) stepSeries(ctx context.Context, now, barTime time.Time) map[string]engine.SymbolStep {
	symbols := h.stepSymbols()
	series := make(map[string]engine.SymbolStep, len(symbols))
	fetchStart := barTime.Add(-time.Duration(h.strat.MinBars()+fetchExtraBars) * h.interval)

	for _, symbol := range symbols {
		candles, err := h.provider.GetSeries(ctx, symbol, h.strategyCfg.Timeframe, fetchStart, now)
		if err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("series fetch failed, skipping symbol this step")
			continue
		}
		candles = trimForming(candles, barTime)
		if len(candles) == 0 {
			continue
		}
		if err := h.validator.Validate(symbol, candles); err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("series failed validation, skipping symbol this step")
			continue
		}

		step := engine.SymbolStep{Candles: candles, Index: len(candles) - 1}
		if candles[len(candles)-1].OpenTime.Equal(barTime) {
			step.Entry = h.strat.Latest(candles)
		}
		series[symbol] = step
	}
	return series
}

// stepSymbols is the universe plus whatever is still open, sorted. Open
// positions outside the universe need data for their removal exit to fill.
func (h *LiveHandler) stepSymbols() []string {
	seen := make(map[string]bool, len(h.members))
	symbols := make([]string, 0, len(h.members))
	for _, symbol := range h.members {
		if !seen[symbol] {
			seen[symbol] = true
			symbols = append(symbols, symbol)
		}
	}
	for _, pos := range h.eng.OpenPositions() {
		if !seen[pos.Symbol] {
			seen[pos.Symbol] = true
			symbols = append(symbols, pos.Symbol)
		}
	}
	sort.Strings(symbols)
	return symbols
}

// exitCheck runs the exit half of a step on a short window that includes
// the forming bar, so trailing stops react to the current price instead of
// the last closed bar.
func (h *LiveHandler) exitCheck(ctx context.Context) {
	open := h.eng.OpenPositions()
	if len(open) == 0 {
		return
	}
	now := time.Now().UTC()
	series := h.exitSeries(ctx, now, open)

	h.detectExternalCloses(ctx, now, series)
	h.eng.CheckExits(ctx, engine.StepContext{Timestamp: now, Series: series})
}

func (h *LiveHandler) exitSeries(ctx context.Context, now time.Time, open []models.Position) map[string]engine.SymbolStep {
	series := make(map[string]engine.SymbolStep, len(open))
	fetchStart := now.Add(-time.Duration(h.strategyCfg.MAPeriod+fetchExtraBars) * h.interval)

	for _, pos := range open {
		candles, err := h.provider.GetSeries(ctx, pos.Symbol, h.strategyCfg.Timeframe, fetchStart, now)
		if err != nil {
			log.Warn().Err(err).Str("symbol", pos.Symbol).Msg("exit series fetch failed")
			continue
		}
		if len(candles) == 0 {
			continue
		}
		series[pos.Symbol] = engine.SymbolStep{Candles: candles, Index: len(candles) - 1}
	}
	return series
}

// detectExternalCloses books positions the exchange already closed, such
// as a fired exchange-side trailing stop, at the current mark price.
func (h *LiveHandler) detectExternalCloses(ctx context.Context, now time.Time, series map[string]engine.SymbolStep) {
	if h.exchange == nil {
		return
	}
	for _, pos := range h.eng.OpenPositions() {
		amt, err := h.exchange.GetPositionAmt(ctx, pos.Symbol)
		if err != nil {
			log.Warn().Err(err).Str("symbol", pos.Symbol).Msg("exchange position check failed")
			continue
		}
		if amt != 0 {
			continue
		}
		mark, err := h.exchange.GetMarkPrice(ctx, pos.Symbol)
		if err != nil {
			log.Error().Err(err).Str("symbol", pos.Symbol).Msg("mark price fetch failed, external close not booked")
			continue
		}
		log.Info().Str("symbol", pos.Symbol).Float64("mark", mark).Msg("position closed on exchange")
		h.eng.RecordExternalClose(ctx, pos.Symbol, mark, now, series[pos.Symbol])
	}
}

// waitUntil sleeps to the deadline, waking for exit checks while positions
// are open. Returns the context error on cancellation.
func (h *LiveHandler) waitUntil(ctx context.Context, deadline time.Time) error {
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		chunk := remaining
		if h.eng.OpenPositionCount() > 0 && exitCheckEvery < chunk {
			chunk = exitCheckEvery
		}

		timer := time.NewTimer(chunk)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if h.eng.OpenPositionCount() > 0 && time.Until(deadline) > 0 {
			h.exitCheck(ctx)
		}
	}
}

// forceCloseAll closes every open position at the current price. It runs
// on a detached context so it still works after cancellation.
func (h *LiveHandler) forceCloseAll(reason string) {
	open := h.eng.OpenPositions()
	if len(open) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	now := time.Now().UTC()
	series := h.exitSeries(ctx, now, open)

	log.Info().Int("positions", len(open)).Str("reason", reason).Msg("closing all positions")
	h.eng.CloseAll(ctx, now, series, reason)
}

// trimForming drops bars that opened after barTime. The bar still under
// construction must not feed entry signals; its close is still moving.
func trimForming(candles []models.Candle, barTime time.Time) []models.Candle {
	for len(candles) > 0 && candles[len(candles)-1].OpenTime.After(barTime) {
		candles = candles[:len(candles)-1]
	}
	return candles
}
