package backtest

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
	"MomentumTradeBot/internal/services/risk"
	"MomentumTradeBot/internal/services/sizing"
	"MomentumTradeBot/internal/services/strategy"
)

const (
	// Extra bars fetched before the window so the first in-range bar already
	// has full indicator history.
	warmupExtraBars = 10

	// Gap ratio above which a series is flagged as patchy.
	maxGapRatio = 0.05
)

// Runner replays historical candles through the decision engine. Each run
// gets a fresh engine and risk controller so results are reproducible.
type Runner struct {
	riskCfg     config.RiskConfig
	strategyCfg config.StrategyConfig

	provider   price.Provider
	membership universe.Membership
	ledger     engine.Ledger
	notifier   engine.Notifier
}

// symbolData is one symbol's replay material: the full candle series, the
// entry signal per bar, and an open-time index into both.
type symbolData struct {
	candles []models.Candle
	signals []strategy.EntrySignal
	index   map[int64]int
}

func NewRunner(riskCfg config.RiskConfig, strategyCfg config.StrategyConfig, provider price.Provider, membership universe.Membership, ledger engine.Ledger, notifier engine.Notifier) *Runner {
	return &Runner{
		riskCfg:     riskCfg,
		strategyCfg: strategyCfg,
		provider:    provider,
		membership:  membership,
		ledger:      ledger,
		notifier:    notifier,
	}
}

// Run replays [start, end] and returns the aggregated result. Symbols whose
// data cannot be fetched or validated are skipped and reported, not fatal.
// A monthly loss breach halts the replay early.
func (r *Runner) Run(ctx context.Context, start, end time.Time) (*RunResult, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("backtest window %s to %s is empty",
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	interval, err := price.IntervalDuration(r.strategyCfg.Timeframe)
	if err != nil {
		return nil, err
	}

	strat := strategy.NewMomentumStrategy(
		r.strategyCfg.BBWidthThreshold,
		r.strategyCfg.RVRThreshold,
		r.strategyCfg.MAPeriod,
		r.strategyCfg.LookbackPeriod,
	)
	exits := strategy.NewExitEvaluator(
		r.riskCfg.StopLossPct,
		r.strategyCfg.MAPeriod,
		r.strategyCfg.UseTrailingStop,
		r.strategyCfg.UseMAExit,
	)

	symbols, err := r.unionUniverse(ctx, start, end)
	if err != nil {
		return nil, err
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("universe is empty between %s and %s",
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	fetchStart := start.Add(-time.Duration(strat.MinBars()+warmupExtraBars) * interval)
	data, skipped := r.loadSeries(ctx, strat, symbols, fetchStart, end, interval)
	if len(data) == 0 {
		return nil, fmt.Errorf("no symbol passed data validation; %d skipped", len(skipped))
	}

	timeline := buildTimeline(data, start, end)
	if len(timeline) == 0 {
		return nil, fmt.Errorf("no bars between %s and %s",
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	limits := risk.NewLimitController(
		r.riskCfg.DailyLossLimitPct,
		r.riskCfg.WeeklyLossLimitPct,
		r.riskCfg.MonthlyLossLimitPct,
		r.riskCfg.MonthlyLossLimitPct > 0,
		r.riskCfg.InitialCapital,
	)
	sizer := sizing.NewPositionSizer(
		r.riskCfg.RiskPerTradePct,
		r.riskCfg.StopLossPct,
		r.riskCfg.MaxPositionPct,
		r.riskCfg.MaxPositions,
	)
	eng := engine.NewDecisionEngine(engine.Config{
		InitialCapital: r.riskCfg.InitialCapital,
		CommissionPct:  r.riskCfg.CommissionPct,
		SlippagePct:    r.riskCfg.SlippagePct,
		BarInterval:    interval,
	}, sizer, limits, exits, nil, r.ledger, r.notifier)

	log.Info().
		Str("run_id", eng.RunID()).
		Time("start", start).
		Time("end", end).
		Int("symbols", len(data)).
		Int("bars", len(timeline)).
		Msg("backtest starting")

	var members []string
	asOf := timeline[0]
	for _, ts := range timeline {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		asOf = ts

		resolved, err := r.membership.EffectiveUniverse(ctx, ts)
		if err != nil {
			log.Warn().Err(err).Time("ts", ts).Msg("universe resolution failed, keeping previous members")
		} else {
			members = resolved
		}

		eng.Step(ctx, engine.StepContext{
			Timestamp: ts,
			Universe:  members,
			Series:    r.seriesAt(data, ts),
		})

		if eng.Halted() {
			log.Warn().Time("ts", ts).Str("run_id", eng.RunID()).Msg("loss limit halted the run")
			break
		}
	}

	eng.CloseAll(ctx, asOf, finalSeries(data, asOf), models.ExitReasonEndOfRun)

	trades := eng.Trades()
	curve := eng.EquityCurve()
	result := &RunResult{
		RunID:          eng.RunID(),
		Start:          start,
		End:            end,
		InitialCapital: r.riskCfg.InitialCapital,
		FinalCash:      eng.Cash(),
		Metrics:        CalculatePerformance(r.riskCfg.InitialCapital, trades, curve),
		Trades:         trades,
		EquityCurve:    curve,
		RiskEvents:     eng.RiskEvents(),
		SkippedSymbols: skipped,
	}

	log.Info().
		Str("run_id", result.RunID).
		Int("trades", result.Metrics.TotalTrades).
		Float64("final_equity", result.Metrics.FinalEquity).
		Float64("total_return_usd", result.Metrics.TotalReturnUSD).
		Msg("backtest complete")

	return result, nil
}

// unionUniverse collects every symbol that is a member at any point of the
// window, probing at daily resolution so rebalance boundaries are caught.
func (r *Runner) unionUniverse(ctx context.Context, start, end time.Time) ([]string, error) {
	seen := make(map[string]struct{})
	for ts := start; !ts.After(end); ts = ts.Add(24 * time.Hour) {
		members, err := r.membership.EffectiveUniverse(ctx, ts)
		if err != nil {
			return nil, fmt.Errorf("resolve universe at %s: %w", ts.Format(time.RFC3339), err)
		}
		for _, sym := range members {
			seen[sym] = struct{}{}
		}
	}

	symbols := make([]string, 0, len(seen))
	for sym := range seen {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols, nil
}

func (r *Runner) loadSeries(ctx context.Context, strat *strategy.MomentumStrategy, symbols []string, fetchStart, end time.Time, interval time.Duration) (map[string]*symbolData, map[string]string) {
	validator := price.NewValidator(strat.MinBars() + 1)
	data := make(map[string]*symbolData, len(symbols))
	skipped := make(map[string]string)

	for _, sym := range symbols {
		candles, err := r.provider.GetSeries(ctx, sym, r.strategyCfg.Timeframe, fetchStart, end)
		if err != nil {
			log.Warn().Err(err).Str("symbol", sym).Msg("series fetch failed, skipping symbol")
			skipped[sym] = err.Error()
			continue
		}
		if err := validator.Validate(sym, candles); err != nil {
			log.Warn().Err(err).Str("symbol", sym).Msg("series failed validation, skipping symbol")
			skipped[sym] = err.Error()
			continue
		}
		if ratio := price.GapRatio(candles, interval); ratio > maxGapRatio {
			log.Warn().Str("symbol", sym).Float64("gap_ratio", ratio).Msg("series has large gaps")
		}

		index := make(map[int64]int, len(candles))
		for i, c := range candles {
			index[c.OpenTime.UnixMilli()] = i
		}
		data[sym] = &symbolData{
			candles: candles,
			signals: strat.Signals(candles),
			index:   index,
		}
		log.Debug().Str("symbol", sym).Int("bars", len(candles)).Msg("series loaded")
	}

	return data, skipped
}

// seriesAt assembles the per-symbol step material for one timestamp. Symbols
// without a bar at ts are simply absent; the engine treats that as a gap.
func (r *Runner) seriesAt(data map[string]*symbolData, ts time.Time) map[string]engine.SymbolStep {
	series := make(map[string]engine.SymbolStep, len(data))
	for sym, sd := range data {
		idx, ok := sd.index[ts.UnixMilli()]
		if !ok {
			continue
		}
		series[sym] = engine.SymbolStep{
			Candles: sd.candles,
			Index:   idx,
			Entry:   sd.signals[idx],
		}
	}
	return series
}

// finalSeries points every symbol at its last bar at or before ts so the
// end-of-run close can fill each position from its own latest close.
func finalSeries(data map[string]*symbolData, ts time.Time) map[string]engine.SymbolStep {
	series := make(map[string]engine.SymbolStep, len(data))
	for sym, sd := range data {
		idx := sort.Search(len(sd.candles), func(i int) bool {
			return sd.candles[i].OpenTime.After(ts)
		}) - 1
		if idx < 0 {
			continue
		}
		series[sym] = engine.SymbolStep{Candles: sd.candles, Index: idx}
	}
	return series
}

// buildTimeline is the sorted union of bar open times across all loaded
// symbols, clipped to the window. Stepping the union keeps symbols with
// staggered listings in lockstep.
func buildTimeline(data map[string]*symbolData, start, end time.Time) []time.Time {
	seen := make(map[int64]struct{})
	var stamps []int64
	for _, sd := range data {
		for _, c := range sd.candles {
			if c.OpenTime.Before(start) || c.OpenTime.After(end) {
				continue
			}
			ms := c.OpenTime.UnixMilli()
			if _, ok := seen[ms]; !ok {
				seen[ms] = struct{}{}
				stamps = append(stamps, ms)
			}
		}
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i] < stamps[j] })

	timeline := make([]time.Time, len(stamps))
	for i, ms := range stamps {
		timeline[i] = time.UnixMilli(ms).UTC()
	}
	return timeline
}
