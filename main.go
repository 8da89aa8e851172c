package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"MomentumTradeBot/config"
	"MomentumTradeBot/internal/alerts"
	"MomentumTradeBot/internal/handlers"
	"MomentumTradeBot/internal/models"
	"MomentumTradeBot/internal/operations/backtest"
	"MomentumTradeBot/internal/operations/binance"
	"MomentumTradeBot/internal/operations/engine"
	"MomentumTradeBot/internal/operations/position"
	"MomentumTradeBot/internal/operations/price"
	"MomentumTradeBot/internal/operations/universe"
	"MomentumTradeBot/internal/repositories"
	"MomentumTradeBot/internal/services/risk"
	"MomentumTradeBot/internal/services/sizing"
	"MomentumTradeBot/internal/services/strategy"
	"MomentumTradeBot/internal/telemetry"
)

const scanCacheTTL = 45 * 24 * time.Hour

var (
	backtestStart string
	backtestEnd   string
	scanAsOf      string
)

var rootCmd = &cobra.Command{
	Use:   "tradebot",
	Short: "Multi-asset momentum trading bot for Binance USDT perpetuals",
	Long: `tradebot trades a Bollinger squeeze breakout strategy across a basket of
USDT perpetual futures. The same decision engine drives historical replays
and live trading; only the data source and execution path differ.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay the strategy over a historical window",
	RunE:  runBacktest,
}

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Trade the strategy against the exchange",
	Long: `Runs the polling loop: one full decision pass per bar plus faster
exit-only checks while positions are open. TRADING_MODE selects between
simulated fills on live data (demo) and real orders (live).`,
	RunE: runLive,
}

var scanCmd = &cobra.Command{
	Use:   "scan-universe",
	Short: "Rank tradable symbols by average daily turnover",
	RunE:  runScanUniverse,
}

func init() {
	backtestCmd.Flags().StringVar(&backtestStart, "start", "", "window start (YYYY-MM-DD)")
	backtestCmd.Flags().StringVar(&backtestEnd, "end", time.Now().UTC().Format("2006-01-02"), "window end (YYYY-MM-DD)")
	backtestCmd.MarkFlagRequired("start")

	scanCmd.Flags().StringVar(&scanAsOf, "as-of", "", "scan date (YYYY-MM-DD), defaults to now")

	rootCmd.AddCommand(backtestCmd)
	rootCmd.AddCommand(liveCmd)
	rootCmd.AddCommand(scanCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setupLogging() {
	// LOG_FORMAT=json keeps zerolog's native output for log collectors;
	// anything else gets the console writer.
	if os.Getenv("LOG_FORMAT") != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	level := zerolog.InfoLevel
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if parsed, err := zerolog.ParseLevel(raw); err == nil {
			level = parsed
		}
	}
	zerolog.SetGlobalLevel(level)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	start, err := time.Parse("2006-01-02", backtestStart)
	if err != nil {
		return fmt.Errorf("invalid --start: %w", err)
	}
	end, err := time.Parse("2006-01-02", backtestEnd)
	if err != nil {
		return fmt.Errorf("invalid --end: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := binance.NewBinanceClient(cfg.Exchange.APIKey, cfg.Exchange.SecretKey)
	var provider price.Provider = price.NewBinanceProvider(client)

	// With a database the candle cache makes repeat runs cheap and the run
	// output lands in the ledger tables.
	var ledger engine.Ledger
	if cfg.Database.Enabled() {
		db, err := setupDatabase(cfg.Database)
		if err != nil {
			return err
		}
		provider = price.NewCachedProvider(provider, repositories.NewCandleRepository(db))
		ledger = repositories.NewRunLedger(db)
	}

	membership := buildMembership(cfg.Universe, cfg.Redis, client, provider, start)

	runner := backtest.NewRunner(cfg.Risk, cfg.Strategy, provider, membership, ledger, nil)
	res, err := runner.Run(ctx, start, end)
	if err != nil {
		return err
	}

	fmt.Print(backtest.RenderReport(res))
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	interval, err := price.IntervalDuration(cfg.Strategy.Timeframe)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := binance.NewBinanceClient(cfg.Exchange.APIKey, cfg.Exchange.SecretKey)
	// Live steps must always see the just-closed bar, so no candle cache
	// in front of the exchange here.
	provider := price.NewBinanceProvider(client)

	var ledger engine.Ledger
	var runLedger *repositories.RunLedger
	if cfg.Database.Enabled() {
		db, err := setupDatabase(cfg.Database)
		if err != nil {
			return err
		}
		runLedger = repositories.NewRunLedger(db)
		ledger = runLedger
	}

	restoredCash, restoredPositions := recoverState(runLedger, cfg.Risk.InitialCapital)
	startEquity := restoredCash
	for _, pos := range restoredPositions {
		startEquity += pos.Quantity * pos.EntryPrice
	}

	metrics := telemetry.NewMetrics()
	metricsServer := metrics.Serve(cfg.Telemetry.ListenAddr)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		telemetry.Shutdown(shutdownCtx, metricsServer)
	}()

	discord := alerts.NewDiscordNotifier(cfg.Alerts.WebhookURL)
	notifier := engine.MultiNotifier{metrics, discord}

	var exec engine.Execution
	var exchange handlers.ExchangeState
	if cfg.Mode == config.ModeLive {
		liveExec, err := position.NewLiveExecutor(ctx, client, cfg.Risk.StopLossPct)
		if err != nil {
			return fmt.Errorf("live executor: %w", err)
		}
		exec = liveExec
		exchange = client
	}

	sizer := sizing.NewPositionSizer(cfg.Risk.RiskPerTradePct, cfg.Risk.StopLossPct, cfg.Risk.MaxPositionPct, cfg.Risk.MaxPositions)
	limits := risk.NewLimitController(cfg.Risk.DailyLossLimitPct, cfg.Risk.WeeklyLossLimitPct, cfg.Risk.MonthlyLossLimitPct,
		cfg.Risk.MonthlyLossLimitPct > 0, startEquity)
	exits := strategy.NewExitEvaluator(cfg.Risk.StopLossPct, cfg.Strategy.MAPeriod, cfg.Strategy.UseTrailingStop, cfg.Strategy.UseMAExit)

	eng := engine.NewDecisionEngine(engine.Config{
		InitialCapital: cfg.Risk.InitialCapital,
		CommissionPct:  cfg.Risk.CommissionPct,
		SlippagePct:    cfg.Risk.SlippagePct,
		BarInterval:    interval,
	}, sizer, limits, exits, exec, ledger, notifier)

	if len(restoredPositions) > 0 || restoredCash != cfg.Risk.InitialCapital {
		eng.Restore(restoredPositions, restoredCash)
		metrics.PositionsRestored(len(restoredPositions))
		log.Info().
			Int("positions", len(restoredPositions)).
			Float64("cash", restoredCash).
			Msg("previous run state adopted")
	}

	membership := buildMembership(cfg.Universe, cfg.Redis, client, provider, time.Now().UTC().Truncate(24*time.Hour))

	handler, err := handlers.NewLiveHandler(cfg.Strategy, provider, membership, exchange, eng, metrics)
	if err != nil {
		return err
	}

	discord.RunStarted(eng.RunID(), string(cfg.Mode), startEquity)
	runErr := handler.Run(ctx)
	discord.RunStopped(eng.RunID(), eng.Cash(), len(eng.Trades()))
	return runErr
}

func runScanUniverse(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	asOf := time.Now().UTC()
	if scanAsOf != "" {
		asOf, err = time.Parse("2006-01-02", scanAsOf)
		if err != nil {
			return fmt.Errorf("invalid --as-of: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := binance.NewBinanceClient(cfg.Exchange.APIKey, cfg.Exchange.SecretKey)
	scanner := universe.NewVolumeScanner(client, price.NewBinanceProvider(client),
		cfg.Universe.MinDailyVolumeUSD, cfg.Universe.MaxSymbols, cfg.Universe.VolumeWindowDays)

	symbols, err := scanner.Scan(ctx, asOf)
	if err != nil {
		return err
	}

	fmt.Printf("%d symbols as of %s (min $%.0f daily turnover):\n",
		len(symbols), asOf.Format("2006-01-02"), cfg.Universe.MinDailyVolumeUSD)
	for i, symbol := range symbols {
		fmt.Printf("%3d. %s\n", i+1, symbol)
	}
	return nil
}

func setupDatabase(dbConfig config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		dbConfig.Host,
		dbConfig.Port,
		dbConfig.User,
		dbConfig.Password,
		dbConfig.DBName)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	err = db.AutoMigrate(
		&models.Position{},
		&models.Trade{},
		&models.EquityPoint{},
		&models.RiskEvent{},
		&models.Candle{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// recoverState pulls whatever a previous run left behind. Failures fall
// back to a fresh start rather than refusing to boot.
func recoverState(runLedger *repositories.RunLedger, initialCapital float64) (float64, []models.Position) {
	if runLedger == nil {
		return initialCapital, nil
	}

	cash, err := runLedger.LastCash(initialCapital)
	if err != nil {
		log.Warn().Err(err).Msg("cash recovery failed, using configured capital")
		cash = initialCapital
	}

	positions, err := runLedger.OpenPositions()
	if err != nil {
		log.Warn().Err(err).Msg("position recovery failed, starting flat")
		return cash, nil
	}
	return cash, positions
}

func buildMembership(uniCfg config.UniverseConfig, redisCfg config.RedisConfig, client *binance.BinanceClient, provider price.Provider, anchor time.Time) universe.Membership {
	if !uniCfg.Dynamic {
		return universe.NewStaticUniverse(uniCfg.Symbols)
	}

	scanner := universe.NewVolumeScanner(client, provider,
		uniCfg.MinDailyVolumeUSD, uniCfg.MaxSymbols, uniCfg.VolumeWindowDays)

	var cache universe.ScanCache
	if redisCfg.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     redisCfg.Addr,
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
		})
		cache = universe.NewRedisScanCache(rdb, scanCacheTTL)
	}

	return universe.NewDynamicUniverse(scanner, cache, uniCfg.UpdateFrequencyDays, anchor)
}
