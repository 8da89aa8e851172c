package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

func Load() (*config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	cfg := &config{
		Mode: TradingMode(envOrDefault("TRADING_MODE", string(ModeDemo))),
		Exchange: ExchangeConfig{
			APIKey:    os.Getenv("BINANCE_API_KEY"),
			SecretKey: os.Getenv("BINANCE_SECRET_KEY"),
		},
		Database: DatabaseConfig{
			Host:     os.Getenv("DB_HOST"),
			Port:     EnvtoInt(os.Getenv("DB_PORT")),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			DBName:   os.Getenv("DB_NAME"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       EnvtoInt(os.Getenv("REDIS_DB")),
		},
		Alerts: AlertConfig{
			WebhookURL: os.Getenv("DISCORD_WEBHOOK_URL"),
		},
		Telemetry: TelemetryConfig{
			ListenAddr: os.Getenv("METRICS_ADDR"),
		},
		Risk:     DefaultRiskConfig(),
		Strategy: DefaultStrategyConfig(),
		Universe: DefaultUniverseConfig(),
	}

	path := envOrDefault("STRATEGY_CONFIG", "config/strategy.yaml")
	if err := cfg.loadStrategyFile(path); err != nil {
		return nil, err
	}

	// Env symbol list overrides the file for quick experiments.
	if symbols := os.Getenv("TRADING_SYMBOLS"); symbols != "" {
		cfg.Universe.Symbols = strings.Split(symbols, ",")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadStrategyFile overlays YAML values onto the defaults already present in
// cfg. A missing file leaves the defaults as-is.
func (c *config) loadStrategyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read strategy config: %w", err)
	}

	file := strategyFile{
		Risk:     c.Risk,
		Strategy: c.Strategy,
		Universe: c.Universe,
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse strategy YAML: %w", err)
	}

	c.Risk = file.Risk
	c.Strategy = file.Strategy
	c.Universe = file.Universe
	return nil
}

func (c *config) Validate() error {
	var errs []string

	if c.Mode != ModeDemo && c.Mode != ModeLive {
		errs = append(errs, fmt.Sprintf("unknown trading mode %q", c.Mode))
	}
	if c.Risk.RiskPerTradePct <= 0 || c.Risk.RiskPerTradePct > 0.2 {
		errs = append(errs, fmt.Sprintf("risk per trade %.1f%% is outside safe range (0-20%%)", c.Risk.RiskPerTradePct*100))
	}
	if c.Risk.MaxPositions < 1 || c.Risk.MaxPositions > 10 {
		errs = append(errs, fmt.Sprintf("max positions %d is outside reasonable range (1-10)", c.Risk.MaxPositions))
	}
	if c.Risk.StopLossPct <= 0 || c.Risk.StopLossPct >= 1 {
		errs = append(errs, fmt.Sprintf("stop loss %.1f%% must be between 0%% and 100%%", c.Risk.StopLossPct*100))
	}
	if c.Risk.MaxPositionPct <= 0 || c.Risk.MaxPositionPct > 1 {
		errs = append(errs, fmt.Sprintf("max position %.1f%% must be between 0%% and 100%%", c.Risk.MaxPositionPct*100))
	}
	if c.Risk.InitialCapital <= 0 {
		errs = append(errs, "initial capital must be positive")
	}
	if c.Strategy.MAPeriod < 2 {
		errs = append(errs, fmt.Sprintf("ma period %d is too short", c.Strategy.MAPeriod))
	}
	if c.Universe.Dynamic {
		if c.Universe.UpdateFrequencyDays < 1 {
			errs = append(errs, "universe update frequency must be at least 1 day")
		}
		if c.Universe.MaxSymbols < 1 {
			errs = append(errs, "universe max symbols must be at least 1")
		}
	} else if len(c.Universe.Symbols) == 0 {
		errs = append(errs, "static universe has no symbols")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// helper env(string) to int
func EnvtoInt(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return i
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
