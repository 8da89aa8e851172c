package config

// TradingMode selects which exchange environment live commands talk to.
type TradingMode string

const (
	ModeDemo TradingMode = "demo"
	ModeLive TradingMode = "live"
)

type config struct {
	Mode      TradingMode
	Exchange  ExchangeConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Alerts    AlertConfig
	Telemetry TelemetryConfig
	Risk      RiskConfig
	Strategy  StrategyConfig
	Universe  UniverseConfig
}

type ExchangeConfig struct {
	APIKey    string
	SecretKey string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// Enabled reports whether persistence is configured at all. Backtests can run
// purely in memory when no database host is set.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type AlertConfig struct {
	WebhookURL string
}

type TelemetryConfig struct {
	ListenAddr string
}

// RiskConfig carries position sizing and loss limit parameters.
type RiskConfig struct {
	InitialCapital      float64 `yaml:"initial_capital"`
	RiskPerTradePct     float64 `yaml:"risk_per_trade_pct"`
	StopLossPct         float64 `yaml:"stop_loss_pct"`
	MaxPositions        int     `yaml:"max_positions"`
	MaxPositionPct      float64 `yaml:"max_position_pct"`
	DailyLossLimitPct   float64 `yaml:"daily_loss_limit_pct"`
	WeeklyLossLimitPct  float64 `yaml:"weekly_loss_limit_pct"`
	MonthlyLossLimitPct float64 `yaml:"monthly_loss_limit_pct"`
	CommissionPct       float64 `yaml:"commission_pct"`
	SlippagePct         float64 `yaml:"slippage_pct"`
}

// StrategyConfig carries signal generation parameters.
type StrategyConfig struct {
	BBWidthThreshold   float64 `yaml:"bbwidth_threshold"`
	RVRThreshold       float64 `yaml:"rvr_threshold"`
	MAPeriod           int     `yaml:"ma_period"`
	LookbackPeriod     int     `yaml:"lookback_period"`
	Timeframe          string  `yaml:"timeframe"`
	CheckIntervalHours int     `yaml:"check_interval_hours"`
	UseMAExit          bool    `yaml:"use_ma_exit"`
	UseTrailingStop    bool    `yaml:"use_trailing_stop"`
}

// UniverseConfig selects between a fixed symbol list and the volume scanner.
type UniverseConfig struct {
	Dynamic             bool     `yaml:"dynamic"`
	Symbols             []string `yaml:"symbols"`
	UpdateFrequencyDays int      `yaml:"update_frequency_days"`
	MinDailyVolumeUSD   float64  `yaml:"min_daily_volume_usd"`
	MaxSymbols          int      `yaml:"max_symbols"`
	VolumeWindowDays    int      `yaml:"volume_window_days"`
}

// strategyFile is the on-disk YAML layout.
type strategyFile struct {
	Risk     RiskConfig     `yaml:"risk"`
	Strategy StrategyConfig `yaml:"strategy"`
	Universe UniverseConfig `yaml:"universe"`
}

func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		InitialCapital:      10000,
		RiskPerTradePct:     0.05,
		StopLossPct:         0.10,
		MaxPositions:        3,
		MaxPositionPct:      0.20,
		DailyLossLimitPct:   0.03,
		WeeklyLossLimitPct:  0.08,
		MonthlyLossLimitPct: 0.15,
		CommissionPct:       0.001,
		SlippagePct:         0.001,
	}
}

func DefaultStrategyConfig() StrategyConfig {
	return StrategyConfig{
		BBWidthThreshold:   0.35,
		RVRThreshold:       2.0,
		MAPeriod:           20,
		LookbackPeriod:     90,
		Timeframe:          "4h",
		CheckIntervalHours: 4,
		UseMAExit:          true,
		UseTrailingStop:    true,
	}
}

func DefaultUniverseConfig() UniverseConfig {
	return UniverseConfig{
		Dynamic:             false,
		Symbols:             []string{"BTCUSDT", "ETHUSDT"},
		UpdateFrequencyDays: 30,
		MinDailyVolumeUSD:   5_000_000,
		MaxSymbols:          50,
		VolumeWindowDays:    30,
	}
}
