package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config is the full application configuration.
type Config struct {
	Binance  BinanceConfig  `yaml:"binance"`
	Trading  TradingConfig  `yaml:"trading"`
	Strategy StrategyConfig `yaml:"strategy"`
	Sizer    SizerConfig    `yaml:"sizer"`
	Risk     RiskConfig     `yaml:"risk"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Funding  FundingConfig  `yaml:"funding"`
	Storage  StorageConfig  `yaml:"storage"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// BinanceConfig holds venue connection settings. Keys are taken from the
// environment, never from the YAML file.
type BinanceConfig struct {
	APIKey    string `yaml:"-"`
	APISecret string `yaml:"-"`
	Testnet   bool   `yaml:"testnet"`
}

// TradingConfig holds the pair universe and execution parameters.
type TradingConfig struct {
	Pairs       []string `yaml:"pairs"`
	Interval    string   `yaml:"interval"`      // execution timeframe, e.g. "5m"
	HTFInterval string   `yaml:"htf_interval"`  // higher timeframe, e.g. "1h"
	Paper       bool     `yaml:"paper"`
	Balance     float64  `yaml:"initial_balance"`
	Leverage    float64  `yaml:"leverage"`
	MaxLeverage float64  `yaml:"max_leverage"`
	EvalSeconds int      `yaml:"eval_interval_seconds"`
}

// StrategyConfig holds per-engine thresholds plus the stop/target geometry
// shared by every directional engine.
type StrategyConfig struct {
	StopATRMultiplier float64 `yaml:"stop_atr_multiplier"`
	RewardRisk        float64 `yaml:"reward_risk"`

	Rule struct {
		RSIOversold   float64 `yaml:"rsi_oversold"`
		RSIOverbought float64 `yaml:"rsi_overbought"`
		BandEdgePct   float64 `yaml:"band_edge_pct"` // max distance to a Bollinger edge, % of price
	} `yaml:"rule"`

	VWAP struct {
		DeviationPct   float64 `yaml:"deviation_pct"`    // entry threshold on the execution timeframe
		HTFConflictPct float64 `yaml:"htf_conflict_pct"` // veto when the HTF deviation disagrees beyond this
	} `yaml:"vwap"`

	Breakout struct {
		Lookback       int     `yaml:"lookback"`
		ADXFloor       float64 `yaml:"adx_floor"`
		VolumeMultiple float64 `yaml:"volume_multiple"`
	} `yaml:"breakout"`

	PSAR struct {
		DailySMAPeriod float64 `yaml:"daily_sma_period"`
		DailyADXFloor  float64 `yaml:"daily_adx_floor"`
	} `yaml:"psar"`

	CCI struct {
		Threshold      float64 `yaml:"threshold"`
		DailySMAPeriod float64 `yaml:"daily_sma_period"`
		DailyADXFloor  float64 `yaml:"daily_adx_floor"`
	} `yaml:"cci"`

	Micro struct {
		DeadZoneLow    float64 `yaml:"dead_zone_low"`
		DeadZoneHigh   float64 `yaml:"dead_zone_high"`
		LongImbalance  float64 `yaml:"long_imbalance"`  // bid-heavy floor for longs
		ShortImbalance float64 `yaml:"short_imbalance"` // ask-heavy ceiling for shorts
		WideSpreadPct  float64 `yaml:"wide_spread_pct"`
		OISurgePct     float64 `yaml:"oi_surge_pct"`
	} `yaml:"micro"`
}

// SizerConfig parameterises the Kelly position sizer.
type SizerConfig struct {
	KellyMultiplier float64 `yaml:"kelly_multiplier"` // e.g. 0.25 = quarter Kelly
	MaxBetUSD       float64 `yaml:"max_bet_usd"`
	MinBetUSD       float64 `yaml:"min_bet_usd"`
}

// RiskConfig parameterises the risk gate.
type RiskConfig struct {
	DailyLossLimitUSD float64 `yaml:"daily_loss_limit_usd"`
	DailyLossLimitPct float64 `yaml:"daily_loss_limit_pct"` // % of initial balance, 0 = disabled
	MaxPositions      int     `yaml:"max_positions"`
	MaxExposureUSD    float64 `yaml:"max_exposure_usd"`
}

// Margin model selection for the simulated liquidation check. The two
// formulas come from different generations of the monitor and diverge;
// which one production intends is an open question with domain owners, so
// both remain selectable.
const (
	MarginModelRateNotional = "rate-notional" // loss >= maintenance rate x notional
	MarginModelMarginPct    = "margin-pct"    // loss >= flat % of margin
)

// MonitorConfig parameterises the position monitor loop.
type MonitorConfig struct {
	TickSeconds int `yaml:"tick_seconds"`

	TrailingActivationPct float64 `yaml:"trailing_activation_pct"` // peak PnL % that arms the trail
	TrailingRetracement   float64 `yaml:"trailing_retracement"`    // close at peak * factor
	TrailingOffsetPct     float64 `yaml:"trailing_offset_pct"`     // close at peak - offset; >0 overrides retracement

	StagnationMinutes int `yaml:"stagnation_minutes"`

	MarginModel           string  `yaml:"margin_model"`
	MaintenanceMarginRate float64 `yaml:"maintenance_margin_rate"` // rate-notional model
	MaintenanceMarginPct  float64 `yaml:"maintenance_margin_pct"`  // margin-pct model, % of margin
	LiquidationPenaltyPct float64 `yaml:"liquidation_penalty_pct"` // extra deduction, % of margin

	FeeRate float64 `yaml:"fee_rate"` // round-trip fee on notional, paper mode
}

// FundingConfig parameterises the funding-rate arbitrage engine.
type FundingConfig struct {
	ScanSeconds int     `yaml:"scan_seconds"`
	EntryAPR    float64 `yaml:"entry_apr"` // open when |annualized rate| >= this
	ExitAPR     float64 `yaml:"exit_apr"`  // close when |annualized rate| < this
	NotionalUSD float64 `yaml:"notional_usd"`
	Leverage    float64 `yaml:"leverage"`
	StopPct     float64 `yaml:"stop_pct"` // symmetric SL/TP distance around mark, % of price
	RecordHedge bool    `yaml:"record_hedge"`
}

// StorageConfig configures the optional InfluxDB trade recorder.
type StorageConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Token   string `yaml:"-"`
	Org     string `yaml:"org"`
	Bucket  string `yaml:"bucket"`
}

// TelegramConfig configures the notification sink. The bot token is taken
// from the environment.
type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"-"`
	ChatID  int64  `yaml:"chat_id"`
}

// Default returns a configuration with sensible defaults for paper trading.
func Default() *Config {
	cfg := &Config{}
	cfg.Trading = TradingConfig{
		Pairs:       []string{"BTCUSDT", "ETHUSDT"},
		Interval:    "5m",
		HTFInterval: "1h",
		Paper:       true,
		Balance:     10_000,
		Leverage:    3,
		MaxLeverage: 10,
		EvalSeconds: 120,
	}
	cfg.Strategy.StopATRMultiplier = 1.5
	cfg.Strategy.RewardRisk = 2.0
	cfg.Strategy.Rule.RSIOversold = 30
	cfg.Strategy.Rule.RSIOverbought = 70
	cfg.Strategy.Rule.BandEdgePct = 0.5
	cfg.Strategy.VWAP.DeviationPct = 1.0
	cfg.Strategy.VWAP.HTFConflictPct = 2.0
	cfg.Strategy.Breakout.Lookback = 20
	cfg.Strategy.Breakout.ADXFloor = 25
	cfg.Strategy.Breakout.VolumeMultiple = 2.0
	cfg.Strategy.PSAR.DailySMAPeriod = 50
	cfg.Strategy.PSAR.DailyADXFloor = 20
	cfg.Strategy.CCI.Threshold = 100
	cfg.Strategy.CCI.DailySMAPeriod = 50
	cfg.Strategy.CCI.DailyADXFloor = 20
	cfg.Strategy.Micro.DeadZoneLow = 0.45
	cfg.Strategy.Micro.DeadZoneHigh = 0.55
	cfg.Strategy.Micro.LongImbalance = 0.60
	cfg.Strategy.Micro.ShortImbalance = 0.40
	cfg.Strategy.Micro.WideSpreadPct = 0.05
	cfg.Strategy.Micro.OISurgePct = 5
	cfg.Sizer = SizerConfig{KellyMultiplier: 0.25, MaxBetUSD: 500, MinBetUSD: 10}
	cfg.Risk = RiskConfig{DailyLossLimitUSD: 500, MaxPositions: 10, MaxExposureUSD: 5_000}
	cfg.Monitor = MonitorConfig{
		TickSeconds:           30,
		TrailingActivationPct: 5,
		TrailingRetracement:   0.5,
		StagnationMinutes:     240,
		MarginModel:           MarginModelRateNotional,
		MaintenanceMarginRate: 0.005,
		MaintenanceMarginPct:  80,
		LiquidationPenaltyPct: 1,
		FeeRate:               0.0008,
	}
	cfg.Funding = FundingConfig{
		ScanSeconds: 300,
		EntryAPR:    0.15,
		ExitAPR:     0.05,
		NotionalUSD: 200,
		Leverage:    2,
		StopPct:     3,
		RecordHedge: true,
	}
	return cfg
}

// Load reads the YAML file at path over the defaults and pulls secrets from
// the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Binance.APIKey = os.Getenv("BINANCE_API_KEY")
	cfg.Binance.APISecret = os.Getenv("BINANCE_API_SECRET")
	cfg.Telegram.Token = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.Storage.Token = os.Getenv("INFLUXDB_TOKEN")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that all numeric fields are within sensible bounds. It
// returns the first encountered error, allowing the caller to surface a
// clear configuration problem before any trading starts.
func (c *Config) Validate() error {
	if len(c.Trading.Pairs) == 0 {
		return errors.New("trading.pairs cannot be empty")
	}
	if c.Trading.Interval == "" || c.Trading.HTFInterval == "" {
		return errors.New("trading.interval and trading.htf_interval must be set")
	}
	if c.Trading.Balance <= 0 {
		return fmt.Errorf("trading.initial_balance (%f) must be positive", c.Trading.Balance)
	}
	if c.Trading.Leverage <= 0 || c.Trading.Leverage > c.Trading.MaxLeverage {
		return fmt.Errorf("trading.leverage (%f) must be >0 and <= max_leverage (%f)",
			c.Trading.Leverage, c.Trading.MaxLeverage)
	}
	if c.Strategy.StopATRMultiplier <= 0 {
		return errors.New("strategy.stop_atr_multiplier must be positive")
	}
	if c.Strategy.RewardRisk <= 0 {
		return errors.New("strategy.reward_risk must be positive")
	}
	if c.Strategy.Rule.RSIOversold >= c.Strategy.Rule.RSIOverbought {
		return errors.New("strategy.rule rsi_oversold must be below rsi_overbought")
	}
	if c.Strategy.Breakout.Lookback < 2 {
		return errors.New("strategy.breakout.lookback must be at least 2")
	}
	if c.Strategy.Micro.DeadZoneLow >= c.Strategy.Micro.DeadZoneHigh {
		return errors.New("strategy.micro dead zone bounds out of order")
	}
	if c.Sizer.KellyMultiplier <= 0 || c.Sizer.KellyMultiplier > 1 {
		return fmt.Errorf("sizer.kelly_multiplier (%f) must be in (0,1]", c.Sizer.KellyMultiplier)
	}
	if c.Sizer.MinBetUSD < 0 || c.Sizer.MaxBetUSD <= 0 || c.Sizer.MinBetUSD > c.Sizer.MaxBetUSD {
		return errors.New("sizer min/max bet bounds out of order")
	}
	if c.Risk.MaxPositions <= 0 {
		return errors.New("risk.max_positions must be positive")
	}
	if c.Monitor.TickSeconds <= 0 {
		return errors.New("monitor.tick_seconds must be positive")
	}
	if c.Monitor.MarginModel != MarginModelRateNotional && c.Monitor.MarginModel != MarginModelMarginPct {
		return fmt.Errorf("monitor.margin_model %q unknown", c.Monitor.MarginModel)
	}
	if c.Monitor.TrailingRetracement <= 0 || c.Monitor.TrailingRetracement >= 1 {
		return fmt.Errorf("monitor.trailing_retracement (%f) must be in (0,1)", c.Monitor.TrailingRetracement)
	}
	if c.Monitor.FeeRate < 0 || c.Monitor.FeeRate > 0.01 {
		return fmt.Errorf("monitor.fee_rate (%f) out of realistic range", c.Monitor.FeeRate)
	}
	if c.Funding.EntryAPR <= c.Funding.ExitAPR {
		return errors.New("funding.entry_apr must exceed funding.exit_apr")
	}
	if c.Funding.NotionalUSD <= 0 || c.Funding.Leverage <= 0 {
		return errors.New("funding notional and leverage must be positive")
	}
	if c.Funding.StopPct <= 0 {
		return errors.New("funding.stop_pct must be positive")
	}
	return nil
}
