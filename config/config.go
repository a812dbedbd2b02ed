package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	KiteConfig     KiteConfig     `json:"kite"`
	DatabaseConfig DatabaseConfig `json:"database"`
	RedisConfig    RedisConfig    `json:"redis"`
	ScannerConfig  ScannerConfig  `json:"scanner"`
	ProfileConfig  ProfileConfig  `json:"volume_profile"`
	SpreadConfig   SpreadConfig   `json:"spread"`
	WatchdogConfig WatchdogConfig `json:"watchdog"`
	RiskConfig     RiskConfig     `json:"risk"`
	LoggingConfig  LoggingConfig  `json:"logging"`
}

// KiteConfig holds Kite Connect API credentials and client limits
type KiteConfig struct {
	APIKey      string  `json:"api_key"`
	APISecret   string  `json:"api_secret"`
	AccessToken string  `json:"access_token"`
	BaseURL     string  `json:"base_url"`
	MaxRetries  int     `json:"max_retries"`     // Retries on rate-limit errors
	RequestRate float64 `json:"request_rate"`    // Requests per second budget
	MockMode    bool    `json:"mock_mode"`       // Use simulated data when the API is unavailable
}

type DatabaseConfig struct {
	URL string `json:"url"` // postgres:// connection string
}

// RedisConfig holds Redis configuration for instrument caching
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type ScannerConfig struct {
	MinScore       float64 `json:"min_score"`        // Minimum IVP / HV Rank to qualify
	MaxCandidates  int     `json:"max_candidates"`   // Max candidates returned per scan
	WorkerCount    int     `json:"worker_count"`     // Concurrent worker count
	IVPMinDays     int     `json:"ivp_min_days"`     // Min IV history readings for IVP
	HVWindow       int     `json:"hv_window"`        // Rolling window for HV (days)
	HVLookbackDays int     `json:"hv_lookback_days"` // Calendar days of candles for HV Rank
	TrendLookback  int     `json:"trend_lookback"`   // Days of candles for EMA-50 trend
	EMASpan        int     `json:"ema_span"`
}

type ProfileConfig struct {
	LookbackDays int     `json:"lookback_days"`  // Days of candles for the profile
	ValueAreaPct float64 `json:"value_area_pct"` // Value Area accumulates this % of volume
	HVNMult      float64 `json:"hvn_multiplier"` // HVN >= this x mean bin volume
	MinADV       float64 `json:"min_adv"`        // Skip instruments below this avg daily volume
}

type SpreadConfig struct {
	WidthStrikes int     `json:"width_strikes"` // Number of strikes between legs
	SLPct        float64 `json:"sl_pct"`        // SL at this % of credit (100 = premium doubles)
	TargetPct    float64 `json:"target_pct"`    // Target at this % of credit collected
	RiskFreeRate float64 `json:"risk_free_rate"`
}

type WatchdogConfig struct {
	PollInterval   time.Duration `json:"poll_interval"`
	SquareOffTime  string        `json:"square_off_time"` // Expiry-day force-close cutoff, "HH:MM"
	MarketTimezone string        `json:"market_timezone"`
}

type RiskConfig struct {
	CapitalRiskLimitPct float64 `json:"capital_risk_limit_pct"` // Max % of capital per trade
	NiftyCrashPct       float64 `json:"nifty_crash_pct"`        // Kill switch if Nifty down more
	BidAskSpreadPct     float64 `json:"bid_ask_spread_pct"`     // Skip if spread wider than this
	MinCapital          float64 `json:"min_capital"`
}

type LoggingConfig struct {
	Level   string `json:"level"`   // debug, info, warn, error
	Output  string `json:"output"`  // stdout, stderr, or file path
	Console bool   `json:"console"` // Human-readable console writer instead of JSON
}

func Load() (*Config, error) {
	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = Default()
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// Default returns a config with the documented trading parameters.
func Default() *Config {
	return &Config{
		KiteConfig: KiteConfig{
			BaseURL:     "https://api.kite.trade",
			MaxRetries:  5,
			RequestRate: 3,
		},
		RedisConfig: RedisConfig{
			Address: "localhost:6379",
		},
		ScannerConfig: ScannerConfig{
			MinScore:       50,
			MaxCandidates:  5,
			WorkerCount:    10,
			IVPMinDays:     30,
			HVWindow:       20,
			HVLookbackDays: 365,
			TrendLookback:  120,
			EMASpan:        50,
		},
		ProfileConfig: ProfileConfig{
			LookbackDays: 60,
			ValueAreaPct: 70,
			HVNMult:      1.5,
			MinADV:       500_000,
		},
		SpreadConfig: SpreadConfig{
			WidthStrikes: 1,
			SLPct:        100,
			TargetPct:    50,
			RiskFreeRate: 0.07,
		},
		WatchdogConfig: WatchdogConfig{
			PollInterval:   3 * time.Minute,
			SquareOffTime:  "14:30",
			MarketTimezone: "Asia/Kolkata",
		},
		RiskConfig: RiskConfig{
			CapitalRiskLimitPct: 10,
			NiftyCrashPct:       2,
			BidAskSpreadPct:     5,
			MinCapital:          25_000,
		},
		LoggingConfig: LoggingConfig{
			Level:  "info",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the config.
// Credentials are only ever read from the environment, never from config.json.
func applyEnvOverrides(cfg *Config) {
	cfg.KiteConfig.APIKey = getEnvOrDefault("KITE_API_KEY", cfg.KiteConfig.APIKey)
	cfg.KiteConfig.APISecret = getEnvOrDefault("KITE_API_SECRET", cfg.KiteConfig.APISecret)
	cfg.KiteConfig.AccessToken = getEnvOrDefault("KITE_ACCESS_TOKEN", cfg.KiteConfig.AccessToken)
	cfg.KiteConfig.BaseURL = getEnvOrDefault("KITE_BASE_URL", cfg.KiteConfig.BaseURL)
	if cfg.KiteConfig.BaseURL == "" {
		cfg.KiteConfig.BaseURL = "https://api.kite.trade"
	}
	cfg.KiteConfig.MaxRetries = getEnvIntOrDefault("KITE_MAX_RETRIES", cfg.KiteConfig.MaxRetries)
	cfg.KiteConfig.MockMode = getEnvOrDefault("KITE_MOCK_MODE", "false") == "true"

	cfg.DatabaseConfig.URL = getEnvOrDefault("DATABASE_URL", cfg.DatabaseConfig.URL)

	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", boolString(cfg.RedisConfig.Enabled)) == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)

	cfg.ScannerConfig.MinScore = getEnvFloatOrDefault("SCANNER_MIN_SCORE", cfg.ScannerConfig.MinScore)
	cfg.ScannerConfig.MaxCandidates = getEnvIntOrDefault("SCANNER_MAX_CANDIDATES", cfg.ScannerConfig.MaxCandidates)
	cfg.ScannerConfig.WorkerCount = getEnvIntOrDefault("SCANNER_WORKER_COUNT", cfg.ScannerConfig.WorkerCount)

	cfg.WatchdogConfig.PollInterval = getEnvDurationOrDefault("WATCHDOG_POLL_INTERVAL", cfg.WatchdogConfig.PollInterval)
	cfg.WatchdogConfig.SquareOffTime = getEnvOrDefault("WATCHDOG_SQUARE_OFF_TIME", cfg.WatchdogConfig.SquareOffTime)

	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", cfg.LoggingConfig.Output)
	cfg.LoggingConfig.Console = getEnvOrDefault("LOG_CONSOLE", boolString(cfg.LoggingConfig.Console)) == "true"
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(file, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
