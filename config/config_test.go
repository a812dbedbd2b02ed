package config

import (
	"testing"
	"time"
)

func TestDefaultCarriesTradingParameters(t *testing.T) {
	cfg := Default()

	if cfg.ScannerConfig.MinScore != 50 {
		t.Errorf("min score = %.0f, want 50", cfg.ScannerConfig.MinScore)
	}
	if cfg.ScannerConfig.IVPMinDays != 30 {
		t.Errorf("IVP min days = %d, want 30", cfg.ScannerConfig.IVPMinDays)
	}
	// The HV Rank fallback normalises against a full year of candles. The
	// lookback is calendar days, so anything shorter than 365 silently
	// shrinks the min/max range.
	if cfg.ScannerConfig.HVLookbackDays != 365 {
		t.Errorf("HV lookback = %d calendar days, want 365", cfg.ScannerConfig.HVLookbackDays)
	}
	if cfg.ProfileConfig.ValueAreaPct != 70 {
		t.Errorf("value area = %.0f%%, want 70", cfg.ProfileConfig.ValueAreaPct)
	}
	if cfg.ProfileConfig.HVNMult != 1.5 {
		t.Errorf("HVN multiplier = %.1f, want 1.5", cfg.ProfileConfig.HVNMult)
	}
	if cfg.SpreadConfig.SLPct != 100 || cfg.SpreadConfig.TargetPct != 50 {
		t.Errorf("exit levels = %.0f/%.0f, want 100/50", cfg.SpreadConfig.SLPct, cfg.SpreadConfig.TargetPct)
	}
	if cfg.WatchdogConfig.SquareOffTime != "14:30" {
		t.Errorf("square-off = %s, want 14:30", cfg.WatchdogConfig.SquareOffTime)
	}
	if cfg.WatchdogConfig.PollInterval != 3*time.Minute {
		t.Errorf("poll interval = %s, want 3m", cfg.WatchdogConfig.PollInterval)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("KITE_API_KEY", "test-key")
	t.Setenv("SCANNER_MIN_SCORE", "65.5")
	t.Setenv("WATCHDOG_POLL_INTERVAL", "90s")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Default()
	applyEnvOverrides(cfg)

	if cfg.KiteConfig.APIKey != "test-key" {
		t.Errorf("api key = %q, want env value", cfg.KiteConfig.APIKey)
	}
	if cfg.ScannerConfig.MinScore != 65.5 {
		t.Errorf("min score = %.1f, want 65.5", cfg.ScannerConfig.MinScore)
	}
	if cfg.WatchdogConfig.PollInterval != 90*time.Second {
		t.Errorf("poll interval = %s, want 90s", cfg.WatchdogConfig.PollInterval)
	}
	if cfg.LoggingConfig.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.LoggingConfig.Level)
	}
}

func TestEnvOverridesIgnoreMalformedValues(t *testing.T) {
	t.Setenv("SCANNER_WORKER_COUNT", "lots")

	cfg := Default()
	applyEnvOverrides(cfg)

	if cfg.ScannerConfig.WorkerCount != 10 {
		t.Errorf("worker count = %d, want default 10 kept", cfg.ScannerConfig.WorkerCount)
	}
}
