// Command ivlogger records one ATM IV snapshot per F&O symbol for the day.
// Meant to run once daily near the close, from cron.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"iv-sniper-bot/config"
	"iv-sniper-bot/internal/cache"
	"iv-sniper-bot/internal/database"
	"iv-sniper-bot/internal/ivlogger"
	"iv-sniper-bot/internal/kite"
	"iv-sniper-bot/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := logging.New(cfg.LoggingConfig)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var md kite.MarketData
	if cfg.KiteConfig.MockMode {
		logger.Warn().Msg("mock mode enabled, using simulated market data")
		md = kite.NewSimulatedClient()
	} else {
		md = kite.NewClient(cfg.KiteConfig, logger)
	}

	if cfg.DatabaseConfig.URL == "" {
		logger.Fatal().Msg("DATABASE_URL is required")
	}
	db, err := database.NewDB(ctx, cfg.DatabaseConfig.URL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()
	if err := db.RunMigrations(ctx); err != nil {
		logger.Fatal().Err(err).Msg("migrations failed")
	}
	repo := database.NewRepository(db)

	var instrumentCache kite.InstrumentCache
	if c := cache.New(cfg.RedisConfig, logger); c != nil {
		defer c.Close()
		instrumentCache = c
	}
	master := kite.NewMaster(md, instrumentCache, logger)

	runner := ivlogger.New(md, master, repo, ivlogger.Config{
		RiskFreeRate: cfg.SpreadConfig.RiskFreeRate,
		HVWindow:     cfg.ScannerConfig.HVWindow,
	}, logger)

	recorded, err := runner.Run(ctx)
	if err != nil {
		logger.Fatal().Err(err).Int("recorded", recorded).Msg("IV logging run failed")
	}
	logger.Info().Int("recorded", recorded).Msg("done")
}
