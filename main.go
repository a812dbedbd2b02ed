package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"iv-sniper-bot/config"
	"iv-sniper-bot/internal/analyst"
	"iv-sniper-bot/internal/cache"
	"iv-sniper-bot/internal/database"
	"iv-sniper-bot/internal/kite"
	"iv-sniper-bot/internal/logging"
	"iv-sniper-bot/internal/profile"
	"iv-sniper-bot/internal/risk"
	"iv-sniper-bot/internal/scanner"
	"iv-sniper-bot/internal/strikes"
	"iv-sniper-bot/internal/volatility"
	"iv-sniper-bot/internal/watchdog"
)

// niftyIndexToken is the NSE instrument token for the NIFTY 50 index.
const niftyIndexToken = 256265

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := logging.New(cfg.LoggingConfig)
	logger.Info().Msg("iv-sniper-bot starting")

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

	scorer := volatility.NewScorer(md, volatility.ScorerConfig{
		IVPMinDays:     cfg.ScannerConfig.IVPMinDays,
		HVWindow:       cfg.ScannerConfig.HVWindow,
		HVLookbackDays: cfg.ScannerConfig.HVLookbackDays,
	}, logger)

	scan := scanner.NewScanner(md, master, scorer, repo, repo, scanner.Config{
		MinScore:      cfg.ScannerConfig.MinScore,
		MaxCandidates: cfg.ScannerConfig.MaxCandidates,
		WorkerCount:   cfg.ScannerConfig.WorkerCount,
		TrendLookback: cfg.ScannerConfig.TrendLookback,
		EMASpan:       cfg.ScannerConfig.EMASpan,
	}, logger)

	engine := profile.NewEngine(profile.Config{
		ValueAreaPct: cfg.ProfileConfig.ValueAreaPct,
		HVNMult:      cfg.ProfileConfig.HVNMult,
		MinADV:       cfg.ProfileConfig.MinADV,
	}, logger)
	selector := strikes.NewSelector(logger)

	analyze := analyst.New(md, master, engine, selector, analyst.Config{
		LookbackDays: cfg.ProfileConfig.LookbackDays,
		WidthStrikes: cfg.SpreadConfig.WidthStrikes,
		SLPct:        cfg.SpreadConfig.SLPct,
		TargetPct:    cfg.SpreadConfig.TargetPct,
	}, logger)

	// Stream the index so the crash kill switch sees intraday moves
	// between polls.
	var prices risk.PriceSource
	if !cfg.KiteConfig.MockMode {
		ticker := kite.NewTicker(cfg.KiteConfig.APIKey, cfg.KiteConfig.AccessToken, []int{niftyIndexToken}, logger)
		ticker.Start()
		defer ticker.Stop()
		prices = ticker
	}
	guard := risk.NewGuard(md, prices, risk.Config{
		CapitalRiskLimitPct: cfg.RiskConfig.CapitalRiskLimitPct,
		NiftyCrashPct:       cfg.RiskConfig.NiftyCrashPct,
		BidAskSpreadPct:     cfg.RiskConfig.BidAskSpreadPct,
		MinCapital:          cfg.RiskConfig.MinCapital,
	}, logger)

	result, err := scan.Scan(ctx, func(processed, total int, message string, qualified int) {
		logger.Debug().Int("processed", processed).Int("total", total).
			Int("qualified", qualified).Str("symbol", message).Msg("scan progress")
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("scan failed")
	}

	for _, rec := range analyze.AnalyzeAll(ctx, result.Qualified) {
		if err := guard.ApproveTrade(ctx, &rec); err != nil {
			logger.Warn().Str("symbol", rec.Candidate.Symbol).Err(err).Msg("trade rejected")
			continue
		}
		tradeID, err := repo.OpenTrade(ctx, &rec)
		if err != nil {
			logger.Error().Str("symbol", rec.Candidate.Symbol).Err(err).Msg("failed to record trade")
			continue
		}
		logger.Info().
			Str("trade_id", tradeID).
			Str("symbol", rec.Candidate.Symbol).
			Str("spread", string(rec.Spread.Type)).
			Float64("net_credit", rec.Economics.NetCredit).
			Float64("max_loss", rec.Economics.MaxLoss).
			Msg("trade opened")
	}

	monitor := watchdog.NewMonitor(md, repo, watchdog.Config{
		PollInterval:   cfg.WatchdogConfig.PollInterval,
		SquareOffTime:  cfg.WatchdogConfig.SquareOffTime,
		MarketTimezone: cfg.WatchdogConfig.MarketTimezone,
	}, logger)
	monitor.Run(ctx)

	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("shutdown")
	}
	logger.Info().Msg("iv-sniper-bot stopped")
}
