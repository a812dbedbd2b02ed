// Package scanner runs the concurrent volatility scan over the F&O
// universe and ranks the qualifying credit-spread candidates.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"iv-sniper-bot/internal/kite"
	"iv-sniper-bot/internal/trend"
	"iv-sniper-bot/internal/volatility"
)

// Index underlyings are excluded from the equity scan.
var indexUnderlyings = map[string]bool{
	"NIFTY":      true,
	"BANKNIFTY":  true,
	"FINNIFTY":   true,
	"MIDCPNIFTY": true,
	"NIFTYNXT50": true,
}

// Scanner orchestrates scoring across the full symbol universe with a
// bounded worker pool. Per-symbol failures are logged and skipped; they
// never abort the batch.
type Scanner struct {
	md     kite.MarketData
	master *kite.Master
	scorer *volatility.Scorer
	ivs    IVStore
	store  ScanStore // optional
	cfg    Config
	logger zerolog.Logger
}

// NewScanner creates a scan orchestrator. store may be nil to skip
// persistence.
func NewScanner(md kite.MarketData, master *kite.Master, scorer *volatility.Scorer, ivs IVStore, store ScanStore, cfg Config, logger zerolog.Logger) *Scanner {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 10
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = 5
	}
	if cfg.TrendLookback <= 0 {
		cfg.TrendLookback = 120
	}
	if cfg.EMASpan <= 0 {
		cfg.EMASpan = 50
	}
	if cfg.MaxJitter <= 0 {
		cfg.MinJitter = 100 * time.Millisecond
		cfg.MaxJitter = time.Second
	}
	return &Scanner{
		md:     md,
		master: master,
		scorer: scorer,
		ivs:    ivs,
		store:  store,
		cfg:    cfg,
		logger: logger.With().Str("component", "Scanner").Logger(),
	}
}

type outcome struct {
	symbol    string
	candidate *Candidate
	err       error
}

// Scan evaluates the whole universe and returns the ranked result.
// Cancelling ctx abandons the scan; every already-completed symbol result
// remains valid.
func (s *Scanner) Scan(ctx context.Context, progress ProgressFunc) (*Result, error) {
	start := time.Now()
	scanID := uuid.NewString()
	logger := s.logger.With().Str("scan_id", scanID).Logger()

	// A dead session fails every symbol; check once up front.
	if _, err := s.md.Margins(ctx); err != nil {
		return nil, fmt.Errorf("scanner: access token validation failed: %w", err)
	}

	underlyings, err := s.master.FnOUnderlyings(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanner: fetching F&O universe: %w", err)
	}
	tokenMap, err := s.master.NSETokenMap(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanner: building NSE token map: %w", err)
	}

	var symbols []string
	for _, u := range underlyings {
		if !indexUnderlyings[u.Symbol] {
			symbols = append(symbols, u.Symbol)
		}
	}

	logger.Info().Int("symbols", len(symbols)).Float64("min_score", s.cfg.MinScore).Msg("starting scan")

	symbolChan := make(chan string, len(symbols))
	outcomeChan := make(chan outcome, len(symbols))

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.WorkerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range symbolChan {
				select {
				case <-ctx.Done():
					return
				default:
				}
				candidate, err := s.evaluateSymbol(ctx, symbol, tokenMap)
				outcomeChan <- outcome{symbol: symbol, candidate: candidate, err: err}
			}
		}()
	}

	for _, symbol := range symbols {
		symbolChan <- symbol
	}
	close(symbolChan)

	go func() {
		wg.Wait()
		close(outcomeChan)
	}()

	// Aggregate on this goroutine only; workers never touch shared state.
	result := &Result{
		ScanID:         scanID,
		StartTime:      start,
		SymbolsScanned: len(symbols),
	}
	processed := 0
	qualified := 0

	for out := range outcomeChan {
		processed++
		message := out.symbol

		switch {
		case out.err != nil:
			logger.Warn().Str("symbol", out.symbol).Err(out.err).Msg("symbol skipped")
			message = out.symbol + ": skipped"
		case out.candidate != nil:
			result.Evaluated = append(result.Evaluated, *out.candidate)
			if out.candidate.Qualified {
				qualified++
				logger.Info().
					Str("symbol", out.candidate.Symbol).
					Str("method", string(out.candidate.Method)).
					Float64("score", out.candidate.Score).
					Str("trend", string(out.candidate.Trend)).
					Msg("candidate qualified")
			}
		}

		if progress != nil {
			progress(processed, len(symbols), message, qualified)
		}
	}

	for _, c := range result.Evaluated {
		if c.Qualified {
			result.Qualified = append(result.Qualified, c)
		}
	}
	sort.SliceStable(result.Qualified, func(i, j int) bool {
		return result.Qualified[i].Score > result.Qualified[j].Score
	})
	if len(result.Qualified) > s.cfg.MaxCandidates {
		result.Qualified = result.Qualified[:s.cfg.MaxCandidates]
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(start)

	logger.Info().
		Int("evaluated", len(result.Evaluated)).
		Int("qualified", qualified).
		Int("returned", len(result.Qualified)).
		Dur("duration", result.Duration).
		Msg("scan complete")

	if s.store != nil {
		if err := s.store.SaveScan(ctx, result); err != nil {
			logger.Error().Err(err).Msg("saving scan history failed")
		}
	}

	return result, nil
}

// evaluateSymbol scores one symbol, fetches spot, and detects trend for
// qualifying scores. Soft failures return an error; the caller skips.
func (s *Scanner) evaluateSymbol(ctx context.Context, symbol string, tokenMap map[string]int) (*Candidate, error) {
	nseToken := tokenMap[symbol]

	// Stagger downstream calls so workers do not hit the shared rate
	// limit in lockstep.
	s.jitter(ctx)

	ivHistory, err := s.ivs.IVHistory(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("loading IV history: %w", err)
	}
	currentIV, hv20, err := s.ivs.LatestIV(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("loading latest IV: %w", err)
	}

	score, err := s.scorer.Score(ctx, symbol, ivHistory, currentIV, hv20, nseToken)
	if err != nil {
		if errors.Is(err, volatility.ErrInsufficientData) {
			return nil, err
		}
		return nil, fmt.Errorf("scoring: %w", err)
	}

	s.jitter(ctx)
	ltp, err := s.md.LTP(ctx, []string{"NSE:" + symbol})
	if err != nil {
		return nil, fmt.Errorf("fetching spot: %w", err)
	}
	spot, ok := ltp["NSE:"+symbol]
	if !ok || spot <= 0 {
		return nil, fmt.Errorf("%w: no spot price for %s", volatility.ErrInsufficientData, symbol)
	}

	candidate := &Candidate{
		Symbol:    symbol,
		Score:     score.Value,
		Method:    score.Method,
		Trend:     trend.Unknown,
		Spot:      spot,
		CurrentIV: score.CurrentIV,
		Qualified: score.Value >= s.cfg.MinScore,
	}

	// Trend detection costs a candle fetch; spend it on qualifiers only.
	if candidate.Qualified && nseToken != 0 {
		s.jitter(ctx)
		candles, err := s.md.HistoricalData(ctx, nseToken, "day", s.cfg.TrendLookback)
		if err != nil {
			s.logger.Warn().Str("symbol", symbol).Err(err).Msg("trend detection failed")
		} else {
			detected := trend.Detect(candles, spot, s.cfg.EMASpan)
			candidate.Trend = detected.Trend
			candidate.EMA50 = detected.EMA
		}
	}

	return candidate, nil
}

func (s *Scanner) jitter(ctx context.Context) {
	if s.cfg.MaxJitter <= 0 {
		return
	}
	span := s.cfg.MaxJitter - s.cfg.MinJitter
	delay := s.cfg.MinJitter
	if span > 0 {
		delay += time.Duration(rand.Int63n(int64(span)))
	}
	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}
