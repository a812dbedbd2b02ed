package kite

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"iv-sniper-bot/config"
)

// ErrRateLimited marks a request rejected by the exchange rate limiter.
// The client retries these internally; seeing it from a public method means
// the retry budget is exhausted.
var ErrRateLimited = errors.New("kite: rate limited")

const kiteVersion = "3"

// Client is an HTTP client for the Kite Connect v3 API with client-side
// throttling and exponential-backoff retry on rate-limit responses.
type Client struct {
	baseURL     string
	apiKey      string
	accessToken string
	maxRetries  uint64
	httpClient  *http.Client
	limiter     *rate.Limiter
	logger      zerolog.Logger
}

// NewClient creates a Kite Connect client from config.
func NewClient(cfg config.KiteConfig, logger zerolog.Logger) *Client {
	reqRate := cfg.RequestRate
	if reqRate <= 0 {
		reqRate = 3
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		accessToken: cfg.AccessToken,
		maxRetries:  uint64(maxRetries),
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		limiter:     rate.NewLimiter(rate.Limit(reqRate), 1),
		logger:      logger.With().Str("component", "KiteClient").Logger(),
	}
}

// SetAccessToken replaces the session token (e.g. after a fresh login).
func (c *Client) SetAccessToken(token string) {
	c.accessToken = token
}

type envelope struct {
	Status    string          `json:"status"`
	Data      json.RawMessage `json:"data"`
	Message   string          `json:"message"`
	ErrorType string          `json:"error_type"`
}

// get performs a throttled GET and decodes the standard response envelope.
// Rate-limit responses (HTTP 429 or NetworkException) are retried with
// exponential backoff up to maxRetries; anything else fails immediately.
func (c *Client) get(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	var data json.RawMessage

	op := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		endpoint := c.baseURL + path
		if len(params) > 0 {
			endpoint += "?" + params.Encode()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("X-Kite-Version", kiteVersion)
		req.Header.Set("Authorization", "token "+c.apiKey+":"+c.accessToken)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return backoff.Permanent(err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(err)
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
			c.logger.Warn().Str("path", path).Int("status", resp.StatusCode).Msg("rate limited, backing off")
			return fmt.Errorf("%w: HTTP %d", ErrRateLimited, resp.StatusCode)
		}

		// Instrument dumps come back as CSV, not enveloped JSON.
		if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/csv") {
			if resp.StatusCode != http.StatusOK {
				return backoff.Permanent(fmt.Errorf("kite: %s returned HTTP %d", path, resp.StatusCode))
			}
			data = body
			return nil
		}

		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			return backoff.Permanent(fmt.Errorf("kite: decoding %s: %w", path, err))
		}
		if env.Status != "success" {
			if strings.Contains(env.Message, "Too many requests") || env.ErrorType == "NetworkException" {
				return fmt.Errorf("%w: %s", ErrRateLimited, env.Message)
			}
			return backoff.Permanent(fmt.Errorf("kite: %s: %s (%s)", path, env.Message, env.ErrorType))
		}
		data = env.Data
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return data, nil
}

// HistoricalData fetches daily candles for the trailing lookbackDays.
func (c *Client) HistoricalData(ctx context.Context, instrumentToken int, interval string, lookbackDays int) ([]Candle, error) {
	to := time.Now()
	from := to.AddDate(0, 0, -lookbackDays)

	params := url.Values{}
	params.Set("from", from.Format("2006-01-02 15:04:05"))
	params.Set("to", to.Format("2006-01-02 15:04:05"))

	path := fmt.Sprintf("/instruments/historical/%d/%s", instrumentToken, interval)
	data, err := c.get(ctx, path, params)
	if err != nil {
		return nil, err
	}

	// Candles arrive as positional arrays: [timestamp, o, h, l, c, volume].
	var payload struct {
		Candles [][]json.RawMessage `json:"candles"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("kite: decoding candles: %w", err)
	}

	candles := make([]Candle, 0, len(payload.Candles))
	for _, row := range payload.Candles {
		if len(row) < 6 {
			continue
		}
		var ts string
		if err := json.Unmarshal(row[0], &ts); err != nil {
			continue
		}
		date, err := time.Parse("2006-01-02T15:04:05-0700", ts)
		if err != nil {
			date, err = time.Parse(time.RFC3339, ts)
			if err != nil {
				continue
			}
		}
		var ohlcv [5]float64
		ok := true
		for i := 0; i < 5; i++ {
			if err := json.Unmarshal(row[i+1], &ohlcv[i]); err != nil {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		candles = append(candles, Candle{
			Date:   date,
			Open:   ohlcv[0],
			High:   ohlcv[1],
			Low:    ohlcv[2],
			Close:  ohlcv[3],
			Volume: ohlcv[4],
		})
	}
	return candles, nil
}

// LTP returns last traded prices keyed by "EXCHANGE:TRADINGSYMBOL".
func (c *Client) LTP(ctx context.Context, symbols []string) (map[string]float64, error) {
	params := url.Values{}
	for _, s := range symbols {
		params.Add("i", s)
	}
	data, err := c.get(ctx, "/quote/ltp", params)
	if err != nil {
		return nil, err
	}

	var payload map[string]struct {
		LastPrice float64 `json:"last_price"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("kite: decoding ltp: %w", err)
	}

	out := make(map[string]float64, len(payload))
	for sym, q := range payload {
		out[sym] = q.LastPrice
	}
	return out, nil
}

// Quote returns full quotes keyed by "EXCHANGE:TRADINGSYMBOL".
func (c *Client) Quote(ctx context.Context, symbols []string) (map[string]Quote, error) {
	params := url.Values{}
	for _, s := range symbols {
		params.Add("i", s)
	}
	data, err := c.get(ctx, "/quote", params)
	if err != nil {
		return nil, err
	}

	var payload map[string]struct {
		LastPrice         float64 `json:"last_price"`
		Volume            float64 `json:"volume"`
		OI                float64 `json:"oi"`
		UpperCircuitLimit float64 `json:"upper_circuit_limit"`
		LowerCircuitLimit float64 `json:"lower_circuit_limit"`
		OHLC              OHLC    `json:"ohlc"`
		Depth             struct {
			Buy  []struct{ Price float64 `json:"price"` } `json:"buy"`
			Sell []struct{ Price float64 `json:"price"` } `json:"sell"`
		} `json:"depth"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("kite: decoding quote: %w", err)
	}

	out := make(map[string]Quote, len(payload))
	for sym, q := range payload {
		quote := Quote{
			LastPrice:         q.LastPrice,
			OHLC:              q.OHLC,
			Volume:            q.Volume,
			OI:                q.OI,
			UpperCircuitLimit: q.UpperCircuitLimit,
			LowerCircuitLimit: q.LowerCircuitLimit,
		}
		if len(q.Depth.Buy) > 0 {
			quote.BestBid = q.Depth.Buy[0].Price
		}
		if len(q.Depth.Sell) > 0 {
			quote.BestAsk = q.Depth.Sell[0].Price
		}
		out[sym] = quote
	}
	return out, nil
}

// Instruments fetches and parses the CSV instrument dump for an exchange.
func (c *Client) Instruments(ctx context.Context, exchange string) ([]Instrument, error) {
	data, err := c.get(ctx, "/instruments/"+exchange, nil)
	if err != nil {
		return nil, err
	}
	return parseInstrumentsCSV(data)
}

// Margins fetches the equity-segment account margin snapshot.
func (c *Client) Margins(ctx context.Context) (*Margins, error) {
	data, err := c.get(ctx, "/user/margins", nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Equity struct {
			Net       float64 `json:"net"`
			Available struct {
				LiveBalance float64 `json:"live_balance"`
			} `json:"available"`
			Utilised struct {
				Debits float64 `json:"debits"`
			} `json:"utilised"`
		} `json:"equity"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("kite: decoding margins: %w", err)
	}
	return &Margins{
		Net:       payload.Equity.Net,
		Available: payload.Equity.Available.LiveBalance,
		Utilised:  payload.Equity.Utilised.Debits,
	}, nil
}

// parseInstrumentsCSV parses the exchange dump. Header:
// instrument_token,exchange_token,tradingsymbol,name,last_price,expiry,
// strike,tick_size,lot_size,instrument_type,segment,exchange
func parseInstrumentsCSV(data []byte) ([]Instrument, error) {
	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("kite: parsing instrument dump: %w", err)
	}
	if len(records) < 2 {
		return nil, nil
	}

	col := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		col[name] = i
	}

	field := func(row []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return row[idx]
	}

	instruments := make([]Instrument, 0, len(records)-1)
	for _, row := range records[1:] {
		token, _ := strconv.Atoi(field(row, "instrument_token"))
		exToken, _ := strconv.Atoi(field(row, "exchange_token"))
		strike, _ := strconv.ParseFloat(field(row, "strike"), 64)
		lotSize, _ := strconv.Atoi(field(row, "lot_size"))

		var expiry time.Time
		if raw := field(row, "expiry"); raw != "" {
			expiry, _ = time.Parse("2006-01-02", raw)
		}

		instruments = append(instruments, Instrument{
			InstrumentToken: token,
			ExchangeToken:   exToken,
			Tradingsymbol:   field(row, "tradingsymbol"),
			Name:            field(row, "name"),
			Expiry:          expiry,
			Strike:          strike,
			InstrumentType:  field(row, "instrument_type"),
			Segment:         field(row, "segment"),
			Exchange:        field(row, "exchange"),
			LotSize:         lotSize,
		})
	}
	return instruments, nil
}
