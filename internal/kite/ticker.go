package kite

import (
	"context"
	"encoding/binary"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Ticker streams live LTP ticks over the Kite websocket feed. The bot uses
// it for the index kill-switch feed; REST quotes remain the fallback when
// the stream is down.
type Ticker struct {
	wsURL  string
	tokens []int
	logger zerolog.Logger

	mu     sync.RWMutex
	prices map[int]float64

	cancel context.CancelFunc
	done   chan struct{}
}

// NewTicker creates a ticker subscribed to the given instrument tokens.
func NewTicker(apiKey, accessToken string, tokens []int, logger zerolog.Logger) *Ticker {
	q := url.Values{}
	q.Set("api_key", apiKey)
	q.Set("access_token", accessToken)
	return &Ticker{
		wsURL:  "wss://ws.kite.trade?" + q.Encode(),
		tokens: tokens,
		logger: logger.With().Str("component", "Ticker").Logger(),
		prices: make(map[int]float64),
	}
}

// Start connects and begins streaming in the background, reconnecting on
// failure until Stop is called.
func (t *Ticker) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.done = make(chan struct{})

	go func() {
		defer close(t.done)
		for {
			if err := t.stream(ctx); err != nil {
				t.logger.Warn().Err(err).Msg("ticker stream ended, reconnecting")
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
		}
	}()
}

// Stop closes the stream and waits for the reader to exit.
func (t *Ticker) Stop() {
	if t.cancel == nil {
		return
	}
	t.cancel()
	<-t.done
}

// LastPrice returns the latest streamed LTP for a token.
func (t *Ticker) LastPrice(token int) (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	price, ok := t.prices[token]
	return price, ok
}

func (t *Ticker) stream(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	sub := map[string]interface{}{"a": "subscribe", "v": t.tokens}
	if err := conn.WriteJSON(sub); err != nil {
		return err
	}
	mode := map[string]interface{}{"a": "mode", "v": []interface{}{"ltp", t.tokens}}
	if err := conn.WriteJSON(mode); err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		t.parseBinary(data)
	}
}

// parseBinary decodes a Kite binary tick frame: a 2-byte packet count, then
// per packet a 2-byte length prefix. LTP-mode packets carry the instrument
// token and the price in paise as big-endian uint32s.
func (t *Ticker) parseBinary(data []byte) {
	if len(data) < 2 {
		return
	}
	count := int(binary.BigEndian.Uint16(data[0:2]))
	offset := 2

	for i := 0; i < count; i++ {
		if offset+2 > len(data) {
			return
		}
		packetLen := int(binary.BigEndian.Uint16(data[offset : offset+2]))
		offset += 2
		if offset+packetLen > len(data) || packetLen < 8 {
			return
		}

		packet := data[offset : offset+packetLen]
		token := int(binary.BigEndian.Uint32(packet[0:4]))
		ltp := float64(binary.BigEndian.Uint32(packet[4:8])) / 100.0

		t.mu.Lock()
		t.prices[token] = ltp
		t.mu.Unlock()

		offset += packetLen
	}
}
