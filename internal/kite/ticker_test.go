package kite

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/rs/zerolog"
)

func ltpPacket(token int, pricePaise uint32) []byte {
	packet := make([]byte, 8)
	binary.BigEndian.PutUint32(packet[0:4], uint32(token))
	binary.BigEndian.PutUint32(packet[4:8], pricePaise)
	return packet
}

func tickFrame(packets ...[]byte) []byte {
	frame := make([]byte, 2)
	binary.BigEndian.PutUint16(frame, uint16(len(packets)))
	for _, p := range packets {
		length := make([]byte, 2)
		binary.BigEndian.PutUint16(length, uint16(len(p)))
		frame = append(frame, length...)
		frame = append(frame, p...)
	}
	return frame
}

func TestParseBinaryLTPFrame(t *testing.T) {
	ticker := NewTicker("key", "token", []int{256265}, zerolog.Nop())

	// 24,913.70 arrives as paise.
	ticker.parseBinary(tickFrame(ltpPacket(256265, 2_491_370)))

	price, ok := ticker.LastPrice(256265)
	if !ok {
		t.Fatal("expected a price after parsing the frame")
	}
	if price != 24_913.70 {
		t.Errorf("price = %.2f, want 24913.70", price)
	}
}

func TestParseBinaryMultiplePackets(t *testing.T) {
	ticker := NewTicker("key", "token", nil, zerolog.Nop())

	ticker.parseBinary(tickFrame(
		ltpPacket(100, 12_345),
		ltpPacket(200, 67_890),
	))

	if price, _ := ticker.LastPrice(100); price != 123.45 {
		t.Errorf("token 100 price = %.2f, want 123.45", price)
	}
	if price, _ := ticker.LastPrice(200); price != 678.90 {
		t.Errorf("token 200 price = %.2f, want 678.90", price)
	}
}

func TestParseBinaryIgnoresMalformedFrames(t *testing.T) {
	ticker := NewTicker("key", "token", nil, zerolog.Nop())

	ticker.parseBinary(nil)
	ticker.parseBinary([]byte{0x00})
	// Declares one packet but truncates its body.
	ticker.parseBinary([]byte{0x00, 0x01, 0x00, 0x08, 0x01, 0x02})

	if _, ok := ticker.LastPrice(0); ok {
		t.Error("malformed frames must not record prices")
	}
}

func TestMasterFnOUnderlyingsDeduplicates(t *testing.T) {
	mc := NewMockClient()
	mc.ByExchange["NFO"] = []Instrument{
		{Name: "AAA", Segment: "NFO-FUT", InstrumentType: InstrumentFUT, InstrumentToken: 1},
		{Name: "AAA", Segment: "NFO-FUT", InstrumentType: InstrumentFUT, InstrumentToken: 2}, // next month
		{Name: "BBB", Segment: "NFO-FUT", InstrumentType: InstrumentFUT, InstrumentToken: 3},
		{Name: "AAA", Segment: "NFO-OPT", InstrumentType: InstrumentCE, InstrumentToken: 4},
	}

	master := NewMaster(mc, nil, zerolog.Nop())
	underlyings, err := master.FnOUnderlyings(context.Background())
	if err != nil {
		t.Fatalf("FnOUnderlyings: %v", err)
	}
	if len(underlyings) != 2 {
		t.Fatalf("underlyings = %d, want 2 after dedup", len(underlyings))
	}
	if underlyings[0].Symbol != "AAA" || underlyings[1].Symbol != "BBB" {
		t.Errorf("underlyings = %+v", underlyings)
	}
}

func TestMasterOptionChainFiltersByName(t *testing.T) {
	mc := NewMockClient()
	mc.ByExchange["NFO"] = []Instrument{
		{Name: "AAA", InstrumentType: InstrumentCE, Strike: 100},
		{Name: "AAA", InstrumentType: InstrumentPE, Strike: 100},
		{Name: "AAA", InstrumentType: InstrumentFUT, Segment: "NFO-FUT"},
		{Name: "BBB", InstrumentType: InstrumentCE, Strike: 50},
	}

	master := NewMaster(mc, nil, zerolog.Nop())
	chain, err := master.OptionChain(context.Background(), "AAA")
	if err != nil {
		t.Fatalf("OptionChain: %v", err)
	}
	if len(chain) != 2 {
		t.Errorf("chain = %d instruments, want the two AAA options", len(chain))
	}
}
