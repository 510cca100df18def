package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/spreadwatch/internal/domain"
)

type fakeBus struct {
	mu        sync.Mutex
	published map[string][][]byte
}

func (f *fakeBus) Publish(ctx context.Context, channel string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.published == nil {
		f.published = make(map[string][][]byte)
	}
	f.published[channel] = append(f.published[channel], payload)
	return nil
}

func (f *fakeBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (f *fakeBus) count(channel string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published[channel])
}

func (f *fakeBus) last(channel string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.published[channel]
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal("condition never became true")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestPublisherRoutesEventsToChannels(t *testing.T) {
	bus := &fakeBus{}
	p := NewPublisher(bus, 16, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	p.PublishQuote(domain.Quote{
		Venue:      "binance",
		MarketType: domain.MarketSpot,
		Symbol:     "BTC/USDT",
		BestAsk:    decimal.RequireFromString("100.01"),
		BestBid:    decimal.RequireFromString("99.99"),
		ReceivedAt: time.Now().UTC(),
	})
	p.PublishOpportunity(domain.ArbitrageOpportunity{
		ID:         "op-1",
		BaseSymbol: "BTC/USDT",
		Direction:  domain.SpotToFuture,
	})
	p.PublishStatus([]domain.ConnectorState{{Venue: "binance", StatusName: "connected"}})

	waitFor(t, func() bool {
		return bus.count(domain.ChannelQuotes) == 1 &&
			bus.count(domain.ChannelOpportunities) == 1 &&
			bus.count(domain.ChannelStatus) == 1
	})

	var envelope struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(bus.last(domain.ChannelOpportunities), &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.Type != "opportunity" {
		t.Errorf("type = %q, want opportunity", envelope.Type)
	}
	var opp domain.ArbitrageOpportunity
	if err := json.Unmarshal(envelope.Payload, &opp); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if opp.ID != "op-1" {
		t.Errorf("payload id = %q, want op-1", opp.ID)
	}
}

func TestPublisherDropsWhenQueueFull(t *testing.T) {
	bus := &fakeBus{}
	p := NewPublisher(bus, 1, testLogger())
	// Run is intentionally not started: nothing drains the queue.

	for i := 0; i < 5; i++ {
		p.PublishOpportunity(domain.ArbitrageOpportunity{ID: "x"})
	}

	if got := p.Dropped(); got != 4 {
		t.Errorf("dropped = %d, want 4", got)
	}
}
