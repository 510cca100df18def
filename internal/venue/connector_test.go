package venue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/spreadwatch/internal/domain"
)

// testCodec speaks a trivial JSON protocol for exercising the connector
// lifecycle without a real venue.
type testCodec struct {
	url  string
	ping []byte // non-nil enables an application-level ping frame
}

type testPayload struct {
	Symbol string `json:"symbol"`
	Ask    string `json:"ask"`
	Bid    string `json:"bid"`
	Ack    bool   `json:"ack"`
}

func (c *testCodec) Venue() string                 { return "testex" }
func (c *testCodec) MarketType() domain.MarketType { return domain.MarketSpot }
func (c *testCodec) URL() string                   { return c.url }
func (c *testCodec) PingFrame() ([]byte, bool)     { return c.ping, c.ping != nil }

func (c *testCodec) SubscribeFrames(symbols []string) ([][]byte, error) {
	frame, err := json.Marshal(map[string]any{"op": "subscribe", "symbols": symbols})
	if err != nil {
		return nil, err
	}
	return [][]byte{frame}, nil
}

func (c *testCodec) Parse(raw []byte) (domain.Quote, bool, error) {
	var msg testPayload
	if err := json.Unmarshal(raw, &msg); err != nil {
		return domain.Quote{}, false, fmt.Errorf("testex: unmarshal: %w", err)
	}
	if msg.Ack {
		return domain.Quote{}, false, nil
	}
	if msg.Symbol == "" {
		return domain.Quote{}, false, errors.New("testex: message without symbol")
	}
	ask, err := decimal.NewFromString(msg.Ask)
	if err != nil {
		return domain.Quote{}, false, fmt.Errorf("testex: ask %q: %w", msg.Ask, err)
	}
	bid, err := decimal.NewFromString(msg.Bid)
	if err != nil {
		return domain.Quote{}, false, fmt.Errorf("testex: bid %q: %w", msg.Bid, err)
	}
	return domain.Quote{
		Venue:      "testex",
		MarketType: domain.MarketSpot,
		Symbol:     msg.Symbol,
		BestAsk:    ask,
		BestBid:    bid,
		ReceivedAt: time.Now().UTC(),
	}, true, nil
}

var upgrader = websocket.Upgrader{}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastConfig() Config {
	return Config{
		ReconnectDelay:       5 * time.Millisecond,
		MaxReconnectDelay:    20 * time.Millisecond,
		MaxReconnectAttempts: 3,
	}
}

// wsURL rewrites an httptest HTTP URL into a ws:// URL.
func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func TestConnectorEmitsQuotesAndSurvivesMalformedMessages(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Subscribe frame arrives first.
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}

		conn.WriteMessage(websocket.TextMessage, []byte(`{"ack":true}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`not json at all`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"symbol":"BTC/USDT","ask":"100.01","bid":"99.99"}`))

		<-release
	}))
	defer ts.Close()

	out := make(chan domain.Quote, 16)
	c := NewConnector(&testCodec{url: wsURL(ts)}, fastConfig(), out, discardLogger())
	c.Subscribe([]string{"BTC/USDT"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case q := <-out:
		if q.Symbol != "BTC/USDT" || q.Venue != "testex" {
			t.Errorf("quote = %s@%s, want BTC/USDT@testex", q.Symbol, q.Venue)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no quote received")
	}

	state := c.State()
	if state.Status != domain.StatusConnected {
		t.Errorf("status = %s, want connected", state.StatusName)
	}
	if state.MessagesDropped != 1 {
		t.Errorf("dropped = %d, want 1 (the unparsable payload)", state.MessagesDropped)
	}
	if state.QuotesAccepted != 1 {
		t.Errorf("accepted = %d, want 1", state.QuotesAccepted)
	}

	cancel()
	close(release) // lets the server drop the socket, unblocking the read loop
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestConnectorFailsAfterMaxAttempts(t *testing.T) {
	// A server that is already closed refuses every dial.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := wsURL(ts)
	ts.Close()

	out := make(chan domain.Quote, 1)
	cfg := fastConfig()
	cfg.MaxReconnectAttempts = 2
	c := NewConnector(&testCodec{url: url}, cfg, out, discardLogger())

	err := c.Run(context.Background())
	if !errors.Is(err, domain.ErrConnectorFailed) {
		t.Fatalf("err = %v, want ErrConnectorFailed", err)
	}
	if c.Status() != domain.StatusFailed {
		t.Errorf("status = %s, want failed", c.Status())
	}
}

func TestConnectorResubscribesAfterReconnect(t *testing.T) {
	var conns atomic.Int32
	subs := make(chan []byte, 4)
	release := make(chan struct{})

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}
		subs <- frame

		// Drop the first connection immediately to force a reconnect.
		if conns.Add(1) == 1 {
			return
		}
		<-release
	}))
	defer ts.Close()

	out := make(chan domain.Quote, 1)
	c := NewConnector(&testCodec{url: wsURL(ts)}, fastConfig(), out, discardLogger())
	c.Subscribe([]string{"BTC/USDT", "ETH/USDT"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	for i := 0; i < 2; i++ {
		select {
		case frame := <-subs:
			var msg struct {
				Symbols []string `json:"symbols"`
			}
			if err := json.Unmarshal(frame, &msg); err != nil {
				t.Fatalf("connection %d: bad subscribe frame: %v", i+1, err)
			}
			if len(msg.Symbols) != 2 {
				t.Errorf("connection %d: subscribe covers %d symbols, want the full set of 2", i+1, len(msg.Symbols))
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("subscribe frame %d never arrived", i+1)
		}
	}

	cancel()
	close(release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSubscribeSharesSocketWithHeartbeat(t *testing.T) {
	// Late Subscribe calls write from the caller's goroutine while the
	// heartbeat goroutine writes ping frames; both must arrive intact.
	subs := make(chan []byte, 64)
	release := make(chan struct{})

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		go func() {
			<-release
			conn.Close()
		}()

		for {
			_, frame, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if strings.Contains(string(frame), `"op":"subscribe"`) {
				subs <- frame
			}
		}
	}))
	defer ts.Close()

	cfg := fastConfig()
	cfg.HeartbeatInterval = 2 * time.Millisecond
	codec := &testCodec{url: wsURL(ts), ping: []byte(`{"op":"ping"}`)}
	c := NewConnector(codec, cfg, make(chan domain.Quote, 1), discardLogger())
	c.Subscribe([]string{"BTC/USDT"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	// The initial resubscribe frame confirms the connection is up.
	select {
	case <-subs:
	case <-time.After(2 * time.Second):
		t.Fatal("initial subscribe frame never arrived")
	}

	const late = 20
	for i := 0; i < late; i++ {
		c.Subscribe([]string{fmt.Sprintf("SYM%d/USDT", i)})
	}

	deadline := time.After(2 * time.Second)
	for seen := 0; seen < late; {
		select {
		case frame := <-subs:
			if strings.Contains(string(frame), "SYM") {
				seen++
			}
		case <-deadline:
			t.Fatalf("late subscribe frames lost alongside heartbeats")
		}
	}

	cancel()
	close(release) // lets the server drop the socket, unblocking the read loop
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	c := NewConnector(&testCodec{}, Config{
		ReconnectDelay:    2 * time.Second,
		MaxReconnectDelay: 10 * time.Second,
	}, nil, discardLogger())

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second}, // capped
		{8, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := c.backoff(tt.attempt); got != tt.want {
			t.Errorf("backoff(%d) = %s, want %s", tt.attempt, got, tt.want)
		}
	}
}
