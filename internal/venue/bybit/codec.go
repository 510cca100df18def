// Package bybit adapts the Bybit v5 public ticker streams (spot and linear
// perpetual) to the normalized quote model. Bybit requires an
// application-level {"op":"ping"} keep-alive and delivers linear tickers as
// snapshot/delta pairs where unchanged fields are omitted.
package bybit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/spreadwatch/internal/domain"
	"github.com/alanyoungcy/spreadwatch/internal/venue"
)

// Codec implements venue.Codec for one Bybit market type.
type Codec struct {
	marketType domain.MarketType
	wsURL      string
}

// NewSpotCodec returns the codec for the v5 public spot feed.
func NewSpotCodec(wsURL string) *Codec {
	return &Codec{marketType: domain.MarketSpot, wsURL: wsURL}
}

// NewFuturesCodec returns the codec for the v5 public linear feed.
func NewFuturesCodec(wsURL string) *Codec {
	return &Codec{marketType: domain.MarketFutures, wsURL: wsURL}
}

// Venue returns "bybit".
func (c *Codec) Venue() string { return "bybit" }

// MarketType returns the leg this codec serves.
func (c *Codec) MarketType() domain.MarketType { return c.marketType }

// URL returns the WebSocket endpoint.
func (c *Codec) URL() string { return c.wsURL }

// opRequest is the v5 command envelope for subscribe and ping.
type opRequest struct {
	Op   string   `json:"op"`
	Args []string `json:"args,omitempty"`
}

// SubscribeFrames renders one subscribe op covering every symbol's tickers
// topic.
func (c *Codec) SubscribeFrames(symbols []string) ([][]byte, error) {
	if len(symbols) == 0 {
		return nil, nil
	}
	args := make([]string, 0, len(symbols))
	for _, s := range symbols {
		args = append(args, "tickers."+venue.ToWire(s))
	}
	frame, err := json.Marshal(opRequest{Op: "subscribe", Args: args})
	if err != nil {
		return nil, fmt.Errorf("bybit: marshal subscribe: %w", err)
	}
	return [][]byte{frame}, nil
}

// tickerMessage is the v5 tickers push envelope.
type tickerMessage struct {
	Topic string `json:"topic"`
	Op    string `json:"op"`
	Data  struct {
		Symbol string `json:"symbol"`
		Bid1   string `json:"bid1Price"`
		Ask1   string `json:"ask1Price"`
	} `json:"data"`
}

// Parse decodes one inbound message. Op acks, pongs, and deltas without a
// best bid/ask change return ok=false; malformed tickers and non-positive
// prices return an error so the connector counts the drop.
func (c *Codec) Parse(raw []byte) (domain.Quote, bool, error) {
	var msg tickerMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return domain.Quote{}, false, fmt.Errorf("bybit: unmarshal: %w", err)
	}

	// Command acks and pongs carry an op instead of a topic.
	if msg.Op != "" || msg.Topic == "" {
		return domain.Quote{}, false, nil
	}
	if len(msg.Topic) < len("tickers.") || msg.Topic[:len("tickers.")] != "tickers." {
		return domain.Quote{}, false, nil
	}
	// Linear deltas omit unchanged fields; a push without both sides of the
	// book carries no new BBO.
	if msg.Data.Bid1 == "" && msg.Data.Ask1 == "" {
		return domain.Quote{}, false, nil
	}
	if msg.Data.Symbol == "" || msg.Data.Bid1 == "" || msg.Data.Ask1 == "" {
		return domain.Quote{}, false, fmt.Errorf("bybit: partial ticker for topic %q", msg.Topic)
	}

	symbol, ok := venue.ToCanonical(msg.Data.Symbol)
	if !ok {
		return domain.Quote{}, false, fmt.Errorf("bybit: unrecognized symbol %q", msg.Data.Symbol)
	}
	ask, err := decimal.NewFromString(msg.Data.Ask1)
	if err != nil {
		return domain.Quote{}, false, fmt.Errorf("bybit: ask %q: %w", msg.Data.Ask1, err)
	}
	bid, err := decimal.NewFromString(msg.Data.Bid1)
	if err != nil {
		return domain.Quote{}, false, fmt.Errorf("bybit: bid %q: %w", msg.Data.Bid1, err)
	}
	if !ask.IsPositive() || !bid.IsPositive() {
		return domain.Quote{}, false, fmt.Errorf("bybit: non-positive prices ask=%s bid=%s", ask, bid)
	}

	return domain.Quote{
		Venue:      c.Venue(),
		MarketType: c.marketType,
		Symbol:     symbol,
		BestAsk:    ask,
		BestBid:    bid,
		ReceivedAt: time.Now().UTC(),
	}, true, nil
}

// PingFrame returns the application-level {"op":"ping"} payload Bybit
// expects every 20 seconds.
func (c *Codec) PingFrame() ([]byte, bool) {
	return []byte(`{"op":"ping"}`), true
}

// Compile-time interface check.
var _ venue.Codec = (*Codec)(nil)
