// Package binance adapts the Binance spot and USDT-perpetual wire protocols
// to the normalized quote model. Both feeds use the combined bookTicker
// stream; the only differences are the endpoint and the presence of the
// event-type field on the futures payload.
package binance

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/spreadwatch/internal/domain"
	"github.com/alanyoungcy/spreadwatch/internal/venue"
)

// Codec implements venue.Codec for one Binance market type.
type Codec struct {
	marketType domain.MarketType
	wsURL      string
}

// NewSpotCodec returns the codec for the spot bookTicker feed.
func NewSpotCodec(wsURL string) *Codec {
	return &Codec{marketType: domain.MarketSpot, wsURL: wsURL}
}

// NewFuturesCodec returns the codec for the USDT-perpetual bookTicker feed.
func NewFuturesCodec(wsURL string) *Codec {
	return &Codec{marketType: domain.MarketFutures, wsURL: wsURL}
}

// Venue returns "binance".
func (c *Codec) Venue() string { return "binance" }

// MarketType returns the leg this codec serves.
func (c *Codec) MarketType() domain.MarketType { return c.marketType }

// URL returns the WebSocket endpoint.
func (c *Codec) URL() string { return c.wsURL }

// subscribeRequest is the Binance stream subscription envelope.
type subscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int      `json:"id"`
}

// SubscribeFrames renders one SUBSCRIBE message covering every symbol's
// bookTicker stream.
func (c *Codec) SubscribeFrames(symbols []string) ([][]byte, error) {
	if len(symbols) == 0 {
		return nil, nil
	}
	params := make([]string, 0, len(symbols))
	for _, s := range symbols {
		params = append(params, strings.ToLower(venue.ToWire(s))+"@bookTicker")
	}
	frame, err := json.Marshal(subscribeRequest{Method: "SUBSCRIBE", Params: params, ID: 1})
	if err != nil {
		return nil, fmt.Errorf("binance: marshal subscribe: %w", err)
	}
	return [][]byte{frame}, nil
}

// bookTicker is the payload shape shared by the spot and futures streams.
// Spot omits the "e" field; futures set it to "bookTicker".
type bookTicker struct {
	Event  string           `json:"e"`
	Symbol string           `json:"s"`
	Bid    string           `json:"b"`
	Ask    string           `json:"a"`
	Result *json.RawMessage `json:"result"`
	ID     *int             `json:"id"`
}

// Parse decodes one inbound message. Subscribe acks return ok=false;
// malformed tickers and non-positive prices return an error so the
// connector counts the drop.
func (c *Codec) Parse(raw []byte) (domain.Quote, bool, error) {
	var msg bookTicker
	if err := json.Unmarshal(raw, &msg); err != nil {
		return domain.Quote{}, false, fmt.Errorf("binance: unmarshal: %w", err)
	}

	// Command responses look like {"result":null,"id":1}.
	if msg.ID != nil {
		return domain.Quote{}, false, nil
	}
	if msg.Symbol == "" {
		return domain.Quote{}, false, fmt.Errorf("binance: message without symbol")
	}
	if msg.Event != "" && msg.Event != "bookTicker" {
		return domain.Quote{}, false, nil
	}

	symbol, ok := venue.ToCanonical(msg.Symbol)
	if !ok {
		return domain.Quote{}, false, fmt.Errorf("binance: unrecognized symbol %q", msg.Symbol)
	}
	ask, err := decimal.NewFromString(msg.Ask)
	if err != nil {
		return domain.Quote{}, false, fmt.Errorf("binance: ask %q: %w", msg.Ask, err)
	}
	bid, err := decimal.NewFromString(msg.Bid)
	if err != nil {
		return domain.Quote{}, false, fmt.Errorf("binance: bid %q: %w", msg.Bid, err)
	}
	if !ask.IsPositive() || !bid.IsPositive() {
		return domain.Quote{}, false, fmt.Errorf("binance: non-positive prices ask=%s bid=%s", ask, bid)
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

// PingFrame returns ok=false: Binance keep-alives ride on WebSocket
// protocol ping/pong control frames.
func (c *Codec) PingFrame() ([]byte, bool) { return nil, false }

// Compile-time interface check.
var _ venue.Codec = (*Codec)(nil)
