// Package domain defines the core types shared by every spreadwatch
// component: normalized quotes, spread samples, arbitrage opportunities, the
// persisted history record, and the narrow interfaces (store, signal bus)
// that infrastructure packages implement.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketType distinguishes the two legs a venue can serve.
type MarketType string

const (
	MarketSpot    MarketType = "spot"
	MarketFutures MarketType = "futures"
)

// Valid reports whether mt is one of the known market types.
func (mt MarketType) Valid() bool {
	return mt == MarketSpot || mt == MarketFutures
}

// Quote is the normalized best bid/ask snapshot emitted by a venue
// connector. Symbols are always in canonical BASE/QUOTE form regardless of
// the venue's wire delimiter. Prices are decimals parsed straight from the
// wire's string fields; binary floats never enter spread math.
type Quote struct {
	Venue      string          `json:"venue"`
	MarketType MarketType      `json:"market_type"`
	Symbol     string          `json:"symbol"`
	BestAsk    decimal.Decimal `json:"best_ask"`
	BestBid    decimal.Decimal `json:"best_bid"`
	ReceivedAt time.Time       `json:"received_at"`
}

// Valid reports whether both sides of the quote are strictly positive.
// Connectors drop invalid quotes before they reach the price store.
func (q Quote) Valid() bool {
	return q.BestAsk.IsPositive() && q.BestBid.IsPositive()
}

// Mid returns the mid price (average of best bid and best ask).
func (q Quote) Mid() decimal.Decimal {
	return q.BestAsk.Add(q.BestBid).Div(decimal.NewFromInt(2))
}

// QuoteKey identifies a single slot in the market price store.
type QuoteKey struct {
	Venue      string
	MarketType MarketType
	Symbol     string
}

// Key returns the store key for this quote.
func (q Quote) Key() QuoteKey {
	return QuoteKey{Venue: q.Venue, MarketType: q.MarketType, Symbol: q.Symbol}
}

// ConnectorStatus enumerates the venue connector lifecycle states.
type ConnectorStatus int32

const (
	StatusDisconnected ConnectorStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnectPending
	StatusFailed
)

// String returns the lowercase state name used in logs and the status API.
func (s ConnectorStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnectPending:
		return "reconnect_pending"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ConnectorState is the externally visible snapshot of one connector,
// served by the status API so operators can tell "no opportunities" apart
// from "this venue stopped sending data".
type ConnectorState struct {
	Venue             string          `json:"venue"`
	MarketType        MarketType      `json:"market_type"`
	Status            ConnectorStatus `json:"-"`
	StatusName        string          `json:"status"`
	SubscribedSymbols []string        `json:"subscribed_symbols"`
	ReconnectAttempt  int             `json:"reconnect_attempt"`
	MessagesDropped   uint64          `json:"messages_dropped"`
	QuotesAccepted    uint64          `json:"quotes_accepted"`
}
