package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction classifies which way a spot/futures spread points.
type Direction string

const (
	// SpotToFuture: futures trade above spot — buy the spot leg, sell the
	// futures leg.
	SpotToFuture Direction = "spot-to-future"
	// FutureToSpot: futures trade below spot — buy the futures leg, sell
	// the spot leg.
	FutureToSpot Direction = "future-to-spot"
)

// SpreadSample is one evaluated spot/futures pair. The detector creates a
// sample for every pair that passes validity checks, not only profitable
// ones; SpreadPercent is the signed raw value before normalization.
type SpreadSample struct {
	Symbol        string          `json:"symbol"`
	ExchangeBuy   string          `json:"exchange_buy"`
	ExchangeSell  string          `json:"exchange_sell"`
	Direction     Direction       `json:"direction"`
	SpreadPercent decimal.Decimal `json:"spread_percent"`
	ObservedAt    time.Time       `json:"observed_at"`
}

// Leg names one side of an opportunity.
type Leg struct {
	Venue      string          `json:"venue"`
	MarketType MarketType      `json:"market_type"`
	Price      decimal.Decimal `json:"price"`
}

// ArbitrageOpportunity is the broadcast-only event emitted when a spread
// clears the configured floor. It is never persisted itself; the underlying
// SpreadSample is what reaches the store of record.
type ArbitrageOpportunity struct {
	ID               string          `json:"id"`
	BaseSymbol       string          `json:"base_symbol"`
	BuyAt            Leg             `json:"buy_at"`
	SellAt           Leg             `json:"sell_at"`
	Direction        Direction       `json:"direction"`
	ProfitPercentage decimal.Decimal `json:"profit_percentage"`
	DetectedAt       time.Time       `json:"detected_at"`
}

// SpreadHistoryRecord is the persisted form of a SpreadSample: spread
// magnitude rounded half-up to two digits, timestamp in UTC.
type SpreadHistoryRecord struct {
	Symbol       string          `json:"symbol"`
	ExchangeBuy  string          `json:"exchange_buy"`
	ExchangeSell string          `json:"exchange_sell"`
	Direction    Direction       `json:"direction"`
	Spread       decimal.Decimal `json:"spread"`
	Timestamp    time.Time       `json:"timestamp"`
}

// SpreadPoint is the narrow read shape the history aggregator consumes.
type SpreadPoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Spread    decimal.Decimal `json:"spread"`
}

// Bucket is one slot of the aggregated history series. Filled is false for
// pre-populated gap slots, whose Spread is zero.
type Bucket struct {
	Boundary time.Time       `json:"boundary"`
	Spread   decimal.Decimal `json:"spread"`
	Filled   bool            `json:"filled"`
}
