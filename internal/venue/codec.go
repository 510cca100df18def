// Package venue implements the generic streaming connector shared by every
// venue and market type. Vendor-specific wire details (subscribe message
// shape, ticker payload shape, symbol delimiter, keep-alive payload) live in
// Codec implementations under venue/binance and venue/bybit; the connector
// owns everything else: the connection lifecycle, the reconnect state
// machine, subscription replay, and heartbeats.
package venue

import "github.com/alanyoungcy/spreadwatch/internal/domain"

// Codec adapts one venue/market-type wire protocol to the normalized Quote
// model. Implementations must be safe for use from a single connector
// goroutine; they hold no connection state.
type Codec interface {
	// Venue returns the venue identifier, e.g. "binance".
	Venue() string

	// MarketType returns which leg this codec serves.
	MarketType() domain.MarketType

	// URL returns the WebSocket endpoint to dial.
	URL() string

	// SubscribeFrames renders the vendor-specific subscribe message(s) for
	// the given canonical BASE/QUOTE symbols. A venue remembers nothing
	// about a prior socket, so the connector replays these on every
	// successful (re)connect.
	SubscribeFrames(symbols []string) ([][]byte, error)

	// Parse decodes one inbound message. It returns ok=false for control
	// traffic (subscribe acks, pongs, deltas without a BBO change) and an
	// error for malformed or invalid ticker payloads; the connector counts
	// errors and keeps the socket open.
	Parse(raw []byte) (domain.Quote, bool, error)

	// PingFrame returns the application-level keep-alive payload, or
	// ok=false when the venue is served by WebSocket protocol ping control
	// frames instead.
	PingFrame() ([]byte, bool)
}
