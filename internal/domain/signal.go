package domain

import "context"

// Signal bus channel names. The ws hub bridges these to dashboard clients.
const (
	ChannelQuotes        = "quotes"
	ChannelOpportunities = "opportunities"
	ChannelStatus        = "status"
)

// SignalBus is a fan-out publish/subscribe channel for quote updates,
// detected opportunities, and connector status events. Publishing must
// never block producers on slow consumers.
type SignalBus interface {
	// Publish sends a raw payload to a named channel.
	Publish(ctx context.Context, channel string, payload []byte) error

	// Subscribe returns a read-only channel of payloads for the named
	// channel. The subscription closes when ctx is cancelled.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
