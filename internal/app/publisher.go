package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"

	"github.com/alanyoungcy/spreadwatch/internal/domain"
)

// Publisher bridges detection-path events onto the Redis signal bus without
// ever blocking the caller. Events are queued on a buffered channel and
// drained by Run; when the queue is full the event is dropped and counted.
type Publisher struct {
	bus     domain.SignalBus
	queue   chan busEvent
	logger  *slog.Logger
	dropped atomic.Int64
}

type busEvent struct {
	channel string
	payload []byte
}

// NewPublisher creates a Publisher with the given queue capacity.
func NewPublisher(bus domain.SignalBus, queueSize int, logger *slog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Publisher{
		bus:    bus,
		queue:  make(chan busEvent, queueSize),
		logger: logger.With(slog.String("component", "publisher")),
	}
}

// PublishQuote enqueues a quote update for broadcast.
func (p *Publisher) PublishQuote(q domain.Quote) {
	p.enqueue(domain.ChannelQuotes, map[string]any{
		"type":    "quote",
		"payload": q,
	})
}

// PublishOpportunity enqueues a detected arbitrage opportunity for broadcast.
// Implements arbitrage.OpportunitySink.
func (p *Publisher) PublishOpportunity(opp domain.ArbitrageOpportunity) {
	p.enqueue(domain.ChannelOpportunities, map[string]any{
		"type":    "opportunity",
		"payload": opp,
	})
}

// PublishStatus enqueues a connector status snapshot for broadcast.
func (p *Publisher) PublishStatus(states []domain.ConnectorState) {
	p.enqueue(domain.ChannelStatus, map[string]any{
		"type":    "connector_status",
		"payload": states,
	})
}

// Dropped returns the number of events discarded because the queue was full.
func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}

func (p *Publisher) enqueue(channel string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		p.logger.Error("marshal bus event", slog.String("error", err.Error()))
		return
	}
	select {
	case p.queue <- busEvent{channel: channel, payload: data}:
	default:
		p.dropped.Add(1)
	}
}

// Run drains the queue and publishes each event to the signal bus. Publish
// errors are logged and the loop continues; a Redis outage must not take the
// detection path down with it. Run returns when the context is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-p.queue:
			if err := p.bus.Publish(ctx, ev.channel, ev.payload); err != nil {
				p.logger.Warn("publish failed",
					slog.String("channel", ev.channel),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
