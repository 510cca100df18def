// Package arbitrage contains the spread detection engine and the
// normalizing recorder that feeds the store of record. All spread math is
// done in decimal arithmetic; binary floats would drift on low-priced
// assets with many decimal places.
package arbitrage

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/spreadwatch/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// SampleSink receives every in-band spread sample for persistence. Enqueue
// must not block; it reports whether the sample was accepted.
type SampleSink interface {
	Enqueue(sample domain.SpreadSample) bool
}

// OpportunitySink receives detected opportunities for broadcast. Publish
// must not block the detection path.
type OpportunitySink interface {
	PublishOpportunity(opp domain.ArbitrageOpportunity)
}

// DetectorConfig configures the spread sanity band and venue set.
type DetectorConfig struct {
	// Venues are the venue names whose legs are paired. Every spot leg is
	// compared against every futures leg, cross-venue pairs included.
	Venues []string

	// MinSpreadPercent is the floor of the sanity band; magnitudes below it
	// are noise and are neither persisted nor broadcast.
	MinSpreadPercent decimal.Decimal

	// MaxSpreadPercent is the ceiling; magnitudes above it are treated as
	// bad or stale data and discarded entirely.
	MaxSpreadPercent decimal.Decimal

	// SweepInterval is the fixed-interval fallback re-evaluation cadence
	// for symbols with low update frequency. Zero disables the sweep.
	SweepInterval time.Duration
}

// Detector computes spot-vs-futures spreads from the shared price store.
// Evaluation is event-driven: the ingest path calls Evaluate on every
// accepted quote. RunSweep provides the degraded fixed-interval fallback.
type Detector struct {
	store   domain.QuoteStore
	samples SampleSink
	opps    OpportunitySink
	cfg     DetectorConfig
	logger  *slog.Logger
}

// NewDetector creates a Detector reading from store and emitting to the
// given sinks.
func NewDetector(store domain.QuoteStore, samples SampleSink, opps OpportunitySink, cfg DetectorConfig, logger *slog.Logger) *Detector {
	return &Detector{
		store:   store,
		samples: samples,
		opps:    opps,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "detector")),
	}
}

// Evaluate recomputes the spread for symbol across every (spot venue,
// futures venue) pair currently present in the store. Called on every
// accepted quote to minimize detection latency.
func (d *Detector) Evaluate(symbol string) {
	for _, spotVenue := range d.cfg.Venues {
		spot, ok := d.store.Get(domain.QuoteKey{
			Venue: spotVenue, MarketType: domain.MarketSpot, Symbol: symbol,
		})
		if !ok {
			continue
		}
		for _, futVenue := range d.cfg.Venues {
			fut, ok := d.store.Get(domain.QuoteKey{
				Venue: futVenue, MarketType: domain.MarketFutures, Symbol: symbol,
			})
			if !ok {
				continue
			}
			d.evaluatePair(symbol, spot, fut)
		}
	}
}

// evaluatePair applies the core spread formula to one spot/futures leg
// pair:
//
//	spread% = ((futMid - spotMid) / spotMid) * 100
//
// Positive means futures trade above spot (buy spot, sell futures).
func (d *Detector) evaluatePair(symbol string, spot, fut domain.Quote) {
	if !spot.Valid() || !fut.Valid() {
		return
	}

	spotMid := spot.Mid()
	futMid := fut.Mid()
	if !spotMid.IsPositive() || !futMid.IsPositive() {
		return
	}

	spread := futMid.Sub(spotMid).Div(spotMid).Mul(hundred)
	if spread.IsZero() {
		return
	}

	magnitude := spread.Abs()
	if magnitude.LessThan(d.cfg.MinSpreadPercent) {
		return
	}
	if magnitude.GreaterThan(d.cfg.MaxSpreadPercent) {
		// Above the ceiling the data is bad or stale, not an opportunity.
		d.logger.Debug("spread above sanity ceiling, discarded",
			slog.String("symbol", symbol),
			slog.String("spread_percent", magnitude.String()),
			slog.String("spot_venue", spot.Venue),
			slog.String("futures_venue", fut.Venue),
		)
		return
	}

	var (
		direction     domain.Direction
		buyAt, sellAt domain.Leg
	)
	if spread.IsPositive() {
		direction = domain.SpotToFuture
		buyAt = domain.Leg{Venue: spot.Venue, MarketType: domain.MarketSpot, Price: spotMid}
		sellAt = domain.Leg{Venue: fut.Venue, MarketType: domain.MarketFutures, Price: futMid}
	} else {
		direction = domain.FutureToSpot
		buyAt = domain.Leg{Venue: fut.Venue, MarketType: domain.MarketFutures, Price: futMid}
		sellAt = domain.Leg{Venue: spot.Venue, MarketType: domain.MarketSpot, Price: spotMid}
	}

	now := time.Now().UTC()
	sample := domain.SpreadSample{
		Symbol:        symbol,
		ExchangeBuy:   buyAt.Venue,
		ExchangeSell:  sellAt.Venue,
		Direction:     direction,
		SpreadPercent: magnitude,
		ObservedAt:    now,
	}
	if !d.samples.Enqueue(sample) {
		d.logger.Warn("sample queue full, sample dropped",
			slog.String("symbol", symbol),
		)
	}

	d.opps.PublishOpportunity(domain.ArbitrageOpportunity{
		ID:               uuid.Must(uuid.NewRandom()).String(),
		BaseSymbol:       symbol,
		BuyAt:            buyAt,
		SellAt:           sellAt,
		Direction:        direction,
		ProfitPercentage: magnitude,
		DetectedAt:       now,
	})

	d.logger.Debug("opportunity detected",
		slog.String("symbol", symbol),
		slog.String("direction", string(direction)),
		slog.String("spread_percent", magnitude.String()),
	)
}

// RunSweep re-evaluates every symbol in the store at the configured
// interval. This is the degraded fallback for venues or symbols with low
// update frequency; the event-driven path remains primary. It blocks until
// ctx is cancelled.
func (d *Detector) RunSweep(ctx context.Context) error {
	if d.cfg.SweepInterval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(d.cfg.SweepInterval)
	defer ticker.Stop()

	d.logger.Info("sweep started", slog.Duration("interval", d.cfg.SweepInterval))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, symbol := range d.store.Symbols() {
				d.Evaluate(symbol)
			}
		}
	}
}
