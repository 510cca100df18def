// Package history turns the sparse, irregular spread samples in the store
// of record into a dense, gap-free, fixed-width bucket series for charting.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/alanyoungcy/spreadwatch/internal/domain"
)

// AggregatorConfig holds the window, bucket width, and business timezone.
type AggregatorConfig struct {
	// Window is the rolling lookback, e.g. 24h.
	Window time.Duration

	// Bucket is the fixed bucket width, e.g. 30m. Window must be a whole
	// multiple of Bucket.
	Bucket time.Duration

	// Location is the business timezone bucket boundaries are aligned to.
	Location *time.Location
}

// Aggregator reads persisted spread points and produces the bucketed
// series.
type Aggregator struct {
	store domain.SpreadStore
	cfg   AggregatorConfig
}

// NewAggregator creates an Aggregator over store.
func NewAggregator(store domain.SpreadStore, cfg AggregatorConfig) *Aggregator {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Aggregator{store: store, cfg: cfg}
}

// Series returns the bucketed spread series for symbol over the window
// ending at now. Every bucket boundary in the window is present (gap slots
// carry a zero value), records merge with MAX aggregation so the largest
// opportunity per interval survives, the trailing partially-elapsed bucket
// is never included, and the result is sorted ascending by the boundary's
// actual instant.
func (a *Aggregator) Series(ctx context.Context, symbol string, now time.Time) ([]domain.Bucket, error) {
	if a.cfg.Bucket <= 0 || a.cfg.Window <= 0 || a.cfg.Window%a.cfg.Bucket != 0 {
		return nil, fmt.Errorf("history: window %s is not a whole multiple of bucket %s",
			a.cfg.Window, a.cfg.Bucket)
	}

	// end is the last fully-elapsed boundary; its own bucket is still
	// filling and is excluded.
	end := a.floor(now)
	from := end.Add(-a.cfg.Window)

	points, err := a.store.Query(ctx, symbol, from, now)
	if err != nil {
		return nil, fmt.Errorf("history: query %s: %w", symbol, err)
	}

	// Pre-populate every boundary so the output has no gaps.
	count := int(a.cfg.Window / a.cfg.Bucket)
	buckets := make([]domain.Bucket, count)
	for i := 0; i < count; i++ {
		buckets[i] = domain.Bucket{Boundary: from.Add(time.Duration(i) * a.cfg.Bucket)}
	}

	// Place each record by elapsed time from the window start. Re-flooring
	// the record against its own local midnight would use a grid shifted by
	// the jumped hour when a DST change sits between the record and now.
	for _, p := range points {
		if !p.Timestamp.Before(end) {
			// Falls in the current partial bucket (or later): discard.
			continue
		}
		i := int(p.Timestamp.Sub(from) / a.cfg.Bucket)
		if i < 0 || i >= count {
			continue
		}
		if !buckets[i].Filled || p.Spread.GreaterThan(buckets[i].Spread) {
			buckets[i].Spread = p.Spread
			buckets[i].Filled = true
		}
	}

	return buckets, nil
}

// floor aligns t to the bucket grid in the business timezone: the offset
// from local midnight is truncated to a whole number of buckets. Plain
// time.Truncate would align to UTC and skew boundaries in zones with
// fractional-hour offsets. Only the window end goes through floor; records
// are placed arithmetically against that grid.
func (a *Aggregator) floor(t time.Time) time.Time {
	lt := t.In(a.cfg.Location)
	midnight := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, a.cfg.Location)
	return midnight.Add(lt.Sub(midnight).Truncate(a.cfg.Bucket))
}
