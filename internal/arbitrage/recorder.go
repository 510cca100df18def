package arbitrage

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/spreadwatch/internal/domain"
)

// Normalize rounds a spread value half-up to the given number of digits.
// It is idempotent: normalizing an already-normalized value is a no-op.
// (decimal.Round rounds half away from zero, which is half-up for the
// non-negative magnitudes recorded here.)
func Normalize(spread decimal.Decimal, precision int32) decimal.Decimal {
	return spread.Round(precision)
}

// RecorderConfig configures the spread persister.
type RecorderConfig struct {
	// QueueSize bounds the in-flight sample buffer between the detector
	// and the store writer.
	QueueSize int

	// Precision is the number of digits spreads are rounded to before
	// persistence.
	Precision int32

	// MaxSpreadPercent guards the store against values that slipped past
	// the detector's ceiling.
	MaxSpreadPercent decimal.Decimal
}

// Recorder validates, normalizes, and persists spread samples. It is
// fire-and-forget relative to the detector: Enqueue never blocks, and
// insert failures are logged without ever reaching the detection path.
type Recorder struct {
	store  domain.SpreadStore
	cfg    RecorderConfig
	queue  chan domain.SpreadSample
	logger *slog.Logger

	rejected  atomic.Uint64
	persisted atomic.Uint64
}

// NewRecorder creates a Recorder writing to store.
func NewRecorder(store domain.SpreadStore, cfg RecorderConfig, logger *slog.Logger) *Recorder {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	return &Recorder{
		store:  store,
		cfg:    cfg,
		queue:  make(chan domain.SpreadSample, cfg.QueueSize),
		logger: logger.With(slog.String("component", "recorder")),
	}
}

// Enqueue hands a sample to the persistence worker without blocking. It
// returns false when the queue is full and the sample was dropped — an
// accepted durability loss, never a detection stall.
func (r *Recorder) Enqueue(sample domain.SpreadSample) bool {
	select {
	case r.queue <- sample:
		return true
	default:
		return false
	}
}

// Run drains the queue and persists samples until ctx is cancelled.
func (r *Recorder) Run(ctx context.Context) error {
	r.logger.Info("recorder started", slog.Int("queue_size", cap(r.queue)))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sample := <-r.queue:
			r.record(ctx, sample)
		}
	}
}

// record normalizes and persists one sample. Invalid values are dropped and
// counted; insert errors are logged and swallowed.
func (r *Recorder) record(ctx context.Context, sample domain.SpreadSample) {
	rec, err := r.normalizeSample(sample)
	if err != nil {
		r.rejected.Add(1)
		r.logger.Debug("sample rejected",
			slog.String("symbol", sample.Symbol),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := r.store.Insert(ctx, rec); err != nil {
		r.logger.Warn("spread insert failed",
			slog.String("symbol", rec.Symbol),
			slog.String("error", err.Error()),
		)
		return
	}
	r.persisted.Add(1)
}

// normalizeSample turns a raw sample into the persisted record. Values
// that are zero, negative after rounding, or beyond the sanity ceiling are
// never written.
func (r *Recorder) normalizeSample(sample domain.SpreadSample) (domain.SpreadHistoryRecord, error) {
	spread := Normalize(sample.SpreadPercent, r.cfg.Precision)

	if spread.IsZero() {
		return domain.SpreadHistoryRecord{}, fmt.Errorf("%w: zero after rounding", domain.ErrInvalidSpread)
	}
	if spread.IsNegative() {
		return domain.SpreadHistoryRecord{}, fmt.Errorf("%w: negative value %s", domain.ErrInvalidSpread, spread)
	}
	if !r.cfg.MaxSpreadPercent.IsZero() && spread.GreaterThan(r.cfg.MaxSpreadPercent) {
		return domain.SpreadHistoryRecord{}, fmt.Errorf("%w: %s exceeds ceiling %s",
			domain.ErrInvalidSpread, spread, r.cfg.MaxSpreadPercent)
	}

	ts := sample.ObservedAt
	if ts.IsZero() {
		return domain.SpreadHistoryRecord{}, fmt.Errorf("%w: missing observation time", domain.ErrInvalidSpread)
	}

	return domain.SpreadHistoryRecord{
		Symbol:       sample.Symbol,
		ExchangeBuy:  sample.ExchangeBuy,
		ExchangeSell: sample.ExchangeSell,
		Direction:    sample.Direction,
		Spread:       spread,
		Timestamp:    ts.UTC(),
	}, nil
}

// Stats returns the persisted/rejected counters for the status API.
func (r *Recorder) Stats() (persisted, rejected uint64) {
	return r.persisted.Load(), r.rejected.Load()
}
