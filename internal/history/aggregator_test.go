package history

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/spreadwatch/internal/domain"
)

type fakeSpreadStore struct {
	points []domain.SpreadPoint
	from   time.Time
	to     time.Time
}

func (f *fakeSpreadStore) Insert(ctx context.Context, rec domain.SpreadHistoryRecord) error {
	return nil
}

func (f *fakeSpreadStore) Query(ctx context.Context, symbol string, from, to time.Time) ([]domain.SpreadPoint, error) {
	f.from, f.to = from, to
	return f.points, nil
}

func (f *fakeSpreadStore) ListBefore(ctx context.Context, before time.Time) ([]domain.SpreadHistoryRecord, error) {
	return nil, nil
}

func (f *fakeSpreadStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func point(ts time.Time, spread string) domain.SpreadPoint {
	return domain.SpreadPoint{Timestamp: ts, Spread: decimal.RequireFromString(spread)}
}

func newTestAggregator(store domain.SpreadStore) *Aggregator {
	return NewAggregator(store, AggregatorConfig{
		Window:   24 * time.Hour,
		Bucket:   30 * time.Minute,
		Location: time.UTC,
	})
}

func TestSeriesIsDenseAndAscending(t *testing.T) {
	store := &fakeSpreadStore{}
	agg := newTestAggregator(store)

	now := time.Date(2026, 8, 28, 12, 34, 56, 0, time.UTC)
	buckets, err := agg.Series(context.Background(), "BTC/USDT", now)
	if err != nil {
		t.Fatalf("Series: %v", err)
	}

	if len(buckets) != 48 {
		t.Fatalf("buckets = %d, want 48", len(buckets))
	}

	wantFirst := time.Date(2026, 8, 27, 12, 30, 0, 0, time.UTC)
	if !buckets[0].Boundary.Equal(wantFirst) {
		t.Errorf("first boundary = %s, want %s", buckets[0].Boundary, wantFirst)
	}
	wantLast := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	if !buckets[47].Boundary.Equal(wantLast) {
		t.Errorf("last boundary = %s, want %s", buckets[47].Boundary, wantLast)
	}

	for i := 1; i < len(buckets); i++ {
		gap := buckets[i].Boundary.Sub(buckets[i-1].Boundary)
		if gap != 30*time.Minute {
			t.Fatalf("gap between bucket %d and %d = %s, want 30m", i-1, i, gap)
		}
	}

	for i, b := range buckets {
		if b.Filled || !b.Spread.IsZero() {
			t.Errorf("bucket %d should be an empty gap slot, got filled=%v spread=%s", i, b.Filled, b.Spread)
		}
	}
}

func TestSeriesMergesWithMax(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 34, 56, 0, time.UTC)
	store := &fakeSpreadStore{points: []domain.SpreadPoint{
		point(time.Date(2026, 8, 28, 11, 35, 0, 0, time.UTC), "0.3"),
		point(time.Date(2026, 8, 28, 11, 50, 0, 0, time.UTC), "0.7"),
		point(time.Date(2026, 8, 28, 11, 59, 0, 0, time.UTC), "0.5"),
	}}
	agg := newTestAggregator(store)

	buckets, err := agg.Series(context.Background(), "BTC/USDT", now)
	if err != nil {
		t.Fatalf("Series: %v", err)
	}

	target := time.Date(2026, 8, 28, 11, 30, 0, 0, time.UTC)
	var found bool
	for _, b := range buckets {
		if b.Boundary.Equal(target) {
			found = true
			if !b.Filled {
				t.Error("bucket with records is not marked filled")
			}
			if !b.Spread.Equal(decimal.RequireFromString("0.7")) {
				t.Errorf("merged spread = %s, want max 0.7", b.Spread)
			}
		} else if b.Filled {
			t.Errorf("unexpected filled bucket at %s", b.Boundary)
		}
	}
	if !found {
		t.Fatal("bucket for 11:30 not present")
	}
}

func TestSeriesDiscardsPartialTrailingBucket(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 34, 56, 0, time.UTC)
	store := &fakeSpreadStore{points: []domain.SpreadPoint{
		// Inside the still-filling 12:30 bucket.
		point(time.Date(2026, 8, 28, 12, 31, 0, 0, time.UTC), "1.5"),
	}}
	agg := newTestAggregator(store)

	buckets, err := agg.Series(context.Background(), "BTC/USDT", now)
	if err != nil {
		t.Fatalf("Series: %v", err)
	}

	for _, b := range buckets {
		if b.Filled {
			t.Errorf("partial-bucket record leaked into boundary %s", b.Boundary)
		}
	}
}

func TestSeriesQueriesWindowEndingAtLastBoundary(t *testing.T) {
	store := &fakeSpreadStore{}
	agg := newTestAggregator(store)

	now := time.Date(2026, 8, 28, 12, 29, 59, 0, time.UTC)
	if _, err := agg.Series(context.Background(), "BTC/USDT", now); err != nil {
		t.Fatalf("Series: %v", err)
	}

	wantFrom := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	if !store.from.Equal(wantFrom) {
		t.Errorf("query from = %s, want %s", store.from, wantFrom)
	}
	if !store.to.Equal(now) {
		t.Errorf("query to = %s, want %s", store.to, now)
	}
}

func TestSeriesRejectsMisalignedWindow(t *testing.T) {
	agg := NewAggregator(&fakeSpreadStore{}, AggregatorConfig{
		Window:   24 * time.Hour,
		Bucket:   45 * time.Minute,
		Location: time.UTC,
	})
	if _, err := agg.Series(context.Background(), "BTC/USDT", time.Now()); err == nil {
		t.Fatal("expected error for window not a whole multiple of bucket")
	}
}

func TestSeriesBucketsRecordsAcrossDSTTransition(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	// 2026-03-29 02:00 CET jumps to 03:00 CEST, so the 29th is 23 real
	// hours long. A 45-minute grid anchored at the record's own midnight no
	// longer lines up with one anchored at the window end; the record must
	// still land in the bucket whose interval contains its instant.
	rec := time.Date(2026, 3, 29, 1, 0, 0, 0, loc) // CET, before the jump
	now := time.Date(2026, 3, 30, 1, 0, 0, 0, loc) // CEST, after the jump

	agg := NewAggregator(&fakeSpreadStore{points: []domain.SpreadPoint{
		point(rec, "0.9"),
	}}, AggregatorConfig{
		Window:   27 * time.Hour,
		Bucket:   45 * time.Minute,
		Location: loc,
	})

	buckets, err := agg.Series(context.Background(), "BTC/USDT", now)
	if err != nil {
		t.Fatalf("Series: %v", err)
	}

	var filled *domain.Bucket
	for i := range buckets {
		if buckets[i].Filled {
			if filled != nil {
				t.Fatal("record filled more than one bucket")
			}
			filled = &buckets[i]
		}
	}
	if filled == nil {
		t.Fatal("record across the DST transition landed in no bucket")
	}
	if rec.Before(filled.Boundary) || !rec.Before(filled.Boundary.Add(45*time.Minute)) {
		t.Errorf("record %s is outside its bucket [%s, %s)",
			rec, filled.Boundary, filled.Boundary.Add(45*time.Minute))
	}
	if !filled.Spread.Equal(decimal.RequireFromString("0.9")) {
		t.Errorf("bucket spread = %s, want 0.9", filled.Spread)
	}
}

func TestSeriesAlignsToFractionalOffsetZone(t *testing.T) {
	// UTC+5:45 (Kathmandu-style offset): buckets must align to local
	// midnight, not to UTC half-hours.
	loc := time.FixedZone("UTC+5:45", 5*3600+45*60)
	agg := NewAggregator(&fakeSpreadStore{}, AggregatorConfig{
		Window:   24 * time.Hour,
		Bucket:   30 * time.Minute,
		Location: loc,
	})

	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC) // 15:45 local
	buckets, err := agg.Series(context.Background(), "BTC/USDT", now)
	if err != nil {
		t.Fatalf("Series: %v", err)
	}

	last := buckets[len(buckets)-1].Boundary.In(loc)
	if last.Minute() != 30 && last.Minute() != 0 {
		t.Errorf("last boundary %s is not on a local half-hour", last)
	}
	if last.Hour() != 15 || last.Minute() != 30 {
		t.Errorf("last boundary local = %02d:%02d, want 15:30", last.Hour(), last.Minute())
	}
}
