package domain

import (
	"context"
	"time"
)

// SpreadStore is the narrow create/query contract against the store of
// record. The retention process that deletes aged rows lives outside the
// core; ListBefore/DeleteBefore exist for the archiver.
type SpreadStore interface {
	// Insert persists one spread history record.
	Insert(ctx context.Context, rec SpreadHistoryRecord) error

	// Query returns the points for symbol with from <= timestamp < to,
	// ordered ascending by timestamp.
	Query(ctx context.Context, symbol string, from, to time.Time) ([]SpreadPoint, error)

	// ListBefore returns full records with timestamp strictly before the
	// cutoff, for archival.
	ListBefore(ctx context.Context, before time.Time) ([]SpreadHistoryRecord, error)

	// DeleteBefore removes records with timestamp strictly before the
	// cutoff and returns the number deleted.
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// QuoteStore is the shared market price cache: the latest quote per
// (venue, market type, symbol), last-write-wins.
type QuoteStore interface {
	// Put overwrites the slot for q's key.
	Put(q Quote)

	// Get returns the latest quote for the key and whether it is present.
	// Absence is never conflated with a zero-value quote.
	Get(key QuoteKey) (Quote, bool)

	// Symbols returns the distinct canonical symbols currently present.
	Symbols() []string
}
