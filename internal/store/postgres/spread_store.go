package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/spreadwatch/internal/domain"
)

// SpreadStore implements domain.SpreadStore using PostgreSQL.
type SpreadStore struct {
	pool *pgxpool.Pool
}

// NewSpreadStore creates a new SpreadStore backed by the given connection
// pool.
func NewSpreadStore(pool *pgxpool.Pool) *SpreadStore {
	return &SpreadStore{pool: pool}
}

// Insert persists one spread history record.
func (s *SpreadStore) Insert(ctx context.Context, rec domain.SpreadHistoryRecord) error {
	const query = `
		INSERT INTO spread_history (
			symbol, exchange_buy, exchange_sell, direction, spread, ts
		) VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.pool.Exec(ctx, query,
		rec.Symbol, rec.ExchangeBuy, rec.ExchangeSell,
		string(rec.Direction), rec.Spread.String(), rec.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("postgres: insert spread %s: %w", rec.Symbol, err)
	}
	return nil
}

// Query returns the spread points for symbol with from <= ts < to, ordered
// ascending by timestamp.
func (s *SpreadStore) Query(ctx context.Context, symbol string, from, to time.Time) ([]domain.SpreadPoint, error) {
	const query = `
		SELECT ts, spread
		FROM spread_history
		WHERE symbol = $1 AND ts >= $2 AND ts < $3
		ORDER BY ts ASC`

	rows, err := s.pool.Query(ctx, query, symbol, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("postgres: query spreads %s: %w", symbol, err)
	}
	defer rows.Close()

	var points []domain.SpreadPoint
	for rows.Next() {
		var (
			ts     time.Time
			spread string
		)
		if err := rows.Scan(&ts, &spread); err != nil {
			return nil, fmt.Errorf("postgres: scan spread point: %w", err)
		}
		value, err := decimal.NewFromString(spread)
		if err != nil {
			return nil, fmt.Errorf("postgres: parse spread %q: %w", spread, err)
		}
		points = append(points, domain.SpreadPoint{Timestamp: ts, Spread: value})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: query spreads rows: %w", err)
	}
	return points, nil
}

// ListBefore returns full records with ts strictly before the cutoff, for
// archival.
func (s *SpreadStore) ListBefore(ctx context.Context, before time.Time) ([]domain.SpreadHistoryRecord, error) {
	const query = `
		SELECT symbol, exchange_buy, exchange_sell, direction, spread, ts
		FROM spread_history
		WHERE ts < $1
		ORDER BY ts ASC`

	rows, err := s.pool.Query(ctx, query, before.UTC())
	if err != nil {
		return nil, fmt.Errorf("postgres: list spreads before %s: %w", before, err)
	}
	defer rows.Close()

	var recs []domain.SpreadHistoryRecord
	for rows.Next() {
		var (
			rec       domain.SpreadHistoryRecord
			direction string
			spread    string
		)
		if err := rows.Scan(&rec.Symbol, &rec.ExchangeBuy, &rec.ExchangeSell,
			&direction, &spread, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: scan spread record: %w", err)
		}
		rec.Direction = domain.Direction(direction)
		value, err := decimal.NewFromString(spread)
		if err != nil {
			return nil, fmt.Errorf("postgres: parse spread %q: %w", spread, err)
		}
		rec.Spread = value
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list spreads rows: %w", err)
	}
	return recs, nil
}

// DeleteBefore removes records with ts strictly before the cutoff and
// returns the number deleted.
func (s *SpreadStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM spread_history WHERE ts < $1`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("postgres: delete spreads before %s: %w", before, err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ domain.SpreadStore = (*SpreadStore)(nil)
