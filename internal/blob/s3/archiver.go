package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/spreadwatch/internal/domain"
)

// ArchiveStore is the narrow store access the archiver needs: time-ranged
// reads for export and the matching delete for pruning after a verified
// upload.
type ArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.SpreadHistoryRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// ObjectWriter uploads one archive object. *Writer implements it.
type ObjectWriter interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
}

// ObjectChecker reports whether an archive object already exists. *Reader
// implements it.
type ObjectChecker interface {
	Exists(ctx context.Context, key string) (bool, error)
}

// ArchiverConfig controls retention and pruning.
type ArchiverConfig struct {
	// Retention is how far back records stay in the primary store. Records
	// older than now-Retention are exported.
	Retention time.Duration

	// Interval is how often the archive cycle runs.
	Interval time.Duration

	// PruneAfterUpload deletes exported records from the primary store once
	// the upload has succeeded.
	PruneAfterUpload bool
}

// Archiver periodically exports aged spread history to the object store as
// newline-delimited JSON, one file per cutoff day.
type Archiver struct {
	store   ArchiveStore
	writer  ObjectWriter
	checker ObjectChecker
	cfg     ArchiverConfig
	logger  *slog.Logger
}

// NewArchiver creates an Archiver.
func NewArchiver(store ArchiveStore, writer ObjectWriter, checker ObjectChecker, cfg ArchiverConfig, logger *slog.Logger) *Archiver {
	return &Archiver{
		store:   store,
		writer:  writer,
		checker: checker,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "archiver")),
	}
}

// Run executes an archive cycle every Interval until the context is
// cancelled. Cycle errors are logged, not fatal; the next tick retries.
func (a *Archiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-a.cfg.Retention)
			count, err := a.Archive(ctx, cutoff)
			if err != nil {
				a.logger.Error("archive cycle failed", slog.String("error", err.Error()))
				continue
			}
			if count > 0 {
				a.logger.Info("archive cycle complete",
					slog.Int64("records", count),
					slog.Time("cutoff", cutoff),
				)
			}
		}
	}
}

// Archive exports all records older than the cutoff to
// archive/spreads/YYYY-MM-DD.jsonl and returns the number exported. When the
// day object already exists the whole cycle is a no-op: the object holds an
// earlier cutoff's export, so rows listed now were not necessarily uploaded
// and pruning them would lose data. They ride along once the day rolls over
// to a fresh object key.
func (a *Archiver) Archive(ctx context.Context, before time.Time) (int64, error) {
	records, err := a.store.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive query: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	key := archivePath(before)

	exists, err := a.checker.Exists(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive check %s: %w", key, err)
	}
	if exists {
		a.logger.Info("archive object already present, deferring cycle",
			slog.String("key", key),
			slog.Int("pending", len(records)),
		)
		return 0, nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive marshal: %w", err)
	}
	if err := a.writer.Upload(ctx, key, buf, "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive upload %s: %w", key, err)
	}

	count := int64(len(records))

	if a.cfg.PruneAfterUpload {
		deleted, err := a.store.DeleteBefore(ctx, before)
		if err != nil {
			return count, fmt.Errorf("s3blob: archive prune: %w", err)
		}
		a.logger.Info("pruned archived records", slog.Int64("deleted", deleted))
	}

	return count, nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// cutoff day:
//
//	archive/spreads/2026-08-28.jsonl
func archivePath(before time.Time) string {
	return fmt.Sprintf("archive/spreads/%s.jsonl", before.UTC().Format("2006-01-02"))
}

// marshalJSONL serialises records as newline-delimited JSON, one compact
// line per record.
func marshalJSONL(records []domain.SpreadHistoryRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
