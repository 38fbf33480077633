// Package sqlite keeps scheduler watermarks in a local SQLite file, independent of the ledger
// database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vanshika/debtbook/internal/domain"
)

// WatermarkStore records delivered job occurrences.
type WatermarkStore struct {
	db *sql.DB
}

// Open creates the database at path when missing and ensures the schema.
func Open(path string) (*WatermarkStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create watermark directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open watermark database: %w", err)
	}
	// A single connection serializes writers and avoids SQLITE_BUSY between pool members.
	db.SetMaxOpenConns(1)

	s := &WatermarkStore{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *WatermarkStore) initialize() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS job_watermarks (
		user_id INTEGER NOT NULL,
		job TEXT NOT NULL,
		period TEXT NOT NULL,
		claimed_at TEXT NOT NULL,
		PRIMARY KEY (user_id, job, period)
	);
	`)
	if err != nil {
		return fmt.Errorf("create watermark schema: %w", err)
	}
	return nil
}

// ClaimWatermark inserts w unless the occurrence is already recorded and reports whether
// this call made the claim.
func (s *WatermarkStore) ClaimWatermark(ctx context.Context, w domain.Watermark) (bool, error) {
	at := w.ClaimedAt
	if at.IsZero() {
		at = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO job_watermarks(user_id, job, period, claimed_at)
		VALUES(?, ?, ?, ?)
		ON CONFLICT(user_id, job, period) DO NOTHING
	`, w.UserID, w.Job, w.Period, at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return false, domain.Wrap(domain.CodeUnavailable, err, "claim watermark")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim watermark: %w", err)
	}
	return n == 1, nil
}

// ReleaseWatermark removes a claim so the occurrence is retried.
func (s *WatermarkStore) ReleaseWatermark(ctx context.Context, w domain.Watermark) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM job_watermarks WHERE user_id = ? AND job = ? AND period = ?
	`, w.UserID, w.Job, w.Period)
	if err != nil {
		return fmt.Errorf("release watermark: %w", err)
	}
	return nil
}

// PruneWatermarks deletes claims made before cutoff and returns how many were removed.
func (s *WatermarkStore) PruneWatermarks(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM job_watermarks WHERE claimed_at < ?`,
		cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("prune watermarks: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the database handle.
func (s *WatermarkStore) Close() error {
	return s.db.Close()
}
