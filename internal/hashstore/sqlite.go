package hashstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/fitnessmealplanner/recipegen/internal/model"
)

// SQLite is an embedded Store for single-node installs that want durable
// dedup history without running Postgres. Near-duplicate comparison happens
// in Go over a full scan; fine at the scale of one catalog's image set.
type SQLite struct {
	db          *sql.DB
	logger      *slog.Logger
	maxDistance int
}

// NewSQLite opens (creating if needed) the database at path and ensures the
// hash table exists. Use ":memory:" for an ephemeral store.
func NewSQLite(ctx context.Context, path string, maxDistance int, logger *slog.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("hashstore: open sqlite %s: %w", path, err)
	}

	// modernc sqlite serializes writes itself, but a single connection avoids
	// SQLITE_BUSY under concurrent recipe processing.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS recipe_image_hashes (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			hash       INTEGER NOT NULL,
			recipe_id  TEXT NOT NULL,
			batch_id   TEXT NOT NULL,
			created_at TEXT NOT NULL
		)
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("hashstore: create sqlite schema: %w", err)
	}

	return &SQLite{db: db, logger: logger, maxDistance: maxDistance}, nil
}

// Exists scans all stored hashes and compares Hamming distance in Go.
func (s *SQLite) Exists(ctx context.Context, hash uint64) (bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT hash FROM recipe_image_hashes`)
	if err != nil {
		return false, fmt.Errorf("hashstore: sqlite hash scan: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var stored int64
		if err := rows.Scan(&stored); err != nil {
			return false, fmt.Errorf("hashstore: sqlite scan row: %w", err)
		}
		if Distance(uint64(stored), hash) <= s.maxDistance { //nolint:gosec // INTEGER round-trips the uint64 bit pattern
			return true, nil
		}
	}
	return false, rows.Err()
}

// Record inserts the accepted hash row.
func (s *SQLite) Record(ctx context.Context, rec model.PerceptualHashRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recipe_image_hashes (hash, recipe_id, batch_id, created_at)
		VALUES (?, ?, ?, ?)
	`, int64(rec.Hash), rec.RecipeID.String(), rec.BatchID.String(), rec.CreatedAt.UTC().Format(time.RFC3339Nano)) //nolint:gosec // INTEGER stores the uint64 bit pattern
	if err != nil {
		return fmt.Errorf("hashstore: sqlite insert hash: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
