package hashstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"

	"github.com/fitnessmealplanner/recipegen/internal/model"
)

// Postgres is the production Store, backed by a pgvector-enabled Postgres.
// The HNSW index on the bit vector makes the nearest-hash lookup one indexed
// query regardless of how many images have been stored.
type Postgres struct {
	pool        *pgxpool.Pool
	logger      *slog.Logger
	maxDistance int
}

// NewPostgres connects a pool to the given DSN. The pgvector types are
// registered on each new connection; registration is best-effort before
// migrations have created the extension.
func NewPostgres(ctx context.Context, dsn string, maxDistance int, logger *slog.Logger) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("hashstore: parse DSN: %w", err)
	}

	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if err := pgxvector.RegisterTypes(ctx, conn); err != nil {
			logger.Debug("hashstore: pgvector types not registered (extension may not exist yet)", "error", err)
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("hashstore: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("hashstore: ping pool: %w", err)
	}

	return &Postgres{pool: pool, logger: logger, maxDistance: maxDistance}, nil
}

// Pool returns the underlying connection pool.
func (p *Postgres) Pool() *pgxpool.Pool {
	return p.pool
}

// Exists fetches the nearest stored hash by L2 distance over the bit vector
// and compares its exact Hamming distance against the threshold in Go. Going
// through the bigint column avoids float rounding at the threshold boundary.
func (p *Postgres) Exists(ctx context.Context, hash uint64) (bool, error) {
	var nearest int64
	err := p.pool.QueryRow(ctx, `
		SELECT hash
		FROM recipe_image_hashes
		ORDER BY hash_bits <-> $1
		LIMIT 1
	`, pgvector.NewVector(BitsVector(hash))).Scan(&nearest)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("hashstore: nearest hash query: %w", err)
	}
	return Distance(uint64(nearest), hash) <= p.maxDistance, nil //nolint:gosec // bigint round-trips the uint64 bit pattern
}

// Record inserts the accepted hash row.
func (p *Postgres) Record(ctx context.Context, rec model.PerceptualHashRecord) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO recipe_image_hashes (hash, hash_bits, recipe_id, batch_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, int64(rec.Hash), pgvector.NewVector(BitsVector(rec.Hash)), rec.RecipeID, rec.BatchID, rec.CreatedAt) //nolint:gosec // bigint stores the uint64 bit pattern
	if err != nil {
		return fmt.Errorf("hashstore: insert hash: %w", err)
	}
	return nil
}

// Close shuts down the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}
