// Package usage implements an ambient, Postgres-backed audit trail of
// per-brain activity: how many files were ingested and how many queries
// were answered. It is not part of the dedup/listing mechanism (that's
// internal/catalog, backed by the registry collection) — it exists purely
// for operational visibility, adapted from the teacher's tenant usage
// aggregation queries onto a brain-keyed schema.
package usage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/knoguchi/rag/internal/repository/postgres"
)

// Recorder logs ingestion and query activity per brain and reports rollups.
type Recorder struct {
	db *postgres.DB
}

// New wraps an already-connected postgres.DB.
func New(db *postgres.DB) *Recorder {
	return &Recorder{db: db}
}

// EnsureSchema creates the usage_counters table if it doesn't exist yet.
func (r *Recorder) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS usage_counters (
			brain_id        UUID PRIMARY KEY,
			ingested_files  BIGINT NOT NULL DEFAULT 0,
			ingested_chunks BIGINT NOT NULL DEFAULT 0,
			query_count     BIGINT NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return fmt.Errorf("create usage_counters table: %w", err)
	}
	return nil
}

// RecordIngestion increments a brain's ingested-file and ingested-chunk
// counters by one file and chunkCount chunks.
func (r *Recorder) RecordIngestion(ctx context.Context, brainID uuid.UUID, chunkCount int) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO usage_counters (brain_id, ingested_files, ingested_chunks, query_count)
		VALUES ($1, 1, $2, 0)
		ON CONFLICT (brain_id) DO UPDATE SET
			ingested_files  = usage_counters.ingested_files + 1,
			ingested_chunks = usage_counters.ingested_chunks + EXCLUDED.ingested_chunks
	`, brainID, chunkCount)
	if err != nil {
		return fmt.Errorf("record ingestion usage: %w", err)
	}
	return nil
}

// RecordQuery increments a brain's query counter by one.
func (r *Recorder) RecordQuery(ctx context.Context, brainID uuid.UUID) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO usage_counters (brain_id, ingested_files, ingested_chunks, query_count)
		VALUES ($1, 0, 0, 1)
		ON CONFLICT (brain_id) DO UPDATE SET
			query_count = usage_counters.query_count + 1
	`, brainID)
	if err != nil {
		return fmt.Errorf("record query usage: %w", err)
	}
	return nil
}

// Counters is one brain's activity rollup.
type Counters struct {
	IngestedFiles  int64
	IngestedChunks int64
	QueryCount     int64
}

// GetUsage returns the current counters for a brain, zero-valued if the
// brain has no recorded activity yet.
func (r *Recorder) GetUsage(ctx context.Context, brainID uuid.UUID) (Counters, error) {
	var c Counters
	err := r.db.Pool.QueryRow(ctx, `
		SELECT ingested_files, ingested_chunks, query_count
		FROM usage_counters
		WHERE brain_id = $1
	`, brainID).Scan(&c.IngestedFiles, &c.IngestedChunks, &c.QueryCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Counters{}, nil
		}
		return Counters{}, fmt.Errorf("get brain usage: %w", err)
	}
	return c, nil
}
