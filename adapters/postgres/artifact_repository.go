package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"churnpipe/domain/core"
	"churnpipe/domain/customer"
	"churnpipe/domain/model"
	"churnpipe/ports"
)

// Artifact kinds stored in the pipeline_artifacts table.
const (
	kindCleanTable   = "clean_table"
	kindFeatureTable = "feature_table"
	kindModelBundle  = "model_bundle"
)

const schema = `
CREATE TABLE IF NOT EXISTS pipeline_artifacts (
	id         BIGSERIAL PRIMARY KEY,
	run_id     TEXT NOT NULL,
	kind       TEXT NOT NULL,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_pipeline_artifacts_kind_created
	ON pipeline_artifacts (kind, created_at DESC);
`

// artifactRepository implements the ArtifactStore interface on Postgres.
// Every artifact is one JSONB row: whole-table writes keep a failed stage
// from leaving partial state behind.
type artifactRepository struct {
	db *sqlx.DB
}

// Connect opens the database, verifies connectivity and ensures the schema.
func Connect(databaseURL string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return db, nil
}

// NewArtifactRepository creates a new artifact store backed by Postgres.
func NewArtifactRepository(db *sqlx.DB) ports.ArtifactStore {
	return &artifactRepository{db: db}
}

func (r *artifactRepository) SaveCleanTable(ctx context.Context, runID core.RunID, table *customer.CleanTable) error {
	return r.save(ctx, runID, kindCleanTable, table)
}

func (r *artifactRepository) SaveFeatureTable(ctx context.Context, runID core.RunID, table *customer.FeatureTable) error {
	return r.save(ctx, runID, kindFeatureTable, table)
}

func (r *artifactRepository) SaveModelBundle(ctx context.Context, bundle *model.Bundle) error {
	return r.save(ctx, bundle.RunID, kindModelBundle, bundle)
}

// LoadLatestFeatureTable returns the most recently stored feature table, or
// nil when none exists yet.
func (r *artifactRepository) LoadLatestFeatureTable(ctx context.Context) (*customer.FeatureTable, error) {
	query := `SELECT payload FROM pipeline_artifacts
		WHERE kind = $1 ORDER BY created_at DESC, id DESC LIMIT 1`

	var payload []byte
	err := r.db.QueryRowContext(ctx, query, kindFeatureTable).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load feature table: %w", err)
	}

	var table customer.FeatureTable
	if err := json.Unmarshal(payload, &table); err != nil {
		return nil, fmt.Errorf("failed to unmarshal feature table: %w", err)
	}
	return &table, nil
}

func (r *artifactRepository) save(ctx context.Context, runID core.RunID, kind string, artifact any) error {
	payload, err := json.Marshal(artifact)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", kind, err)
	}

	query := `INSERT INTO pipeline_artifacts (run_id, kind, payload) VALUES ($1, $2, $3)`
	if _, err := r.db.ExecContext(ctx, query, runID.String(), kind, payload); err != nil {
		return fmt.Errorf("failed to store %s: %w", kind, err)
	}
	return nil
}
