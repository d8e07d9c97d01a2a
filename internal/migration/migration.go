package migration

import (
	"context"

	"insurisk/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	for _, step := range r.steps() {
		if _, err := db.ExecContext(ctx, step.sql); err != nil {
			return errors.DatabaseError("failed to "+step.name, err)
		}
	}
	return nil
}

type step struct {
	name string
	sql  string
}

func (r *MigrationRunner) steps() []step {
	return []step{
		{"create analysis_runs table", `
			CREATE TABLE IF NOT EXISTS analysis_runs (
				id UUID PRIMARY KEY,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				finished_at TIMESTAMP WITH TIME ZONE NOT NULL,
				granularity VARCHAR(20) NOT NULL,
				input_records INTEGER NOT NULL,
				policies INTEGER NOT NULL,
				total_premium DOUBLE PRECISION NOT NULL,
				total_claims DOUBLE PRECISION NOT NULL,
				loss_ratio DOUBLE PRECISION NOT NULL,
				claim_frequency DOUBLE PRECISION NOT NULL,
				checks_passed BOOLEAN NOT NULL,
				fingerprint CHAR(64) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
			)`},
		{"create hypothesis_results table", `
			CREATE TABLE IF NOT EXISTS hypothesis_results (
				run_id UUID NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
				position INTEGER NOT NULL,
				hypothesis TEXT NOT NULL,
				metric VARCHAR(50) NOT NULL,
				test VARCHAR(50) NOT NULL,
				p_value DOUBLE PRECISION,
				statistic DOUBLE PRECISION,
				effect_size DOUBLE PRECISION,
				sample_size INTEGER NOT NULL,
				group_count INTEGER NOT NULL,
				reject BOOLEAN NOT NULL,
				PRIMARY KEY (run_id, position)
			)`},
		{"create segment_summaries table", `
			CREATE TABLE IF NOT EXISTS segment_summaries (
				run_id UUID NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
				segment VARCHAR(20) NOT NULL,
				policies INTEGER NOT NULL,
				percent DOUBLE PRECISION NOT NULL,
				total_premium DOUBLE PRECISION NOT NULL,
				total_claims DOUBLE PRECISION NOT NULL,
				loss_ratio_pct DOUBLE PRECISION NOT NULL,
				avg_premium_per_policy DOUBLE PRECISION NOT NULL,
				avg_claims_per_policy DOUBLE PRECISION NOT NULL,
				claim_frequency_pct DOUBLE PRECISION NOT NULL,
				avg_severity DOUBLE PRECISION NOT NULL,
				median_claims DOUBLE PRECISION NOT NULL,
				median_premium DOUBLE PRECISION NOT NULL,
				std_premium DOUBLE PRECISION NOT NULL,
				min_premium DOUBLE PRECISION NOT NULL,
				max_premium DOUBLE PRECISION NOT NULL,
				PRIMARY KEY (run_id, segment)
			)`},
		{"create indexes", `
			CREATE INDEX IF NOT EXISTS idx_analysis_runs_started_at ON analysis_runs(started_at DESC);
			CREATE INDEX IF NOT EXISTS idx_analysis_runs_fingerprint ON analysis_runs(fingerprint);
			CREATE INDEX IF NOT EXISTS idx_hypothesis_results_reject ON hypothesis_results(run_id, reject)`},
	}
}
