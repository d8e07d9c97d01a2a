package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"insurisk/domain/run"
	"insurisk/domain/stats"
	"insurisk/internal/errors"
	"insurisk/internal/report"
	"insurisk/ports"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// runRepository implements the RunRepository interface
type runRepository struct {
	db *sqlx.DB
}

// NewRunRepository creates a new PostgreSQL run repository
func NewRunRepository(db *sqlx.DB) ports.RunRepository {
	return &runRepository{db: db}
}

// testRow mirrors hypothesis_results; NaN p-values and statistics are stored as NULL
type testRow struct {
	Position   int             `db:"position"`
	Hypothesis string          `db:"hypothesis"`
	Metric     string          `db:"metric"`
	Test       string          `db:"test"`
	PValue     sql.NullFloat64 `db:"p_value"`
	Statistic  sql.NullFloat64 `db:"statistic"`
	EffectSize sql.NullFloat64 `db:"effect_size"`
	SampleSize int             `db:"sample_size"`
	Groups     int             `db:"group_count"`
	Reject     bool            `db:"reject"`
}

func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func fromNullable(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// SaveRun inserts the run and its result tables in one transaction
func (r *runRepository) SaveRun(ctx context.Context, rn run.Run, tests []stats.HypothesisResult, segments []report.SegmentStats) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.DatabaseError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO analysis_runs (
			id, started_at, finished_at, granularity, input_records, policies,
			total_premium, total_claims, loss_ratio, claim_frequency, checks_passed, fingerprint
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		rn.ID, rn.StartedAt, rn.FinishedAt, rn.Granularity, rn.InputRecords, rn.Policies,
		rn.TotalPremium, rn.TotalClaims, rn.LossRatio, rn.ClaimFrequency, rn.ChecksPassed, rn.Fingerprint)
	if err != nil {
		return errors.DatabaseError("failed to insert run", err)
	}

	for i, t := range tests {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO hypothesis_results (
				run_id, position, hypothesis, metric, test, p_value, statistic,
				effect_size, sample_size, group_count, reject
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			rn.ID, i, t.Hypothesis, string(t.Metric), string(t.Test), nullable(t.PValue), nullable(t.Statistic),
			nullable(t.EffectSize), t.SampleSize, t.Groups, t.Reject)
		if err != nil {
			return errors.DatabaseError(fmt.Sprintf("failed to insert hypothesis result %q", t.Hypothesis), err)
		}
	}

	for _, s := range segments {
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO segment_summaries (
				run_id, segment, policies, percent, total_premium, total_claims, loss_ratio_pct,
				avg_premium_per_policy, avg_claims_per_policy, claim_frequency_pct, avg_severity,
				median_claims, median_premium, std_premium, min_premium, max_premium
			) VALUES (
				:run_id, :segment, :policies, :percent, :total_premium, :total_claims, :loss_ratio_pct,
				:avg_premium_per_policy, :avg_claims_per_policy, :claim_frequency_pct, :avg_severity,
				:median_claims, :median_premium, :std_premium, :min_premium, :max_premium
			)`, segmentRow{RunID: rn.ID, SegmentStats: s})
		if err != nil {
			return errors.DatabaseError(fmt.Sprintf("failed to insert segment summary %q", s.Segment), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.DatabaseError("failed to commit run", err)
	}
	return nil
}

type segmentRow struct {
	RunID uuid.UUID `db:"run_id"`
	report.SegmentStats
}

// GetRun retrieves a run by its ID
func (r *runRepository) GetRun(ctx context.Context, id uuid.UUID) (*run.Run, error) {
	var rn run.Run
	err := r.db.GetContext(ctx, &rn, `
		SELECT id, started_at, finished_at, granularity, input_records, policies,
			total_premium, total_claims, loss_ratio, claim_frequency, checks_passed, fingerprint
		FROM analysis_runs WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.WithCode(errors.CodeNotFound, fmt.Errorf("%w: %s", run.ErrRunNotFound, id))
		}
		return nil, errors.DatabaseError("failed to get run", err)
	}
	return &rn, nil
}

// ListRuns returns the most recent runs first
func (r *runRepository) ListRuns(ctx context.Context, limit int) ([]run.Run, error) {
	runs := []run.Run{}
	err := r.db.SelectContext(ctx, &runs, `
		SELECT id, started_at, finished_at, granularity, input_records, policies,
			total_premium, total_claims, loss_ratio, claim_frequency, checks_passed, fingerprint
		FROM analysis_runs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, errors.DatabaseError("failed to list runs", err)
	}
	return runs, nil
}

// GetTests returns the hypothesis results of a run in suite order
func (r *runRepository) GetTests(ctx context.Context, id uuid.UUID) ([]stats.HypothesisResult, error) {
	if err := r.exists(ctx, id); err != nil {
		return nil, err
	}

	var rows []testRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT position, hypothesis, metric, test, p_value, statistic,
			effect_size, sample_size, group_count, reject
		FROM hypothesis_results
		WHERE run_id = $1
		ORDER BY position`, id)
	if err != nil {
		return nil, errors.DatabaseError("failed to get hypothesis results", err)
	}

	results := make([]stats.HypothesisResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, stats.HypothesisResult{
			Hypothesis: row.Hypothesis,
			Metric:     stats.Metric(row.Metric),
			Test:       stats.TestName(row.Test),
			PValue:     fromNullable(row.PValue),
			Statistic:  fromNullable(row.Statistic),
			EffectSize: fromNullable(row.EffectSize),
			SampleSize: row.SampleSize,
			Groups:     row.Groups,
			Reject:     row.Reject,
		})
	}
	return results, nil
}

// GetSegments returns the segment summary of a run, best tier first
func (r *runRepository) GetSegments(ctx context.Context, id uuid.UUID) ([]report.SegmentStats, error) {
	if err := r.exists(ctx, id); err != nil {
		return nil, err
	}

	segments := []report.SegmentStats{}
	err := r.db.SelectContext(ctx, &segments, `
		SELECT segment, policies, percent, total_premium, total_claims, loss_ratio_pct,
			avg_premium_per_policy, avg_claims_per_policy, claim_frequency_pct, avg_severity,
			median_claims, median_premium, std_premium, min_premium, max_premium
		FROM segment_summaries
		WHERE run_id = $1
		ORDER BY CASE segment
			WHEN 'Low-Risk' THEN 0
			WHEN 'Medium-Risk' THEN 1
			ELSE 2
		END`, id)
	if err != nil {
		return nil, errors.DatabaseError("failed to get segment summaries", err)
	}
	return segments, nil
}

func (r *runRepository) exists(ctx context.Context, id uuid.UUID) error {
	var found bool
	err := r.db.GetContext(ctx, &found, `SELECT EXISTS(SELECT 1 FROM analysis_runs WHERE id = $1)`, id)
	if err != nil {
		return errors.DatabaseError("failed to check run", err)
	}
	if !found {
		return errors.WithCode(errors.CodeNotFound, fmt.Errorf("%w: %s", run.ErrRunNotFound, id))
	}
	return nil
}
