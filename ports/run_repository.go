package ports

import (
	"context"

	"insurisk/domain/run"
	"insurisk/domain/stats"
	"insurisk/internal/report"

	"github.com/google/uuid"
)

// RunRepository stores analysis runs with their result tables
type RunRepository interface {
	// SaveRun stores a run, its hypothesis results and its segment summary atomically
	SaveRun(ctx context.Context, r run.Run, tests []stats.HypothesisResult, segments []report.SegmentStats) error

	// GetRun returns a run by ID, or run.ErrRunNotFound
	GetRun(ctx context.Context, id uuid.UUID) (*run.Run, error)

	// ListRuns returns the most recent runs first
	ListRuns(ctx context.Context, limit int) ([]run.Run, error)

	// GetTests returns the hypothesis results of a run in suite order
	GetTests(ctx context.Context, id uuid.UUID) ([]stats.HypothesisResult, error)

	// GetSegments returns the segment summary of a run
	GetSegments(ctx context.Context, id uuid.UUID) ([]report.SegmentStats, error)
}
