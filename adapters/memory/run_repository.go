package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"insurisk/domain/run"
	"insurisk/domain/stats"
	"insurisk/internal/errors"
	"insurisk/internal/report"

	"github.com/google/uuid"
)

type entry struct {
	run      run.Run
	tests    []stats.HypothesisResult
	segments []report.SegmentStats
}

// RunRepository implements ports.RunRepository with in-memory storage.
// Used when no database is configured and in tests.
type RunRepository struct {
	runs map[uuid.UUID]entry
	mu   sync.RWMutex
}

func NewRunRepository() *RunRepository {
	return &RunRepository{runs: make(map[uuid.UUID]entry)}
}

func (s *RunRepository) SaveRun(ctx context.Context, r run.Run, tests []stats.HypothesisResult, segments []report.SegmentStats) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[r.ID]; ok {
		return errors.InvalidInput(fmt.Sprintf("run %s already stored", r.ID))
	}
	s.runs[r.ID] = entry{
		run:      r,
		tests:    append([]stats.HypothesisResult(nil), tests...),
		segments: append([]report.SegmentStats(nil), segments...),
	}
	return nil
}

func (s *RunRepository) GetRun(ctx context.Context, id uuid.UUID) (*run.Run, error) {
	e, err := s.get(id)
	if err != nil {
		return nil, err
	}
	r := e.run
	return &r, nil
}

func (s *RunRepository) ListRuns(ctx context.Context, limit int) ([]run.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]run.Run, 0, len(s.runs))
	for _, e := range s.runs {
		runs = append(runs, e.run)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (s *RunRepository) GetTests(ctx context.Context, id uuid.UUID) ([]stats.HypothesisResult, error) {
	e, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return append([]stats.HypothesisResult{}, e.tests...), nil
}

func (s *RunRepository) GetSegments(ctx context.Context, id uuid.UUID) ([]report.SegmentStats, error) {
	e, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return append([]report.SegmentStats{}, e.segments...), nil
}

func (s *RunRepository) get(id uuid.UUID) (entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.runs[id]
	if !ok {
		return entry{}, errors.WithCode(errors.CodeNotFound, fmt.Errorf("%w: %s", run.ErrRunNotFound, id))
	}
	return e, nil
}
