package memory

import (
	"context"
	stderrors "errors"
	"math"
	"testing"
	"time"

	"insurisk/domain/policy"
	"insurisk/domain/run"
	"insurisk/domain/stats"
	"insurisk/internal/errors"
	"insurisk/internal/report"
	"insurisk/ports"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.RunRepository = (*RunRepository)(nil)

func TestRunRepository_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository()

	r := run.Run{ID: uuid.New(), StartedAt: time.Now(), Granularity: "policy", Policies: 10}
	tests := []stats.HypothesisResult{
		{Hypothesis: "Province vs Frequency", Test: stats.TestChiSquare, PValue: 0.01, Reject: true},
		{Hypothesis: "Gender vs Severity", Test: stats.TestInsufficientGroups, PValue: math.NaN()},
	}
	segments := []report.SegmentStats{{Segment: policy.SegmentLow, Policies: 4}}
	require.NoError(t, repo.SaveRun(ctx, r, tests, segments))

	got, err := repo.GetRun(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Policies)

	gotTests, err := repo.GetTests(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, gotTests, 2)
	assert.Equal(t, "Province vs Frequency", gotTests[0].Hypothesis)
	assert.True(t, math.IsNaN(gotTests[1].PValue))

	gotSegments, err := repo.GetSegments(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, segments, gotSegments)

	assert.Error(t, repo.SaveRun(ctx, r, nil, nil), "duplicate IDs are rejected")
}

func TestRunRepository_NotFound(t *testing.T) {
	repo := NewRunRepository()
	_, err := repo.GetRun(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, run.ErrRunNotFound))
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))

	_, err = repo.GetTests(context.Background(), uuid.New())
	assert.True(t, stderrors.Is(err, run.ErrRunNotFound))
}

func TestRunRepository_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.SaveRun(ctx, run.Run{ID: uuid.New(), StartedAt: base.Add(time.Duration(i) * time.Hour), InputRecords: i}, nil, nil))
	}

	runs, err := repo.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 2, runs[0].InputRecords)
	assert.Equal(t, 1, runs[1].InputRecords)
}
