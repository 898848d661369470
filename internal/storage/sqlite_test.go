package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.veridict.agent/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(runID string, ts time.Time) models.RunResult {
	return models.RunResult{
		RunID:  runID,
		Item:   models.NewsItem{ID: "item-" + runID, Headline: "Headline for " + runID},
		Status: models.StatusCompleted,
		Verdict: &models.Verdict{
			ItemID:         "item-" + runID,
			Verdict:        models.VerdictReal,
			Confidence:     0.88,
			AggregateScore: 0.94,
			Categories:     models.CategoryScores{models.CategoryClickbait: 12.5},
			Rationale:      "strong supporting signals",
		},
		Phases: map[string]models.PhaseResult{
			"judgment": {Name: "judgment", Duration: 3 * time.Millisecond},
		},
		Timestamp: ts,
	}
}

func TestStore_SaveAndGetRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run := sampleRun("r1", time.Now().UTC())
	require.NoError(t, s.SaveRun(ctx, run))

	got, err := s.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, run.RunID, got.RunID)
	assert.Equal(t, run.Item.Headline, got.Item.Headline)
	require.NotNil(t, got.Verdict)
	assert.Equal(t, models.VerdictReal, got.Verdict.Verdict)
	assert.Equal(t, 0.88, got.Verdict.Confidence)
	assert.Equal(t, 12.5, got.Verdict.Categories[models.CategoryClickbait])
}

func TestStore_SaveRunIsUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run := sampleRun("r1", time.Now().UTC())
	require.NoError(t, s.SaveRun(ctx, run))
	run.Verdict.Verdict = models.VerdictUnsure
	require.NoError(t, s.SaveRun(ctx, run))

	got, err := s.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, models.VerdictUnsure, got.Verdict.Verdict)
}

func TestStore_GetRunNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetRun(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SaveRunWithoutVerdict(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run := models.RunResult{
		RunID:     "dup1",
		Item:      models.NewsItem{ID: "item-dup"},
		Status:    models.StatusDuplicate,
		Timestamp: time.Now().UTC(),
	}
	require.NoError(t, s.SaveRun(ctx, run))

	got, err := s.GetRun(ctx, "dup1")
	require.NoError(t, err)
	assert.Nil(t, got.Verdict)
	assert.Equal(t, models.StatusDuplicate, got.Status)
}

func TestStore_RecentRunsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.SaveRun(ctx, sampleRun(id, base.Add(time.Duration(i)*time.Minute))))
	}

	runs, err := s.RecentRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].RunID)
	assert.Equal(t, "b", runs[1].RunID)
}

func TestStore_ReliabilityCheckpointRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	entries := []models.ReliabilityEntry{
		{UnitID: "textual", TrustWeight: 1.4, SmoothedAccuracy: 0.7, CorrectCount: 7, TotalCount: 10, UpdatedAt: time.Now().UTC()},
		{UnitID: "visual", TrustWeight: 0.6, SmoothedAccuracy: 0.3, CorrectCount: 3, TotalCount: 10, UpdatedAt: time.Now().UTC()},
	}
	require.NoError(t, s.CheckpointReliability(ctx, entries))

	// A second checkpoint overwrites, it never duplicates rows.
	entries[0].TrustWeight = 1.6
	require.NoError(t, s.CheckpointReliability(ctx, entries))

	loaded, err := s.LoadReliability(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "textual", loaded[0].UnitID)
	assert.Equal(t, 1.6, loaded[0].TrustWeight)
	assert.Equal(t, int64(3), loaded[1].CorrectCount)
}

func TestStore_LoadReliabilityEmpty(t *testing.T) {
	s := openTestStore(t)
	loaded, err := s.LoadReliability(context.Background())
	require.NoError(t, err)
	assert.Empty(t, loaded)
}
