package reliability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.veridict.agent/internal/models"
)

func TestRegistry_SeededDefaults(t *testing.T) {
	r := NewRegistry("source_tracker", "textual")

	assert.Equal(t, 1.0, r.Weight("source_tracker"))
	assert.True(t, r.Known("textual"))
	assert.False(t, r.Known("visual"))
	// Unknown units read as neutral.
	assert.Equal(t, 1.0, r.Weight("visual"))
}

func TestRegistry_UpdateMovesWeight(t *testing.T) {
	r := NewRegistry("textual")

	entry, err := r.Update("textual", true, 0.1)
	require.NoError(t, err)
	assert.Greater(t, entry.TrustWeight, 1.0)
	assert.Equal(t, int64(1), entry.CorrectCount)
	assert.Equal(t, int64(1), entry.TotalCount)

	entry, err = r.Update("textual", false, 0.1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), entry.CorrectCount)
	assert.Equal(t, int64(2), entry.TotalCount)
}

func TestRegistry_UnknownUnitRejected(t *testing.T) {
	r := NewRegistry("textual")
	_, err := r.Update("mystery", true, 0.1)
	require.ErrorIs(t, err, ErrUnknownUnit)
	// The registry is never grown by stray feedback.
	assert.False(t, r.Known("mystery"))
}

func TestRegistry_WeightStaysClamped(t *testing.T) {
	r := NewRegistry("textual", "visual")

	for i := 0; i < 500; i++ {
		_, err := r.Update("textual", true, 0.1)
		require.NoError(t, err)
		_, err = r.Update("visual", false, 0.1)
		require.NoError(t, err)
	}

	assert.LessOrEqual(t, r.Weight("textual"), MaxWeight)
	assert.GreaterOrEqual(t, r.Weight("visual"), MinWeight)
	// Consistently wrong units approach the floor, never below it.
	assert.InDelta(t, MinWeight, r.Weight("visual"), 0.01)
}

func TestRegistry_SmoothingDampensSingleOutcome(t *testing.T) {
	r := NewRegistry("textual")

	first, err := r.Update("textual", true, 0.1)
	require.NoError(t, err)
	// One correct outcome nudges the EMA, it does not jump to 1.
	assert.Less(t, first.SmoothedAccuracy, 0.6)
	assert.Greater(t, first.SmoothedAccuracy, 0.5)
}

func TestRegistry_SnapshotSorted(t *testing.T) {
	r := NewRegistry("visual", "source_tracker", "textual")
	snap := r.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "source_tracker", snap[0].UnitID)
	assert.Equal(t, "textual", snap[1].UnitID)
	assert.Equal(t, "visual", snap[2].UnitID)
}

func TestRegistry_RestoreDropsUnknownAndReclamps(t *testing.T) {
	r := NewRegistry("textual")
	r.Restore([]models.ReliabilityEntry{
		{UnitID: "textual", TrustWeight: 7.5, SmoothedAccuracy: 0.9, TotalCount: 10, UpdatedAt: time.Now()},
		{UnitID: "retired_unit", TrustWeight: 2.0},
	})

	assert.Equal(t, MaxWeight, r.Weight("textual"))
	assert.False(t, r.Known("retired_unit"))
}
