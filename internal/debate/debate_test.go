package debate

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.veridict.agent/internal/models"
)

func TestSession_PhaseOrder(t *testing.T) {
	s := NewSession("claim")
	assert.Equal(t, PhaseClaimStated, s.Phase())

	// Acting out of order is rejected.
	assert.Error(t, s.Challenge(nil))
	assert.Error(t, s.Rebut(nil))
	_, err := s.Record()
	assert.Error(t, err)

	require.NoError(t, s.Advocate(models.Argument{Strength: 0.5}))
	assert.Equal(t, PhaseChallenged, s.Phase())

	require.NoError(t, s.Challenge([]models.Argument{{Strength: 0.2}}))
	require.NoError(t, s.Rebut([]models.Argument{{Strength: 0.1}}))
	assert.Equal(t, PhaseResolved, s.Phase())

	_, err = s.Record()
	assert.NoError(t, err)
}

func TestSession_SinglePass(t *testing.T) {
	s := NewSession("claim")
	require.NoError(t, s.Advocate(models.Argument{Strength: 0.5}))
	// No role may act twice.
	assert.Error(t, s.Advocate(models.Argument{Strength: 0.9}))
}

func TestSession_SurplusRebuttalsDropped(t *testing.T) {
	s := NewSession("claim")
	require.NoError(t, s.Advocate(models.Argument{Strength: 0.5}))
	require.NoError(t, s.Challenge([]models.Argument{{Strength: 0.4}}))
	require.NoError(t, s.Rebut([]models.Argument{{Strength: 0.1}, {Strength: 0.9}}))

	record, err := s.Record()
	require.NoError(t, err)
	assert.Len(t, record.Rebuttals, 1)
}

func TestRun_ProducesCompleteRecord(t *testing.T) {
	reports := []models.SignalReport{
		{UnitID: "source_tracker", Confidence: 0.8, SubScores: map[string]float64{
			models.SubScoreSourceCredibility: 0.9,
		}},
		{UnitID: "textual", Confidence: 0.7, SubScores: map[string]float64{
			models.SubScoreEvidencePresence: 0.8,
		}},
	}
	record, err := Run(models.NewsItem{Headline: "City council approves budget"}, reports)
	require.NoError(t, err)

	// All three role lists are populated, never empty.
	assert.NotEmpty(t, record.Advocacy)
	assert.NotEmpty(t, record.Challenges)
	assert.NotEmpty(t, record.Rebuttals)
	assert.Len(t, record.Rebuttals, len(record.Challenges))
	assert.Contains(t, record.Claim, "City council")

	// Advocacy strength is the mean of usable report confidences.
	assert.InDelta(t, 0.75, record.AdvocacyStrength(), 1e-9)
}

func TestRun_MultibyteHeadlineTruncatesCleanly(t *testing.T) {
	item := models.NewsItem{Headline: strings.Repeat("Überraschung! ", 20)}
	reports := []models.SignalReport{{UnitID: "textual", Confidence: 0.7}}

	record, err := Run(item, reports)
	require.NoError(t, err)

	// Shortening the headline must never cut through a multibyte rune.
	assert.True(t, utf8.ValidString(record.Claim))
	assert.NotContains(t, record.Claim, string(utf8.RuneError))
	assert.Contains(t, record.Claim, "Überraschung")
}

func TestRun_NoUsableReports(t *testing.T) {
	reports := []models.SignalReport{
		{UnitID: "textual"},
		{UnitID: "visual"},
	}
	record, err := Run(models.NewsItem{Headline: "anything"}, reports)
	require.NoError(t, err)

	assert.Equal(t, 0.0, record.AdvocacyStrength())
	// Degenerate units raise challenges about their missing signal.
	assert.GreaterOrEqual(t, len(record.Challenges), 2)
	assert.LessOrEqual(t, record.NetStrength(), 0.0)
}

func TestRun_WeakSignalsGenerateChallenges(t *testing.T) {
	reports := []models.SignalReport{
		{UnitID: "source_tracker", Confidence: 0.15},
		{UnitID: "textual", Confidence: 0.2, SubScores: map[string]float64{
			models.SubScoreEmotionalManip: 0.9,
		}},
	}
	record, err := Run(models.NewsItem{Headline: "Miracle cure found"}, reports)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, len(record.Challenges), 2)
	assert.Less(t, record.NetStrength(), 0.0)
}

func TestRun_EqualStrengthResolvesNotSupported(t *testing.T) {
	s := NewSession("claim")
	require.NoError(t, s.Advocate(models.Argument{Strength: 0.6}))
	require.NoError(t, s.Challenge([]models.Argument{{Strength: 0.6}}))
	require.NoError(t, s.Rebut([]models.Argument{{Strength: 0}}))

	record, err := s.Record()
	require.NoError(t, err)
	assert.LessOrEqual(t, record.NetStrength(), 0.0)
}
