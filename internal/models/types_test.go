package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDebateRecord_UnresolvedChallenge(t *testing.T) {
	d := DebateRecord{
		Challenges: []Argument{{Strength: 0.8}, {Strength: 0.5}, {Strength: 0.4}},
		Rebuttals:  []Argument{{Strength: 0.3}, {Strength: 0.9}},
	}

	assert.InDelta(t, 0.5, d.UnresolvedChallenge(0), 1e-9)
	// Over-rebutted challenges floor at zero, never go negative.
	assert.Equal(t, 0.0, d.UnresolvedChallenge(1))
	// An unanswered challenge keeps its full strength.
	assert.InDelta(t, 0.4, d.UnresolvedChallenge(2), 1e-9)
}

func TestDebateRecord_NetStrength_TieBreak(t *testing.T) {
	d := DebateRecord{
		Advocacy:   []Argument{{Strength: 0.6}},
		Challenges: []Argument{{Strength: 0.6}},
	}
	// Equal opposing strength resolves to not supported.
	assert.LessOrEqual(t, d.NetStrength(), 0.0)
}

func TestDebateRecord_NetStrength_Clipped(t *testing.T) {
	strong := DebateRecord{
		Advocacy: []Argument{{Strength: 1}, {Strength: 1}, {Strength: 1}},
	}
	assert.Equal(t, 1.0, strong.NetStrength())

	weak := DebateRecord{
		Advocacy:   []Argument{{Strength: 0}},
		Challenges: []Argument{{Strength: 1}, {Strength: 1}, {Strength: 1}},
	}
	assert.Equal(t, -1.0, weak.NetStrength())
}

func TestCategoryScores_Dominant(t *testing.T) {
	cs := CategoryScores{
		CategoryClickbait:      72,
		CategoryDisinformation: 85,
		CategorySatire:         12,
	}
	cat, score := cs.Dominant()
	assert.Equal(t, CategoryDisinformation, cat)
	assert.Equal(t, 85.0, score)

	var empty CategoryScores
	cat, score = empty.Dominant()
	assert.Equal(t, Category(""), cat)
	assert.Equal(t, 0.0, score)
}

func TestSignalReport_Degenerate(t *testing.T) {
	assert.True(t, SignalReport{UnitID: "textual"}.Degenerate())
	assert.False(t, SignalReport{UnitID: "textual", Confidence: 0.1}.Degenerate())
}

func TestVerdictLabel_Valid(t *testing.T) {
	assert.True(t, VerdictReal.Valid())
	assert.True(t, VerdictFake.Valid())
	assert.True(t, VerdictUnsure.Valid())
	assert.False(t, VerdictLabel("MAYBE").Valid())
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-0.5))
	assert.Equal(t, 1.0, Clamp01(1.5))
	assert.Equal(t, 0.42, Clamp01(0.42))
}
