// Package analysis provides the built-in heuristic analysis units and the
// boundary contract every unit must satisfy. External, model-backed units
// plug in behind the same interface; their heterogeneous outputs are
// normalized into the fixed SignalReport shape at this boundary so the judge
// never branches on unit-specific types.
package analysis

import (
	"context"

	"dev.veridict.agent/internal/models"
)

// Built-in unit identifiers.
const (
	UnitSourceTracker = "source_tracker"
	UnitPreprocessor  = "preprocessor"
	UnitTextual       = "textual"
	UnitVisual        = "visual"
)

// Unit is one analysis component. Analyze must always return a report; a
// unit that fails internally returns an error and the controller converts
// it into a zero-confidence report rather than aborting the run.
type Unit interface {
	ID() string
	Analyze(ctx context.Context, item models.NewsItem) (models.SignalReport, error)
}

// DegenerateReport builds the zero-confidence placeholder recorded for a
// failed or absent unit.
func DegenerateReport(unitID, reason string) models.SignalReport {
	return models.SignalReport{
		UnitID:    unitID,
		Rationale: reason,
	}
}
