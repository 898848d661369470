package pipeline

import (
	"errors"
	"fmt"

	"dev.veridict.agent/internal/models"
)

// ErrNoUnits is wrapped by configuration errors raised when the controller
// is constructed without any analysis unit.
var ErrNoUnits = errors.New("no analysis units registered")

// ConfigurationError reports an invalid controller setup. It is raised at
// construction, never per run.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pipeline configuration: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("pipeline configuration: %s", e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// StageFailure records a non-fatal stage error. The controller converts it
// to a degenerate report and keeps going; it surfaces only inside the
// run's phase trace.
type StageFailure struct {
	Stage string
	Err   error
}

func (e *StageFailure) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageFailure) Unwrap() error { return e.Err }

// JudgeFailure is fatal to a run: no verdict can be manufactured. The
// partial phase trace is attached for diagnostics.
type JudgeFailure struct {
	Err    error
	Phases map[string]models.PhaseResult
}

func (e *JudgeFailure) Error() string {
	return fmt.Sprintf("judgment failed, no verdict produced: %v", e.Err)
}

func (e *JudgeFailure) Unwrap() error { return e.Err }
