// Package reliability tracks per-unit trust weights learned from feedback.
// Weights scale each unit's influence on the judge's weighted mean.
package reliability

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"dev.veridict.agent/internal/models"
)

const (
	// Trust weight bounds. A unit can be discounted but never silenced,
	// and never dominate the others outright.
	MinWeight = 0.1
	MaxWeight = 3.0

	initialAccuracy = 0.5
)

// Registry is the source of per-unit trust. Entries are seeded for every
// registered unit at construction; feedback for any other identifier is
// rejected so stray feedback can never grow the registry.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*models.ReliabilityEntry
}

func NewRegistry(unitIDs ...string) *Registry {
	r := &Registry{entries: make(map[string]*models.ReliabilityEntry, len(unitIDs))}
	for _, id := range unitIDs {
		r.entries[id] = &models.ReliabilityEntry{
			UnitID:           id,
			TrustWeight:      1.0,
			SmoothedAccuracy: initialAccuracy,
		}
	}
	return r
}

// Weight returns the current trust weight for a unit.
func (r *Registry) Weight(unitID string) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[unitID]; ok {
		return e.TrustWeight
	}
	return 1.0
}

// ErrUnknownUnit is returned for feedback naming an unregistered unit.
// Callers log and drop such feedback; the registry is never mutated.
var ErrUnknownUnit = errors.New("reliability: feedback for unknown unit")

// Update folds one feedback observation into the unit's smoothed accuracy
// and recomputes its trust weight. rate is the EMA learning rate for this
// observation; explicit ground truth uses a higher rate than proxy signals.
func (r *Registry) Update(unitID string, correct bool, rate float64) (models.ReliabilityEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[unitID]
	if !ok {
		return models.ReliabilityEntry{}, fmt.Errorf("%w: %q", ErrUnknownUnit, unitID)
	}

	target := 0.0
	if correct {
		target = 1.0
		e.CorrectCount++
	}
	e.TotalCount++
	e.SmoothedAccuracy += rate * (target - e.SmoothedAccuracy)
	e.TrustWeight = clampWeight(2 * e.SmoothedAccuracy)
	e.UpdatedAt = time.Now().UTC()
	return *e, nil
}

// Known reports whether the unit was registered at construction.
func (r *Registry) Known(unitID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[unitID]
	return ok
}

// Snapshot returns all entries sorted by unit ID, for checkpointing and
// the statistics endpoint.
func (r *Registry) Snapshot() []models.ReliabilityEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.ReliabilityEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UnitID < out[j].UnitID })
	return out
}

// Restore loads checkpointed state into the seeded entries. Checkpoint
// rows for units no longer registered are dropped, and weights are
// re-clamped in case the stored data predates a bounds change.
func (r *Registry) Restore(entries []models.ReliabilityEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range entries {
		e := entries[i]
		if _, ok := r.entries[e.UnitID]; !ok {
			continue
		}
		e.TrustWeight = clampWeight(e.TrustWeight)
		r.entries[e.UnitID] = &e
	}
}

func clampWeight(w float64) float64 {
	if w < MinWeight {
		return MinWeight
	}
	if w > MaxWeight {
		return MaxWeight
	}
	return w
}
