// Package progress persists partial evaluation state: per-step answers and
// the last-visited step, keyed by evaluation id. Every write is a
// whole-aggregate read-modify-write at the granularity of one step's answer
// map; there is no partial-field patching at the storage layer.
package progress

import (
	"errors"
	"time"
)

// ErrNotFound is returned by Load when no progress exists for an evaluation
// id. Callers treat it as "start empty", never as a failure.
var ErrNotFound = errors.New("evaluation progress not found")

// CurrentVersion is the aggregate format version written by this engine.
const CurrentVersion = 1

// StepEntry is the persisted snapshot of one step.
type StepEntry struct {
	Title      string         `json:"title"`
	Answers    map[string]any `json:"answers"`
	TableIndex int            `json:"tableIndex"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// Progress is the durable aggregate for one evaluation.
type Progress struct {
	Version            int                  `json:"version"`
	UpdatedAt          time.Time            `json:"updatedAt"`
	LastVisitedTableID string               `json:"lastVisitedTableId"`
	SavedTables        map[string]StepEntry `json:"savedTables"`
}

// New returns an empty aggregate.
func New() *Progress {
	return &Progress{
		Version:     CurrentVersion,
		SavedTables: make(map[string]StepEntry),
	}
}

// SetStep merges one step entry into the aggregate and bumps UpdatedAt.
func (p *Progress) SetStep(stepID string, entry StepEntry, now time.Time) {
	if p.SavedTables == nil {
		p.SavedTables = make(map[string]StepEntry)
	}
	entry.UpdatedAt = now
	p.SavedTables[stepID] = entry
	p.UpdatedAt = now
}

// SetLastVisited records the navigation position and bumps UpdatedAt.
func (p *Progress) SetLastVisited(stepID string, now time.Time) {
	p.LastVisitedTableID = stepID
	p.UpdatedAt = now
}

// Step returns the saved entry for a step, if present.
func (p *Progress) Step(stepID string) (StepEntry, bool) {
	e, ok := p.SavedTables[stepID]
	return e, ok
}

// Clone returns a deep copy so in-memory mirrors never alias stored state.
func (p *Progress) Clone() *Progress {
	cp := &Progress{
		Version:            p.Version,
		UpdatedAt:          p.UpdatedAt,
		LastVisitedTableID: p.LastVisitedTableID,
		SavedTables:        make(map[string]StepEntry, len(p.SavedTables)),
	}
	for id, e := range p.SavedTables {
		answers := make(map[string]any, len(e.Answers))
		for k, v := range e.Answers {
			answers[k] = v
		}
		e.Answers = answers
		cp.SavedTables[id] = e
	}
	return cp
}

// Info is a listing row for in-progress evaluations.
type Info struct {
	EvaluationID       string    `json:"evaluationId"`
	UpdatedAt          time.Time `json:"updatedAt"`
	LastVisitedTableID string    `json:"lastVisitedTableId"`
	StepsSaved         int       `json:"stepsSaved"`
}
