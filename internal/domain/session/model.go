// Package session orchestrates one evaluation: it loads persisted progress,
// feeds field edits through the validator, the calculators and the routing
// evaluator, drives the step sequencer, mirrors answer changes into the
// progress store, and assembles the final summary.
package session

import (
	"context"
	"time"

	"github.com/woundeval/woundeval/internal/domain/calc"
	"github.com/woundeval/woundeval/internal/domain/routing"
	"github.com/woundeval/woundeval/internal/domain/validation"
)

// AnswerMap holds one step's current answers, keyed by element id.
type AnswerMap map[string]any

// Clone returns a shallow copy safe to hand to the persistence layer.
func (m AnswerMap) Clone() AnswerMap {
	cp := make(AnswerMap, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

// EditResult reports the immediate consequences of one field edit.
type EditResult struct {
	Errors   []validation.FieldError `json:"errors,omitempty"`
	Computed []calc.Result           `json:"computed,omitempty"`
	Redirect *routing.RedirectSignal `json:"redirect,omitempty"`
}

// SummaryStep is one step's slice of the final summary.
type SummaryStep struct {
	StepID      string            `json:"stepId"`
	Order       int               `json:"order"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Answers     map[string]any    `json:"answers"`
	FieldLabels map[string]string `json:"fieldLabels"`
}

// Summary is the immutable snapshot produced when an evaluation completes.
// The engine keeps no reference to it after handing it off.
type Summary struct {
	EvaluationID string        `json:"evaluationId"`
	CompletedAt  time.Time     `json:"completedAt"`
	Steps        []SummaryStep `json:"steps"`
}

// ConstatResult is the external finding generator's output for one step.
type ConstatResult struct {
	DetectedConstats []string       `json:"detectedConstats"`
	ConstatTable     string         `json:"constatTable,omitempty"`
	ConstatData      map[string]any `json:"constatData,omitempty"`
}

// ConstatGenerator matches the summary's answer data against the clinical
// finding rule database. The engine only supplies input and forwards output.
type ConstatGenerator interface {
	Generate(ctx context.Context, summary *Summary) (map[string]ConstatResult, error)
}

// Navigator is the abstract navigation callback: the engine requests
// transitions to named destinations and renders nothing itself.
type Navigator interface {
	Navigate(destination string, args map[string]any)
}

// Navigation destinations requested by the controller.
const (
	DestSummary       = "show-summary"
	DestRedirectAlert = "show-redirect-alert"
)

// NopNavigator ignores navigation requests.
type NopNavigator struct{}

func (NopNavigator) Navigate(string, map[string]any) {}

// NopConstatGenerator returns no findings.
type NopConstatGenerator struct{}

func (NopConstatGenerator) Generate(context.Context, *Summary) (map[string]ConstatResult, error) {
	return map[string]ConstatResult{}, nil
}
