// Package routing watches specific field changes and raises redirect
// signals when an element-declared threshold on a computed context variable
// is met. The evaluator itself is stateless; surfacing a signal exactly once
// and clearing it is the caller's responsibility.
package routing

import (
	"time"

	"github.com/woundeval/woundeval/internal/domain/calc"
	"github.com/woundeval/woundeval/internal/domain/schema"
)

// ContextAgeInDays is the only computed context variable currently
// evaluated: the age derived from a birth-date-like field.
const ContextAgeInDays = "age_in_days"

// RedirectSignal is a transient alert produced when an immediate-phase rule
// matches. It is consumed once by the presentation layer and never
// persisted.
type RedirectSignal struct {
	Reason       string  `json:"reason"`
	ContextVar   string  `json:"contextVar"`
	ContextValue float64 `json:"contextValue"`
	FindingRef   string  `json:"findingRef,omitempty"`
}

// Evaluate checks the element's immediate-phase routing rules against the
// new value. Completion-phase rules are ignored here. A value that does not
// parse as a date yields no signal; field validation reports that problem
// separately.
func Evaluate(el schema.Element, newValue any, now time.Time) (*RedirectSignal, bool) {
	if len(el.Routing) == 0 {
		return nil, false
	}

	s, ok := newValue.(string)
	if !ok {
		return nil, false
	}
	date, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, false
	}
	age := float64(calc.AgeInDays(date, now))

	for _, rule := range el.Routing {
		if rule.Phase != schema.PhaseImmediate || rule.ContextVar != ContextAgeInDays {
			continue
		}
		if schema.CompareValues(age, rule.Op, rule.Threshold) {
			return &RedirectSignal{
				Reason:       rule.Reason,
				ContextVar:   rule.ContextVar,
				ContextValue: age,
				FindingRef:   rule.FindingRef,
			}, true
		}
	}
	return nil, false
}
