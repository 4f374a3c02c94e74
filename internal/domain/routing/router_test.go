package routing

import (
	"testing"
	"time"

	"github.com/woundeval/woundeval/internal/domain/schema"
)

var now = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

func newbornElement(phase schema.RoutingPhase) schema.Element {
	return schema.Element{
		ID:    "birth_date",
		Type:  schema.TypeDate,
		Label: "Date of birth",
		Routing: []schema.RoutingRule{{
			ContextVar: ContextAgeInDays,
			Op:         schema.OpLt,
			Threshold:  7,
			Phase:      phase,
			Reason:     "newborn-referral",
			FindingRef: "finding-newborn",
		}},
	}
}

func TestEvaluate_ThresholdMet(t *testing.T) {
	el := newbornElement(schema.PhaseImmediate)

	// Born 2026-03-11, evaluated 2026-03-15 10:00: age 5 days.
	signal, ok := Evaluate(el, "2026-03-11", now)
	if !ok {
		t.Fatal("expected a redirect signal")
	}
	if signal.Reason != "newborn-referral" {
		t.Errorf("Reason = %q", signal.Reason)
	}
	if signal.ContextVar != ContextAgeInDays {
		t.Errorf("ContextVar = %q", signal.ContextVar)
	}
	if signal.ContextValue != 5 {
		t.Errorf("ContextValue = %v, want 5", signal.ContextValue)
	}
	if signal.FindingRef != "finding-newborn" {
		t.Errorf("FindingRef = %q", signal.FindingRef)
	}
}

func TestEvaluate_ThresholdNotMet(t *testing.T) {
	el := newbornElement(schema.PhaseImmediate)

	// Age 8 days: above the newborn threshold.
	if _, ok := Evaluate(el, "2026-03-08", now); ok {
		t.Error("expected no signal for an 8-day age")
	}
	// Exactly 7 days is not lt 7.
	if _, ok := Evaluate(el, "2026-03-09", now); ok {
		t.Error("expected no signal at the threshold boundary")
	}
}

func TestEvaluate_CompletionPhaseIgnored(t *testing.T) {
	el := newbornElement(schema.PhaseCompletion)
	if _, ok := Evaluate(el, "2026-03-11", now); ok {
		t.Error("completion-phase rules must not fire on field edits")
	}
}

func TestEvaluate_UnparseableValue(t *testing.T) {
	el := newbornElement(schema.PhaseImmediate)
	for _, v := range []any{"not-a-date", 42, nil, "15/03/2026"} {
		if _, ok := Evaluate(el, v, now); ok {
			t.Errorf("expected no signal for value %v", v)
		}
	}
}

func TestEvaluate_NoRules(t *testing.T) {
	el := schema.Element{ID: "length", Type: schema.TypeNumeric, Label: "Length"}
	if _, ok := Evaluate(el, "2026-03-11", now); ok {
		t.Error("expected no signal for an element without routing rules")
	}
}
