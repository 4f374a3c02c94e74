// Package calc holds the derived clinical value calculators: BMI, perfusion
// indices, wound surface and size class, wound chronicity and necrotic-tissue
// banding. Every calculator is a pure function over the current answers,
// declares its input field paths explicitly, and is re-invoked whenever one
// of them changes. Writing results back and suppressing redundant writes is
// the session controller's job, not the calculator's.
package calc

import (
	"math"

	"github.com/woundeval/woundeval/internal/domain/schema"
)

// Result is one computed value destined for an answer map. Band carries the
// classification attached to the value, when the calculator defines one.
type Result struct {
	Target schema.FieldRef `json:"target"`
	Value  any             `json:"value"`
	Band   *Band           `json:"band,omitempty"`
}

// Calculator is a stateless derived-value computation. Compute returns no
// results when its inputs are absent or out of domain ("not computed" is
// distinct from zero).
type Calculator interface {
	Name() string
	Dependencies() []schema.FieldRef
	Compute(lookup schema.ValueLookup) []Result
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func positive(lookup schema.ValueLookup, ref schema.FieldRef) (float64, bool) {
	raw, ok := lookup(ref)
	if !ok {
		return 0, false
	}
	f, ok := schema.ToFloat(raw)
	if !ok || f <= 0 {
		return 0, false
	}
	return f, true
}
