package calc

import (
	"github.com/woundeval/woundeval/internal/domain/schema"
)

// Bound is one side of a band's membership condition.
type Bound struct {
	Op    schema.CompareOp `json:"op"`
	Value float64          `json:"value"`
}

func (b Bound) holds(v float64) bool {
	switch b.Op {
	case schema.OpEq:
		return v == b.Value
	case schema.OpLt:
		return v < b.Value
	case schema.OpLte:
		return v <= b.Value
	case schema.OpGt:
		return v > b.Value
	case schema.OpGte:
		return v >= b.Value
	}
	return false
}

// Band is one classification interval with its display metadata. Membership
// combines an optional lower and an optional upper bound with AND.
type Band struct {
	Code        string `json:"code"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color"`
	Lower       *Bound `json:"lower,omitempty"`
	Upper       *Bound `json:"upper,omitempty"`
}

// Contains reports whether v falls inside the band.
func (b Band) Contains(v float64) bool {
	if b.Lower != nil && !b.Lower.holds(v) {
		return false
	}
	if b.Upper != nil && !b.Upper.holds(v) {
		return false
	}
	return true
}

// BandSet is an ordered list of bands expected to partition the value
// domain: every value maps to exactly one band.
type BandSet []Band

// Classify returns the first band containing v.
func (s BandSet) Classify(v float64) (Band, bool) {
	for _, b := range s {
		if b.Contains(v) {
			return b, true
		}
	}
	return Band{}, false
}

func lower(op schema.CompareOp, v float64) *Bound { return &Bound{Op: op, Value: v} }
func upper(op schema.CompareOp, v float64) *Bound { return &Bound{Op: op, Value: v} }
