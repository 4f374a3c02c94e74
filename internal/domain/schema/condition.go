package schema

import (
	"strconv"
)

// CompareOp is the closed comparison operator set used by display
// conditions, classification bands and routing thresholds.
type CompareOp string

const (
	OpEq  CompareOp = "eq"
	OpLt  CompareOp = "lt"
	OpLte CompareOp = "lte"
	OpGt  CompareOp = "gt"
	OpGte CompareOp = "gte"
)

// ValueLookup resolves a field reference to its current answer. The second
// return reports whether an answer exists at all.
type ValueLookup func(ref FieldRef) (any, bool)

// Condition is a small closed expression AST: a comparison, a membership
// test, or a conjunction. Exactly one of the three fields is set.
type Condition struct {
	Compare *Compare    `json:"compare,omitempty"`
	AnyOf   *AnyOf      `json:"anyOf,omitempty"`
	And     []Condition `json:"and,omitempty"`
}

// Compare tests one answer against a literal with a comparison operator.
type Compare struct {
	Ref   FieldRef  `json:"ref"`
	Op    CompareOp `json:"op"`
	Value any       `json:"value"`
}

// AnyOf tests whether an answer (or any of its selected values) matches one
// of the listed literals.
type AnyOf struct {
	Ref    FieldRef `json:"ref"`
	Values []any    `json:"values"`
}

// Eval interprets the condition against the given lookup. A condition with
// no clause set evaluates to true; a reference with no answer evaluates its
// clause to false.
func (c Condition) Eval(lookup ValueLookup) bool {
	switch {
	case c.Compare != nil:
		return c.Compare.eval(lookup)
	case c.AnyOf != nil:
		return c.AnyOf.eval(lookup)
	case len(c.And) > 0:
		for _, sub := range c.And {
			if !sub.Eval(lookup) {
				return false
			}
		}
		return true
	}
	return true
}

func (cmp *Compare) eval(lookup ValueLookup) bool {
	v, ok := lookup(cmp.Ref)
	if !ok || v == nil {
		return false
	}
	return CompareValues(v, cmp.Op, cmp.Value)
}

func (a *AnyOf) eval(lookup ValueLookup) bool {
	v, ok := lookup(a.Ref)
	if !ok || v == nil {
		return false
	}
	for _, candidate := range SelectedValues(v) {
		for _, want := range a.Values {
			if looselyEqual(candidate, want) {
				return true
			}
		}
	}
	return false
}

// CompareValues applies op to (got, want). Numeric comparison is used when
// both sides coerce to a number; otherwise only equality is meaningful.
func CompareValues(got any, op CompareOp, want any) bool {
	gf, gok := ToFloat(got)
	wf, wok := ToFloat(want)
	if gok && wok {
		switch op {
		case OpEq:
			return gf == wf
		case OpLt:
			return gf < wf
		case OpLte:
			return gf <= wf
		case OpGt:
			return gf > wf
		case OpGte:
			return gf >= wf
		}
		return false
	}
	if op == OpEq {
		return looselyEqual(got, want)
	}
	return false
}

// SelectedValues flattens an answer into the list of values it represents:
// a scalar yields itself, an array yields its members, and a selection map
// yields the keys whose entry is selected.
func SelectedValues(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case map[string]any:
		var out []any
		for key, entry := range t {
			if entrySelected(entry) {
				out = append(out, key)
			}
		}
		return out
	default:
		return []any{v}
	}
}

// entrySelected reports whether one selection-map entry counts as selected:
// either a truthy boolean or a nested object with "selected": true.
func entrySelected(entry any) bool {
	switch e := entry.(type) {
	case bool:
		return e
	case map[string]any:
		sel, _ := e["selected"].(bool)
		return sel
	default:
		return entry != nil
	}
}

// ToFloat coerces scalar answer values to float64.
func ToFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func looselyEqual(got, want any) bool {
	if got == want {
		return true
	}
	gf, gok := ToFloat(got)
	wf, wok := ToFloat(want)
	if gok && wok {
		return gf == wf
	}
	gs, gok := got.(string)
	ws, wok := want.(string)
	return gok && wok && gs == ws
}
