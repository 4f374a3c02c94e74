// Package schema holds the static description of the wound-assessment
// protocol: the ordered step sequence, each step's elements, their validation
// constraints, conditional-display predicates and routing rules. Everything
// here is immutable once loaded; the engine receives a Catalog by injection
// and never mutates it.
package schema

import (
	"fmt"
)

// ElementType discriminates the structurally different value shapes an
// element can carry. Validators and calculators switch on this tag instead
// of probing for properties.
type ElementType string

const (
	TypeSingleChoice    ElementType = "single-choice"
	TypeMultiChoice     ElementType = "multi-choice"
	TypeMultiChoiceText ElementType = "multi-choice-with-text"
	TypeBoolean         ElementType = "boolean"
	TypeNumeric         ElementType = "numeric"
	TypeText            ElementType = "text"
	TypeDate            ElementType = "date"
	TypeCalculated      ElementType = "calculated"
	TypePhoto           ElementType = "photo"
	TypeScale           ElementType = "scale"
	TypeCoordinates     ElementType = "coordinates"
	TypeComposite       ElementType = "composite"
)

// FieldRef addresses one element inside one step. Cross-step dependencies
// (calculator inputs, skip conditions) are always declared through FieldRef
// so the engine can determine recomputation triggers without scanning edits.
type FieldRef struct {
	StepID    string `json:"stepId"`
	ElementID string `json:"elementId"`
}

func (r FieldRef) String() string {
	return r.StepID + "." + r.ElementID
}

// Constraints is the validation configuration of one element. Zero values
// mean "not constrained"; Min/Max are pointers so that 0 remains a valid
// bound.
type Constraints struct {
	Required      bool     `json:"required,omitempty"`
	MinLength     int      `json:"minLength,omitempty"`
	MaxLength     int      `json:"maxLength,omitempty"`
	Min           *float64 `json:"min,omitempty"`
	Max           *float64 `json:"max,omitempty"`
	MinSelections int      `json:"minSelections,omitempty"`
	MaxSelections int      `json:"maxSelections,omitempty"`
	MaxItems      int      `json:"maxItems,omitempty"`
}

// Option is one selectable choice of a single- or multi-choice element.
// WithText marks options that require an attached free-text value when
// selected (multi-choice-with-text).
type Option struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	WithText bool   `json:"withText,omitempty"`
}

// RoutingPhase tells when a routing rule is evaluated: on every field edit
// (immediate) or only at step completion.
type RoutingPhase string

const (
	PhaseImmediate  RoutingPhase = "immediate"
	PhaseCompletion RoutingPhase = "completion"
)

// RoutingRule is a threshold condition on a computed context variable
// (currently age_in_days) that raises a redirect signal when met.
type RoutingRule struct {
	ContextVar string       `json:"contextVar"`
	Op         CompareOp    `json:"op"`
	Threshold  float64      `json:"threshold"`
	Phase      RoutingPhase `json:"phase"`
	Reason     string       `json:"reason"`
	FindingRef string       `json:"findingRef,omitempty"`
}

// Element is one field of a step.
type Element struct {
	ID          string      `json:"id"`
	Type        ElementType `json:"type"`
	Label       string      `json:"label"`
	Options     []Option    `json:"options,omitempty"`
	Constraints Constraints `json:"constraints,omitempty"`
	DisplayIf   *Condition  `json:"displayIf,omitempty"`
	Routing     []RoutingRule `json:"routing,omitempty"`
	Default     any         `json:"default,omitempty"`
}

// Option returns the option with the given value, if any.
func (e *Element) Option(value string) (Option, bool) {
	for _, o := range e.Options {
		if o.Value == value {
			return o, true
		}
	}
	return Option{}, false
}

// Step is one table of the assessment questionnaire.
type Step struct {
	ID       string    `json:"id"`
	Index    int       `json:"index"`
	Title    string    `json:"title"`
	Required bool      `json:"required,omitempty"`
	Block    string    `json:"block,omitempty"`
	SubBlock string    `json:"subBlock,omitempty"`
	Note     string    `json:"note,omitempty"`
	Elements []Element `json:"elements"`
}

// Element returns the element with the given id, if present.
func (s *Step) Element(id string) (*Element, bool) {
	for i := range s.Elements {
		if s.Elements[i].ID == id {
			return &s.Elements[i], true
		}
	}
	return nil, false
}

// SkipRule declares that a step is only shown when its condition holds.
// The condition references answers in other steps.
type SkipRule struct {
	StepID string    `json:"stepId"`
	ShowIf Condition `json:"showIf"`
}

// BranchRule is a directed forward branch: when leaving FromStepID and the
// condition holds, the sequencer jumps straight to TargetStepID. The reverse
// transition is symmetric: previous() from the target returns to FromStepID.
type BranchRule struct {
	FromStepID   string    `json:"fromStepId"`
	TargetStepID string    `json:"targetStepId"`
	When         Condition `json:"when"`
}

// CalcBinding wires a named calculator to concrete schema fields. Inputs and
// Targets are role-keyed (e.g. "height", "weight", "value"); Params carries
// calculator-specific settings such as units.
type CalcBinding struct {
	Name    string              `json:"name"`
	Inputs  map[string]FieldRef `json:"inputs"`
	Targets map[string]FieldRef `json:"targets"`
	Params  map[string]string   `json:"params,omitempty"`
}

// Catalog is the immutable, versioned step sequence for one protocol
// revision. It is built once and injected wherever schema access is needed,
// so several catalog versions can coexist in one process.
type Catalog struct {
	version  string
	steps    []Step
	byID     map[string]int
	skips    map[string]Condition
	branches []BranchRule
	calcs    []CalcBinding
}

// CatalogDef is the raw, deserialized form of a catalog.
type CatalogDef struct {
	Version  string        `json:"version"`
	Steps    []Step        `json:"steps"`
	Skips    []SkipRule    `json:"skips,omitempty"`
	Branches []BranchRule  `json:"branches,omitempty"`
	Calcs    []CalcBinding `json:"calculators,omitempty"`
}

// NewCatalog validates a catalog definition and freezes it. Step ids must be
// unique, step indexes must match list positions, and every skip or branch
// rule must reference known steps.
func NewCatalog(def CatalogDef) (*Catalog, error) {
	if len(def.Steps) == 0 {
		return nil, fmt.Errorf("catalog %q has no steps", def.Version)
	}

	byID := make(map[string]int, len(def.Steps))
	for i, s := range def.Steps {
		if s.ID == "" {
			return nil, fmt.Errorf("step at position %d has no id", i)
		}
		if _, dup := byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate step id %q", s.ID)
		}
		if s.Index != i {
			return nil, fmt.Errorf("step %q has index %d, expected %d", s.ID, s.Index, i)
		}
		seen := make(map[string]bool, len(s.Elements))
		for _, el := range s.Elements {
			if el.ID == "" {
				return nil, fmt.Errorf("step %q has an element without id", s.ID)
			}
			if seen[el.ID] {
				return nil, fmt.Errorf("step %q has duplicate element id %q", s.ID, el.ID)
			}
			seen[el.ID] = true
		}
		byID[s.ID] = i
	}

	skips := make(map[string]Condition, len(def.Skips))
	for _, r := range def.Skips {
		if _, ok := byID[r.StepID]; !ok {
			return nil, fmt.Errorf("skip rule references unknown step %q", r.StepID)
		}
		skips[r.StepID] = r.ShowIf
	}

	for _, b := range def.Branches {
		if _, ok := byID[b.FromStepID]; !ok {
			return nil, fmt.Errorf("branch rule references unknown source step %q", b.FromStepID)
		}
		if _, ok := byID[b.TargetStepID]; !ok {
			return nil, fmt.Errorf("branch rule references unknown target step %q", b.TargetStepID)
		}
	}

	return &Catalog{
		version:  def.Version,
		steps:    def.Steps,
		byID:     byID,
		skips:    skips,
		branches: def.Branches,
		calcs:    def.Calcs,
	}, nil
}

// Version returns the schema revision identifier.
func (c *Catalog) Version() string { return c.version }

// Len returns the number of steps.
func (c *Catalog) Len() int { return len(c.steps) }

// Steps returns the ordered step list.
func (c *Catalog) Steps() []Step { return c.steps }

// StepAt returns the step at the given ordinal position.
func (c *Catalog) StepAt(i int) (Step, bool) {
	if i < 0 || i >= len(c.steps) {
		return Step{}, false
	}
	return c.steps[i], true
}

// StepByID looks a step up by id.
func (c *Catalog) StepByID(id string) (Step, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Step{}, false
	}
	return c.steps[i], true
}

// ElementByRef resolves a field reference to its element definition.
func (c *Catalog) ElementByRef(ref FieldRef) (*Element, bool) {
	i, ok := c.byID[ref.StepID]
	if !ok {
		return nil, false
	}
	return c.steps[i].Element(ref.ElementID)
}

// SkipCondition returns the show-condition of a step, if it has one.
func (c *Catalog) SkipCondition(stepID string) (Condition, bool) {
	cond, ok := c.skips[stepID]
	return cond, ok
}

// Branches returns the static forward-branch rules.
func (c *Catalog) Branches() []BranchRule { return c.branches }

// BranchInto returns the branch rule targeting the given step, if any.
func (c *Catalog) BranchInto(stepID string) (BranchRule, bool) {
	for _, b := range c.branches {
		if b.TargetStepID == stepID {
			return b, true
		}
	}
	return BranchRule{}, false
}

// BranchFrom returns the branch rule originating at the given step, if any.
func (c *Catalog) BranchFrom(stepID string) (BranchRule, bool) {
	for _, b := range c.branches {
		if b.FromStepID == stepID {
			return b, true
		}
	}
	return BranchRule{}, false
}

// Calcs returns the calculator bindings declared by the catalog.
func (c *Catalog) Calcs() []CalcBinding { return c.calcs }
