// Package sequencer owns the step-to-step state machine of an evaluation:
// linear progression with data-dependent skips, forward branches with
// symmetric back transitions, and on-demand jumps. Transitions never mutate
// state in place; they return a new State value so runs can be replayed
// deterministically.
package sequencer

import (
	"errors"
	"fmt"

	"github.com/woundeval/woundeval/internal/domain/schema"
	"github.com/woundeval/woundeval/internal/domain/validation"
)

// ErrUnknownStep is returned by JumpTo for a step id absent from the
// catalog. The caller logs it and keeps the current state.
var ErrUnknownStep = errors.New("unknown step")

// StepIncompleteError blocks Next() when a required step still has invalid
// or missing answers. The sequencer state is left untouched.
type StepIncompleteError struct {
	StepID string
	Errors []validation.FieldError
}

func (e *StepIncompleteError) Error() string {
	return fmt.Sprintf("step %s incomplete: %d field error(s)", e.StepID, len(e.Errors))
}

// State is an immutable position in the step sequence. Finished is the
// virtual state after the last step has been confirmed.
type State struct {
	Index    int    `json:"index"`
	StepID   string `json:"stepId"`
	Finished bool   `json:"finished"`
}

// Sequencer drives transitions over one catalog.
type Sequencer struct {
	cat *schema.Catalog
}

// New creates a sequencer for the given catalog.
func New(cat *schema.Catalog) *Sequencer {
	return &Sequencer{cat: cat}
}

// Initial returns the starting state: the last-visited step when persisted
// progress names one, otherwise the first step.
func (s *Sequencer) Initial(lastVisited string) State {
	if lastVisited != "" {
		if step, ok := s.cat.StepByID(lastVisited); ok {
			return State{Index: step.Index, StepID: step.ID}
		}
	}
	first := s.cat.Steps()[0]
	return State{Index: first.Index, StepID: first.ID}
}

// Next advances from st. When the current step is required and fails its own
// validation the transition aborts with a StepIncompleteError and no state
// change. Reaching the end of the sequence yields the Finished state.
func (s *Sequencer) Next(st State, lookup schema.ValueLookup) (State, error) {
	if st.Finished {
		return st, nil
	}

	current, ok := s.cat.StepAt(st.Index)
	if ok && current.Required {
		if errs := s.validateStep(current, lookup); len(errs) > 0 {
			return st, &StepIncompleteError{StepID: current.ID, Errors: errs}
		}
	}

	// Forward branch from the current step takes precedence over the
	// sequential scan when its trigger condition holds.
	if branch, ok := s.cat.BranchFrom(st.StepID); ok && branch.When.Eval(lookup) {
		if target, ok := s.cat.StepByID(branch.TargetStepID); ok {
			return State{Index: target.Index, StepID: target.ID}, nil
		}
	}

	for i := st.Index + 1; i < s.cat.Len(); i++ {
		step, _ := s.cat.StepAt(i)
		if s.reachable(step, lookup) {
			return State{Index: i, StepID: step.ID}, nil
		}
	}
	return State{Index: s.cat.Len(), Finished: true}, nil
}

// Previous is the mirror of Next. A step that was entered through a forward
// branch returns to the branch origin, not to the numerically previous step.
func (s *Sequencer) Previous(st State, lookup schema.ValueLookup) (State, error) {
	if st.Finished {
		// Stepping back from the finished state re-opens the last
		// reachable step.
		for i := s.cat.Len() - 1; i >= 0; i-- {
			step, _ := s.cat.StepAt(i)
			if s.reachable(step, lookup) {
				return State{Index: i, StepID: step.ID}, nil
			}
		}
		return st, nil
	}

	if branch, ok := s.cat.BranchInto(st.StepID); ok && branch.When.Eval(lookup) {
		if origin, ok := s.cat.StepByID(branch.FromStepID); ok {
			return State{Index: origin.Index, StepID: origin.ID}, nil
		}
	}

	for i := st.Index - 1; i >= 0; i-- {
		step, _ := s.cat.StepAt(i)
		if s.reachable(step, lookup) {
			return State{Index: i, StepID: step.ID}, nil
		}
	}
	return st, nil
}

// JumpTo moves to an arbitrary step, used when the user re-opens an already
// answered step or follows a help deep-link.
func (s *Sequencer) JumpTo(st State, stepID string) (State, error) {
	step, ok := s.cat.StepByID(stepID)
	if !ok {
		return st, fmt.Errorf("jump to %q: %w", stepID, ErrUnknownStep)
	}
	return State{Index: step.Index, StepID: step.ID}, nil
}

// reachable reports whether a step takes part in the sequential flow under
// the current answers: its skip condition (if any) must hold, and a step
// that is the target of a forward branch is only reachable while the branch
// condition holds.
func (s *Sequencer) reachable(step schema.Step, lookup schema.ValueLookup) bool {
	if cond, ok := s.cat.SkipCondition(step.ID); ok && !cond.Eval(lookup) {
		return false
	}
	if branch, ok := s.cat.BranchInto(step.ID); ok && !branch.When.Eval(lookup) {
		return false
	}
	return true
}

// validateStep runs the field validator over every currently visible element
// of the step.
func (s *Sequencer) validateStep(step schema.Step, lookup schema.ValueLookup) []validation.FieldError {
	var errs []validation.FieldError
	for _, el := range step.Elements {
		if el.DisplayIf != nil && !el.DisplayIf.Eval(lookup) {
			continue
		}
		value, _ := lookup(schema.FieldRef{StepID: step.ID, ElementID: el.ID})
		errs = append(errs, validation.Validate(el, value)...)
	}
	return errs
}
