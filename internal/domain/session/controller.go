package session

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/woundeval/woundeval/internal/domain/calc"
	"github.com/woundeval/woundeval/internal/domain/progress"
	"github.com/woundeval/woundeval/internal/domain/routing"
	"github.com/woundeval/woundeval/internal/domain/schema"
	"github.com/woundeval/woundeval/internal/domain/sequencer"
	"github.com/woundeval/woundeval/internal/domain/validation"
)

var (
	// ErrNotLoaded gates field edits until the initial progress load has
	// completed.
	ErrNotLoaded = errors.New("evaluation progress not loaded yet")

	// ErrNotFinished rejects Finish before the sequencer reached the
	// finished state.
	ErrNotFinished = errors.New("evaluation is not finished")
)

// ControllerConfig carries the collaborators of one evaluation session.
type ControllerConfig struct {
	EvaluationID string
	Catalog      *schema.Catalog
	Repo         progress.Repository
	Calcs        *calc.Registry
	Constats     ConstatGenerator
	Navigator    Navigator
	Logger       zerolog.Logger
}

// Controller owns the in-memory answer state of one evaluation. All entry
// points serialize on one mutex: edits, calculations and transitions execute
// as one logical thread of control per event, while persistence happens
// asynchronously on the saver's worker.
type Controller struct {
	evalID   string
	cat      *schema.Catalog
	repo     progress.Repository
	calcs    *calc.Registry
	constats ConstatGenerator
	nav      Navigator
	log      zerolog.Logger

	mu        sync.Mutex
	loaded    bool
	persisted *progress.Progress
	answers   map[string]AnswerMap
	seeded    map[string]bool
	visited   map[string]bool
	deferred  map[string]bool
	state     sequencer.State
	redirect  *routing.RedirectSignal
	seq       *sequencer.Sequencer
	saver     *saver
}

// NewController builds an idle controller; Start must be called before any
// other operation.
func NewController(cfg ControllerConfig) *Controller {
	nav := cfg.Navigator
	if nav == nil {
		nav = NopNavigator{}
	}
	constats := cfg.Constats
	if constats == nil {
		constats = NopConstatGenerator{}
	}
	return &Controller{
		evalID:   cfg.EvaluationID,
		cat:      cfg.Catalog,
		repo:     cfg.Repo,
		calcs:    cfg.Calcs,
		constats: constats,
		nav:      nav,
		log:      cfg.Logger.With().Str("evaluation_id", cfg.EvaluationID).Logger(),
		answers:  make(map[string]AnswerMap),
		seeded:   make(map[string]bool),
		visited:  make(map[string]bool),
		deferred: make(map[string]bool),
		seq:      sequencer.New(cfg.Catalog),
	}
}

// EvaluationID returns the session's evaluation identity.
func (c *Controller) EvaluationID() string { return c.evalID }

// Start loads persisted progress and resumes at the last-visited step, or at
// the first step for a fresh evaluation. It blocks until the load resolves;
// until then every edit is rejected with ErrNotLoaded.
func (c *Controller) Start(ctx context.Context) (sequencer.State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded {
		return c.state, nil
	}

	p, err := c.repo.Load(ctx, c.evalID)
	if errors.Is(err, progress.ErrNotFound) {
		p = progress.New()
	} else if err != nil {
		return sequencer.State{}, fmt.Errorf("load progress: %w", err)
	}

	c.persisted = p
	for id := range p.SavedTables {
		c.visited[id] = true
	}
	c.state = c.seq.Initial(p.LastVisitedTableID)
	c.saver = newSaver(c.evalID, c.repo, c.log, c.mirrorPersisted)
	c.loaded = true
	c.enterStep(c.state.StepID)
	return c.state, nil
}

// State returns the current sequencer position.
func (c *Controller) State() sequencer.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// StepAnswers returns a copy of the current answers of one step, seeding it
// first if it has never been shown.
func (c *Controller) StepAnswers(stepID string) (AnswerMap, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		return nil, false
	}
	if _, ok := c.cat.StepByID(stepID); !ok {
		return nil, false
	}
	c.seedStep(stepID)
	return c.answers[stepID].Clone(), true
}

// EditField applies one field edit: validate, recompute dependent calculated
// values, evaluate routing rules, and mirror the touched steps into the
// progress store asynchronously. The value is retained even when invalid so
// the user sees their input alongside the inline error.
func (c *Controller) EditField(ctx context.Context, stepID, elementID string, value any) (*EditResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		return nil, ErrNotLoaded
	}

	step, ok := c.cat.StepByID(stepID)
	if !ok {
		return nil, fmt.Errorf("edit field: unknown step %q", stepID)
	}
	el, ok := step.Element(elementID)
	if !ok {
		return nil, fmt.Errorf("edit field: unknown element %q in step %q", elementID, stepID)
	}

	c.enterStep(stepID)

	result := &EditResult{}
	result.Errors = c.validateField(*el, value)

	c.answers[stepID][elementID] = value
	changed := map[string]bool{stepID: true}

	ref := schema.FieldRef{StepID: stepID, ElementID: elementID}
	result.Computed = c.recompute(ref, changed)

	if sig, ok := routing.Evaluate(*el, value, time.Now()); ok {
		c.redirect = sig
		result.Redirect = sig
		c.nav.Navigate(DestRedirectAlert, map[string]any{
			"reason":     sig.Reason,
			"findingRef": sig.FindingRef,
		})
	}

	for id := range changed {
		if c.visited[id] {
			c.persistStep(id)
		} else {
			// A calculator wrote into a step the user has not reached;
			// the value stays in memory until navigation shows the step.
			c.deferred[id] = true
		}
	}
	return result, nil
}

// Next advances the sequencer. A required step with invalid answers aborts
// with a StepIncompleteError and leaves the state unchanged.
func (c *Controller) Next(ctx context.Context) (sequencer.State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		return c.state, ErrNotLoaded
	}

	next, err := c.seq.Next(c.state, c.lookup)
	if err != nil {
		return c.state, err
	}

	c.state = next
	if next.Finished {
		c.nav.Navigate(DestSummary, map[string]any{"evaluationId": c.evalID})
		return c.state, nil
	}
	c.enterStep(next.StepID)
	c.saver.lastVisited(next.StepID)
	return c.state, nil
}

// Previous steps back, honoring branch symmetry.
func (c *Controller) Previous(ctx context.Context) (sequencer.State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		return c.state, ErrNotLoaded
	}

	prev, err := c.seq.Previous(c.state, c.lookup)
	if err != nil {
		return c.state, err
	}
	c.state = prev
	c.enterStep(prev.StepID)
	c.saver.lastVisited(prev.StepID)
	return c.state, nil
}

// JumpTo moves to a named step. An unknown id is logged and ignored: the
// state does not change and the error is returned for reporting only.
func (c *Controller) JumpTo(ctx context.Context, stepID string) (sequencer.State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		return c.state, ErrNotLoaded
	}

	st, err := c.seq.JumpTo(c.state, stepID)
	if err != nil {
		c.log.Warn().Str("step_id", stepID).Msg("jump to unknown step ignored")
		return c.state, err
	}
	c.state = st
	c.enterStep(st.StepID)
	c.saver.lastVisited(st.StepID)
	return c.state, nil
}

// ConsumeRedirect returns the pending redirect signal, if any, and clears
// it so it is surfaced exactly once.
func (c *Controller) ConsumeRedirect() *routing.RedirectSignal {
	c.mu.Lock()
	defer c.mu.Unlock()
	sig := c.redirect
	c.redirect = nil
	return sig
}

// Finish assembles the evaluation summary and the auto-detected findings.
// It does not clear persisted progress; that happens only on Confirm.
func (c *Controller) Finish(ctx context.Context) (*Summary, map[string]ConstatResult, error) {
	c.mu.Lock()
	if !c.loaded {
		c.mu.Unlock()
		return nil, nil, ErrNotLoaded
	}
	if !c.state.Finished {
		c.mu.Unlock()
		return nil, nil, ErrNotFinished
	}
	summary := c.buildSummary()
	c.mu.Unlock()

	constats, err := c.constats.Generate(ctx, summary)
	if err != nil {
		// Findings are a downstream concern; their failure never blocks
		// completion.
		c.log.Error().Err(err).Msg("constat generation failed")
		constats = map[string]ConstatResult{}
	}
	return summary, constats, nil
}

// Confirm clears persisted progress after the user explicitly confirmed
// completion. Pending writes are drained first so the clear cannot be
// overtaken by an in-flight save.
func (c *Controller) Confirm(ctx context.Context) error {
	return c.shutdown(ctx, true)
}

// Abandon discards the evaluation and its persisted progress.
func (c *Controller) Abandon(ctx context.Context) error {
	return c.shutdown(ctx, true)
}

// Close stops the saver without touching persisted state, keeping the
// evaluation resumable.
func (c *Controller) Close() {
	_ = c.shutdown(context.Background(), false)
}

func (c *Controller) shutdown(ctx context.Context, clear bool) error {
	c.mu.Lock()
	if !c.loaded {
		c.mu.Unlock()
		return nil
	}
	s := c.saver
	c.loaded = false
	c.mu.Unlock()

	s.close()
	if !clear {
		return nil
	}
	if err := c.repo.Clear(ctx, c.evalID); err != nil {
		return fmt.Errorf("clear progress: %w", err)
	}
	return nil
}

// lookup resolves a field reference against in-memory answers first, then
// persisted ones. Callers hold c.mu.
func (c *Controller) lookup(ref schema.FieldRef) (any, bool) {
	if m, ok := c.answers[ref.StepID]; ok {
		if v, ok := m[ref.ElementID]; ok {
			return v, true
		}
	}
	if entry, ok := c.persisted.Step(ref.StepID); ok {
		if v, ok := entry.Answers[ref.ElementID]; ok {
			return v, true
		}
	}
	return nil, false
}

// enterStep marks a step as shown to the user and flushes any calculator
// write-back that was held until the step became reachable. Only entered
// steps are ever mirrored to the progress store.
func (c *Controller) enterStep(stepID string) {
	if stepID == "" {
		return
	}
	c.seedStep(stepID)
	if c.visited[stepID] {
		return
	}
	c.visited[stepID] = true
	if c.deferred[stepID] {
		delete(c.deferred, stepID)
		c.persistStep(stepID)
	}
}

// seedStep lazily materializes a step's answer map the first time the step
// is shown: persisted answers, then schema defaults, then in-memory edits,
// later sources taking precedence.
func (c *Controller) seedStep(stepID string) {
	if stepID == "" || c.seeded[stepID] {
		return
	}
	step, ok := c.cat.StepByID(stepID)
	if !ok {
		return
	}

	m := make(AnswerMap)
	if entry, ok := c.persisted.Step(stepID); ok {
		for k, v := range entry.Answers {
			m[k] = v
		}
	}
	for _, el := range step.Elements {
		if el.Default != nil {
			m[el.ID] = el.Default
		}
	}
	for k, v := range c.answers[stepID] {
		m[k] = v
	}

	c.answers[stepID] = m
	c.seeded[stepID] = true
}

// validateField runs the field validator; calculated elements are engine
// written and skipped.
func (c *Controller) validateField(el schema.Element, value any) []validation.FieldError {
	if el.Type == schema.TypeCalculated {
		return nil
	}
	return validation.Validate(el, value)
}

// recompute re-runs every calculator depending on the changed field and
// writes results back, suppressing writes whose value did not change so a
// calculated field can never feed an update loop.
func (c *Controller) recompute(ref schema.FieldRef, changed map[string]bool) []calc.Result {
	var applied []calc.Result
	for _, calculator := range c.calcs.DependentOn(ref) {
		for _, res := range calculator.Compute(c.lookup) {
			c.seedStep(res.Target.StepID)
			current := c.answers[res.Target.StepID][res.Target.ElementID]
			if reflect.DeepEqual(current, res.Value) {
				continue
			}
			c.answers[res.Target.StepID][res.Target.ElementID] = res.Value
			changed[res.Target.StepID] = true
			applied = append(applied, res)
		}
	}
	return applied
}

// persistStep snapshots one step's answers onto the saver queue.
func (c *Controller) persistStep(stepID string) {
	step, ok := c.cat.StepByID(stepID)
	if !ok {
		return
	}
	c.saver.saveStep(stepID, progress.StepEntry{
		Title:      step.Title,
		Answers:    c.answers[stepID].Clone(),
		TableIndex: step.Index,
	})
}

// mirrorPersisted refreshes the in-memory mirror after a successful save.
func (c *Controller) mirrorPersisted(p *progress.Progress) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.persisted = p
}
