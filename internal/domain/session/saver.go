package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/woundeval/woundeval/internal/domain/progress"
)

type saveOpKind int

const (
	opSaveStep saveOpKind = iota
	opLastVisited
)

type saveOp struct {
	kind   saveOpKind
	stepID string
	entry  progress.StepEntry
}

// saver serializes persistence writes for one evaluation. Enqueueing never
// blocks: writes land in a pending set that coalesces per step (last write
// wins) and a single worker drains it in arrival order, so a stalled store
// can never back up into the editing path. A failed write is logged and
// dropped; the in-memory state stays authoritative and the next edit
// re-attempts the save.
type saver struct {
	evalID  string
	repo    progress.Repository
	log     zerolog.Logger
	onSaved func(*progress.Progress)

	mu       sync.Mutex
	pending  map[string]progress.StepEntry
	order    []string
	visit    string
	hasVisit bool
	closed   bool

	wake chan struct{}
	done chan struct{}
}

func newSaver(evalID string, repo progress.Repository, log zerolog.Logger, onSaved func(*progress.Progress)) *saver {
	s := &saver{
		evalID:  evalID,
		repo:    repo,
		log:     log,
		onSaved: onSaved,
		pending: make(map[string]progress.StepEntry),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *saver) run() {
	defer close(s.done)
	for {
		op, ok := s.pop()
		if ok {
			s.apply(op)
			continue
		}

		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return
		}
		<-s.wake
	}
}

// pop dequeues the oldest pending step write, or the last-visited pointer
// once no step writes remain.
func (s *saver) pop() (saveOp, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.order) > 0 {
		stepID := s.order[0]
		s.order = s.order[1:]
		entry := s.pending[stepID]
		delete(s.pending, stepID)
		return saveOp{kind: opSaveStep, stepID: stepID, entry: entry}, true
	}
	if s.hasVisit {
		s.hasVisit = false
		return saveOp{kind: opLastVisited, stepID: s.visit}, true
	}
	return saveOp{}, false
}

func (s *saver) apply(op saveOp) {
	// Persistence imposes no timeout: if the store never resolves,
	// in-memory operation continues unaffected.
	ctx := context.Background()

	var (
		p   *progress.Progress
		err error
	)
	switch op.kind {
	case opSaveStep:
		p, err = s.repo.SaveStepAnswers(ctx, s.evalID, op.stepID, op.entry)
	case opLastVisited:
		p, err = s.repo.UpdateLastVisited(ctx, s.evalID, op.stepID)
	}

	if err != nil {
		s.log.Error().
			Err(err).
			Str("evaluation_id", s.evalID).
			Str("step_id", op.stepID).
			Msg("progress save failed")
		return
	}
	if s.onSaved != nil {
		s.onSaved(p)
	}
}

func (s *saver) saveStep(stepID string, entry progress.StepEntry) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if _, queued := s.pending[stepID]; !queued {
		s.order = append(s.order, stepID)
	}
	s.pending[stepID] = entry
	s.mu.Unlock()
	s.notify()
}

func (s *saver) lastVisited(stepID string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.visit = stepID
	s.hasVisit = true
	s.mu.Unlock()
	s.notify()
}

func (s *saver) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// close drains the pending set and waits for the worker to stop.
func (s *saver) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.notify()
	<-s.done
}
