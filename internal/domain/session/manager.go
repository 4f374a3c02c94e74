package session

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/woundeval/woundeval/internal/domain/calc"
	"github.com/woundeval/woundeval/internal/domain/progress"
	"github.com/woundeval/woundeval/internal/domain/schema"
)

// Manager hands out one controller per evaluation id, creating it on first
// use. Controllers are single-writer: the manager guarantees at most one
// instance per evaluation in this process.
type Manager struct {
	cat      *schema.Catalog
	repo     progress.Repository
	calcs    *calc.Registry
	constats ConstatGenerator
	nav      Navigator
	log      zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Controller
}

// NewManager creates a session manager over shared collaborators.
func NewManager(cat *schema.Catalog, repo progress.Repository, calcs *calc.Registry, constats ConstatGenerator, nav Navigator, log zerolog.Logger) *Manager {
	return &Manager{
		cat:      cat,
		repo:     repo,
		calcs:    calcs,
		constats: constats,
		nav:      nav,
		log:      log,
		sessions: make(map[string]*Controller),
	}
}

// Get returns the controller for an evaluation id, creating it if needed.
func (m *Manager) Get(evaluationID string) *Controller {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.sessions[evaluationID]; ok {
		return c
	}
	c := NewController(ControllerConfig{
		EvaluationID: evaluationID,
		Catalog:      m.cat,
		Repo:         m.repo,
		Calcs:        m.calcs,
		Constats:     m.constats,
		Navigator:    m.nav,
		Logger:       m.log,
	})
	m.sessions[evaluationID] = c
	return c
}

// Release removes a finished or abandoned controller.
func (m *Manager) Release(evaluationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, evaluationID)
}
