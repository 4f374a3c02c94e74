package progress

import (
	"context"
	"sort"
	"sync"
	"time"
)

type progressRepoMem struct {
	mu   sync.Mutex
	data map[string]*Progress
}

// NewRepoMem returns an in-memory progress store. Used for tests and for
// running the server without external storage (PROGRESS_STORE=memory);
// state does not survive a restart.
func NewRepoMem() Repository {
	return &progressRepoMem{data: make(map[string]*Progress)}
}

func (r *progressRepoMem) Load(ctx context.Context, evaluationID string) (*Progress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[evaluationID]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (r *progressRepoMem) SaveStepAnswers(ctx context.Context, evaluationID, stepID string, entry StepEntry) (*Progress, error) {
	return r.merge(evaluationID, func(p *Progress) {
		p.SetStep(stepID, entry, time.Now().UTC())
	})
}

func (r *progressRepoMem) UpdateLastVisited(ctx context.Context, evaluationID, stepID string) (*Progress, error) {
	return r.merge(evaluationID, func(p *Progress) {
		p.SetLastVisited(stepID, time.Now().UTC())
	})
}

func (r *progressRepoMem) Clear(ctx context.Context, evaluationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.data, evaluationID)
	return nil
}

func (r *progressRepoMem) List(ctx context.Context, limit, offset int) ([]Info, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var infos []Info
	for id, p := range r.data {
		infos = append(infos, Info{
			EvaluationID:       id,
			UpdatedAt:          p.UpdatedAt,
			LastVisitedTableID: p.LastVisitedTableID,
			StepsSaved:         len(p.SavedTables),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].UpdatedAt.After(infos[j].UpdatedAt)
	})

	total := len(infos)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return infos[offset:end], total, nil
}

func (r *progressRepoMem) merge(evaluationID string, mutate func(*Progress)) (*Progress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.data[evaluationID]
	if !ok {
		p = New()
	} else {
		p = p.Clone()
	}
	mutate(p)
	r.data[evaluationID] = p
	return p.Clone(), nil
}
