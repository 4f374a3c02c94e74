package progress

import (
	"context"
)

// Repository is the durable progress store contract. Writes merge one step
// entry (or the last-visited pointer) into the current aggregate and return
// the new aggregate so callers can refresh their in-memory mirror.
type Repository interface {
	Load(ctx context.Context, evaluationID string) (*Progress, error)
	SaveStepAnswers(ctx context.Context, evaluationID, stepID string, entry StepEntry) (*Progress, error)
	UpdateLastVisited(ctx context.Context, evaluationID, stepID string) (*Progress, error)
	Clear(ctx context.Context, evaluationID string) error
	List(ctx context.Context, limit, offset int) ([]Info, int, error)
}
