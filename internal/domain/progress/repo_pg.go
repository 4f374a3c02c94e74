package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type progressRepoPG struct {
	pool *pgxpool.Pool
}

// NewRepoPG returns a Postgres-backed progress store. The aggregate's step
// map is stored as JSONB; merges happen inside a row-locking transaction so
// serialized writers never interleave.
func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &progressRepoPG{pool: pool}
}

const progressCols = `evaluation_id, version, updated_at, last_visited_table_id, saved_tables`

func (r *progressRepoPG) Load(ctx context.Context, evaluationID string) (*Progress, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+progressCols+` FROM evaluation_progress WHERE evaluation_id = $1`, evaluationID)
	return scanProgress(row)
}

func (r *progressRepoPG) SaveStepAnswers(ctx context.Context, evaluationID, stepID string, entry StepEntry) (*Progress, error) {
	return r.merge(ctx, evaluationID, func(p *Progress) {
		p.SetStep(stepID, entry, time.Now().UTC())
	})
}

func (r *progressRepoPG) UpdateLastVisited(ctx context.Context, evaluationID, stepID string) (*Progress, error) {
	return r.merge(ctx, evaluationID, func(p *Progress) {
		p.SetLastVisited(stepID, time.Now().UTC())
	})
}

func (r *progressRepoPG) Clear(ctx context.Context, evaluationID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM evaluation_progress WHERE evaluation_id = $1`, evaluationID)
	if err != nil {
		return fmt.Errorf("clear progress %s: %w", evaluationID, err)
	}
	return nil
}

func (r *progressRepoPG) List(ctx context.Context, limit, offset int) ([]Info, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM evaluation_progress`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count progress rows: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT evaluation_id, updated_at, last_visited_table_id, saved_tables
		FROM evaluation_progress
		ORDER BY updated_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list progress rows: %w", err)
	}
	defer rows.Close()

	var infos []Info
	for rows.Next() {
		var info Info
		var tables []byte
		if err := rows.Scan(&info.EvaluationID, &info.UpdatedAt, &info.LastVisitedTableID, &tables); err != nil {
			return nil, 0, fmt.Errorf("scan progress row: %w", err)
		}
		var saved map[string]StepEntry
		if err := json.Unmarshal(tables, &saved); err == nil {
			info.StepsSaved = len(saved)
		}
		infos = append(infos, info)
	}
	return infos, total, rows.Err()
}

// merge runs a whole-aggregate read-modify-write under FOR UPDATE.
func (r *progressRepoPG) merge(ctx context.Context, evaluationID string, mutate func(*Progress)) (*Progress, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin progress merge: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT `+progressCols+` FROM evaluation_progress WHERE evaluation_id = $1 FOR UPDATE`,
		evaluationID)
	p, err := scanProgress(row)
	if errors.Is(err, ErrNotFound) {
		p = New()
	} else if err != nil {
		return nil, err
	}

	mutate(p)

	tables, err := json.Marshal(p.SavedTables)
	if err != nil {
		return nil, fmt.Errorf("encode saved tables: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO evaluation_progress (evaluation_id, version, updated_at, last_visited_table_id, saved_tables)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (evaluation_id) DO UPDATE SET
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at,
			last_visited_table_id = EXCLUDED.last_visited_table_id,
			saved_tables = EXCLUDED.saved_tables`,
		evaluationID, p.Version, p.UpdatedAt, p.LastVisitedTableID, tables)
	if err != nil {
		return nil, fmt.Errorf("upsert progress %s: %w", evaluationID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit progress merge: %w", err)
	}
	return p, nil
}

func scanProgress(row pgx.Row) (*Progress, error) {
	var (
		p      Progress
		evalID string
		tables []byte
	)
	err := row.Scan(&evalID, &p.Version, &p.UpdatedAt, &p.LastVisitedTableID, &tables)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan progress: %w", err)
	}
	if err := json.Unmarshal(tables, &p.SavedTables); err != nil {
		return nil, fmt.Errorf("decode saved tables: %w", err)
	}
	if p.SavedTables == nil {
		p.SavedTables = make(map[string]StepEntry)
	}
	return &p, nil
}
