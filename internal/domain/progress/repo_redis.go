package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "evalprogress:"

type progressRepoRedis struct {
	client *redis.Client
}

// NewRepoRedis returns a Redis-backed progress store. Each evaluation's
// aggregate is one JSON value under a single key, so read-modify-write stays
// whole-aggregate just like the Postgres adapter.
func NewRepoRedis(client *redis.Client) Repository {
	return &progressRepoRedis{client: client}
}

func redisKey(evaluationID string) string {
	return redisKeyPrefix + evaluationID
}

func (r *progressRepoRedis) Load(ctx context.Context, evaluationID string) (*Progress, error) {
	data, err := r.client.Get(ctx, redisKey(evaluationID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load progress %s: %w", evaluationID, err)
	}

	var p Progress
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("decode progress %s: %w", evaluationID, err)
	}
	if p.SavedTables == nil {
		p.SavedTables = make(map[string]StepEntry)
	}
	return &p, nil
}

func (r *progressRepoRedis) SaveStepAnswers(ctx context.Context, evaluationID, stepID string, entry StepEntry) (*Progress, error) {
	return r.merge(ctx, evaluationID, func(p *Progress) {
		p.SetStep(stepID, entry, time.Now().UTC())
	})
}

func (r *progressRepoRedis) UpdateLastVisited(ctx context.Context, evaluationID, stepID string) (*Progress, error) {
	return r.merge(ctx, evaluationID, func(p *Progress) {
		p.SetLastVisited(stepID, time.Now().UTC())
	})
}

func (r *progressRepoRedis) Clear(ctx context.Context, evaluationID string) error {
	if err := r.client.Del(ctx, redisKey(evaluationID)).Err(); err != nil {
		return fmt.Errorf("clear progress %s: %w", evaluationID, err)
	}
	return nil
}

func (r *progressRepoRedis) List(ctx context.Context, limit, offset int) ([]Info, int, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, 0, fmt.Errorf("scan progress keys: %w", err)
	}

	var infos []Info
	for _, key := range keys {
		data, err := r.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, 0, fmt.Errorf("load progress key %s: %w", key, err)
		}
		var p Progress
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			continue
		}
		infos = append(infos, Info{
			EvaluationID:       key[len(redisKeyPrefix):],
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

func (r *progressRepoRedis) merge(ctx context.Context, evaluationID string, mutate func(*Progress)) (*Progress, error) {
	p, err := r.Load(ctx, evaluationID)
	if errors.Is(err, ErrNotFound) {
		p = New()
	} else if err != nil {
		return nil, err
	}

	mutate(p)

	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode progress %s: %w", evaluationID, err)
	}
	if err := r.client.Set(ctx, redisKey(evaluationID), data, 0).Err(); err != nil {
		return nil, fmt.Errorf("store progress %s: %w", evaluationID, err)
	}
	return p, nil
}
