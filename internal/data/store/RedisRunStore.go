package store

import (
	"context"
	"encoding/json"

	"github.com/scopecraft/sowforge/internal/config"
	"github.com/scopecraft/sowforge/internal/data/redisStore"
	"github.com/scopecraft/sowforge/internal/domain/runModel"
	"github.com/scopecraft/sowforge/pkg/logger_i"
)

type RedisRunStore struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

// GetRedisRunStore returns nil when Redis is offline so the caller can fall
// back to the in-memory store.
func GetRedisRunStore(ctx context.Context) *RedisRunStore {
	backing := redisStore.GetRedisStore(ctx, config.RedisRunStore)
	if backing == nil {
		return nil
	}
	return &RedisRunStore{
		store:  backing,
		logger: logger_i.NewLogger("RunStore"),
	}
}

func (s *RedisRunStore) SaveRun(ctx context.Context, run runModel.WorkflowRun) error {
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "runId", run.Id)
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}

	err = s.store.Set(ctx, run.Id, data, config.RedisRunStoreTTL)
	if err == nil {
		log.Debug("Saved run to Redis")
	}
	return err
}

func (s *RedisRunStore) GetRun(ctx context.Context, runId string) (runModel.WorkflowRun, bool) {
	var run runModel.WorkflowRun
	val, err := s.store.Get(ctx, runId)
	if err != nil {
		if !s.store.IsNil(err) {
			s.logger.Error("Error reading run from Redis", "runId", runId, "error", err)
		}
		return run, false
	}

	if err = json.Unmarshal([]byte(val), &run); err != nil {
		s.logger.Error("Corrupt run payload in Redis", "runId", runId, "error", err)
		return run, false
	}
	return run, true
}

func (s *RedisRunStore) DeleteRun(ctx context.Context, runId string) {
	if err := s.store.Del(ctx, runId); err != nil {
		s.logger.Error("Error deleting run from Redis", "runId", runId, "error", err)
		return
	}
	s.logger.Debug("Run deleted from Redis", "runId", runId)
}

func TestRunStore(store *redisStore.Store) *RedisRunStore {
	return &RedisRunStore{
		store:  store,
		logger: logger_i.NewLogger("test redis"),
	}
}
