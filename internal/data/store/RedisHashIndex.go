package store

import (
	"context"

	"github.com/scopecraft/sowforge/internal/config"
	"github.com/scopecraft/sowforge/internal/data/redisStore"
	"github.com/scopecraft/sowforge/pkg/logger_i"
)

// RedisHashIndex maps content hashes to ingested document ids. Entries never
// expire; duplicate detection must survive restarts.
type RedisHashIndex struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

func GetRedisHashIndex(ctx context.Context) *RedisHashIndex {
	backing := redisStore.GetRedisStore(ctx, config.RedisHashIndex)
	if backing == nil {
		return nil
	}
	return &RedisHashIndex{
		store:  backing,
		logger: logger_i.NewLogger("HashIndex"),
	}
}

func (s *RedisHashIndex) Lookup(ctx context.Context, contentHash string) (string, bool) {
	val, err := s.store.Get(ctx, contentHash)
	if err != nil {
		if !s.store.IsNil(err) {
			s.logger.Error("Error reading hash index", "error", err)
		}
		return "", false
	}
	return val, true
}

func (s *RedisHashIndex) Record(ctx context.Context, contentHash string, documentId string) error {
	_, err := s.store.SetIfAbsent(ctx, contentHash, documentId)
	return err
}

func (s *RedisHashIndex) Forget(ctx context.Context, contentHash string) {
	if err := s.store.Del(ctx, contentHash); err != nil {
		s.logger.Error("Error deleting hash index entry", "error", err)
	}
}

func TestHashIndex(store *redisStore.Store) *RedisHashIndex {
	return &RedisHashIndex{
		store:  store,
		logger: logger_i.NewLogger("test redis"),
	}
}
