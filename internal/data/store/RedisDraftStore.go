package store

import (
	"context"
	"encoding/json"

	"github.com/scopecraft/sowforge/internal/config"
	"github.com/scopecraft/sowforge/internal/data/redisStore"
	"github.com/scopecraft/sowforge/internal/domain/docModel"
	"github.com/scopecraft/sowforge/pkg/logger_i"
)

type RedisDraftStore struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

func GetRedisDraftStore(ctx context.Context) *RedisDraftStore {
	backing := redisStore.GetRedisStore(ctx, config.RedisDraftStore)
	if backing == nil {
		return nil
	}
	return &RedisDraftStore{
		store:  backing,
		logger: logger_i.NewLogger("DraftStore"),
	}
}

func (s *RedisDraftStore) SaveDraft(ctx context.Context, draft docModel.SoWDraft) error {
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "draftId", draft.Id)
	data, err := json.Marshal(draft)
	if err != nil {
		return err
	}

	err = s.store.Set(ctx, draft.Id, data, config.RedisDraftStoreTTL)
	if err == nil {
		log.Debug("Saved draft to Redis")
	}
	return err
}

func (s *RedisDraftStore) GetDraft(ctx context.Context, draftId string) (docModel.SoWDraft, bool) {
	var draft docModel.SoWDraft
	val, err := s.store.Get(ctx, draftId)
	if err != nil {
		if !s.store.IsNil(err) {
			s.logger.Error("Error reading draft from Redis", "draftId", draftId, "error", err)
		}
		return draft, false
	}

	if err = json.Unmarshal([]byte(val), &draft); err != nil {
		s.logger.Error("Corrupt draft payload in Redis", "draftId", draftId, "error", err)
		return draft, false
	}
	return draft, true
}

func TestDraftStore(store *redisStore.Store) *RedisDraftStore {
	return &RedisDraftStore{
		store:  store,
		logger: logger_i.NewLogger("test redis"),
	}
}
