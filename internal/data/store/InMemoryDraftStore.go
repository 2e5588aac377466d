package store

import (
	"context"
	"sync"

	"github.com/scopecraft/sowforge/internal/domain/docModel"
)

type InMemoryDraftStore struct {
	draftMutex *sync.RWMutex
	draftMap   map[string]docModel.SoWDraft
}

func InitInMemoryDraftStore() *InMemoryDraftStore {
	return &InMemoryDraftStore{
		draftMutex: new(sync.RWMutex),
		draftMap:   make(map[string]docModel.SoWDraft),
	}
}

func (store *InMemoryDraftStore) SaveDraft(ctx context.Context, draft docModel.SoWDraft) error {
	store.draftMutex.Lock()
	defer store.draftMutex.Unlock()
	store.draftMap[draft.Id] = draft
	return nil
}

func (store *InMemoryDraftStore) GetDraft(ctx context.Context, draftId string) (docModel.SoWDraft, bool) {
	store.draftMutex.RLock()
	defer store.draftMutex.RUnlock()
	result, found := store.draftMap[draftId]
	return result, found
}
