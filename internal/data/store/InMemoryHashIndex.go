package store

import (
	"context"
	"sync"
)

type InMemoryHashIndex struct {
	hashMutex *sync.RWMutex
	hashMap   map[string]string
}

func InitInMemoryHashIndex() *InMemoryHashIndex {
	return &InMemoryHashIndex{
		hashMutex: new(sync.RWMutex),
		hashMap:   make(map[string]string),
	}
}

func (store *InMemoryHashIndex) Lookup(ctx context.Context, contentHash string) (string, bool) {
	store.hashMutex.RLock()
	defer store.hashMutex.RUnlock()
	id, found := store.hashMap[contentHash]
	return id, found
}

func (store *InMemoryHashIndex) Record(ctx context.Context, contentHash string, documentId string) error {
	store.hashMutex.Lock()
	defer store.hashMutex.Unlock()
	if _, exists := store.hashMap[contentHash]; !exists {
		store.hashMap[contentHash] = documentId
	}
	return nil
}

func (store *InMemoryHashIndex) Forget(ctx context.Context, contentHash string) {
	store.hashMutex.Lock()
	defer store.hashMutex.Unlock()
	delete(store.hashMap, contentHash)
}
