package store

import (
	"context"
	"sync"

	"github.com/scopecraft/sowforge/internal/domain/runModel"
	"github.com/scopecraft/sowforge/pkg/logger_i"
)

var inMemLogger = logger_i.NewLogger("InMem RunStore")

type InMemoryRunStore struct {
	runMutex *sync.RWMutex
	runMap   map[string]runModel.WorkflowRun
}

func InitInMemoryRunStore() *InMemoryRunStore {
	return &InMemoryRunStore{
		runMutex: new(sync.RWMutex),
		runMap:   make(map[string]runModel.WorkflowRun),
	}
}

func (store *InMemoryRunStore) SaveRun(ctx context.Context, run runModel.WorkflowRun) error {
	store.runMutex.Lock()
	defer store.runMutex.Unlock()
	store.runMap[run.Id] = run
	inMemLogger.Debug("Saved run to store", "runId", run.Id)
	return nil
}

func (store *InMemoryRunStore) GetRun(ctx context.Context, runId string) (runModel.WorkflowRun, bool) {
	store.runMutex.RLock()
	defer store.runMutex.RUnlock()
	result, found := store.runMap[runId]
	return result, found
}

func (store *InMemoryRunStore) DeleteRun(ctx context.Context, runId string) {
	store.runMutex.Lock()
	defer store.runMutex.Unlock()
	delete(store.runMap, runId)
}
