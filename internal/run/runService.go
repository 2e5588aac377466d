package run

import (
	"github.com/scopecraft/sowforge/internal/domain/runModel"
)

// Service bundles the run queue with its stores. Handlers enqueue PENDING
// runs; workers drain the channel and persist terminal states.
type Service struct {
	RunChannel        chan runModel.WorkflowRun
	RequestCount      int64
	DispatcherChannel chan bool
	RunStore          runModel.RunStore
	DraftStore        runModel.DraftStore
}

type ServiceConfig struct {
	RunChannel        chan runModel.WorkflowRun
	RequestCount      int64
	DispatcherChannel chan bool
	RunStore          runModel.RunStore
	DraftStore        runModel.DraftStore
}

func InitRunService(cfg ServiceConfig) *Service {
	return &Service{
		RunChannel:        cfg.RunChannel,
		RequestCount:      cfg.RequestCount,
		DispatcherChannel: cfg.DispatcherChannel,
		RunStore:          cfg.RunStore,
		DraftStore:        cfg.DraftStore,
	}
}
