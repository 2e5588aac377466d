package worker

import (
	"context"
	"sync/atomic"

	"github.com/scopecraft/sowforge/internal/config"
	"github.com/scopecraft/sowforge/internal/domain/runModel"
	"github.com/scopecraft/sowforge/internal/metrics"
)

// executeRun drives one PENDING run to a terminal state and persists every
// transition, so GET /runs observes RUNNING while work is in flight.
func executeRun(currentRun runModel.WorkflowRun) {
	ctxTrace := context.WithValue(context.Background(), config.TRACE_ID_KEY, currentRun.TraceId)
	ctx, cancel := context.WithTimeout(ctxTrace, config.RunExecutionTimeout)
	defer cancel()

	logger.Debug("Processing run:", "runId:", currentRun.Id, "kind", currentRun.Kind)

	if err := currentRun.Transition(runModel.RunStateRunning); err != nil {
		logger.Error("Run already terminal, dropping", "runId", currentRun.Id, "state", currentRun.State)
		return
	}
	saveRunState(ctx, currentRun)

	if currentRun.Kind == runModel.KindIngestion {
		currentRun = _pipelineService.RunIngestion(ctx, currentRun)
	} else {
		currentRun = _pipelineService.RunGeneration(ctx, currentRun)
	}

	saveRunState(ctx, currentRun)
}

func removeWorker(reason string) {
	workerWaitGroup.Done()
	atomic.AddInt64(&currentWorkerCount, -1)
	logger.Info("Removed worker ", "reason", reason, "workerCount", currentWorkerCount)
	metrics.DecrementActiveWorkerCount()
}

// retireIfSurplus retires one idle worker unless that would drop the pool
// below its minimum size. The decrement reserves the slot, so two idle
// workers racing here cannot both retire past the floor.
func retireIfSurplus() bool {
	if atomic.AddInt64(&currentWorkerCount, -1) >= atomic.LoadInt64(&minWorkerCount) {
		workerWaitGroup.Done()
		logger.Info("Removed worker ", "reason", "Idle worker timeout", "workerCount", atomic.LoadInt64(&currentWorkerCount))
		metrics.DecrementActiveWorkerCount()
		return true
	}
	atomic.AddInt64(&currentWorkerCount, 1)
	return false
}

func saveRunState(ctx context.Context, currentRun runModel.WorkflowRun) {
	if err := _runService.RunStore.SaveRun(ctx, currentRun); err != nil {
		logger.Error("Failed to persist run state", "runId", currentRun.Id, "err", err)
	}
}
