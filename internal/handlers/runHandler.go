package handlers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/scopecraft/sowforge/internal/config"
	"github.com/scopecraft/sowforge/internal/domain/docModel"
	"github.com/scopecraft/sowforge/internal/domain/runModel"
	"github.com/scopecraft/sowforge/internal/metrics"
	"github.com/scopecraft/sowforge/internal/run"
	"github.com/scopecraft/sowforge/pkg/logger_i"
)

var (
	handlerInstance *RunHandler //private singleton
	once            sync.Once
	logRunH         *logger_i.Logger
)

type RunHandler struct {
	service *run.Service
}

func InitRunHandler(runService *run.Service) {
	once.Do(func() {
		handlerInstance = &RunHandler{service: runService}

		logRunH = logger_i.NewLogger("RunHandler")
		logRH = logger_i.NewLogger("RequestHandler")
		logRunH.Info("Starting run handler")
	})
}

func CreateNewRun(newRun newRunData) {
	logRunH.With("traceId", newRun.traceId, "runId", newRun.id)
	logRunH.Info("To create new run", "kind", newRun.kind)
	handlerInstance.pushToRunChannel(newRun)
}

func GetRunStatus(id string, traceId string) (result runModel.WorkflowRun, isFound bool) {
	ctxC := context.WithValue(context.Background(), config.TRACE_ID_KEY, traceId)
	if handlerInstance != nil {
		return handlerInstance.service.RunStore.GetRun(ctxC, id)
	}
	return result, false
}

func GetDraft(id string, traceId string) (result docModel.SoWDraft, isFound bool) {
	ctxC := context.WithValue(context.Background(), config.TRACE_ID_KEY, traceId)
	if handlerInstance != nil {
		return handlerInstance.service.DraftStore.GetDraft(ctxC, id)
	}
	return result, false
}

// private methods
func (h *RunHandler) pushToRunChannel(newRun newRunData) {

	workflowRun := runModel.WorkflowRun{
		Id:          newRun.id,
		TraceId:     newRun.traceId,
		Kind:        newRun.kind,
		State:       runModel.RunStatePending,
		Payload:     newRun.payload,
		CreatedTime: time.Now(),
	}

	// The PENDING state is observable before a worker picks the run up.
	ctxC := context.WithValue(context.Background(), config.TRACE_ID_KEY, newRun.traceId)
	if err := h.service.RunStore.SaveRun(ctxC, workflowRun); err != nil {
		logRunH.Error("Could not persist pending run", "runId", workflowRun.Id, "err", err)
	}

	//metrics
	metrics.IncrementRunsInQueue()

	h.service.RunChannel <- workflowRun //this is a blocking send to prevent the system from being overwhelmed
	logRunH.Info("Queued new run")

	//a new worker is signalled every N requests, and always for ingestion
	//runs since those involve batch embedding of external content
	accurateCount := atomic.AddInt64(&h.service.RequestCount, 1)
	if accurateCount%config.RequestsPerNewWorkerCount == 0 || workflowRun.Kind == runModel.KindIngestion {
		metrics.StartDispatcherSignalCount() //metrics
		logRunH.Debug("Worker count ", accurateCount)
		h.service.DispatcherChannel <- true
	}
}
