package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/scopecraft/sowforge/internal/adapter"
	"github.com/scopecraft/sowforge/internal/config"
	"github.com/scopecraft/sowforge/internal/domain/runModel"
)

func writeJsonResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but can't send a clean status code now
		logRH.Error("Error encoding response: %v", err)
	}
}

func validateId(id string, traceId string) (result runModel.WorkflowRun, isFound bool) {
	if id == "" {
		logRH.Warn("Empty run ID")
		return runModel.WorkflowRun{}, false
	}
	return GetRunStatus(id, traceId)
}

func validateContext(ctx context.Context) bool {
	logRH.With("traceId:", ctx.Value(config.TRACE_ID_KEY).(string))
	if ctx.Err() != nil {
		logRH.Warn("context error", ctx.Err())
		return false
	}

	select {
	case <-ctx.Done():
		logRH.Warn("context cancelled")
		return false
	default:
		return true
	}
}

func WriteErrorResponse(w http.ResponseWriter, httpCode int, id string, error string) {
	writeJsonResponse(w, httpCode, adapter.BadRequest(id, error, httpCode))
}
