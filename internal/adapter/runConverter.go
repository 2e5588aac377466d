package adapter

import (
	"fmt"
	"time"

	"github.com/scopecraft/sowforge/internal/api"
	"github.com/scopecraft/sowforge/internal/domain/docModel"
	"github.com/scopecraft/sowforge/internal/domain/runModel"
)

func ToInitRunResponse(id string) api.InitRunResponse {
	return api.InitRunResponse{
		Id:        id,
		StatusURL: fmt.Sprintf("runs/%s", id),
	}
}

func ToAPIResponse(run runModel.WorkflowRun) api.RunResponse {

	var errorPtr *api.RunOutgoingError
	if run.Error.Message != "" || run.Error.Code != 0 {
		errorPtr = &api.RunOutgoingError{
			Code:    run.Error.Code,
			Message: run.Error.Message,
			Retry:   run.Error.Retry,
		}
	}

	result := api.Result{
		Status: string(run.State),
		Steps:  toStepResults(run.Steps),
	}
	if run.Kind == runModel.KindIngestion {
		result.Ingestion = &api.IngestionResult{
			DocumentId:   run.Payload.DocumentId,
			ChunksReady:  run.Payload.ChunksReady,
			ChunksFailed: run.Payload.ChunksFailed,
		}
	}
	if run.Kind == runModel.KindGeneration && run.Payload.DraftId != "" {
		result.Generation = &api.GenerationResult{
			DraftId:  run.Payload.DraftId,
			DraftURL: fmt.Sprintf("drafts/%s", run.Payload.DraftId),
		}
	}

	return api.RunResponse{
		Id:        run.Id,
		Kind:      string(run.Kind),
		StartTime: run.CreatedTime,
		EndTime:   run.EndTime,
		Error:     errorPtr,
		Result:    result,
	}
}

func toStepResults(steps []runModel.StepOutcome) []api.StepResult {
	if len(steps) == 0 {
		return nil
	}
	out := make([]api.StepResult, len(steps))
	for i, s := range steps {
		out[i] = api.StepResult{
			Name:     s.Name,
			Status:   string(s.Status),
			Attempts: s.Attempts,
			Reason:   s.Reason,
		}
	}
	return out
}

func ToDraftResponse(draft docModel.SoWDraft) api.DraftResponse {
	return api.DraftResponse{
		Id:              draft.Id,
		ProjectId:       draft.ProjectId,
		Body:            draft.Body,
		Tone:            draft.Tone,
		ContextChunkIds: draft.ContextChunkIds,
		ContextMissing:  draft.ContextMissing,
		Status:          string(draft.Status),
		CreatedAt:       draft.CreatedAt,
	}
}

func BadRequest(id string, error string, code int) api.RunResponse {
	return api.RunResponse{
		Id:        id,
		StartTime: time.Time{},
		EndTime:   time.Time{},
		Result: api.Result{
			Status: string(api.RunStatusError),
		},
		Error: &api.RunOutgoingError{
			Code:    code,
			Message: error,
			Retry:   false,
		},
	}
}
