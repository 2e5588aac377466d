package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/scopecraft/sowforge/internal/adapter"
	"github.com/scopecraft/sowforge/internal/adapter/utils"
	"github.com/scopecraft/sowforge/internal/api"
	"github.com/scopecraft/sowforge/internal/config"
	"github.com/scopecraft/sowforge/internal/domain/docModel"
	"github.com/scopecraft/sowforge/internal/domain/runModel"
	"github.com/scopecraft/sowforge/pkg/logger_i"
)

var logRH *logger_i.Logger

type newRunData struct {
	id      string
	traceId string
	kind    runModel.RunKind
	payload runModel.RunPayload
}

func GetHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// PostDocumentHandler accepts pre-extracted document text and queues an
// ingestion run. Binary formats are rejected here; extraction is the caller's
// job.
func PostDocumentHandler(w http.ResponseWriter, request *http.Request) {
	if !validateContext(request.Context()) {
		logRH.Warn("Invalid Context by request ", request.RemoteAddr)
		return
	}

	var requestData api.IngestDocumentRequest
	defer closeBody(request.Body)
	if err := json.NewDecoder(request.Body).Decode(&requestData); err != nil || strings.TrimSpace(requestData.Text) == "" {
		logRH.Warn("Bad document request: ", "error:", err)
		WriteErrorResponse(w, http.StatusBadRequest, "", "text is required")
		return
	}

	enqueueRun(w, request, runModel.KindIngestion, runModel.RunPayload{
		DocumentTitle: requestData.Title,
		IngestText:    requestData.Text,
		IngestFormat:  requestData.Format,
		IngestSource:  docModel.SourceUpload,
	})
}

// PostDatabricksIngestHandler queues a bulk ingestion run; the warehouse
// fetch happens inside the run, not in the request path.
func PostDatabricksIngestHandler(w http.ResponseWriter, request *http.Request) {
	if !validateContext(request.Context()) {
		logRH.Warn("Invalid Context by request ", request.RemoteAddr)
		return
	}

	var requestData api.DatabricksIngestRequest
	defer closeBody(request.Body)
	if err := json.NewDecoder(request.Body).Decode(&requestData); err != nil || strings.TrimSpace(requestData.Table) == "" {
		logRH.Warn("Bad databricks request: ", "error:", err)
		WriteErrorResponse(w, http.StatusBadRequest, "", "table is required")
		return
	}

	title := requestData.Title
	if title == "" {
		title = requestData.Table
	}

	enqueueRun(w, request, runModel.KindIngestion, runModel.RunPayload{
		DocumentTitle: title,
		Sources:       []string{requestData.Table},
		IngestSource:  docModel.SourceDatabricks,
	})
}

// PostSowHandler queues a generation run for one draft.
func PostSowHandler(w http.ResponseWriter, request *http.Request) {
	if !validateContext(request.Context()) {
		logRH.Warn("Invalid Context by request ", request.RemoteAddr)
		return
	}

	var requestData api.GenerateSoWRequest
	defer closeBody(request.Body)
	if err := json.NewDecoder(request.Body).Decode(&requestData); err != nil || !ValidateSoWRequest(requestData) {
		logRH.Warn("Bad sow request: ", "error:", err, "request data:", requestData)
		WriteErrorResponse(w, http.StatusBadRequest, "", "project_id and requirements are required")
		return
	}

	enqueueRun(w, request, runModel.KindGeneration, runModel.RunPayload{
		ProjectId:    requestData.ProjectId,
		Requirements: requestData.Requirements,
		Constraints:  requestData.Constraints,
		Tone:         requestData.Tone,
		Query:        requestData.Query,
	})
}

func GetRunStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	idString := utils.GetChiURLParam(r, "id")
	result, isFound := validateId(idString, r.Context().Value(config.TRACE_ID_KEY).(string))

	logRH.Debug("Get run status request:", "URL path", r.URL.Path)
	if !isFound {
		WriteErrorResponse(w, http.StatusNotFound, idString, "Run not found")
		return
	}

	writeJsonResponse(w, http.StatusOK, adapter.ToAPIResponse(result))
}

func GetDraftHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	idString := utils.GetChiURLParam(r, "id")
	draft, isFound := GetDraft(idString, r.Context().Value(config.TRACE_ID_KEY).(string))
	if !isFound {
		WriteErrorResponse(w, http.StatusNotFound, idString, "Draft not found")
		return
	}

	writeJsonResponse(w, http.StatusOK, adapter.ToDraftResponse(draft))
}

func ValidateSoWRequest(req api.GenerateSoWRequest) bool {
	if req.ProjectId == "" || len(req.Requirements) == 0 {
		return false
	}
	for _, r := range req.Requirements {
		if strings.TrimSpace(r) == "" {
			return false
		}
	}
	return true
}

func enqueueRun(w http.ResponseWriter, request *http.Request, kind runModel.RunKind, payload runModel.RunPayload) {
	newRun := newRunData{
		id:      utils.GetNewUUID(),
		traceId: request.Context().Value(config.TRACE_ID_KEY).(string),
		kind:    kind,
		payload: payload,
	}
	CreateNewRun(newRun)
	res := adapter.ToInitRunResponse(newRun.id)
	writeJsonResponse(w, http.StatusAccepted, res)
}

func closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		logRH.Error("Couldn't close the request body reader :", err)
	}
}
