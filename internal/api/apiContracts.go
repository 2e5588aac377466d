package api

import "time"

type RunExternalStatus string

const (
	RunStatusError RunExternalStatus = "Error"
)

type RunResponse struct {
	Id        string            `json:"id" example:"run_cz109"`
	Kind      string            `json:"kind" example:"ingestion"`
	Result    Result            `json:"result"`
	Error     *RunOutgoingError `json:"error,omitempty"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
}

type RunOutgoingError struct {
	Code    int    `json:"code" example:"400"`
	Message string `json:"message" example:"Run not found"`
	Retry   bool   `json:"can_retry" example:"false"`
}

type IngestionResult struct {
	DocumentId   string `json:"doc_id,omitempty"`
	ChunksReady  int    `json:"chunks_ready"`
	ChunksFailed int    `json:"chunks_failed"`
}

type GenerationResult struct {
	DraftId  string `json:"draft_id,omitempty"`
	DraftURL string `json:"draft_url,omitempty"`
}

type StepResult struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Attempts int    `json:"attempts"`
	Reason   string `json:"reason,omitempty"`
}

type Result struct {
	Status     string            `json:"status"`
	Ingestion  *IngestionResult  `json:"ingestion,omitempty"`
	Generation *GenerationResult `json:"generation,omitempty"`
	Steps      []StepResult      `json:"steps,omitempty"`
}

type InitRunResponse struct {
	Id        string `json:"id"`
	StatusURL string `json:"status_url"`
}

type DraftResponse struct {
	Id              string    `json:"id"`
	ProjectId       string    `json:"project_id"`
	Body            string    `json:"body"`
	Tone            string    `json:"tone"`
	ContextChunkIds []string  `json:"context_chunk_ids"`
	ContextMissing  bool      `json:"context_missing"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

// requests---------------------

type IngestDocumentRequest struct {
	Title  string `json:"title"`
	Text   string `json:"text" validate:"required"`
	Format string `json:"format,omitempty"`
}

type DatabricksIngestRequest struct {
	Table string `json:"table" validate:"required"`
	Title string `json:"title,omitempty"`
}

type GenerateSoWRequest struct {
	ProjectId    string   `json:"project_id" validate:"required"`
	Requirements []string `json:"requirements" validate:"required"`
	Constraints  []string `json:"constraints,omitempty"`
	Tone         string   `json:"tone,omitempty"`
	Query        string   `json:"query,omitempty"`
}
