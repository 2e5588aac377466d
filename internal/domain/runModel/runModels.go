package runModel

import (
	"context"
	"errors"
	"time"

	"github.com/scopecraft/sowforge/internal/domain/docModel"
)

type RunState string
type RunKind string
type StepStatus string

const (
	RunStatePending   RunState = "PENDING"
	RunStateRunning   RunState = "RUNNING"
	RunStateCompleted RunState = "COMPLETED"
	RunStatePartial   RunState = "PARTIAL"
	RunStateFailed    RunState = "FAILED"

	KindIngestion  RunKind = "ingestion"
	KindGeneration RunKind = "generation"

	StepOk        StepStatus = "ok"
	StepFailed    StepStatus = "failed"
	StepDuplicate StepStatus = "duplicate"
)

var ErrStateRegression = errors.New("workflow run state cannot move backwards")

var stateOrder = map[RunState]int{
	RunStatePending:   0,
	RunStateRunning:   1,
	RunStateCompleted: 2,
	RunStatePartial:   2,
	RunStateFailed:    2,
}

// StepOutcome is the per-unit record kept for operator inspection and
// re-drive of failed chunks.
type StepOutcome struct {
	Name     string     `json:"name"`
	Status   StepStatus `json:"status"`
	Attempts int        `json:"attempts"`
	Reason   string     `json:"reason,omitempty"`
}

type RunPayload struct {
	DocumentTitle  string                    `json:"document_title,omitempty"`
	DocumentId     string                    `json:"doc_id,omitempty"`
	ProjectId      string                    `json:"project_id,omitempty"`
	DraftId        string                    `json:"draft_id,omitempty"`
	Requirements   []string                  `json:"requirements,omitempty"`
	Constraints    []string                  `json:"constraints,omitempty"`
	Tone           string                    `json:"tone,omitempty"`
	Query          string                    `json:"query,omitempty"`
	Sources        []string                  `json:"sources,omitempty"`
	IngestText     string                    `json:"-"`
	IngestFormat   string                    `json:"ingest_format,omitempty"`
	IngestSource   docModel.SourceType       `json:"ingest_source,omitempty"`
	ChunksReady    int                       `json:"chunks_ready,omitempty"`
	ChunksFailed   int                       `json:"chunks_failed,omitempty"`
}

type RunError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Retry   bool   `json:"retry"`
}

type WorkflowRun struct {
	Id          string        `json:"id"`
	TraceId     string        `json:"trace_id"`
	Kind        RunKind       `json:"kind"`
	State       RunState      `json:"state"`
	Payload     RunPayload    `json:"payload"`
	Steps       []StepOutcome `json:"steps,omitempty"`
	Attempts    int           `json:"attempts"`
	Error       RunError      `json:"error,omitempty"`
	CreatedTime time.Time     `json:"created_time"`
	EndTime     time.Time     `json:"end_time,omitempty"`
}

// Transition enforces the monotonic PENDING -> RUNNING -> terminal machine.
// Terminal states are final; a terminal run never re-enters RUNNING.
func (r *WorkflowRun) Transition(next RunState) error {
	if stateOrder[next] < stateOrder[r.State] {
		return ErrStateRegression
	}
	if r.Terminal() && next != r.State {
		return ErrStateRegression
	}
	r.State = next
	if r.Terminal() {
		r.EndTime = time.Now()
	}
	return nil
}

func (r *WorkflowRun) Terminal() bool {
	switch r.State {
	case RunStateCompleted, RunStatePartial, RunStateFailed:
		return true
	}
	return false
}

func (r *WorkflowRun) RecordStep(name string, status StepStatus, attempts int, reason string) {
	r.Steps = append(r.Steps, StepOutcome{Name: name, Status: status, Attempts: attempts, Reason: reason})
}

type RunStore interface {
	GetRun(ctx context.Context, runId string) (WorkflowRun, bool)
	SaveRun(ctx context.Context, run WorkflowRun) error
	DeleteRun(ctx context.Context, runId string)
}

type DraftStore interface {
	SaveDraft(ctx context.Context, draft docModel.SoWDraft) error
	GetDraft(ctx context.Context, draftId string) (docModel.SoWDraft, bool)
}

// HashIndex maps a document content hash to the document id whose chunk set
// completed ingestion. Lookup hits short-circuit re-ingestion.
type HashIndex interface {
	Lookup(ctx context.Context, contentHash string) (string, bool)
	Record(ctx context.Context, contentHash string, documentId string) error
	Forget(ctx context.Context, contentHash string)
}
