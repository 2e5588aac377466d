package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/scopecraft/sowforge/internal/config"
	"github.com/scopecraft/sowforge/internal/databricks"
	"github.com/scopecraft/sowforge/internal/domain/docModel"
	"github.com/scopecraft/sowforge/internal/domain/runModel"
	"github.com/scopecraft/sowforge/internal/ingest"
	"github.com/scopecraft/sowforge/internal/metrics"
	"github.com/scopecraft/sowforge/internal/pipeline/embedding"
	"github.com/scopecraft/sowforge/internal/pipeline/sow"
	"github.com/scopecraft/sowforge/internal/pipeline/vectorDB"
	"github.com/scopecraft/sowforge/pkg/logger_i"
)

// Service is the only contract the worker sees; it never touches the
// embedder, store or LLM directly. Runs come in PENDING or RUNNING and leave
// in a terminal state.
type Service interface {
	RunIngestion(ctx context.Context, run runModel.WorkflowRun) runModel.WorkflowRun
	RunGeneration(ctx context.Context, run runModel.WorkflowRun) runModel.WorkflowRun
}

// Retriever and DraftGenerator shrink the service's view of the retrieval
// and generation layers to what the orchestrator actually calls.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]docModel.RetrievalResult, error)
}

type DraftGenerator interface {
	Generate(ctx context.Context, input sow.GenerationInput) (*docModel.SoWDraft, error)
}

// BatchFetcher pulls source rows from an external warehouse for bulk
// ingestion runs. Nil means the feature is not configured.
type BatchFetcher interface {
	FetchTableSample(ctx context.Context, table string, limit int) ([]databricks.BatchRecord, error)
}

type service struct {
	embedder   embedding.Embedder
	fallback   embedding.Embedder
	vectorDB   vectorDB.Store
	retriever  Retriever
	generator  DraftGenerator
	hashIndex  runModel.HashIndex
	draftStore runModel.DraftStore
	fetcher    BatchFetcher
	logger     *logger_i.Logger
}

func NewService(
	embedder embedding.Embedder,
	fallback embedding.Embedder,
	store vectorDB.Store,
	retriever Retriever,
	generator DraftGenerator,
	hashIndex runModel.HashIndex,
	draftStore runModel.DraftStore,
	fetcher BatchFetcher,
) Service {
	return &service{
		embedder:   embedder,
		fallback:   fallback,
		vectorDB:   store,
		retriever:  retriever,
		generator:  generator,
		hashIndex:  hashIndex,
		draftStore: draftStore,
		fetcher:    fetcher,
		logger:     logger_i.NewLogger("pipeline"),
	}
}

// RunIngestion normalizes, chunks, embeds and stores one document. Duplicate
// content short-circuits to COMPLETED without re-chunking; a partially failed
// chunk set lands in PARTIAL so the ready chunks stay searchable.
func (s *service) RunIngestion(ctx context.Context, run runModel.WorkflowRun) runModel.WorkflowRun {
	start := time.Now()
	loggr := s.logger.With("traceId", run.TraceId, "runId", run.Id)
	defer func() { metrics.CaptureRunMetrics(string(run.State), time.Since(start)) }()

	if err := run.Transition(runModel.RunStateRunning); err != nil {
		loggr.Error("Run not startable", "state", run.State, "error", err)
		return run
	}

	intakes, failedRun := s.collectIntakes(ctx, &run)
	if failedRun != nil {
		return *failedRun
	}

	if err := s.vectorDB.EnsureReady(ctx, s.embedder.Strategy(), s.embedder.Dimension()); err != nil {
		run.RecordStep("store_check", runModel.StepFailed, 1, err.Error())
		return s.runError(&run, err, http.StatusConflict, false)
	}

	var ready, failed, docsOk, docsFailed int
	var firstErr error
	firstCode, firstRetry := http.StatusBadGateway, true
	for _, intake := range intakes {
		out := s.ingestOne(ctx, &run, intake)
		ready += out.ready
		failed += out.failed
		if out.docFailed {
			docsFailed++
			if firstErr == nil {
				firstErr = out.err
				firstCode = out.code
				firstRetry = out.retry
			}
		} else {
			docsOk++
		}
	}
	run.Payload.ChunksReady = ready
	run.Payload.ChunksFailed = failed

	switch {
	case docsFailed == 0 && failed == 0:
		_ = run.Transition(runModel.RunStateCompleted)
	case docsOk > 0 || ready > 0:
		msg := fmt.Sprintf("%d of %d chunks failed embedding", failed, ready+failed)
		if docsFailed > 0 {
			msg = fmt.Sprintf("%d of %d documents failed ingestion", docsFailed, len(intakes))
		}
		_ = run.Transition(runModel.RunStatePartial)
		run.Error = runModel.RunError{Code: http.StatusBadGateway, Message: msg, Retry: true}
	default:
		return s.runError(&run, firstErr, firstCode, firstRetry)
	}

	loggr.Info("Ingestion finished", "state", run.State, "ready", ready, "failed", failed)
	return run
}

// collectIntakes resolves the run payload into one intake per document.
// Upload runs carry their text inline; databricks runs fetch a table sample
// and treat every row as an independent document. A failed fetch returns the
// terminal run directly.
func (s *service) collectIntakes(ctx context.Context, run *runModel.WorkflowRun) ([]ingest.Intake, *runModel.WorkflowRun) {
	if run.Payload.IngestSource != docModel.SourceDatabricks || run.Payload.IngestText != "" {
		return []ingest.Intake{{
			Title:  run.Payload.DocumentTitle,
			Text:   run.Payload.IngestText,
			Format: run.Payload.IngestFormat,
			Source: run.Payload.IngestSource,
		}}, nil
	}

	records, res := s.fetchBatchRecords(ctx, run.Payload.Sources)
	if res.Err != nil {
		run.RecordStep("databricks_fetch", runModel.StepFailed, res.Attempts, res.Err.Error())
		failedRun := s.runError(run, res.Err, http.StatusBadGateway, true)
		return nil, &failedRun
	}
	run.RecordStep("databricks_fetch", runModel.StepOk, res.Attempts, fmt.Sprintf("%d rows", len(records)))

	intakes := make([]ingest.Intake, len(records))
	for i, rec := range records {
		intakes[i] = ingest.Intake{
			Title:  fmt.Sprintf("%s row %d", run.Payload.DocumentTitle, rec.RowIndex),
			Text:   rec.Text,
			Source: docModel.SourceDatabricks,
		}
	}
	return intakes, nil
}

func (s *service) fetchBatchRecords(ctx context.Context, sources []string) ([]databricks.BatchRecord, retryResult) {
	if s.fetcher == nil {
		return nil, retryResult{Err: errors.New("databricks source not configured")}
	}
	if len(sources) == 0 {
		return nil, retryResult{Err: errors.New("no source table named")}
	}

	var records []databricks.BatchRecord
	res := withRetry(ctx, func() error {
		r, err := s.fetcher.FetchTableSample(ctx, sources[0], 0)
		if err != nil {
			return err
		}
		records = r
		return nil
	})
	return records, res
}

type ingestOutcome struct {
	ready     int
	failed    int
	docFailed bool
	err       error
	code      int
	retry     bool
}

// ingestOne drives a single document through normalize, dedupe, chunk and
// embed. Step outcomes land on the run as they happen.
func (s *service) ingestOne(ctx context.Context, run *runModel.WorkflowRun, intake ingest.Intake) ingestOutcome {
	doc, err := ingest.NormalizeIntake(intake)
	if err != nil {
		run.RecordStep("normalize", runModel.StepFailed, 1, err.Error())
		return ingestOutcome{docFailed: true, err: err, code: http.StatusUnprocessableEntity}
	}
	run.Payload.DocumentId = doc.Id

	if existingId, found := s.hashIndex.Lookup(ctx, doc.ContentHash); found {
		s.logger.Info("Duplicate content, skipping ingestion", "runId", run.Id, "existingDocId", existingId)
		run.RecordStep("duplicate_check", runModel.StepDuplicate, 1, "content hash already ingested")
		run.Payload.DocumentId = existingId
		return ingestOutcome{}
	}
	run.RecordStep("duplicate_check", runModel.StepOk, 1, "")

	chunks, err := ingest.BuildChunks(doc)
	if err != nil {
		run.RecordStep("chunking", runModel.StepFailed, 1, err.Error())
		return ingestOutcome{docFailed: true, err: err, code: http.StatusUnprocessableEntity}
	}
	run.RecordStep("chunking", runModel.StepOk, 1, fmt.Sprintf("%d chunks", len(chunks)))

	outcomes := s.embedChunks(ctx, chunks)

	ready, failed := 0, 0
	for _, o := range outcomes {
		run.Steps = append(run.Steps, o)
		if o.Status == runModel.StepOk {
			ready++
			metrics.CountChunkOutcome("ready")
		} else {
			failed++
			metrics.CountChunkOutcome("failed")
		}
	}

	switch {
	case failed == 0:
		// Only complete chunk sets enter the hash index, so a later
		// re-submission of the same content re-drives instead of skipping.
		if err := s.hashIndex.Record(ctx, doc.ContentHash, doc.Id); err != nil {
			s.logger.Warn("Could not record content hash", "error", err)
		}
		return ingestOutcome{ready: ready}
	case ready > 0:
		return ingestOutcome{ready: ready, failed: failed}
	default:
		// Nothing searchable was produced; remove any residue so retrieval
		// never sees a half-ingested document.
		if err := s.vectorDB.DeleteDocument(ctx, doc.Id); err != nil {
			s.logger.Warn("Could not clean up failed ingestion", "error", err)
		}
		return ingestOutcome{
			failed:    failed,
			docFailed: true,
			err:       errors.New("all chunks failed embedding"),
			code:      http.StatusBadGateway,
			retry:     true,
		}
	}
}

// embedChunks processes the chunk set with bounded concurrency. Ordinals are
// assigned before dispatch, so completion order never affects identity.
func (s *service) embedChunks(ctx context.Context, chunks []docModel.DocumentChunk) []runModel.StepOutcome {
	outcomes := make([]runModel.StepOutcome, len(chunks))
	sem := make(chan struct{}, config.MaxChunkWorkers)

	for i := range chunks {
		if ctx.Err() != nil {
			for j := i; j < len(chunks); j++ {
				outcomes[j] = runModel.StepOutcome{
					Name:   chunkStepName(chunks[j].Ordinal),
					Status: runModel.StepFailed,
					Reason: "run cancelled before dispatch",
				}
			}
			break
		}
		sem <- struct{}{}
		go func(idx int) {
			defer func() { <-sem }()
			outcomes[idx] = s.embedOneChunk(ctx, chunks[idx])
		}(i)
	}

	// Barrier: the run result is tallied only after every in-flight chunk
	// lands.
	for n := 0; n < cap(sem); n++ {
		sem <- struct{}{}
	}
	return outcomes
}

func (s *service) embedOneChunk(ctx context.Context, chunk docModel.DocumentChunk) runModel.StepOutcome {
	name := chunkStepName(chunk.Ordinal)

	var vector []float32
	res := withRetry(ctx, func() error {
		v, err := s.embedder.Embed(ctx, chunk.Text)
		if err != nil {
			return err
		}
		vector = v
		return nil
	})
	attempts := res.Attempts

	if res.Err != nil && s.fallback != nil && config.EmbedFallbackOnExhaustion() {
		v, ferr := s.fallback.Embed(ctx, chunk.Text)
		if ferr == nil {
			vector = v
			res.Err = nil
		}
	}
	if res.Err != nil {
		return runModel.StepOutcome{Name: name, Status: runModel.StepFailed, Attempts: attempts, Reason: res.Err.Error()}
	}

	chunk.Status = docModel.EmbeddingReady
	upsert := withRetry(ctx, func() error {
		return s.vectorDB.Upsert(ctx, chunk, vector)
	})
	if upsert.Err != nil {
		return runModel.StepOutcome{Name: name, Status: runModel.StepFailed, Attempts: attempts + upsert.Attempts, Reason: upsert.Err.Error()}
	}

	return runModel.StepOutcome{Name: name, Status: runModel.StepOk, Attempts: attempts}
}

func chunkStepName(ordinal int) string {
	return fmt.Sprintf("chunk-%d", ordinal)
}

// RunGeneration retrieves context for the request and produces one draft.
// Empty retrieval is not a failure; the draft ships flagged as missing
// context.
func (s *service) RunGeneration(ctx context.Context, run runModel.WorkflowRun) runModel.WorkflowRun {
	start := time.Now()
	loggr := s.logger.With("traceId", run.TraceId, "runId", run.Id)
	defer func() { metrics.CaptureRunMetrics(string(run.State), time.Since(start)) }()

	if err := run.Transition(runModel.RunStateRunning); err != nil {
		loggr.Error("Run not startable", "state", run.State, "error", err)
		return run
	}

	query := run.Payload.Query
	if query == "" {
		query = strings.Join(run.Payload.Requirements, " ")
	}

	var results []docModel.RetrievalResult
	res := withRetry(ctx, func() error {
		r, err := s.retriever.Retrieve(ctx, query, config.RetrievalK)
		if err != nil {
			return err
		}
		results = r
		return nil
	})
	if res.Err != nil {
		run.RecordStep("retrieval", runModel.StepFailed, res.Attempts, res.Err.Error())
		return s.runError(&run, res.Err, http.StatusBadGateway, true)
	}
	run.RecordStep("retrieval", runModel.StepOk, res.Attempts, fmt.Sprintf("%d chunks", len(results)))

	var draft *docModel.SoWDraft
	gen := withRetry(ctx, func() error {
		d, err := s.generator.Generate(ctx, sow.GenerationInput{
			ProjectId:    run.Payload.ProjectId,
			Requirements: run.Payload.Requirements,
			Constraints:  run.Payload.Constraints,
			Tone:         run.Payload.Tone,
			Context:      results,
		})
		if err != nil {
			return err
		}
		draft = d
		return nil
	})
	if gen.Err != nil {
		run.RecordStep("generation", runModel.StepFailed, gen.Attempts, gen.Err.Error())
		return s.runError(&run, gen.Err, http.StatusBadGateway, true)
	}
	run.RecordStep("generation", runModel.StepOk, gen.Attempts, "")

	if err := s.draftStore.SaveDraft(ctx, *draft); err != nil {
		run.RecordStep("persist_draft", runModel.StepFailed, 1, err.Error())
		return s.runError(&run, err, http.StatusInternalServerError, true)
	}

	run.Payload.DraftId = draft.Id
	_ = run.Transition(runModel.RunStateCompleted)
	loggr.Info("Generation finished", "draftId", draft.Id, "contextMissing", draft.ContextMissing)
	return run
}

func (s *service) runError(run *runModel.WorkflowRun, err error, code int, retry bool) runModel.WorkflowRun {
	s.logger.Error("Run failed", "runId", run.Id, "error", err)
	run.Error = runModel.RunError{Code: code, Message: err.Error(), Retry: retry}
	_ = run.Transition(runModel.RunStateFailed)
	return *run
}
