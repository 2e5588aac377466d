package pipeline_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/scopecraft/sowforge/internal/databricks"
	"github.com/scopecraft/sowforge/internal/domain/docModel"
	"github.com/scopecraft/sowforge/internal/domain/runModel"
	"github.com/scopecraft/sowforge/internal/pipeline"
	"github.com/scopecraft/sowforge/internal/pipeline/embedding"
	"github.com/scopecraft/sowforge/internal/pipeline/sow"
	"github.com/scopecraft/sowforge/internal/pipeline/vectorDB"
	"github.com/scopecraft/sowforge/pkg/logger_i"
)

func init() {
	logger_i.Init()
}

type mockEmbedder struct {
	embedFunc func(ctx context.Context, text string) ([]float32, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return m.embedFunc(ctx, text)
}
func (m *mockEmbedder) Dimension() int   { return 3 }
func (m *mockEmbedder) Strategy() string { return "mock" }

type mockStore struct {
	mu       sync.Mutex
	upserted []docModel.DocumentChunk
	deleted  []string

	upsertErr error
}

func (m *mockStore) EnsureReady(context.Context, string, int) error { return nil }
func (m *mockStore) Upsert(_ context.Context, chunk docModel.DocumentChunk, _ []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserted = append(m.upserted, chunk)
	return nil
}
func (m *mockStore) DeleteDocument(_ context.Context, docId string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, docId)
	return nil
}
func (m *mockStore) Search(context.Context, []float32, int, float32) ([]vectorDB.Match, error) {
	return nil, nil
}

func (m *mockStore) upsertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.upserted)
}

type mockRetriever struct {
	retrieveFunc func(ctx context.Context, query string, k int) ([]docModel.RetrievalResult, error)
}

func (m *mockRetriever) Retrieve(ctx context.Context, query string, k int) ([]docModel.RetrievalResult, error) {
	return m.retrieveFunc(ctx, query, k)
}

type mockGenerator struct {
	generateFunc func(ctx context.Context, input sow.GenerationInput) (*docModel.SoWDraft, error)
}

func (m *mockGenerator) Generate(ctx context.Context, input sow.GenerationInput) (*docModel.SoWDraft, error) {
	return m.generateFunc(ctx, input)
}

type mockLLMProvider struct {
	calls        int32
	generateFunc func(ctx context.Context, prompt string, tone string) (string, error)
}

func (m *mockLLMProvider) Generate(ctx context.Context, prompt string, tone string) (string, error) {
	atomic.AddInt32(&m.calls, 1)
	return m.generateFunc(ctx, prompt, tone)
}

type mockHashIndex struct {
	mu       sync.Mutex
	entries  map[string]string
	recorded []string
}

func newMockHashIndex() *mockHashIndex {
	return &mockHashIndex{entries: map[string]string{}}
}

func (m *mockHashIndex) Lookup(_ context.Context, hash string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.entries[hash]
	return id, ok
}
func (m *mockHashIndex) Record(_ context.Context, hash string, docId string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[hash] = docId
	m.recorded = append(m.recorded, hash)
	return nil
}
func (m *mockHashIndex) Forget(_ context.Context, hash string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, hash)
}

type mockDraftStore struct {
	mu     sync.Mutex
	drafts map[string]docModel.SoWDraft

	saveErr error
}

func newMockDraftStore() *mockDraftStore {
	return &mockDraftStore{drafts: map[string]docModel.SoWDraft{}}
}

func (m *mockDraftStore) SaveDraft(_ context.Context, draft docModel.SoWDraft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.drafts[draft.Id] = draft
	return nil
}
func (m *mockDraftStore) GetDraft(_ context.Context, draftId string) (docModel.SoWDraft, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drafts[draftId]
	return d, ok
}

func happyEmbedder() *mockEmbedder {
	return &mockEmbedder{embedFunc: func(context.Context, string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	}}
}

func permanent(msg string) error {
	return fmt.Errorf("%w: %s", embedding.ErrPermanentProvider, msg)
}

func ingestionRun(text string) runModel.WorkflowRun {
	return runModel.WorkflowRun{
		Id:    "run-1",
		Kind:  runModel.KindIngestion,
		State: runModel.RunStatePending,
		Payload: runModel.RunPayload{
			DocumentTitle: "Project brief",
			IngestText:    text,
			IngestSource:  docModel.SourceUpload,
		},
	}
}

func generationRun() runModel.WorkflowRun {
	return runModel.WorkflowRun{
		Id:    "run-2",
		Kind:  runModel.KindGeneration,
		State: runModel.RunStatePending,
		Payload: runModel.RunPayload{
			ProjectId:    "proj-1",
			Requirements: []string{"build ingestion", "ship drafts"},
			Tone:         "professional",
		},
	}
}

func newIngestionService(embedder *mockEmbedder, store *mockStore, hashes *mockHashIndex) pipeline.Service {
	return pipeline.NewService(embedder, nil, store, nil, nil, hashes, newMockDraftStore(), nil)
}

func TestRunIngestion_Completes(t *testing.T) {
	store := &mockStore{}
	hashes := newMockHashIndex()
	svc := newIngestionService(happyEmbedder(), store, hashes)

	run := svc.RunIngestion(context.Background(), ingestionRun("short statement of work input"))

	if run.State != runModel.RunStateCompleted {
		t.Fatalf("Expected COMPLETED, got %s (error %v)", run.State, run.Error)
	}
	if store.upsertCount() != 1 {
		t.Errorf("Expected 1 chunk upserted, got %d", store.upsertCount())
	}
	if len(hashes.recorded) != 1 {
		t.Error("content hash should be recorded after a complete chunk set")
	}
	if run.Payload.ChunksReady != 1 || run.Payload.ChunksFailed != 0 {
		t.Errorf("Chunk tallies wrong: ready=%d failed=%d", run.Payload.ChunksReady, run.Payload.ChunksFailed)
	}
	if run.EndTime.IsZero() {
		t.Error("terminal run must carry an end time")
	}
}

func TestRunIngestion_DuplicateSkips(t *testing.T) {
	store := &mockStore{}
	hashes := newMockHashIndex()
	svc := newIngestionService(happyEmbedder(), store, hashes)

	first := svc.RunIngestion(context.Background(), ingestionRun("identical content"))
	if first.State != runModel.RunStateCompleted {
		t.Fatalf("first ingestion failed: %s", first.State)
	}

	second := svc.RunIngestion(context.Background(), ingestionRun("identical content"))
	if second.State != runModel.RunStateCompleted {
		t.Fatalf("Expected duplicate run to complete, got %s", second.State)
	}
	if second.Payload.DocumentId != first.Payload.DocumentId {
		t.Error("duplicate run should point at the already ingested document")
	}
	if store.upsertCount() != 1 {
		t.Errorf("duplicate must not write chunks, store has %d", store.upsertCount())
	}

	foundDuplicateStep := false
	for _, s := range second.Steps {
		if s.Status == runModel.StepDuplicate {
			foundDuplicateStep = true
		}
	}
	if !foundDuplicateStep {
		t.Error("duplicate outcome step missing from audit trail")
	}
}

func TestRunIngestion_ParseFailure(t *testing.T) {
	store := &mockStore{}
	svc := newIngestionService(happyEmbedder(), store, newMockHashIndex())

	run := svc.RunIngestion(context.Background(), ingestionRun("   \n "))

	if run.State != runModel.RunStateFailed {
		t.Fatalf("Expected FAILED, got %s", run.State)
	}
	if store.upsertCount() != 0 {
		t.Error("parse failure must not persist any chunk")
	}
	if run.Error.Retry {
		t.Error("parse failure is not retryable")
	}
}

func TestRunIngestion_PartialOnSingleChunkFailure(t *testing.T) {
	// three chunks; only the last is pure filler-b and fails permanently
	text := strings.Repeat("a", 800) + strings.Repeat("b", 800)
	embedder := &mockEmbedder{embedFunc: func(_ context.Context, chunkText string) ([]float32, error) {
		if !strings.Contains(chunkText, "a") {
			return nil, permanent("rejected input")
		}
		return []float32{1, 0, 0}, nil
	}}
	store := &mockStore{}
	hashes := newMockHashIndex()
	svc := newIngestionService(embedder, store, hashes)

	run := svc.RunIngestion(context.Background(), ingestionRun(text))

	if run.State != runModel.RunStatePartial {
		t.Fatalf("Expected PARTIAL, got %s", run.State)
	}
	if run.Payload.ChunksFailed != 1 {
		t.Errorf("Expected exactly 1 failed chunk, got %d", run.Payload.ChunksFailed)
	}
	if run.Payload.ChunksReady != store.upsertCount() {
		t.Errorf("ready tally %d disagrees with store writes %d", run.Payload.ChunksReady, store.upsertCount())
	}
	if len(hashes.recorded) != 0 {
		t.Error("incomplete chunk set must not enter the hash index")
	}
}

func TestRunIngestion_AllChunksFailedCleansUp(t *testing.T) {
	embedder := &mockEmbedder{embedFunc: func(context.Context, string) ([]float32, error) {
		return nil, permanent("credential revoked")
	}}
	store := &mockStore{}
	svc := newIngestionService(embedder, store, newMockHashIndex())

	run := svc.RunIngestion(context.Background(), ingestionRun("some document content"))

	if run.State != runModel.RunStateFailed {
		t.Fatalf("Expected FAILED, got %s", run.State)
	}
	if len(store.deleted) != 1 {
		t.Error("failed ingestion should cascade-delete its document vectors")
	}
}

func TestRunIngestion_PermanentErrorStopsRetrying(t *testing.T) {
	calls := 0
	embedder := &mockEmbedder{embedFunc: func(context.Context, string) ([]float32, error) {
		calls++
		return nil, permanent("invalid request")
	}}
	svc := newIngestionService(embedder, &mockStore{}, newMockHashIndex())

	svc.RunIngestion(context.Background(), ingestionRun("single chunk text"))

	if calls != 1 {
		t.Errorf("permanent error retried: %d calls", calls)
	}
}

func TestRunIngestion_TransientErrorRetriesWithinBudget(t *testing.T) {
	calls := 0
	embedder := &mockEmbedder{embedFunc: func(context.Context, string) ([]float32, error) {
		calls++
		if calls < 3 {
			return nil, fmt.Errorf("%w: timeout", embedding.ErrTransientProvider)
		}
		return []float32{1, 0, 0}, nil
	}}
	svc := newIngestionService(embedder, &mockStore{}, newMockHashIndex())

	run := svc.RunIngestion(context.Background(), ingestionRun("single chunk text"))

	if run.State != runModel.RunStateCompleted {
		t.Fatalf("Expected recovery within budget, got %s", run.State)
	}
	if calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls)
	}
}

type mockFetcher struct {
	fetchFunc func(ctx context.Context, table string, limit int) ([]databricks.BatchRecord, error)
}

func (m *mockFetcher) FetchTableSample(ctx context.Context, table string, limit int) ([]databricks.BatchRecord, error) {
	return m.fetchFunc(ctx, table, limit)
}

func TestRunIngestion_DatabricksSource(t *testing.T) {
	fetcher := &mockFetcher{fetchFunc: func(_ context.Context, table string, _ int) ([]databricks.BatchRecord, error) {
		if table != "catalog.sows" {
			t.Errorf("wrong table requested: %q", table)
		}
		return []databricks.BatchRecord{
			{RowIndex: 0, Text: "title: alpha\nbody: first scope"},
			{RowIndex: 1, Text: "title: beta\nbody: second scope"},
		}, nil
	}}
	store := &mockStore{}
	svc := pipeline.NewService(happyEmbedder(), nil, store, nil, nil, newMockHashIndex(), newMockDraftStore(), fetcher)

	run := runModel.WorkflowRun{
		Id:    "run-dbx",
		Kind:  runModel.KindIngestion,
		State: runModel.RunStatePending,
		Payload: runModel.RunPayload{
			DocumentTitle: "catalog.sows",
			Sources:       []string{"catalog.sows"},
			IngestSource:  docModel.SourceDatabricks,
		},
	}

	out := svc.RunIngestion(context.Background(), run)

	if out.State != runModel.RunStateCompleted {
		t.Fatalf("Expected COMPLETED, got %s (error %v)", out.State, out.Error)
	}
	if out.Payload.ChunksReady != 2 {
		t.Errorf("Expected one ready chunk per row, got %d", out.Payload.ChunksReady)
	}
	docIds := map[string]bool{}
	rowFound := false
	for _, c := range store.upserted {
		docIds[c.DocumentId] = true
		if strings.Contains(c.Text, "second scope") {
			rowFound = true
		}
	}
	if len(docIds) != 2 {
		t.Errorf("Each row should become its own document, got %d", len(docIds))
	}
	if !rowFound {
		t.Error("row text never reached the vector store")
	}
}

func TestRunIngestion_DatabricksNotConfigured(t *testing.T) {
	svc := newIngestionService(happyEmbedder(), &mockStore{}, newMockHashIndex())

	run := runModel.WorkflowRun{
		Id:    "run-dbx-off",
		Kind:  runModel.KindIngestion,
		State: runModel.RunStatePending,
		Payload: runModel.RunPayload{
			Sources:      []string{"catalog.sows"},
			IngestSource: docModel.SourceDatabricks,
		},
	}

	out := svc.RunIngestion(context.Background(), run)
	if out.State != runModel.RunStateFailed {
		t.Fatalf("Expected FAILED without a configured fetcher, got %s", out.State)
	}
}

func TestRunGeneration_Completes(t *testing.T) {
	retriever := &mockRetriever{retrieveFunc: func(context.Context, string, int) ([]docModel.RetrievalResult, error) {
		return []docModel.RetrievalResult{
			{Chunk: docModel.DocumentChunk{Id: "c1", Text: "context"}, Score: 0.9, Rank: 1},
		}, nil
	}}
	generator := &mockGenerator{generateFunc: func(_ context.Context, input sow.GenerationInput) (*docModel.SoWDraft, error) {
		return &docModel.SoWDraft{
			Id:              "draft-1",
			ProjectId:       input.ProjectId,
			Body:            "## SoW",
			ContextChunkIds: []string{"c1"},
			Status:          docModel.DraftCompleted,
		}, nil
	}}
	drafts := newMockDraftStore()
	svc := pipeline.NewService(happyEmbedder(), nil, &mockStore{}, retriever, generator, newMockHashIndex(), drafts, nil)

	run := svc.RunGeneration(context.Background(), generationRun())

	if run.State != runModel.RunStateCompleted {
		t.Fatalf("Expected COMPLETED, got %s (error %v)", run.State, run.Error)
	}
	if run.Payload.DraftId != "draft-1" {
		t.Errorf("DraftId not propagated: %q", run.Payload.DraftId)
	}
	if _, ok := drafts.GetDraft(context.Background(), "draft-1"); !ok {
		t.Error("draft was not persisted")
	}
}

func TestRunGeneration_EmptyContextStillCompletes(t *testing.T) {
	retriever := &mockRetriever{retrieveFunc: func(context.Context, string, int) ([]docModel.RetrievalResult, error) {
		return nil, nil
	}}
	generator := &mockGenerator{generateFunc: func(_ context.Context, input sow.GenerationInput) (*docModel.SoWDraft, error) {
		if len(input.Context) != 0 {
			t.Error("expected empty context input")
		}
		return &docModel.SoWDraft{Id: "draft-2", ContextMissing: true, Status: docModel.DraftCompleted}, nil
	}}
	svc := pipeline.NewService(happyEmbedder(), nil, &mockStore{}, retriever, generator, newMockHashIndex(), newMockDraftStore(), nil)

	run := svc.RunGeneration(context.Background(), generationRun())

	if run.State != runModel.RunStateCompleted {
		t.Fatalf("Empty context must not fail the run, got %s", run.State)
	}
}

func TestRunGeneration_RetrievalFailure(t *testing.T) {
	retriever := &mockRetriever{retrieveFunc: func(context.Context, string, int) ([]docModel.RetrievalResult, error) {
		return nil, permanent("store gone")
	}}
	svc := pipeline.NewService(happyEmbedder(), nil, &mockStore{}, retriever, nil, newMockHashIndex(), newMockDraftStore(), nil)

	run := svc.RunGeneration(context.Background(), generationRun())

	if run.State != runModel.RunStateFailed {
		t.Fatalf("Expected FAILED, got %s", run.State)
	}
	if !run.Error.Retry {
		t.Error("provider failure should be marked retryable")
	}
}

func TestRunGeneration_GeneratorFailure(t *testing.T) {
	retriever := &mockRetriever{retrieveFunc: func(context.Context, string, int) ([]docModel.RetrievalResult, error) {
		return nil, nil
	}}
	generator := &mockGenerator{generateFunc: func(context.Context, sow.GenerationInput) (*docModel.SoWDraft, error) {
		return nil, permanent("model rejected prompt")
	}}
	svc := pipeline.NewService(happyEmbedder(), nil, &mockStore{}, retriever, generator, newMockHashIndex(), newMockDraftStore(), nil)

	run := svc.RunGeneration(context.Background(), generationRun())

	if run.State != runModel.RunStateFailed {
		t.Fatalf("Expected FAILED, got %s", run.State)
	}
}

func TestRunGeneration_PermanentProviderErrorFailsFast(t *testing.T) {
	// The permanent classification must survive the generator's wrapping so
	// the retry policy stops after the first provider call.
	retriever := &mockRetriever{retrieveFunc: func(context.Context, string, int) ([]docModel.RetrievalResult, error) {
		return nil, nil
	}}
	provider := &mockLLMProvider{generateFunc: func(context.Context, string, string) (string, error) {
		return "", permanent("401 invalid api key")
	}}
	svc := pipeline.NewService(happyEmbedder(), nil, &mockStore{}, retriever, sow.NewGenerator(provider), newMockHashIndex(), newMockDraftStore(), nil)

	run := svc.RunGeneration(context.Background(), generationRun())

	if run.State != runModel.RunStateFailed {
		t.Fatalf("Expected FAILED, got %s", run.State)
	}
	if calls := atomic.LoadInt32(&provider.calls); calls != 1 {
		t.Errorf("Permanent provider error was retried: %d calls", calls)
	}
}

func TestRunGeneration_TerminalRunIsNotRestarted(t *testing.T) {
	svc := pipeline.NewService(happyEmbedder(), nil, &mockStore{}, nil, nil, newMockHashIndex(), newMockDraftStore(), nil)

	run := generationRun()
	run.State = runModel.RunStateCompleted

	out := svc.RunGeneration(context.Background(), run)
	if out.State != runModel.RunStateCompleted {
		t.Errorf("terminal run mutated to %s", out.State)
	}
	if len(out.Steps) != 0 {
		t.Error("terminal run should not execute any step")
	}
}
