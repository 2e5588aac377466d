package sow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/scopecraft/sowforge/internal/config"
	"github.com/scopecraft/sowforge/internal/domain/docModel"
	"github.com/scopecraft/sowforge/internal/pipeline/embedding"
	"github.com/scopecraft/sowforge/pkg/logger_i"
)

func init() {
	logger_i.Init()
}

type mockProvider struct {
	generateFunc func(ctx context.Context, prompt string, tone string) (string, error)
}

func (m *mockProvider) Generate(ctx context.Context, prompt string, tone string) (string, error) {
	return m.generateFunc(ctx, prompt, tone)
}

func result(chunkId, text string) docModel.RetrievalResult {
	return docModel.RetrievalResult{
		Chunk: docModel.DocumentChunk{Id: chunkId, Text: text},
	}
}

func TestGenerate_RecordsContextChunkIds(t *testing.T) {
	provider := &mockProvider{generateFunc: func(context.Context, string, string) (string, error) {
		return "## Statement of Work", nil
	}}

	draft, err := NewGenerator(provider).Generate(context.Background(), GenerationInput{
		ProjectId:    "proj-1",
		Requirements: []string{"migrate warehouse"},
		Tone:         "formal",
		Context:      []docModel.RetrievalResult{result("c1", "alpha"), result("c2", "beta")},
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if draft.ContextMissing {
		t.Error("ContextMissing set despite retrieved context")
	}
	if len(draft.ContextChunkIds) != 2 || draft.ContextChunkIds[0] != "c1" || draft.ContextChunkIds[1] != "c2" {
		t.Errorf("ContextChunkIds wrong: %v", draft.ContextChunkIds)
	}
	if draft.Status != docModel.DraftCompleted {
		t.Errorf("Expected completed draft, got %s", draft.Status)
	}
}

func TestGenerate_EmptyContextFlagsDraft(t *testing.T) {
	provider := &mockProvider{generateFunc: func(_ context.Context, prompt string, _ string) (string, error) {
		if !strings.Contains(prompt, "No retrieved context") {
			t.Error("prompt should state that no context was retrieved")
		}
		return "draft without context", nil
	}}

	draft, err := NewGenerator(provider).Generate(context.Background(), GenerationInput{
		ProjectId:    "proj-2",
		Requirements: []string{"build api"},
	})
	if err != nil {
		t.Fatalf("Empty context must not fail generation: %v", err)
	}
	if !draft.ContextMissing {
		t.Error("Expected ContextMissing on empty retrieval")
	}
	if len(draft.ContextChunkIds) != 0 {
		t.Errorf("Expected no chunk ids, got %v", draft.ContextChunkIds)
	}
}

func TestGenerate_ProviderFailure(t *testing.T) {
	provider := &mockProvider{generateFunc: func(context.Context, string, string) (string, error) {
		return "", errors.New("model unavailable")
	}}

	_, err := NewGenerator(provider).Generate(context.Background(), GenerationInput{ProjectId: "p"})
	if !errors.Is(err, ErrGenerationFailed) {
		t.Errorf("Expected ErrGenerationFailed, got %v", err)
	}
}

func TestGenerate_PreservesProviderClassification(t *testing.T) {
	provider := &mockProvider{generateFunc: func(context.Context, string, string) (string, error) {
		return "", fmt.Errorf("%w: credential rejected", embedding.ErrPermanentProvider)
	}}

	_, err := NewGenerator(provider).Generate(context.Background(), GenerationInput{ProjectId: "p"})
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("Expected ErrGenerationFailed, got %v", err)
	}
	if !embedding.IsPermanent(err) {
		t.Error("permanent classification lost through the generation wrapper")
	}
}

func TestGenerate_NilProvider(t *testing.T) {
	_, err := NewGenerator(nil).Generate(context.Background(), GenerationInput{ProjectId: "p"})
	if !errors.Is(err, ErrGenerationFailed) {
		t.Errorf("Expected ErrGenerationFailed, got %v", err)
	}
}

func TestBuildPrompt_Layout(t *testing.T) {
	prompt := BuildPrompt(GenerationInput{
		ProjectId:    "proj-9",
		Requirements: []string{"first requirement", "second requirement"},
		Constraints:  nil,
		Tone:         "casual",
		Context:      []docModel.RetrievalResult{result("c1", "excerpt text")},
	})

	if !strings.Contains(prompt, "project proj-9 in a casual tone") {
		t.Error("prompt missing project/tone line")
	}
	if !strings.Contains(prompt, "first requirement\n- second requirement") {
		t.Error("requirements not rendered in submitted order")
	}
	if !strings.Contains(prompt, "None provided") {
		t.Error("empty constraints should render as 'None provided'")
	}
	if !strings.Contains(prompt, "excerpt text") {
		t.Error("context excerpt missing")
	}
}

func TestBuildPrompt_TruncatesLongExcerpts(t *testing.T) {
	long := strings.Repeat("x", config.ContextMaxExcerptChars+500)
	prompt := BuildPrompt(GenerationInput{
		ProjectId:    "p",
		Requirements: []string{"r"},
		Tone:         "professional",
		Context:      []docModel.RetrievalResult{result("c1", long)},
	})

	if strings.Contains(prompt, long) {
		t.Error("oversized excerpt was not truncated")
	}
	if !strings.Contains(prompt, strings.Repeat("x", config.ContextMaxExcerptChars)) {
		t.Error("truncated excerpt prefix missing")
	}
}
