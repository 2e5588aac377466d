package sow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/scopecraft/sowforge/internal/config"
	"github.com/scopecraft/sowforge/internal/domain/docModel"
	"github.com/scopecraft/sowforge/internal/pipeline/llm"
	"github.com/scopecraft/sowforge/pkg/logger_i"
)

// ErrGenerationFailed wraps provider failures after the retry budget is
// spent. It never fires for empty retrieval context; that case produces a
// flagged draft instead.
var ErrGenerationFailed = errors.New("sow generation failed")

type Generator struct {
	provider llm.Provider
	logger   *logger_i.Logger
}

func NewGenerator(provider llm.Provider) *Generator {
	return &Generator{
		provider: provider,
		logger:   logger_i.NewLogger("sow"),
	}
}

// Generate produces one draft. The draft records exactly the chunk ids that
// were handed to the model, and carries ContextMissing when retrieval came
// back empty.
func (g *Generator) Generate(ctx context.Context, input GenerationInput) (*docModel.SoWDraft, error) {
	loggr := g.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	if g.provider == nil {
		return nil, fmt.Errorf("%w: no generation provider configured", ErrGenerationFailed)
	}
	if input.Tone == "" {
		input.Tone = "professional"
	}

	prompt := BuildPrompt(input)

	body, err := g.provider.Generate(ctx, prompt, input.Tone)
	if err != nil {
		loggr.Error("Draft generation failed", "projectId", input.ProjectId, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	chunkIds := make([]string, len(input.Context))
	for i, r := range input.Context {
		chunkIds[i] = r.Chunk.Id
	}

	draft := &docModel.SoWDraft{
		Id:              uuid.NewString(),
		ProjectId:       input.ProjectId,
		Body:            body,
		Tone:            input.Tone,
		ContextChunkIds: chunkIds,
		ContextMissing:  len(input.Context) == 0,
		Status:          docModel.DraftCompleted,
		CreatedAt:       time.Now().UTC(),
	}

	loggr.Info("Draft generated", "projectId", input.ProjectId, "draftId", draft.Id,
		"contextChunks", len(chunkIds), "contextMissing", draft.ContextMissing)
	return draft, nil
}
