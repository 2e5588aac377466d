package openaiEmbedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/scopecraft/sowforge/internal/config"
	"github.com/scopecraft/sowforge/internal/metrics"
	"github.com/scopecraft/sowforge/internal/pipeline/embedding"
	"github.com/scopecraft/sowforge/pkg/logger_i"
)

const StrategyName = "openai-" + config.OpenAIEmbeddingModel

var (
	logger          *logger_i.Logger
	once            sync.Once
	embeddingClient *client
)

type client struct {
	api openai.Client
	dim int
}

// GetOpenAIEmbeddingClient returns the external embedding strategy, or nil
// when no API key is configured. A nil return is not an error; the caller
// falls back to the deterministic local strategy.
func GetOpenAIEmbeddingClient(ctx context.Context, apikey string, dimension int) embedding.Embedder {
	once.Do(func() {
		logger = logger_i.NewLogger("openai_embedding")
		if apikey == "" {
			logger.Info("No OpenAI credential configured, external embedding disabled")
			return
		}
		embeddingClient = &client{
			api: openai.NewClient(option.WithAPIKey(apikey)),
			dim: dimension,
		}
		logger.Info("OpenAI embedding client created", "model", config.OpenAIEmbeddingModel, "dimension", dimension)
		go closeClient(ctx)
	})

	if embeddingClient == nil {
		return nil
	}
	return embeddingClient
}

func closeClient(ctx context.Context) {
	<-ctx.Done()
	logger.Info("Closing OpenAI embedding client")
	embeddingClient = nil
}

func (c *client) Dimension() int   { return c.dim }
func (c *client) Strategy() string { return StrategyName }

// Embed requests the configured dimensionality explicitly so every vector in
// the store matches the deployment's D regardless of model default.
func (c *client) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("embedding", time.Since(start)) }()

	callCtx, cancel := context.WithTimeout(ctx, config.ExternalCallBudget)
	defer cancel()

	resp, err := c.api.Embeddings.New(callCtx, openai.EmbeddingNewParams{
		Input:      openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model:      config.OpenAIEmbeddingModel,
		Dimensions: openai.Int(int64(c.dim)),
	})
	if err != nil {
		logger.Error("Embedding call failed", "error", err)
		return nil, embedding.Classify(err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: empty embedding response", embedding.ErrTransientProvider)
	}
	return toFloat32(resp.Data[0].Embedding), nil
}

// toFloat32 narrows the API's float64 components for storage.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
