package gemini

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/scopecraft/sowforge/internal/config"
	"github.com/scopecraft/sowforge/internal/metrics"
	"github.com/scopecraft/sowforge/internal/pipeline/embedding"
	"github.com/scopecraft/sowforge/internal/pipeline/llm"
	"github.com/scopecraft/sowforge/pkg/logger_i"
	"google.golang.org/genai"
)

// ErrEmptyResponse marks a completed call that produced no text; the retry
// policy treats it as transient.
var ErrEmptyResponse = errors.New("empty model response")

type llmClient struct {
	client    *genai.Client
	modelName string
}

var logger *logger_i.Logger
var geminiClient *llmClient
var once sync.Once

// GetGeminiClient returns the shared Gemini provider, or nil when no client
// could be created. A nil return disables generation runs; ingestion keeps
// working.
func GetGeminiClient(ctx context.Context, modelName string, apikey string) llm.Provider {
	once.Do(func() {
		logger = logger_i.NewLogger("llm_gemini")
		newGeminiClient(ctx, modelName, apikey)
	})

	if geminiClient == nil {
		return nil
	}
	return geminiClient
}

func newGeminiClient(ctx context.Context, modelName string, apikey string) {

	if apikey == "" {
		logger.Info("No Gemini credential configured, generation disabled")
		return
	}

	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apikey})
	if err != nil {
		logger.Error("Error creating Gemini client:", "error", err)
	}
	if c != nil {
		geminiClient = &llmClient{client: c, modelName: modelName}
		logger.Info("Gemini client created", "model", modelName)
	}
}

func (c *llmClient) Generate(ctx context.Context, prompt string, tone string) (string, error) {
	loggr := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("llm_generation", time.Since(start)) }()

	systemInstruction := &genai.Content{
		Parts: []*genai.Part{
			{Text: config.SystemContext + " Requested tone: " + tone + "."},
		},
	}

	contentConfig := &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction,
		Temperature:       genai.Ptr(config.ModelTemperature),
	}

	callCtx, cancel := context.WithTimeout(ctx, config.ExternalCallBudget)
	defer cancel()

	result, err := c.client.Models.GenerateContent(
		callCtx,
		c.modelName,
		genai.Text(prompt),
		contentConfig,
	)
	if err != nil {
		loggr.Error("Generation call failed", "error", err)
		return "", fmt.Errorf("gemini generation: %w", embedding.Classify(err))
	}

	text := result.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
