package localEmbedding

import (
	"context"
	"crypto/sha256"
	"math"
	"strings"

	"github.com/scopecraft/sowforge/internal/pipeline/embedding"
)

const StrategyName = "local-sha256"

// Embedder is the deterministic fallback: a reproducible pseudo-embedding
// computed purely from the input text, used when no external credential is
// configured. Identical input always yields the identical vector.
type Embedder struct {
	dim int
}

func New(dimension int) *Embedder {
	return &Embedder{dim: dimension}
}

func (e *Embedder) Dimension() int   { return e.dim }
func (e *Embedder) Strategy() string { return StrategyName }

// Embed accumulates each token's sha256 digest bytes cyclically across the
// vector components and L2-normalizes the result. Whitespace-only input maps
// to the zero vector.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	vector := make([]float32, e.dim)

	sanitized := strings.TrimSpace(text)
	if sanitized == "" {
		return vector, nil
	}

	for _, token := range strings.Split(strings.ToLower(sanitized), " ") {
		digest := sha256.Sum256([]byte(token))
		for i := 0; i < e.dim; i++ {
			vector[i] += float32(digest[i%len(digest)]) / 255.0
		}
	}

	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return vector, nil
	}
	for i := range vector {
		vector[i] = float32(float64(vector[i]) / norm)
	}
	return vector, nil
}

var _ embedding.Embedder = (*Embedder)(nil)
