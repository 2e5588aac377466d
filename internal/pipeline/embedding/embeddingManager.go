package embedding

import "context"

// Embedder maps text into a fixed-dimensional vector. Both strategies emit
// the same Dimension for one deployment; a store never mixes them.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	Strategy() string
}
