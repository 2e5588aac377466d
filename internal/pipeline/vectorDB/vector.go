package vectorDB

import (
	"context"
	"errors"
	"sort"

	"github.com/scopecraft/sowforge/internal/domain/docModel"
)

var (
	// ErrDimensionMismatch is surfaced immediately, never silently coerced.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrStrategyMismatch means the store holds vectors from a different
	// embedding strategy; a forced re-embedding migration is required before
	// writes are accepted again.
	ErrStrategyMismatch = errors.New("embedding strategy mismatch, re-embed required")
)

// Match is one search hit. Span offsets ride along so the retrieval layer
// can dedupe overlapping hits from the same document.
type Match struct {
	ChunkId    string
	DocumentId string
	Ordinal    int
	Start      int
	End        int
	Text       string
	Score      float32
}

// Store keeps chunk vectors keyed by chunk id. It does not own chunk
// lifecycle; deleting a document cascades to its vector entries.
type Store interface {
	// EnsureReady verifies (and on first use records) the active embedding
	// strategy and dimensionality.
	EnsureReady(ctx context.Context, strategy string, dimension int) error
	// Upsert is idempotent; an existing entry for the chunk id is replaced.
	Upsert(ctx context.Context, chunk docModel.DocumentChunk, vector []float32) error
	DeleteDocument(ctx context.Context, documentId string) error
	// Search returns up to k matches with score >= minScore, ranked by
	// descending similarity; ties broken by lowest ordinal then lowest
	// document id.
	Search(ctx context.Context, vector []float32, k int, minScore float32) ([]Match, error)
}

// RankMatches applies the deterministic ordering every Store implementation
// must present: score descending, then ordinal, then document id.
func RankMatches(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].Ordinal != matches[j].Ordinal {
			return matches[i].Ordinal < matches[j].Ordinal
		}
		return matches[i].DocumentId < matches[j].DocumentId
	})
}
