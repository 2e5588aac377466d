package memoryDB

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/scopecraft/sowforge/internal/domain/docModel"
	"github.com/scopecraft/sowforge/internal/pipeline/vectorDB"
)

type entry struct {
	chunk  docModel.DocumentChunk
	vector []float32
}

// Store is the process-local fallback used when no qdrant server is
// reachable, and the exact-similarity reference in tests. It ranks by cosine
// similarity with deterministic tie-breaking.
type Store struct {
	mu        sync.RWMutex
	entries   map[string]entry
	strategy  string
	dimension int
}

func NewStore() *Store {
	return &Store{entries: make(map[string]entry)}
}

// EnsureReady pins the first strategy/dimension pair it sees. Later calls
// with a different pair fail; vectors from different strategies are never
// comparable and must not share a store.
func (s *Store) EnsureReady(_ context.Context, strategy string, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.strategy == "" {
		s.strategy = strategy
		s.dimension = dimension
		return nil
	}
	if s.strategy != strategy || s.dimension != dimension {
		return fmt.Errorf("%w: store pinned to %s/%d, got %s/%d",
			vectorDB.ErrStrategyMismatch, s.strategy, s.dimension, strategy, dimension)
	}
	return nil
}

func (s *Store) Upsert(_ context.Context, chunk docModel.DocumentChunk, vector []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dimension != 0 && len(vector) != s.dimension {
		return fmt.Errorf("%w: got %d components, expected %d",
			vectorDB.ErrDimensionMismatch, len(vector), s.dimension)
	}

	stored := make([]float32, len(vector))
	copy(stored, vector)
	s.entries[chunk.Id] = entry{chunk: chunk, vector: stored}
	return nil
}

func (s *Store) DeleteDocument(_ context.Context, documentId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.entries {
		if e.chunk.DocumentId == documentId {
			delete(s.entries, id)
		}
	}
	return nil
}

func (s *Store) Search(_ context.Context, vector []float32, k int, minScore float32) ([]vectorDB.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.dimension != 0 && len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d components, expected %d",
			vectorDB.ErrDimensionMismatch, len(vector), s.dimension)
	}

	var matches []vectorDB.Match
	for _, e := range s.entries {
		score := cosine(vector, e.vector)
		if score < minScore {
			continue
		}
		matches = append(matches, vectorDB.Match{
			ChunkId:    e.chunk.Id,
			DocumentId: e.chunk.DocumentId,
			Ordinal:    e.chunk.Ordinal,
			Start:      e.chunk.Start,
			End:        e.chunk.End,
			Text:       e.chunk.Text,
			Score:      score,
		})
	}

	vectorDB.RankMatches(matches)
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

var _ vectorDB.Store = (*Store)(nil)
