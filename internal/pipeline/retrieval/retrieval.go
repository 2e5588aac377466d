package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/scopecraft/sowforge/internal/config"
	"github.com/scopecraft/sowforge/internal/domain/docModel"
	"github.com/scopecraft/sowforge/internal/metrics"
	"github.com/scopecraft/sowforge/internal/pipeline/embedding"
	"github.com/scopecraft/sowforge/internal/pipeline/vectorDB"
	"github.com/scopecraft/sowforge/pkg/logger_i"
)

// ErrRetrievalFailed wraps query embedding or store failures. An empty result
// set is NOT an error; generation handles missing context separately.
var ErrRetrievalFailed = errors.New("retrieval failed")

type Service struct {
	embedder embedding.Embedder
	store    vectorDB.Store
	logger   *logger_i.Logger
}

func NewService(embedder embedding.Embedder, store vectorDB.Store) *Service {
	return &Service{
		embedder: embedder,
		store:    store,
		logger:   logger_i.NewLogger("retrieval"),
	}
}

// Retrieve embeds the query with the active strategy and returns up to k
// deduplicated chunks scoring at or above the configured floor.
func (s *Service) Retrieve(ctx context.Context, query string, k int) ([]docModel.RetrievalResult, error) {
	loggr := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	if k <= 0 {
		k = config.RetrievalK
	}

	queryVector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		loggr.Error("Query embedding failed", "error", err)
		return nil, fmt.Errorf("%w: embedding query: %w", ErrRetrievalFailed, err)
	}

	// Over-fetch so the same-document dedupe pass still leaves k results.
	searchStart := time.Now()
	matches, err := s.store.Search(ctx, queryVector, 2*k, config.RetrievalMinScore)
	metrics.CaptureExecutionMetrics("vector_search", time.Since(searchStart))
	if err != nil {
		loggr.Error("Vector search failed", "error", err)
		return nil, fmt.Errorf("%w: searching store: %w", ErrRetrievalFailed, err)
	}

	matches = dedupeOverlapping(matches)
	if len(matches) > k {
		matches = matches[:k]
	}

	results := make([]docModel.RetrievalResult, len(matches))
	for i, m := range matches {
		results[i] = docModel.RetrievalResult{
			Chunk: docModel.DocumentChunk{
				Id:         m.ChunkId,
				DocumentId: m.DocumentId,
				Ordinal:    m.Ordinal,
				Start:      m.Start,
				End:        m.End,
				Text:       m.Text,
				CharCount:  utf8.RuneCountInString(m.Text),
				Status:     docModel.EmbeddingReady,
			},
			Score: m.Score,
			Rank:  i + 1,
		}
	}

	loggr.Debug("Retrieved context", "requested", k, "returned", len(results))
	return results, nil
}

// dedupeOverlapping drops a match when a better-ranked match from the same
// document covers most of the same span. Matches arrive ranked, so the first
// occurrence always wins.
func dedupeOverlapping(matches []vectorDB.Match) []vectorDB.Match {
	kept := matches[:0]
	for _, candidate := range matches {
		redundant := false
		for _, winner := range kept {
			if winner.DocumentId != candidate.DocumentId {
				continue
			}
			if spanOverlapRatio(winner, candidate) > config.SpanOverlapDedupeRatio {
				redundant = true
				break
			}
		}
		if !redundant {
			kept = append(kept, candidate)
		}
	}
	return kept
}

// spanOverlapRatio is the overlapped character count relative to the shorter
// of the two spans.
func spanOverlapRatio(a, b vectorDB.Match) float64 {
	overlapStart := max(a.Start, b.Start)
	overlapEnd := min(a.End, b.End)
	if overlapEnd <= overlapStart {
		return 0
	}
	shorter := min(a.End-a.Start, b.End-b.Start)
	if shorter <= 0 {
		return 0
	}
	return float64(overlapEnd-overlapStart) / float64(shorter)
}
