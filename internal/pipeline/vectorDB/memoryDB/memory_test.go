package memoryDB

import (
	"context"
	"errors"
	"testing"

	"github.com/scopecraft/sowforge/internal/domain/docModel"
	"github.com/scopecraft/sowforge/internal/pipeline/vectorDB"
)

func chunk(id, docId string, ordinal int) docModel.DocumentChunk {
	return docModel.DocumentChunk{
		Id:         id,
		DocumentId: docId,
		Ordinal:    ordinal,
		Text:       "chunk " + id,
	}
}

func TestSearch_RanksByScore(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if err := s.EnsureReady(ctx, "local-sha256", 2); err != nil {
		t.Fatalf("EnsureReady failed: %v", err)
	}
	_ = s.Upsert(ctx, chunk("c1", "doc-a", 0), []float32{1, 0})
	_ = s.Upsert(ctx, chunk("c2", "doc-a", 1), []float32{0, 1})
	_ = s.Upsert(ctx, chunk("c3", "doc-b", 0), []float32{0.9, 0.1})

	matches, err := s.Search(ctx, []float32{1, 0}, 10, 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("Expected 3 matches, got %d", len(matches))
	}
	if matches[0].ChunkId != "c1" || matches[1].ChunkId != "c3" || matches[2].ChunkId != "c2" {
		t.Errorf("Wrong order: %s, %s, %s", matches[0].ChunkId, matches[1].ChunkId, matches[2].ChunkId)
	}
}

func TestSearch_TieBreaks(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	// identical vectors score identically; ordering must fall back to
	// ordinal, then doc id
	_ = s.Upsert(ctx, chunk("c-late", "doc-b", 3), []float32{1, 0})
	_ = s.Upsert(ctx, chunk("c-early", "doc-b", 1), []float32{1, 0})
	_ = s.Upsert(ctx, chunk("c-other", "doc-a", 1), []float32{1, 0})

	matches, err := s.Search(ctx, []float32{1, 0}, 10, 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	got := []string{matches[0].ChunkId, matches[1].ChunkId, matches[2].ChunkId}
	want := []string{"c-other", "c-early", "c-late"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Position %d: expected %s, got %s (full order %v)", i, want[i], got[i], got)
		}
	}
}

func TestSearch_MinScoreFiltersAndKTruncates(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_ = s.Upsert(ctx, chunk("close", "doc-a", 0), []float32{1, 0})
	_ = s.Upsert(ctx, chunk("near", "doc-a", 1), []float32{0.8, 0.6})
	_ = s.Upsert(ctx, chunk("far", "doc-a", 2), []float32{0, 1})

	matches, err := s.Search(ctx, []float32{1, 0}, 10, 0.5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	for _, m := range matches {
		if m.ChunkId == "far" {
			t.Error("orthogonal chunk survived the min score filter")
		}
	}

	matches, _ = s.Search(ctx, []float32{1, 0}, 1, 0)
	if len(matches) != 1 || matches[0].ChunkId != "close" {
		t.Errorf("Expected single best match 'close', got %v", matches)
	}
}

func TestSearch_EmptyStoreIsValid(t *testing.T) {
	s := NewStore()
	matches, err := s.Search(context.Background(), []float32{1, 0}, 5, 0)
	if err != nil {
		t.Fatalf("Search on empty store failed: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("Expected no matches, got %d", len(matches))
	}
}

func TestUpsert_ReplacesExisting(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	c := chunk("c1", "doc-a", 0)
	_ = s.Upsert(ctx, c, []float32{0, 1})
	_ = s.Upsert(ctx, c, []float32{1, 0})

	matches, _ := s.Search(ctx, []float32{1, 0}, 1, 0.99)
	if len(matches) != 1 {
		t.Fatal("re-upserted chunk not found at its new position")
	}
}

func TestUpsert_DimensionMismatch(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if err := s.EnsureReady(ctx, "local-sha256", 3); err != nil {
		t.Fatalf("EnsureReady failed: %v", err)
	}
	err := s.Upsert(ctx, chunk("c1", "doc-a", 0), []float32{1, 0})
	if !errors.Is(err, vectorDB.ErrDimensionMismatch) {
		t.Errorf("Expected ErrDimensionMismatch, got %v", err)
	}
}

func TestDeleteDocument_Cascades(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_ = s.Upsert(ctx, chunk("a0", "doc-a", 0), []float32{1, 0})
	_ = s.Upsert(ctx, chunk("a1", "doc-a", 1), []float32{1, 0})
	_ = s.Upsert(ctx, chunk("b0", "doc-b", 0), []float32{1, 0})

	if err := s.DeleteDocument(ctx, "doc-a"); err != nil {
		t.Fatalf("DeleteDocument failed: %v", err)
	}

	matches, _ := s.Search(ctx, []float32{1, 0}, 10, 0)
	if len(matches) != 1 || matches[0].DocumentId != "doc-b" {
		t.Errorf("Expected only doc-b to survive, got %v", matches)
	}
}

func TestEnsureReady_RejectsStrategySwitch(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if err := s.EnsureReady(ctx, "local-sha256", 1536); err != nil {
		t.Fatalf("first EnsureReady failed: %v", err)
	}
	if err := s.EnsureReady(ctx, "local-sha256", 1536); err != nil {
		t.Fatalf("same strategy rejected: %v", err)
	}
	err := s.EnsureReady(ctx, "openai-text-embedding-3-small", 1536)
	if !errors.Is(err, vectorDB.ErrStrategyMismatch) {
		t.Errorf("Expected ErrStrategyMismatch, got %v", err)
	}
}
