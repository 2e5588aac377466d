package docModel

import "time"

type SourceType string
type EmbeddingStatus string
type DraftStatus string

const (
	SourceUpload     SourceType = "upload"
	SourceDatabricks SourceType = "databricks"

	EmbeddingPending EmbeddingStatus = "pending"
	EmbeddingReady   EmbeddingStatus = "ready"
	EmbeddingFailed  EmbeddingStatus = "failed"

	DraftCompleted DraftStatus = "completed"
	DraftFailed    DraftStatus = "failed"
)

// Document is immutable once stored; ContentHash drives idempotent
// re-ingestion detection.
type Document struct {
	Id          string     `json:"id"`
	OwnerId     string     `json:"owner_id,omitempty"`
	Title       string     `json:"title"`
	Source      SourceType `json:"source"`
	Text        string     `json:"-"`
	ContentHash string     `json:"content_hash"`
	CreatedAt   time.Time  `json:"created_at"`
}

// DocumentChunk ordinals are contiguous and gapless for a completed
// ingestion; Start/End are character offsets into the document text.
type DocumentChunk struct {
	Id         string          `json:"chunk_id"`
	DocumentId string          `json:"doc_id"`
	Ordinal    int             `json:"ordinal"`
	Start      int             `json:"start"`
	End        int             `json:"end"`
	Text       string          `json:"content"`
	CharCount  int             `json:"char_count"`
	Embedding  []float32       `json:"-"`
	Status     EmbeddingStatus `json:"status"`
}

type RetrievalResult struct {
	Chunk DocumentChunk `json:"chunk"`
	Score float32       `json:"score"`
	Rank  int           `json:"rank"`
}

// SoWDraft records exactly the chunk set handed to the generator so the
// draft can be audited against its sources.
type SoWDraft struct {
	Id              string      `json:"id"`
	ProjectId       string      `json:"project_id"`
	Body            string      `json:"body"`
	Tone            string      `json:"tone"`
	ContextChunkIds []string    `json:"context_chunk_ids"`
	ContextMissing  bool        `json:"context_missing"`
	Status          DraftStatus `json:"status"`
	CreatedAt       time.Time   `json:"created_at"`
}
