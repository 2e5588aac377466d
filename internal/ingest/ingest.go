package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/scopecraft/sowforge/internal/adapter/utils"
	"github.com/scopecraft/sowforge/internal/config"
	"github.com/scopecraft/sowforge/internal/domain/docModel"
	"github.com/scopecraft/sowforge/internal/pipeline/chunker"
)

// ErrParse marks unusable intake: empty text or an unrecognized format tag.
// A run hitting this fails before any chunk is persisted.
var ErrParse = errors.New("document parse failed")

// Intake is pre-extracted text plus provenance. Binary extraction and OCR
// happen upstream; this layer only normalizes and validates.
type Intake struct {
	Title   string
	Text    string
	Format  string
	Source  docModel.SourceType
	OwnerId string
}

var supportedFormats = map[string]bool{
	"text":     true,
	"markdown": true,
	"html":     true,
}

// NormalizeIntake validates the intake and produces an immutable Document
// with its content hash. The hash covers the normalized text, so trailing
// whitespace differences do not defeat duplicate detection.
func NormalizeIntake(in Intake) (docModel.Document, error) {
	format := strings.ToLower(strings.TrimSpace(in.Format))
	if format == "" {
		format = "text"
	}
	if !supportedFormats[format] {
		return docModel.Document{}, fmt.Errorf("%w: unsupported format %q", ErrParse, in.Format)
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return docModel.Document{}, fmt.Errorf("%w: empty document text", ErrParse)
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = "Untitled document"
	}

	digest := sha256.Sum256([]byte(text))

	return docModel.Document{
		Id:          utils.GetNewUUID(),
		OwnerId:     in.OwnerId,
		Title:       title,
		Source:      in.Source,
		Text:        text,
		ContentHash: hex.EncodeToString(digest[:]),
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// BuildChunks splits the document and assigns gapless ordinals up front, so
// chunk identity is fixed before any concurrent embedding starts.
func BuildChunks(doc docModel.Document) ([]docModel.DocumentChunk, error) {
	spans, err := chunker.Chunk(doc.Text, chunker.Config{
		MaxSize: config.ChunkMaxSize,
		Overlap: config.ChunkOverlap,
	})
	if err != nil {
		return nil, err
	}

	chunks := make([]docModel.DocumentChunk, len(spans))
	for i, span := range spans {
		chunks[i] = docModel.DocumentChunk{
			Id:         utils.GetNewUUID(),
			DocumentId: doc.Id,
			Ordinal:    i,
			Start:      span.Start,
			End:        span.End,
			Text:       span.Text,
			CharCount:  span.End - span.Start,
			Status:     docModel.EmbeddingPending,
		}
	}
	return chunks, nil
}
