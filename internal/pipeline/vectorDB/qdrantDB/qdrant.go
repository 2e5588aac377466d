package qdrantDB

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/qdrant/go-client/qdrant"
	"github.com/scopecraft/sowforge/internal/config"
	"github.com/scopecraft/sowforge/internal/domain/docModel"
	"github.com/scopecraft/sowforge/internal/pipeline/vectorDB"
	"github.com/scopecraft/sowforge/pkg/logger_i"
)

var logger *logger_i.Logger
var qdrantInstance *qdrant.Client
var once sync.Once
var collectionName = config.ChunkCollectionName

type ClientHolder struct {
	QObj *qdrant.Client
	dim  int
}

// GetQdrantStore returns the shared qdrant-backed chunk store, or nil when
// the server is unreachable. A nil return is not fatal; the caller falls back
// to the in-memory store.
func GetQdrantStore(ctx context.Context, dimension int) vectorDB.Store {
	once.Do(func() {
		logger = logger_i.NewLogger("Qdrant")
		res := newClient(dimension)
		if res != nil {
			qdrantInstance = res
			go closeQdrant(ctx, qdrantInstance)
		}
	})

	if qdrantInstance == nil {
		return nil
	}
	return &ClientHolder{
		QObj: qdrantInstance,
		dim:  dimension,
	}
}

func newClient(dimension int) *qdrant.Client {

	host, port := config.QdrantAddr()

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:     host,
		Port:     port,
		UseTLS:   config.QdrantUseTLS,
		PoolSize: uint(config.QdrantPoolSize),
	})
	if err != nil {
		logger.Error("could not instantiate: ", "error:", err)
		return nil
	}

	err = createCollection(context.Background(), client, collectionName, dimension)
	if err != nil {
		logger.Error("could not create collection: ", "collectionName", collectionName, "error:", err)
		return nil
	}

	return client
}

func closeQdrant(ctx context.Context, qi *qdrant.Client) {
	<-ctx.Done()
	logger.Info("Shutting down Qdrant")
	err := qi.Close()
	if err != nil {
		logger.Error("could not close Qdrant: ", "error:", err)
	}
	logger.Info("Closed Qdrant")
}

// EnsureReady compares the live collection's configured vector size against
// the active embedder. A mismatch means the collection was populated under a
// different strategy and writes must stop until a re-embed migration runs.
func (db *ClientHolder) EnsureReady(ctx context.Context, strategy string, dimension int) error {
	if dimension != db.dim {
		return fmt.Errorf("%w: embedder produces %d, store configured for %d",
			vectorDB.ErrDimensionMismatch, dimension, db.dim)
	}

	info, err := db.QObj.GetCollectionInfo(ctx, collectionName)
	if err != nil {
		return fmt.Errorf("could not inspect collection %q: %w", collectionName, err)
	}
	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params != nil && params.GetSize() != uint64(dimension) {
		return fmt.Errorf("%w: collection holds %d-dimensional vectors, strategy %q produces %d",
			vectorDB.ErrStrategyMismatch, params.GetSize(), strategy, dimension)
	}
	return nil
}

func (db *ClientHolder) Upsert(ctx context.Context, chunk docModel.DocumentChunk, vector []float32) error {
	if len(vector) != db.dim {
		return fmt.Errorf("%w: got %d components, expected %d",
			vectorDB.ErrDimensionMismatch, len(vector), db.dim)
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewID(chunk.Id),
		Vectors: qdrant.NewVectors(vector...),
		Payload: qdrant.NewValueMap(map[string]any{
			"content":  chunk.Text,
			"doc_id":   chunk.DocumentId,
			"chunk_id": chunk.Id,
			"ordinal":  int64(chunk.Ordinal),
			"start":    int64(chunk.Start),
			"end":      int64(chunk.End),
		}),
	}

	_, err := db.QObj.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collectionName,
		Points:         []*qdrant.PointStruct{point},
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}
	return nil
}

// DeleteDocument removes every point carrying the document's id, so a
// re-ingest never leaves stale chunks behind.
func (db *ClientHolder) DeleteDocument(ctx context.Context, documentId string) error {
	_, err := db.QObj.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collectionName,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("doc_id", documentId),
			},
		}),
		Wait: qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("qdrant delete failed: %w", err)
	}
	return nil
}

func (db *ClientHolder) Search(ctx context.Context, vector []float32, k int, minScore float32) ([]vectorDB.Match, error) {
	loggr := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	if len(vector) != db.dim {
		return nil, fmt.Errorf("%w: query has %d components, expected %d",
			vectorDB.ErrDimensionMismatch, len(vector), db.dim)
	}

	result, err := db.QObj.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collectionName,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		ScoreThreshold: qdrant.PtrOf(minScore),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		loggr.Error("Error querying Qdrant: ", "error:", err)
		return nil, err
	}

	matches := make([]vectorDB.Match, 0, len(result))
	for _, hit := range result {
		matches = append(matches, vectorDB.Match{
			ChunkId:    hit.Payload["chunk_id"].GetStringValue(),
			DocumentId: hit.Payload["doc_id"].GetStringValue(),
			Ordinal:    int(hit.Payload["ordinal"].GetIntegerValue()),
			Start:      int(hit.Payload["start"].GetIntegerValue()),
			End:        int(hit.Payload["end"].GetIntegerValue()),
			Text:       hit.Payload["content"].GetStringValue(),
			Score:      hit.Score,
		})
	}

	// Qdrant orders by score only; equal-score ties still need the
	// ordinal/doc-id ordering.
	vectorDB.RankMatches(matches)

	loggr.Debug("Found matches", "count", len(matches))
	return matches, nil
}

func createCollection(ctx context.Context, client *qdrant.Client, collectionName string, dimension int) error {
	if collectionName == "" {
		return errors.New("empty collection name")
	}

	exists, err := client.CollectionExists(ctx, collectionName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	return client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
}
