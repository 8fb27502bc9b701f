// Package vectorindex adapts the hybrid retriever's vector backend to
// Qdrant, one per-space collection keyed by chunk_id. Vectors MUST already
// be L2-normalized by the caller (internal/embed does this), so cosine and
// inner-product distance agree: higher score is always more similar.
package vectorindex

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// Hit is one search result: a chunk_id with its similarity score.
type Hit struct {
	ChunkID string
	Score   float32
}

// Index is the VectorIndex contract from the specification: per-space,
// keyed by chunk_id, idempotent upsert, best-effort cleanup.
type Index interface {
	Upsert(ctx context.Context, space string, points []Point) error
	Search(ctx context.Context, space string, vector []float32, topK int) ([]Hit, error)
	DeleteByDocument(ctx context.Context, space string, documentID int64, keepIndexVersion int64) error
}

// Point is one chunk's vector plus the metadata needed to filter it back
// out during cleanup.
type Point struct {
	ChunkID      string
	DocumentID   int64
	IndexVersion int64
	ChunkIndex   int
	Vector       []float32
}

const vectorName = "content"

// QdrantIndex implements Index against a Qdrant instance, creating
// collections lazily on first upsert since the space set is not known
// ahead of time.
type QdrantIndex struct {
	client *qdrant.Client
	dim    uint64
}

func New(client *qdrant.Client, dim int) *QdrantIndex {
	return &QdrantIndex{client: client, dim: uint64(dim)}
}

func collectionName(space string) string { return "kbcore_" + space }

func (q *QdrantIndex) ensureCollection(ctx context.Context, space string) error {
	name := collectionName(space)
	exists, err := q.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("vectorindex: check collection %s: %w", name, err)
	}
	if exists {
		return nil
	}
	return q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			vectorName: {Size: q.dim, Distance: qdrant.Distance_Cosine},
		}),
	})
}

func (q *QdrantIndex) Upsert(ctx context.Context, space string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	if err := q.ensureCollection(ctx, space); err != nil {
		return err
	}

	qpoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		qpoints = append(qpoints, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(p.ChunkID),
			Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{vectorName: qdrant.NewVectorDense(p.Vector)}),
			Payload: qdrant.NewValueMap(map[string]any{
				"chunk_id":      p.ChunkID,
				"document_id":   p.DocumentID,
				"index_version": p.IndexVersion,
				"chunk_index":   p.ChunkIndex,
			}),
		})
	}

	wait := true
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collectionName(space),
		Points:         qpoints,
		Wait:           &wait,
	})
	if err != nil {
		return fmt.Errorf("vectorindex: upsert into %s: %w", collectionName(space), err)
	}
	return nil
}

func (q *QdrantIndex) Search(ctx context.Context, space string, vector []float32, topK int) ([]Hit, error) {
	limit := uint64(topK)
	withPayload := qdrant.NewWithPayload(true)
	resp, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collectionName(space),
		Query:          qdrant.NewQueryDense(vector),
		Using:          strPtr(vectorName),
		Limit:          &limit,
		WithPayload:    withPayload,
	})
	if err != nil {
		return nil, fmt.Errorf("vectorindex: query %s: %w", collectionName(space), err)
	}
	hits := make([]Hit, 0, len(resp))
	for _, pt := range resp {
		chunkID := pt.GetId().GetUuid()
		if payload := pt.GetPayload(); payload != nil {
			if v, ok := payload["chunk_id"]; ok {
				chunkID = v.GetStringValue()
			}
		}
		hits = append(hits, Hit{ChunkID: chunkID, Score: pt.GetScore()})
	}
	return hits, nil
}

func (q *QdrantIndex) DeleteByDocument(ctx context.Context, space string, documentID int64, keepIndexVersion int64) error {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatchInt("document_id", documentID),
		},
		MustNot: []*qdrant.Condition{
			qdrant.NewMatchInt("index_version", keepIndexVersion),
		},
	}
	wait := true
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collectionName(space),
		Points:         qdrant.NewPointsSelectorFilter(filter),
		Wait:           &wait,
	})
	if err != nil {
		return fmt.Errorf("vectorindex: delete stale versions for document %d: %w", documentID, err)
	}
	return nil
}

func strPtr(s string) *string { return &s }
