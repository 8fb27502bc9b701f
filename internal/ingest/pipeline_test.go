package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaccii-voc/kbcore/internal/model"
	"github.com/yaccii-voc/kbcore/internal/textindex"
	"github.com/yaccii-voc/kbcore/internal/vectorindex"
)

type fakeEmbedder struct {
	dim     int
	vectors [][]float32
	err     error
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors, nil
}
func (f *fakeEmbedder) Dim() int { return f.dim }

type fakeVectorIndex struct {
	upserted []vectorindex.Point
	space    string
	err      error
}

func (f *fakeVectorIndex) Upsert(ctx context.Context, space string, points []vectorindex.Point) error {
	if f.err != nil {
		return f.err
	}
	f.space = space
	f.upserted = points
	return nil
}
func (f *fakeVectorIndex) Search(ctx context.Context, space string, vector []float32, topK int) ([]vectorindex.Hit, error) {
	return nil, nil
}
func (f *fakeVectorIndex) DeleteByDocument(ctx context.Context, space string, documentID int64, keepIndexVersion int64) error {
	return nil
}

type fakeTextIndex struct {
	upserted []textindex.Document
	space    string
	err      error
}

func (f *fakeTextIndex) Upsert(ctx context.Context, space string, docs []textindex.Document) error {
	if f.err != nil {
		return f.err
	}
	f.space = space
	f.upserted = docs
	return nil
}
func (f *fakeTextIndex) Search(ctx context.Context, space, query string, topK int) ([]textindex.Hit, error) {
	return nil, nil
}
func (f *fakeTextIndex) DeleteByDocument(ctx context.Context, space string, documentID int64, keepIndexVersion int64) error {
	return nil
}

func TestVectorize_UpsertsOnePointPerChunk(t *testing.T) {
	vec := &fakeVectorIndex{}
	embedder := &fakeEmbedder{vectors: [][]float32{{0.1, 0.2}, {0.3, 0.4}}}
	p := &Pipeline{Vector: vec, Embedder: embedder}

	doc := &model.Document{DocumentID: 1, SpaceCode: "docs"}
	job := &model.IngestJob{IndexVersion: 3}
	chunks := []model.Chunk{
		{ChunkID: "c1", DocumentID: 1, ChunkIndex: 0, Content: "a"},
		{ChunkID: "c2", DocumentID: 1, ChunkIndex: 1, Content: "b"},
	}

	require.NoError(t, p.vectorize(context.Background(), doc, job, chunks))
	assert.Equal(t, "docs", vec.space)
	require.Len(t, vec.upserted, 2)
	assert.Equal(t, "c1", vec.upserted[0].ChunkID)
	assert.Equal(t, int64(3), vec.upserted[0].IndexVersion)
}

func TestVectorize_MismatchedVectorCountErrors(t *testing.T) {
	vec := &fakeVectorIndex{}
	embedder := &fakeEmbedder{vectors: [][]float32{{0.1}}}
	p := &Pipeline{Vector: vec, Embedder: embedder}

	doc := &model.Document{DocumentID: 1, SpaceCode: "docs"}
	job := &model.IngestJob{IndexVersion: 1}
	chunks := []model.Chunk{
		{ChunkID: "c1", Content: "a"},
		{ChunkID: "c2", Content: "b"},
	}

	err := p.vectorize(context.Background(), doc, job, chunks)
	assert.Error(t, err)
}

func TestTextIndex_UpsertsOneDocumentPerChunk(t *testing.T) {
	text := &fakeTextIndex{}
	p := &Pipeline{Text: text}

	doc := &model.Document{DocumentID: 7, SpaceCode: "kb"}
	job := &model.IngestJob{IndexVersion: 2}
	chunks := []model.Chunk{{ChunkID: "x", Content: "hello"}}

	require.NoError(t, p.textIndex(context.Background(), doc, job, chunks))
	assert.Equal(t, "kb", text.space)
	require.Len(t, text.upserted, 1)
	assert.Equal(t, "hello", text.upserted[0].Content)
}
