package retriever

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaccii-voc/kbcore/internal/model"
)

type fakeChunkStore struct {
	chunks map[string]model.Chunk
}

func (f *fakeChunkStore) ResolveSearchableChunks(ctx context.Context, space string, chunkIDs []string) (map[string]model.Chunk, error) {
	out := map[string]model.Chunk{}
	for _, id := range chunkIDs {
		if c, ok := f.chunks[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

func TestSortByScoreDesc_TiesBrokenByChunkIDAsc(t *testing.T) {
	xs := []scored{{chunkID: "b", score: 1}, {chunkID: "a", score: 1}, {chunkID: "c", score: 2}}
	out := sortByScoreDesc(xs)
	assert.Equal(t, []scored{{chunkID: "c", score: 2}, {chunkID: "a", score: 1}, {chunkID: "b", score: 1}}, out)
}

func TestFuseRRF_CombinesTwoLists(t *testing.T) {
	vector := []scored{{chunkID: "x", score: 0.9}, {chunkID: "y", score: 0.5}}
	bm25 := []scored{{chunkID: "y", score: 10}, {chunkID: "z", score: 5}}
	fused := fuseRRF(vector, bm25)

	// y appears rank1 in bm25 and rank2 in vector, so it should score highest.
	require.NotEmpty(t, fused)
	assert.Equal(t, "y", fused[0].chunkID)
}

func TestFuseRRF_SingleListPreservesOrder(t *testing.T) {
	vector := []scored{{chunkID: "x", score: 0.9}, {chunkID: "y", score: 0.5}}
	fused := fuseRRF(vector)
	require.Len(t, fused, 2)
	assert.Equal(t, "x", fused[0].chunkID)
	assert.Equal(t, "y", fused[1].chunkID)
}

func TestFuseRRF_EmptyListsYieldEmptyResult(t *testing.T) {
	fused := fuseRRF(nil, []scored{})
	assert.Empty(t, fused)
}

func TestResolveWithDiversity_CapsPerDocument(t *testing.T) {
	r := &Retriever{chunks: &fakeChunkStore{chunks: map[string]model.Chunk{
		"c1": {ChunkID: "c1", DocumentID: 1, SpaceCode: "docs"},
		"c2": {ChunkID: "c2", DocumentID: 1, SpaceCode: "docs"},
		"c3": {ChunkID: "c3", DocumentID: 1, SpaceCode: "docs"},
		"c4": {ChunkID: "c4", DocumentID: 2, SpaceCode: "docs"},
	}}}
	fused := []scored{
		{chunkID: "c1", score: 3}, {chunkID: "c2", score: 2},
		{chunkID: "c3", score: 1}, {chunkID: "c4", score: 0.5},
	}
	hits, err := r.resolveWithDiversity(context.Background(), "docs", fused, 10, 2)
	require.NoError(t, err)
	require.Len(t, hits, 3) // c3 dropped, doc 1 capped at 2
	assert.Equal(t, "c1", hits[0].ChunkID)
	assert.Equal(t, "c2", hits[1].ChunkID)
	assert.Equal(t, "c4", hits[2].ChunkID)
}

func TestResolveWithDiversity_RespectsTopK(t *testing.T) {
	r := &Retriever{chunks: &fakeChunkStore{chunks: map[string]model.Chunk{
		"c1": {ChunkID: "c1", DocumentID: 1, SpaceCode: "docs"},
		"c2": {ChunkID: "c2", DocumentID: 2, SpaceCode: "docs"},
	}}}
	fused := []scored{{chunkID: "c1", score: 1}, {chunkID: "c2", score: 0.5}}
	hits, err := r.resolveWithDiversity(context.Background(), "docs", fused, 1, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c1", hits[0].ChunkID)
}

func TestResolveWithDiversity_EmptyFusedReturnsNil(t *testing.T) {
	r := &Retriever{chunks: &fakeChunkStore{}}
	hits, err := r.resolveWithDiversity(context.Background(), "docs", nil, 10, 0)
	require.NoError(t, err)
	assert.Nil(t, hits)
}

func TestResolveWithDiversity_SkipsUnresolvableChunks(t *testing.T) {
	r := &Retriever{chunks: &fakeChunkStore{chunks: map[string]model.Chunk{
		"c1": {ChunkID: "c1", DocumentID: 1, SpaceCode: "docs"},
	}}}
	fused := []scored{{chunkID: "missing", score: 2}, {chunkID: "c1", score: 1}}
	hits, err := r.resolveWithDiversity(context.Background(), "docs", fused, 10, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c1", hits[0].ChunkID)
}
