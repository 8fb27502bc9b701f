// Package retriever implements hybrid search over the vector and text
// indexes, fusing their ranked lists and resolving hits back to chunks
// through the JobStore's searchable-chunk view.
package retriever

import (
	"context"
	"fmt"
	"sort"

	"github.com/yaccii-voc/kbcore/internal/embed"
	"github.com/yaccii-voc/kbcore/internal/model"
	"github.com/yaccii-voc/kbcore/internal/textindex"
	"github.com/yaccii-voc/kbcore/internal/vectorindex"
)

// Backend selects which index(es) contribute candidates.
type Backend string

const (
	BackendVector Backend = "vector"
	BackendBM25   Backend = "bm25"
	BackendHybrid Backend = "hybrid"
)

// rrfK is the Reciprocal Rank Fusion damping constant: score = Σ 1/(k+rank).
const rrfK = 60

// candidateMultiplier: each enabled backend contributes 5·top_k candidates
// before fusion and diversity capping narrow the list back down.
const candidateMultiplier = 5

// ChunkStore resolves chunk_ids to chunks via the searchable-chunk view:
// document INDEXED and not DELETED, chunk.index_version == document's
// active_index_version, space matches.
type ChunkStore interface {
	ResolveSearchableChunks(ctx context.Context, space string, chunkIDs []string) (map[string]model.Chunk, error)
}

// Hit is one ranked, resolved result.
type Hit struct {
	ChunkID      string
	DocumentID   int64
	Space        string
	IndexVersion int64
	Content      string
	Locator      model.ChunkLocator
	Score        float64
}

// Options configures a Retriever from space-level settings.
type Options struct {
	VectorEnabled bool
	BM25Enabled   bool
	MaxPerDoc     int
}

var ErrNoBackendEnabled = fmt.Errorf("retriever: no search backend enabled for this space")

// Retriever serves ranked chunk lists for a (space, query) pair.
type Retriever struct {
	vector   vectorindex.Index
	text     textindex.Index
	embedder embed.Embedder
	chunks   ChunkStore
}

func New(vector vectorindex.Index, text textindex.Index, embedder embed.Embedder, chunks ChunkStore) *Retriever {
	return &Retriever{vector: vector, text: text, embedder: embedder, chunks: chunks}
}

type scored struct {
	chunkID string
	score   float64
}

// Search resolves (space, query, top_k, backend) to ranked, resolved hits.
func (r *Retriever) Search(ctx context.Context, space, query string, topK int, backend Backend, opts Options) ([]Hit, error) {
	effective := backend
	vectorAvail := opts.VectorEnabled && r.vector != nil
	bm25Avail := opts.BM25Enabled && r.text != nil

	switch effective {
	case BackendHybrid:
		if vectorAvail && !bm25Avail {
			effective = BackendVector
		} else if bm25Avail && !vectorAvail {
			effective = BackendBM25
		} else if !vectorAvail && !bm25Avail {
			return nil, ErrNoBackendEnabled
		}
	case BackendVector:
		if !vectorAvail {
			return nil, ErrNoBackendEnabled
		}
	case BackendBM25:
		if !bm25Avail {
			return nil, ErrNoBackendEnabled
		}
	}

	candidates := topK * candidateMultiplier
	if candidates < topK {
		candidates = topK
	}

	var vectorHits []vectorindex.Hit
	var bm25Hits []textindex.Hit
	var err error

	if effective == BackendVector || effective == BackendHybrid {
		vectorHits, err = r.searchVector(ctx, space, query, candidates)
		if err != nil {
			return nil, err
		}
	}
	if effective == BackendBM25 || effective == BackendHybrid {
		bm25Hits, err = r.text.Search(ctx, space, query, candidates)
		if err != nil {
			return nil, fmt.Errorf("retriever: bm25 search: %w", err)
		}
	}

	var fused []scored
	switch effective {
	case BackendVector:
		fused = sortByScoreDesc(vectorToScored(vectorHits))
	case BackendBM25:
		fused = sortByScoreDesc(bm25ToScored(bm25Hits))
	case BackendHybrid:
		fused = fuseRRF(vectorToScored(vectorHits), bm25ToScored(bm25Hits))
	}

	return r.resolveWithDiversity(ctx, space, fused, topK, opts.MaxPerDoc)
}

func (r *Retriever) searchVector(ctx context.Context, space, query string, candidates int) ([]vectorindex.Hit, error) {
	vecs, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("retriever: embed query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, nil
	}
	hits, err := r.vector.Search(ctx, space, vecs[0], candidates)
	if err != nil {
		return nil, fmt.Errorf("retriever: vector search: %w", err)
	}
	return hits, nil
}

func vectorToScored(hits []vectorindex.Hit) []scored {
	out := make([]scored, len(hits))
	for i, h := range hits {
		out[i] = scored{chunkID: h.ChunkID, score: float64(h.Score)}
	}
	return out
}

func bm25ToScored(hits []textindex.Hit) []scored {
	out := make([]scored, len(hits))
	for i, h := range hits {
		out[i] = scored{chunkID: h.ChunkID, score: float64(h.Score)}
	}
	return out
}

func sortByScoreDesc(xs []scored) []scored {
	sort.SliceStable(xs, func(i, j int) bool {
		if xs[i].score != xs[j].score {
			return xs[i].score > xs[j].score
		}
		return xs[i].chunkID < xs[j].chunkID
	})
	return xs
}

// fuseRRF combines two ranked lists: score(chunk) = Σ 1/(k+rank), rank is
// 1-based position within each source list. Ties broken by chunk_id asc.
func fuseRRF(lists ...[]scored) []scored {
	rrf := make(map[string]float64)
	for _, list := range lists {
		ranked := sortByScoreDesc(append([]scored(nil), list...))
		for i, s := range ranked {
			rank := i + 1
			rrf[s.chunkID] += 1.0 / float64(rrfK+rank)
		}
	}
	out := make([]scored, 0, len(rrf))
	for chunkID, score := range rrf {
		out = append(out, scored{chunkID: chunkID, score: score})
	}
	return sortByScoreDesc(out)
}

func (r *Retriever) resolveWithDiversity(ctx context.Context, space string, fused []scored, topK, maxPerDoc int) ([]Hit, error) {
	if len(fused) == 0 {
		return nil, nil
	}
	ids := make([]string, len(fused))
	for i, s := range fused {
		ids[i] = s.chunkID
	}
	chunksByID, err := r.chunks.ResolveSearchableChunks(ctx, space, ids)
	if err != nil {
		return nil, fmt.Errorf("retriever: resolve searchable chunks: %w", err)
	}

	perDoc := make(map[int64]int)
	hits := make([]Hit, 0, topK)
	for _, s := range fused {
		if len(hits) >= topK {
			break
		}
		c, ok := chunksByID[s.chunkID]
		if !ok {
			continue
		}
		if maxPerDoc > 0 && perDoc[c.DocumentID] >= maxPerDoc {
			continue
		}
		perDoc[c.DocumentID]++
		hits = append(hits, Hit{
			ChunkID:      c.ChunkID,
			DocumentID:   c.DocumentID,
			Space:        c.SpaceCode,
			IndexVersion: c.IndexVersion,
			Content:      c.Content,
			Locator:      c.Locator,
			Score:        s.score,
		})
	}
	return hits, nil
}
