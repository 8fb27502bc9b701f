// Package textindex adapts the hybrid retriever's full-text backend to
// Elasticsearch, one per-space index keyed by chunk_id. No pack example
// exercises go-elasticsearch/v8 beyond its go.mod declaration, so this
// follows the client's own documented esapi request/response shape.
package textindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// Hit is one BM25 search result.
type Hit struct {
	ChunkID string
	Score   float32
}

// Index is the TextIndex contract from the specification: per-space,
// keyed by chunk_id, idempotent upsert, best-effort cleanup, and a
// mandatory space filter baked into every search.
type Index interface {
	Upsert(ctx context.Context, space string, docs []Document) error
	Search(ctx context.Context, space, query string, topK int) ([]Hit, error)
	DeleteByDocument(ctx context.Context, space string, documentID int64, keepIndexVersion int64) error
}

// Document is one chunk's text plus the metadata needed to filter it back
// out during cleanup.
type Document struct {
	ChunkID      string
	DocumentID   int64
	IndexVersion int64
	ChunkIndex   int
	Content      string
}

// ESIndex implements Index against Elasticsearch.
type ESIndex struct {
	client *elasticsearch.Client
}

func New(client *elasticsearch.Client) *ESIndex {
	return &ESIndex{client: client}
}

func indexName(space string) string { return "kbcore-" + space }

func (e *ESIndex) ensureIndex(ctx context.Context, space string) error {
	name := indexName(space)
	existsReq := esapi.IndicesExistsRequest{Index: []string{name}}
	existsResp, err := existsReq.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("textindex: check index %s: %w", name, err)
	}
	defer existsResp.Body.Close()
	if existsResp.StatusCode == 200 {
		return nil
	}

	mapping := `{"mappings":{"properties":{
		"chunk_id":{"type":"keyword"},
		"document_id":{"type":"long"},
		"index_version":{"type":"long"},
		"chunk_index":{"type":"integer"},
		"content":{"type":"text"}
	}}}`
	createReq := esapi.IndicesCreateRequest{Index: name, Body: strings.NewReader(mapping)}
	createResp, err := createReq.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("textindex: create index %s: %w", name, err)
	}
	defer createResp.Body.Close()
	if createResp.IsError() {
		return fmt.Errorf("textindex: create index %s: %s", name, createResp.String())
	}
	return nil
}

func (e *ESIndex) Upsert(ctx context.Context, space string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	if err := e.ensureIndex(ctx, space); err != nil {
		return err
	}
	name := indexName(space)

	var buf bytes.Buffer
	for _, d := range docs {
		meta := map[string]any{"index": map[string]any{"_index": name, "_id": d.ChunkID}}
		metaLine, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("textindex: marshal bulk meta: %w", err)
		}
		srcLine, err := json.Marshal(map[string]any{
			"chunk_id":      d.ChunkID,
			"document_id":   d.DocumentID,
			"index_version": d.IndexVersion,
			"chunk_index":   d.ChunkIndex,
			"content":       d.Content,
		})
		if err != nil {
			return fmt.Errorf("textindex: marshal bulk source: %w", err)
		}
		buf.Write(metaLine)
		buf.WriteByte('\n')
		buf.Write(srcLine)
		buf.WriteByte('\n')
	}

	req := esapi.BulkRequest{Body: bytes.NewReader(buf.Bytes()), Refresh: "false"}
	resp, err := req.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("textindex: bulk upsert into %s: %w", name, err)
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return fmt.Errorf("textindex: bulk upsert into %s: %s", name, resp.String())
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float32 `json:"_score"`
			Source struct {
				ChunkID string `json:"chunk_id"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (e *ESIndex) Search(ctx context.Context, space, query string, topK int) ([]Hit, error) {
	name := indexName(space)
	body, err := json.Marshal(map[string]any{
		"size":  topK,
		"query": map[string]any{"match": map[string]any{"content": query}},
	})
	if err != nil {
		return nil, fmt.Errorf("textindex: marshal search body: %w", err)
	}

	req := esapi.SearchRequest{
		Index: []string{name},
		Body:  bytes.NewReader(body),
	}
	resp, err := req.Do(ctx, e.client)
	if err != nil {
		return nil, fmt.Errorf("textindex: search %s: %w", name, err)
	}
	defer resp.Body.Close()
	if resp.IsError() {
		if resp.StatusCode == 404 {
			return nil, nil
		}
		return nil, fmt.Errorf("textindex: search %s: %s", name, resp.String())
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("textindex: decode search response: %w", err)
	}
	hits := make([]Hit, 0, len(out.Hits.Hits))
	for _, h := range out.Hits.Hits {
		hits = append(hits, Hit{ChunkID: h.Source.ChunkID, Score: h.Score})
	}
	return hits, nil
}

func (e *ESIndex) DeleteByDocument(ctx context.Context, space string, documentID int64, keepIndexVersion int64) error {
	name := indexName(space)
	body, err := json.Marshal(map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must":     []any{map[string]any{"term": map[string]any{"document_id": documentID}}},
				"must_not": []any{map[string]any{"term": map[string]any{"index_version": keepIndexVersion}}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("textindex: marshal delete query: %w", err)
	}

	req := esapi.DeleteByQueryRequest{Index: []string{name}, Body: bytes.NewReader(body)}
	resp, err := req.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("textindex: delete stale versions for document %s: %w", strconv.FormatInt(documentID, 10), err)
	}
	defer resp.Body.Close()
	if resp.IsError() && resp.StatusCode != 404 {
		return fmt.Errorf("textindex: delete stale versions for document %d: %s", documentID, resp.String())
	}
	return nil
}
