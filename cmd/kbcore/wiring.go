package main

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/qdrant/go-client/qdrant"
	"k8s.io/klog/v2"

	"github.com/yaccii-voc/kbcore/internal/blobstore"
	"github.com/yaccii-voc/kbcore/internal/config"
	"github.com/yaccii-voc/kbcore/internal/embed"
	"github.com/yaccii-voc/kbcore/internal/parser"
	"github.com/yaccii-voc/kbcore/internal/resultsdb"
	"github.com/yaccii-voc/kbcore/internal/retriever"
	"github.com/yaccii-voc/kbcore/internal/spider"
	"github.com/yaccii-voc/kbcore/internal/store"
	"github.com/yaccii-voc/kbcore/internal/textindex"
	"github.com/yaccii-voc/kbcore/internal/vectorindex"
)

// buildStore opens the primary transactional store. Every subcommand needs
// one: it is the source of truth for documents, jobs, chunks and leases.
func buildStore(ctx context.Context, cfg *config.Config) (*store.JobStore, error) {
	s, err := store.Open(ctx, cfg.DBURL)
	if err != nil {
		return nil, fmt.Errorf("kbcore: open store: %w", err)
	}
	return s, nil
}

// buildResultsReader opens the read-only spider results database. Returns
// nil if SPIDER_DB_URL is unset, so VOC-free deployments don't pay for a
// ClickHouse dial they'll never use.
func buildResultsReader(ctx context.Context, cfg *config.Config) (*resultsdb.Reader, error) {
	if cfg.SpiderDBURL == "" {
		return nil, nil
	}
	rcfg, err := resultsdb.ParseDSN(cfg.SpiderDBURL)
	if err != nil {
		return nil, err
	}
	reader, err := resultsdb.Open(ctx, rcfg)
	if err != nil {
		return nil, fmt.Errorf("kbcore: open results reader: %w", err)
	}
	return reader, nil
}

func buildBlobstore(cfg *config.Config) (blobstore.Store, error) {
	switch cfg.StorageBackend {
	case config.StorageBackendS3:
		return blobstore.NewS3Store(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3UseSSL)
	default:
		return blobstore.NewLocalStore(cfg.StorageDir), nil
	}
}

func buildEmbedder(cfg *config.Config) embed.Embedder {
	if cfg.EmbeddingBackend == "ollama" {
		return embed.NewOllamaEmbedder(cfg.OllamaEmbedURL, cfg.EmbeddingModel, cfg.EmbeddingDim)
	}
	return embed.NewOpenAIEmbedder(cfg.EmbeddingAPIKey, cfg.EmbeddingBaseURL, cfg.EmbeddingModel, cfg.EmbeddingDim)
}

// buildVectorIndex returns nil when the vector backend is not part of the
// configured INDEX_BACKEND or MILVUS_ENABLED is false, so ingest/retrieval
// skip it entirely.
func buildVectorIndex(cfg *config.Config) (vectorindex.Index, error) {
	if cfg.IndexBackend == config.IndexBackendBM25 || !cfg.MilvusEnabled {
		return nil, nil
	}
	host, portStr, err := net.SplitHostPort(cfg.QdrantURL)
	if err != nil {
		return nil, fmt.Errorf("kbcore: parse QDRANT_URL: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("kbcore: parse QDRANT_URL port: %w", err)
	}
	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		return nil, fmt.Errorf("kbcore: dial qdrant: %w", err)
	}
	return vectorindex.New(client, cfg.EmbeddingDim), nil
}

// buildTextIndex returns nil when the BM25 backend is not part of the
// configured INDEX_BACKEND or ES_ENABLED is false.
func buildTextIndex(cfg *config.Config) (textindex.Index, error) {
	if cfg.IndexBackend == config.IndexBackendVector || !cfg.ESEnabled {
		return nil, nil
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{cfg.ESURL}})
	if err != nil {
		return nil, fmt.Errorf("kbcore: dial elasticsearch: %w", err)
	}
	return textindex.New(client), nil
}

func buildRetriever(cfg *config.Config, vector vectorindex.Index, text textindex.Index, embedder embed.Embedder, chunks retriever.ChunkStore) *retriever.Retriever {
	return retriever.New(vector, text, embedder, chunks)
}

// buildSpiderGateway returns nil when VOC is effectively disabled (no
// PUBLIC_BASE_URL), mirroring config.Config.validate's own relaxed check.
func buildSpiderGateway(cfg *config.Config) (*spider.Gateway, error) {
	if cfg.PublicBaseURL == "" {
		klog.InfoS("PUBLIC_BASE_URL unset, VOC crawl dispatch disabled")
		return nil, nil
	}
	gw, err := spider.NewGateway(cfg.SpiderRedisURL, cfg.SpiderRedisListKey, cfg.SpiderRedisTimeoutSeconds)
	if err != nil {
		return nil, fmt.Errorf("kbcore: dial spider gateway: %w", err)
	}
	return gw, nil
}

func buildParserRouter() *parser.Router {
	return parser.NewRouter(parser.Options{})
}
