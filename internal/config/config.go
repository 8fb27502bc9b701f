// Package config builds the single immutable Config struct the rest of the
// process is constructed from. Every field here is read from one environment
// variable; nothing downstream reads the environment again after Load
// returns.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// IndexBackend selects which retrieval backends Retriever may fuse.
type IndexBackend string

const (
	IndexBackendVector IndexBackend = "vector"
	IndexBackendBM25   IndexBackend = "bm25"
	IndexBackendHybrid IndexBackend = "hybrid"
)

// StorageBackend selects where uploaded document bytes live.
type StorageBackend string

const (
	StorageBackendLocal StorageBackend = "local"
	StorageBackendS3    StorageBackend = "s3"
)

// Config is the process-wide, read-once configuration. The cmd/kbcore
// builders take the whole *Config and pass each component only the fields
// its constructor needs.
type Config struct {
	DBURL       string
	SpiderDBURL string

	SpiderRedisURL           string
	SpiderRedisListKey       string
	SpiderRedisTimeoutSeconds float64

	PublicBaseURL string

	IndexBackend  IndexBackend
	ESEnabled     bool
	ESURL         string
	MilvusEnabled bool
	QdrantURL     string

	EmbeddingBackend string
	EmbeddingModel   string
	EmbeddingDim     int
	EmbeddingAPIKey  string
	EmbeddingBaseURL string
	OllamaEmbedURL   string

	SearchMaxPerDoc int

	WorkerPollInterval time.Duration

	StorageBackend StorageBackend
	StorageDir     string
	S3Endpoint     string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
	S3UseSSL       bool

	JWTSecretKey string

	// NATSURL, when set, enables the optional ready-notification fast path
	// (internal/notify); it is not part of the spec's required surface, only
	// an enrichment of the worker poll loop.
	NATSURL string

	// LLM enrichment of VOC module/report outputs is best-effort: disabled
	// by default, and its failure never changes a VocJob's status.
	LLMEnabled    bool
	LLMBackend    string
	LLMAPIKey     string
	LLMBaseURL    string
	LLMModel      string
	OllamaBaseURL string
	OllamaModel   string
}

// Load builds a Config from the environment, applying the defaults named in
// the specification where a variable is unset. It does not validate that
// required backends are reachable — that happens lazily at first use, the
// same way the teacher's adapters dial lazily.
func Load() (*Config, error) {
	c := &Config{
		DBURL:                     os.Getenv("DB_URL"),
		SpiderDBURL:               os.Getenv("SPIDER_DB_URL"),
		SpiderRedisURL:            getOr("SPIDER_REDIS_URL", "redis://localhost:6379/0"),
		SpiderRedisListKey:        getOr("SPIDER_REDIS_LIST_KEY", "spider:tasks"),
		PublicBaseURL:             os.Getenv("PUBLIC_BASE_URL"),
		IndexBackend:              IndexBackend(getOr("INDEX_BACKEND", string(IndexBackendHybrid))),
		ESURL:                     getOr("ES_URL", "http://localhost:9200"),
		QdrantURL:                 getOr("QDRANT_URL", "localhost:6334"),
		EmbeddingBackend:          getOr("EMBEDDING_BACKEND", "openai"),
		EmbeddingModel:            getOr("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingAPIKey:           os.Getenv("EMBEDDING_API_KEY"),
		EmbeddingBaseURL:          os.Getenv("EMBEDDING_BASE_URL"),
		OllamaEmbedURL:            getOr("OLLAMA_EMBED_URL", "http://localhost:11434"),
		WorkerPollInterval:        3 * time.Second,
		StorageBackend:            StorageBackend(getOr("STORAGE_BACKEND", string(StorageBackendLocal))),
		StorageDir:                getOr("STORAGE_DIR", "./data/storage"),
		S3Endpoint:                os.Getenv("S3_ENDPOINT"),
		S3Bucket:                  os.Getenv("S3_BUCKET"),
		S3AccessKey:               os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:               os.Getenv("S3_SECRET_KEY"),
		JWTSecretKey:              os.Getenv("JWT_SECRET_KEY"),
		NATSURL:                   os.Getenv("SPIDER_NATS_URL"),
		LLMBackend:                getOr("LLM_BACKEND", "openai"),
		LLMAPIKey:                 os.Getenv("LLM_API_KEY"),
		LLMBaseURL:                os.Getenv("LLM_BASE_URL"),
		LLMModel:                  getOr("LLM_MODEL", "gpt-4o-mini"),
		OllamaBaseURL:             getOr("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:               getOr("OLLAMA_MODEL", "llama3.1"),
	}

	var err error
	if c.SpiderRedisTimeoutSeconds, err = getFloatOr("SPIDER_REDIS_TIMEOUT_SECONDS", 5.0); err != nil {
		return nil, err
	}
	if c.ESEnabled, err = getBoolOr("ES_ENABLED", false); err != nil {
		return nil, err
	}
	if c.MilvusEnabled, err = getBoolOr("MILVUS_ENABLED", false); err != nil {
		return nil, err
	}
	if c.EmbeddingDim, err = getIntOr("EMBEDDING_DIM", 1536); err != nil {
		return nil, err
	}
	if c.SearchMaxPerDoc, err = getIntOr("SEARCH_MAX_PER_DOC", 3); err != nil {
		return nil, err
	}
	if pollSecs, err := getIntOr("WORKER_POLL_INTERVAL", 3); err != nil {
		return nil, err
	} else {
		c.WorkerPollInterval = time.Duration(pollSecs) * time.Second
	}
	if c.S3UseSSL, err = getBoolOr("S3_USE_SSL", true); err != nil {
		return nil, err
	}
	if c.LLMEnabled, err = getBoolOr("ENABLE_LLM", false); err != nil {
		return nil, err
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	if c.DBURL == "" {
		return fmt.Errorf("config: DB_URL is required")
	}
	switch c.IndexBackend {
	case IndexBackendVector, IndexBackendBM25, IndexBackendHybrid:
	default:
		return fmt.Errorf("config: INDEX_BACKEND must be one of vector|bm25|hybrid, got %q", c.IndexBackend)
	}
	switch c.StorageBackend {
	case StorageBackendLocal, StorageBackendS3:
	default:
		return fmt.Errorf("config: STORAGE_BACKEND must be one of local|s3, got %q", c.StorageBackend)
	}
	if c.PublicBaseURL == "" {
		// VOC is effectively disabled without a callback URL; VocPipeline
		// callers are responsible for checking this before enqueueing.
		return nil
	}
	if !strings.HasPrefix(c.PublicBaseURL, "http://") && !strings.HasPrefix(c.PublicBaseURL, "https://") {
		return fmt.Errorf("config: PUBLIC_BASE_URL must be an absolute http(s) URL")
	}
	return nil
}

func getOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getIntOr(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer: %w", key, err)
	}
	return n, nil
}

func getFloatOr(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be a number: %w", key, err)
	}
	return n, nil
}

func getBoolOr(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s must be a boolean: %w", key, err)
	}
	return b, nil
}
