package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresDBURL(t *testing.T) {
	t.Setenv("DB_URL", "")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_URL is required")
}

func TestLoad_AppliesDefaults(t *testing.T) {
	t.Setenv("DB_URL", "postgres://localhost/kbcore")
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, IndexBackendHybrid, c.IndexBackend)
	assert.Equal(t, "http://localhost:9200", c.ESURL)
	assert.Equal(t, "localhost:6334", c.QdrantURL)
	assert.Equal(t, "openai", c.EmbeddingBackend)
	assert.Equal(t, 1536, c.EmbeddingDim)
	assert.Equal(t, StorageBackendLocal, c.StorageBackend)
	assert.Equal(t, 3, c.SearchMaxPerDoc)
	assert.Equal(t, 3*time.Second, c.WorkerPollInterval)
	assert.True(t, c.S3UseSSL)
	assert.False(t, c.LLMEnabled)
}

func TestLoad_RejectsInvalidIndexBackend(t *testing.T) {
	t.Setenv("DB_URL", "postgres://localhost/kbcore")
	t.Setenv("INDEX_BACKEND", "bogus")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INDEX_BACKEND")
}

func TestLoad_RejectsInvalidStorageBackend(t *testing.T) {
	t.Setenv("DB_URL", "postgres://localhost/kbcore")
	t.Setenv("STORAGE_BACKEND", "bogus")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORAGE_BACKEND")
}

func TestLoad_RejectsNonAbsolutePublicBaseURL(t *testing.T) {
	t.Setenv("DB_URL", "postgres://localhost/kbcore")
	t.Setenv("PUBLIC_BASE_URL", "example.com/callback")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PUBLIC_BASE_URL")
}

func TestLoad_AllowsEmptyPublicBaseURL(t *testing.T) {
	t.Setenv("DB_URL", "postgres://localhost/kbcore")
	t.Setenv("PUBLIC_BASE_URL", "")
	c, err := Load()
	require.NoError(t, err)
	assert.Empty(t, c.PublicBaseURL)
}

func TestLoad_RejectsNonIntegerEnv(t *testing.T) {
	t.Setenv("DB_URL", "postgres://localhost/kbcore")
	t.Setenv("EMBEDDING_DIM", "not-a-number")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EMBEDDING_DIM")
}

func TestLoad_RejectsNonBooleanEnv(t *testing.T) {
	t.Setenv("DB_URL", "postgres://localhost/kbcore")
	t.Setenv("ES_ENABLED", "not-a-bool")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ES_ENABLED")
}
