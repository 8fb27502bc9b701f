package voc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaccii-voc/kbcore/internal/resultsdb"
)

func TestStringOr(t *testing.T) {
	assert.Equal(t, "US", stringOr("US", "fallback"))
	assert.Equal(t, "fallback", stringOr("", "fallback"))
	assert.Equal(t, "fallback", stringOr(nil, "fallback"))
	assert.Equal(t, "fallback", stringOr(42, "fallback"))
}

func TestStringSlice(t *testing.T) {
	// json.Unmarshal into map[string]interface{} produces []interface{}.
	assert.Equal(t, []string{"a", "b"}, stringSlice([]interface{}{"a", "b"}))
	assert.Equal(t, []string{"a", "b"}, stringSlice([]string{"a", "b"}))
	assert.Nil(t, stringSlice(nil))
	assert.Nil(t, stringSlice(42))
}

func TestIntOr(t *testing.T) {
	assert.Equal(t, 5, intOr(float64(5), 1))
	assert.Equal(t, 5, intOr(5, 1))
	assert.Equal(t, 1, intOr(nil, 1))
	assert.Equal(t, 1, intOr("not a number", 1))
}

func TestBuildDebugDatasets(t *testing.T) {
	itemsByKeyword := map[string][]resultsdb.KeywordSERPRow{
		"wireless mouse": {{}, {}},
	}
	out := buildDebugDatasets("US", []string{"B001"}, []string{"wireless mouse"}, nil, nil,
		itemsByKeyword, 100, 200)

	assert.Equal(t, "US", out["site_code"])
	datasets, ok := out["datasets"].(map[string]interface{})
	require.True(t, ok)
	serp, ok := datasets["keyword_serp"].(map[string]interface{})
	require.True(t, ok)
	counts, ok := serp["counts_by_keyword"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 2, counts["wireless mouse"])
}

func TestReportMeta_DefaultsToEmptyMap(t *testing.T) {
	assert.Equal(t, map[string]interface{}{}, reportMeta(map[string]interface{}{}))
	meta := map[string]interface{}{"ai": "x"}
	assert.Equal(t, meta, reportMeta(map[string]interface{}{"meta": meta}))
}
