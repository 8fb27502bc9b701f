package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdempotencyKey_Deterministic(t *testing.T) {
	a := idempotencyKey(1, "v1", 2)
	b := idempotencyKey(1, "v1", 2)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64) // hex-encoded sha256
}

func TestIdempotencyKey_DiffersOnAnyInput(t *testing.T) {
	base := idempotencyKey(1, "v1", 2)
	assert.NotEqual(t, base, idempotencyKey(2, "v1", 2))
	assert.NotEqual(t, base, idempotencyKey(1, "v2", 2))
	assert.NotEqual(t, base, idempotencyKey(1, "v1", 3))
}

func TestVocInputHash_Deterministic(t *testing.T) {
	params := map[string]interface{}{"target_asins": []string{"B001"}, "review_days": 30}
	a := vocInputHash("US", "asin_set", "B001", params)
	b := vocInputHash("US", "asin_set", "B001", params)
	assert.Equal(t, a, b)
}

func TestVocInputHash_DiffersOnScope(t *testing.T) {
	params := map[string]interface{}{"k": "v"}
	a := vocInputHash("US", "asin_set", "B001", params)
	b := vocInputHash("US", "asin_set", "B002", params)
	assert.NotEqual(t, a, b)
}

func TestVocInputHash_DiffersOnParams(t *testing.T) {
	a := vocInputHash("US", "asin_set", "B001", map[string]interface{}{"review_days": 30})
	b := vocInputHash("US", "asin_set", "B001", map[string]interface{}{"review_days": 90})
	assert.NotEqual(t, a, b)
}
