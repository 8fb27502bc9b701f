package vectorindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollectionName(t *testing.T) {
	assert.Equal(t, "kbcore_docs", collectionName("docs"))
	assert.Equal(t, "kbcore_tenant-a", collectionName("tenant-a"))
}

func TestStrPtr(t *testing.T) {
	p := strPtr("hello")
	assert.NotNil(t, p)
	assert.Equal(t, "hello", *p)
}
