package textindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIndexName(t *testing.T) {
	assert.Equal(t, "kbcore-docs", indexName("docs"))
	assert.Equal(t, "kbcore-tenant-a", indexName("tenant-a"))
}
