package lease

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultIngestOptions(t *testing.T) {
	o := DefaultIngestOptions(4)
	assert.Equal(t, "ingest", o.Pipeline)
	assert.Equal(t, 4, o.Concurrency)
	assert.Equal(t, 60, o.LeaseSeconds)
	assert.Equal(t, 3*time.Second, o.IdleSleep)
}

func TestDefaultVocOptions(t *testing.T) {
	o := DefaultVocOptions(2)
	assert.Equal(t, "voc", o.Pipeline)
	assert.Equal(t, 2, o.Concurrency)
	assert.Equal(t, 600, o.LeaseSeconds)
	assert.Equal(t, 3*time.Second, o.IdleSleep)
}

func TestWorkerID_HasPrefixAndIsUnique(t *testing.T) {
	a := WorkerID("ingest-worker")
	b := WorkerID("ingest-worker")
	assert.True(t, strings.HasPrefix(a, "ingest-worker-"))
	assert.NotEqual(t, a, b)
}
