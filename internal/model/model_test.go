package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentStatus_String(t *testing.T) {
	cases := map[DocumentStatus]string{
		DocumentUploaded:     "UPLOADED",
		DocumentProcessing:   "PROCESSING",
		DocumentIndexed:      "INDEXED",
		DocumentFailed:       "FAILED",
		DocumentDeleted:      "DELETED",
		DocumentStatus(9999): "UNKNOWN",
	}
	for status, want := range cases {
		assert.Equal(t, want, status.String())
	}
}

func TestIngestJobStatus_TerminalOnlyForSucceededOrCancelled(t *testing.T) {
	terminal := map[IngestJobStatus]bool{
		IngestPending:   false,
		IngestRunning:   false,
		IngestSucceeded: true,
		IngestFailed:    false,
		IngestCancelled: true,
	}
	for status, want := range terminal {
		assert.Equal(t, want, status.Terminal(), "status %s", status)
	}
}

func TestVocJobStatus_TerminalOnlyForDoneOrFailed(t *testing.T) {
	terminal := map[VocJobStatus]bool{
		VocPending:    false,
		VocCrawling:   false,
		VocExtracting: false,
		VocAnalyzing:  false,
		VocPersisting: false,
		VocDone:       true,
		VocFailed:     true,
	}
	for status, want := range terminal {
		assert.Equal(t, want, status.Terminal(), "status %s", status)
	}
}

func TestSpiderTaskStatus_String(t *testing.T) {
	cases := map[SpiderTaskStatus]string{
		SpiderPending:     "PENDING",
		SpiderRunning:     "RUNNING",
		SpiderReady:       "READY",
		SpiderFailed:      "FAILED",
		SpiderTaskStatus(0): "UNKNOWN",
	}
	for status, want := range cases {
		assert.Equal(t, want, status.String())
	}
}
