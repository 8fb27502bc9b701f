package main

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
)

func TestNewIngestWorkerOptions_Defaults(t *testing.T) {
	o := NewIngestWorkerOptions()
	assert.Equal(t, 4, o.Concurrency)
	assert.Equal(t, 3, o.MaxRetries)
}

func TestIngestWorkerOptions_AddFlagsOverridesDefaults(t *testing.T) {
	o := NewIngestWorkerOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)
	assert.NoError(t, fs.Parse([]string{"--concurrency=8", "--max-retries=5"}))
	assert.Equal(t, 8, o.Concurrency)
	assert.Equal(t, 5, o.MaxRetries)
}

func TestNewIngestWorkerCommand_Use(t *testing.T) {
	cmd := NewIngestWorkerCommand()
	assert.Equal(t, "ingest-worker", cmd.Use)
	assert.NotNil(t, cmd.RunE)
}
