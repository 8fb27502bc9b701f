package main

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
)

func TestNewVocWorkerOptions_Defaults(t *testing.T) {
	o := NewVocWorkerOptions()
	assert.Equal(t, 2, o.Concurrency)
}

func TestVocWorkerOptions_AddFlagsOverridesDefault(t *testing.T) {
	o := NewVocWorkerOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)
	assert.NoError(t, fs.Parse([]string{"--concurrency=6"}))
	assert.Equal(t, 6, o.Concurrency)
}

func TestNewVocWorkerCommand_Use(t *testing.T) {
	cmd := NewVocWorkerCommand()
	assert.Equal(t, "voc-worker", cmd.Use)
	assert.NotNil(t, cmd.RunE)
}
