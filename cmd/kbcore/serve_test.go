package main

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
)

func TestNewServeOptions_Defaults(t *testing.T) {
	o := NewServeOptions()
	assert.Equal(t, ":8080", o.Addr)
}

func TestServeOptions_AddFlagsOverridesDefault(t *testing.T) {
	o := NewServeOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)
	assert.NoError(t, fs.Parse([]string{"--addr=:9090"}))
	assert.Equal(t, ":9090", o.Addr)
}

func TestNewServeCommand_Use(t *testing.T) {
	cmd := NewServeCommand()
	assert.Equal(t, "serve", cmd.Use)
	assert.NotNil(t, cmd.RunE)
}
