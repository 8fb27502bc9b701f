package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet_DefaultsUnsetToDevAndUnknown(t *testing.T) {
	info := Get()
	assert.Equal(t, "dev", info.Version)
	assert.Equal(t, "unknown", info.GitCommit)
	assert.Equal(t, "unknown", info.GitTreeState)
	assert.Equal(t, "unknown", info.BuildDate)
}

func TestGet_PopulatesRuntimeFields(t *testing.T) {
	info := Get()
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.Compiler, info.Compiler)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}

func TestGet_ReflectsLdflagsOverrides(t *testing.T) {
	origVersion, origCommit := Version, GitCommit
	defer func() { Version, GitCommit = origVersion, origCommit }()

	Version = "1.2.3"
	GitCommit = "abc1234"
	info := Get()
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, "abc1234", info.GitCommit)
}
