package embed

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_UnitLength(t *testing.T) {
	v := []float32{3, 4} // 3-4-5 triangle
	normalize(v)
	assert.InDelta(t, 0.6, v[0], 0.0001)
	assert.InDelta(t, 0.8, v[1], 0.0001)

	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSq), 0.0001)
}

func TestNormalize_ZeroVectorUnchanged(t *testing.T) {
	v := []float32{0, 0, 0}
	normalize(v)
	assert.Equal(t, []float32{0, 0, 0}, v)
}
