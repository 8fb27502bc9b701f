package voc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAsinSetDigest_OrderIndependent(t *testing.T) {
	a := asinSetDigest(sortUnique([]string{"B001", "B002", "B003"}))
	b := asinSetDigest(sortUnique([]string{"B003", "B001", "B002"}))
	assert.Equal(t, a, b, "digest must depend only on the set, not input order")
	assert.LessOrEqual(t, len(a), 32)
}

func TestAsinSetDigest_DifferentSetsDiffer(t *testing.T) {
	a := asinSetDigest(sortUnique([]string{"B001"}))
	b := asinSetDigest(sortUnique([]string{"B002"}))
	assert.NotEqual(t, a, b)
}

func TestUnionSorted_DedupsAndSorts(t *testing.T) {
	got := unionSorted([]string{"B002", "B001"}, []string{"B001", "B003"})
	assert.Equal(t, []string{"B001", "B002", "B003"}, got)
}

func TestSortUnique(t *testing.T) {
	got := sortUnique([]string{"c", "a", "a", "b"})
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestToInterfaceSlice(t *testing.T) {
	got := toInterfaceSlice([]string{"x", "y"})
	assert.Equal(t, []interface{}{"x", "y"}, got)
}
