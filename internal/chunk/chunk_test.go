package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaccii-voc/kbcore/internal/parser"
)

func TestChunk_EmptyInputYieldsNoChunks(t *testing.T) {
	c := New()
	out := c.Chunk(&parser.Parsed{}, 1, "docs", 1)
	assert.Nil(t, out)
}

func TestChunk_SimpleTextProducesOneChunk(t *testing.T) {
	c := New()
	parsed := &parser.Parsed{Text: "hello world"}
	out := c.Chunk(parsed, 1, "docs", 1)
	require.Len(t, out, 1)
	assert.Equal(t, "hello world", out[0].Content)
	assert.Equal(t, 0, out[0].ChunkIndex)
	assert.Equal(t, "docs", out[0].SpaceCode)
	assert.NotEmpty(t, out[0].ChunkID)
	assert.NotEmpty(t, out[0].ContentHash)
}

func TestChunk_IsDeterministic(t *testing.T) {
	c := New()
	parsed := &parser.Parsed{Text: "same input every time"}
	a := c.Chunk(parsed, 42, "docs", 3)
	b := c.Chunk(parsed, 42, "docs", 3)
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, a[0].ChunkID, b[0].ChunkID)
	assert.Equal(t, a[0].ContentHash, b[0].ContentHash)
}

func TestChunk_LargeTextSplitsIntoMultipleChunks(t *testing.T) {
	c := &Chunker{MaxChars: 100, Overlap: 0}
	text := strings.Repeat("word ", 100) // 500 chars, well over maxChars
	parsed := &parser.Parsed{Text: text}
	out := c.Chunk(parsed, 1, "docs", 1)
	assert.Greater(t, len(out), 1)
	for i, ch := range out {
		assert.Equal(t, i, ch.ChunkIndex)
	}
}

func TestChunk_ClampsDegenerateOptions(t *testing.T) {
	c := &Chunker{MaxChars: 1, Overlap: -5}
	out := c.Chunk(&parser.Parsed{Text: "some reasonably short text"}, 1, "docs", 1)
	assert.NotEmpty(t, out)
}

func TestChunk_PageLocatorMergedFromElements(t *testing.T) {
	c := New()
	page1, page2 := 1, 2
	parsed := &parser.Parsed{
		Elements: []parser.Element{
			{Text: "page one text", Locator: parser.Locator{Page: &page1}},
			{Text: "page two text", Locator: parser.Locator{Page: &page2}},
		},
	}
	out := c.Chunk(parsed, 1, "docs", 1)
	require.Len(t, out, 1)
	assert.Equal(t, []int{1, 2}, out[0].Locator.Pages)
}

func TestNormalizeModality(t *testing.T) {
	assert.Equal(t, "image", string(normalizeModality("IMAGE")))
	assert.Equal(t, "audio", string(normalizeModality(" audio ")))
	assert.Equal(t, "text", string(normalizeModality("")))
	assert.Equal(t, "text", string(normalizeModality("unknown")))
}

func TestEstimateTokenCount(t *testing.T) {
	assert.Equal(t, 0, estimateTokenCount(""))
	assert.Greater(t, estimateTokenCount("hello world, this is a test!"), 0)
}

func TestSplitLarge(t *testing.T) {
	out := splitLarge("abcdefghij", 4)
	assert.Equal(t, []string{"abcd", "efgh", "ij"}, out)
}

func TestSplitLarge_ShortTextUnsplit(t *testing.T) {
	out := splitLarge("short", 100)
	assert.Equal(t, []string{"short"}, out)
}
