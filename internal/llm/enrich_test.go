package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShrink_TruncatesLongStrings(t *testing.T) {
	long := strings.Repeat("a", maxStringLen+50)
	got := shrink(long, 0).(string)
	assert.LessOrEqual(t, len(got), maxStringLen)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestShrink_LeavesShortStringsAlone(t *testing.T) {
	assert.Equal(t, "short", shrink("short", 0))
}

func TestShrink_CapsListLength(t *testing.T) {
	items := make([]interface{}, maxListItems+10)
	for i := range items {
		items[i] = i
	}
	got := shrink(items, 0).([]interface{})
	// capped items plus one "...N more" marker
	assert.Equal(t, maxListItems+1, len(got))
}

func TestShrink_StopsAtMaxDepth(t *testing.T) {
	var nested interface{} = "leaf"
	for i := 0; i < maxPromptDepth+2; i++ {
		nested = map[string]interface{}{"child": nested}
	}
	got := shrink(nested, 0)
	// walking down maxPromptDepth levels must eventually hit the "..." sentinel
	cur := got
	found := false
	for i := 0; i < maxPromptDepth+2; i++ {
		m, ok := cur.(map[string]interface{})
		if !ok {
			if s, ok := cur.(string); ok && s == "..." {
				found = true
			}
			break
		}
		cur = m["child"]
	}
	assert.True(t, found, "expected truncation sentinel before reaching the leaf")
}

func TestShrink_PassesThroughScalars(t *testing.T) {
	assert.Equal(t, 42, shrink(42, 0))
	assert.Equal(t, true, shrink(true, 0))
	assert.Nil(t, shrink(nil, 0))
}

func TestBuildPrompt_IncludesFlowCodeAndPayload(t *testing.T) {
	prompt, err := buildPrompt("review.overview", map[string]interface{}{"total_reviews": 10})
	assert.NoError(t, err)
	assert.Contains(t, prompt, "review.overview")
	assert.Contains(t, prompt, "total_reviews")
}
