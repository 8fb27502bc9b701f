package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleEngine_EvaluateFlagsMatchingRules(t *testing.T) {
	eng, err := newRuleEngine(DefaultKeywordRules)
	require.NoError(t, err)

	labels := eng.evaluate(map[string]interface{}{
		"sponsored_ratio":   0.8,
		"title_density":     0.1,
		"target_asin_share": 0.05,
	})
	assert.ElementsMatch(t, []string{"sponsored_heavy", "low_title_density", "target_underrepresented"}, labels)
}

func TestRuleEngine_EvaluateNoMatches(t *testing.T) {
	eng, err := newRuleEngine(DefaultKeywordRules)
	require.NoError(t, err)

	labels := eng.evaluate(map[string]interface{}{
		"sponsored_ratio":   0.1,
		"title_density":     0.9,
		"target_asin_share": 0.5,
	})
	assert.Empty(t, labels)
}

func TestRuleEngine_NullTargetShareSkipsRule(t *testing.T) {
	eng, err := newRuleEngine(DefaultKeywordRules)
	require.NoError(t, err)

	labels := eng.evaluate(map[string]interface{}{
		"sponsored_ratio":   0.1,
		"title_density":     0.9,
		"target_asin_share": nil,
	})
	assert.NotContains(t, labels, "target_underrepresented")
}

func TestRuleEngine_LabelsAreSorted(t *testing.T) {
	eng, err := newRuleEngine(DefaultKeywordRules)
	require.NoError(t, err)

	labels := eng.evaluate(map[string]interface{}{
		"sponsored_ratio":   0.9,
		"title_density":     0.01,
		"target_asin_share": 0.0,
	})
	require.Len(t, labels, 3)
	assert.True(t, labels[0] < labels[1] && labels[1] < labels[2])
}
