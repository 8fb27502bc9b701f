package analyzer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaccii-voc/kbcore/internal/resultsdb"
)

func TestReviewOverview_EmptyInput(t *testing.T) {
	res := ReviewOverview("US", []string{"B001"}, 0, 0, nil, 7)
	assert.Equal(t, "review.overview", res.ModuleCode)
	assert.Equal(t, 1, res.SchemaVersion)

	summary, ok := res.Payload["summary"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 0, summary["review_count"])
	assert.Nil(t, summary["avg_stars"])
	assert.Empty(t, res.Evidence)
}

func TestReviewOverview_ComputesAverageAndDistribution(t *testing.T) {
	now := time.Now().UTC().Unix()
	reviews := []resultsdb.ReviewRow{
		{ReviewID: 1, ASIN: "B001", Stars: 5, ReviewBody: "great", HelpfulVotes: 10, ReviewTime: now},
		{ReviewID: 2, ASIN: "B001", Stars: 1, ReviewBody: "bad", HelpfulVotes: 20, ReviewTime: now},
		{ReviewID: 3, ASIN: "B001", Stars: 5, ReviewBody: "love it", HelpfulVotes: 5, ReviewTime: now},
	}
	res := ReviewOverview("US", []string{"B001"}, 0, now, reviews, 3)

	summary := res.Payload["summary"].(map[string]interface{})
	assert.Equal(t, 3, summary["review_count"])
	assert.InDelta(t, 3.6667, summary["avg_stars"].(float64), 0.001)

	// negative and positive evidence samples generated, sorted by helpful votes desc
	samples := res.Payload["evidence_samples"].(map[string]interface{})
	neg := samples["negative"].([]map[string]interface{})
	pos := samples["positive"].([]map[string]interface{})
	require.Len(t, neg, 1)
	require.Len(t, pos, 2)
	assert.Equal(t, int64(1), neg[0]["review_id"])
	// most helpful positive review (id 1, 10 votes) should sort before id 3 (5 votes)
	assert.Equal(t, int64(1), pos[0]["review_id"])

	require.Len(t, res.Evidence, 3)
}

func TestReviewOverview_FallsBackToTitleWhenBodyEmpty(t *testing.T) {
	reviews := []resultsdb.ReviewRow{
		{ReviewID: 1, ASIN: "B001", Stars: 5, ReviewTitle: "Great product", HelpfulVotes: 1, ReviewTime: time.Now().Unix()},
	}
	res := ReviewOverview("US", []string{"B001"}, 0, 0, reviews, 1)
	samples := res.Payload["evidence_samples"].(map[string]interface{})
	pos := samples["positive"].([]map[string]interface{})
	require.Len(t, pos, 1)
	assert.Equal(t, "Great product", pos[0]["snippet"])
}

func TestRoundN(t *testing.T) {
	assert.Equal(t, 1.2346, round4(1.23456789))
	assert.Equal(t, -1.2346, round4(-1.23456789))
}

func TestSign(t *testing.T) {
	assert.Equal(t, 1.0, sign(0))
	assert.Equal(t, 1.0, sign(5))
	assert.Equal(t, -1.0, sign(-5))
}
