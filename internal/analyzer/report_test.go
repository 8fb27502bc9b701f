package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaccii-voc/kbcore/internal/model"
)

func TestBuildReportV1_AggregatesModulesInOrder(t *testing.T) {
	outputs := []model.VocOutput{
		{ModuleCode: "review.overview", Payload: map[string]interface{}{
			"meta": map[string]interface{}{"site_code": "US"},
		}},
		{ModuleCode: "keyword.details", Payload: map[string]interface{}{
			"meta": map[string]interface{}{"site_code": "US", "extra": "keyword-only"},
		}},
		{ModuleCode: "report.v1", Payload: map[string]interface{}{}}, // must be skipped
	}
	counts := map[string]int{"review.overview": 5, "keyword.details": 2}

	res := BuildReportV1(outputs, counts)
	assert.Equal(t, "report.v1", res.ModuleCode)

	assert.Equal(t, []string{"review.overview", "keyword.details"}, res.Payload["module_order"])
	assert.True(t, res.Payload["available"].(bool))

	modules := res.Payload["modules"].(map[string]interface{})
	require.Contains(t, modules, "review.overview")
	require.Contains(t, modules, "keyword.details")
	assert.NotContains(t, modules, "report.v1")

	meta := res.Payload["meta"].(map[string]interface{})
	assert.Equal(t, "US", meta["site_code"])
	assert.Equal(t, "keyword-only", meta["extra"])

	ec := res.Payload["evidence_counts"].(map[string]interface{})
	assert.Equal(t, 5, ec["review.overview"])
}

func TestBuildReportV1_EmptyOutputsMarksUnavailable(t *testing.T) {
	res := BuildReportV1(nil, nil)
	assert.False(t, res.Payload["available"].(bool))
	assert.Empty(t, res.Payload["module_order"])
}

func TestBuildReportV1_FirstModuleWinsMetaConflict(t *testing.T) {
	outputs := []model.VocOutput{
		{ModuleCode: "a", Payload: map[string]interface{}{"meta": map[string]interface{}{"site_code": "US"}}},
		{ModuleCode: "b", Payload: map[string]interface{}{"meta": map[string]interface{}{"site_code": "UK"}}},
	}
	res := BuildReportV1(outputs, nil)
	meta := res.Payload["meta"].(map[string]interface{})
	assert.Equal(t, "US", meta["site_code"], "first module's meta value should win on conflict")
}
