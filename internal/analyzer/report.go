package analyzer

import "github.com/yaccii-voc/kbcore/internal/model"

// BuildReportV1 aggregates already-persisted module outputs and evidence
// counts into the report.v1 payload. It reads only from what
// UpsertVocOutput/InsertVocEvidenceMany have already written — never the
// raw results DB — per the specification's "report reads outputs/evidence
// only" contract. Grounded on original_source's ReportV1Builder.
func BuildReportV1(outputs []model.VocOutput, evidenceCounts map[string]int) Result {
	order := make([]string, 0, len(outputs))
	modules := map[string]interface{}{}
	mergedMeta := map[string]interface{}{}

	for _, o := range outputs {
		if o.ModuleCode == "report.v1" {
			continue
		}
		order = append(order, o.ModuleCode)
		modules[o.ModuleCode] = o.Payload
		if meta, ok := o.Payload["meta"].(map[string]interface{}); ok {
			for k, v := range meta {
				if _, exists := mergedMeta[k]; !exists {
					mergedMeta[k] = v
				}
			}
		}
	}

	counts := map[string]interface{}{}
	for k, v := range evidenceCounts {
		counts[k] = v
	}

	payload := map[string]interface{}{
		"available":       len(modules) > 0,
		"module_order":    order,
		"modules":         modules,
		"evidence_counts": counts,
		"meta":            mergedMeta,
	}
	return Result{ModuleCode: "report.v1", SchemaVersion: 1, Payload: payload}
}
