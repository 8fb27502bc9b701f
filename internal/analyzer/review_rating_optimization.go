package analyzer

import (
	"github.com/yaccii-voc/kbcore/internal/model"
	"github.com/yaccii-voc/kbcore/internal/resultsdb"
)

// ReviewRatingOptimization computes review.rating_optimization: a
// per-topic (mentions, avg_rating) scatter over all reviews, plus "top
// drivers" — topics whose avg_rating <= 3.5, i.e. the ones dragging the
// rating down.
func ReviewRatingOptimization(siteCode string, asins []string, reviewTimeFrom, reviewTimeTo int64, reviews []resultsdb.ReviewRow, topKPoints, maxEvidencePerTopic int) Result {
	meta := map[string]interface{}{
		"site_code": siteCode, "asins": asins,
		"review_time_from": reviewTimeFrom, "review_time_to": reviewTimeTo,
	}
	if len(reviews) == 0 {
		return Result{
			ModuleCode: "review.rating_optimization", SchemaVersion: 1,
			Payload: map[string]interface{}{"available": false, "unavailable_reason": "no_reviews", "meta": meta},
		}
	}

	rows := extractTopics(reviews)
	if len(rows) > topKPoints {
		rows = rows[:topKPoints]
	}

	var evidence []model.VocEvidence
	scatter := make([]map[string]interface{}, 0, len(rows))
	var drivers []map[string]interface{}
	for _, tr := range rows {
		point := map[string]interface{}{
			"topic": tr.topic, "mention_count": tr.mentionCount, "avg_rating": tr.avgRating,
		}
		scatter = append(scatter, point)
		if tr.avgRating > 3.5 {
			continue
		}
		picked := sortReviewsByHelpfulDesc(tr.reviews)
		if len(picked) > maxEvidencePerTopic {
			picked = picked[:maxEvidencePerTopic]
		}
		for _, r := range picked {
			evidence = append(evidence, topicEvidence(tr.topic, "driver", r))
		}
		drivers = append(drivers, point)
	}

	payload := map[string]interface{}{
		"available": true,
		"scatter":   scatter,
		"top_drivers": drivers,
		"meta":      meta,
	}
	return Result{ModuleCode: "review.rating_optimization", SchemaVersion: 1, Payload: payload, Evidence: evidence}
}
