package analyzer

import (
	"strings"

	"github.com/yaccii-voc/kbcore/internal/model"
	"github.com/yaccii-voc/kbcore/internal/resultsdb"
)

// ReviewCustomerSentiment computes review.customer_sentiment: n-gram topics
// over the positive (stars>=4) and negative (stars<=2) subsets, each row
// carrying mention_count/percentage/avg_rating and a short reason built
// from its two most helpful supporting snippets.
func ReviewCustomerSentiment(siteCode string, asins []string, reviewTimeFrom, reviewTimeTo int64, reviews []resultsdb.ReviewRow, topK, maxEvidencePerTopic int) Result {
	meta := map[string]interface{}{
		"site_code": siteCode, "asins": asins,
		"review_time_from": reviewTimeFrom, "review_time_to": reviewTimeTo,
	}
	if len(reviews) == 0 {
		return Result{
			ModuleCode: "review.customer_sentiment", SchemaVersion: 1,
			Payload: map[string]interface{}{"available": false, "unavailable_reason": "no_reviews", "meta": meta},
		}
	}

	var pos, neg []resultsdb.ReviewRow
	for _, r := range reviews {
		if r.Stars >= 4 {
			pos = append(pos, r)
		} else if r.Stars <= 2 {
			neg = append(neg, r)
		}
	}

	var evidence []model.VocEvidence
	buildRows := func(rows []topicRow, kind string) []map[string]interface{} {
		if len(rows) > topK {
			rows = rows[:topK]
		}
		out := make([]map[string]interface{}, 0, len(rows))
		for _, tr := range rows {
			picked := sortReviewsByHelpfulDesc(tr.reviews)
			if len(picked) > maxEvidencePerTopic {
				picked = picked[:maxEvidencePerTopic]
			}
			var snippets []string
			for _, r := range picked {
				body := r.ReviewBody
				if body == "" {
					body = r.ReviewTitle
				}
				snippets = append(snippets, safeSnippet(body, 220))
				evidence = append(evidence, topicEvidence(tr.topic, kind, r))
			}
			var reason interface{}
			if len(snippets) > 0 {
				n := 2
				if len(snippets) < n {
					n = len(snippets)
				}
				reason = strings.TrimSpace(strings.Join(snippets[:n], " "))
			}
			out = append(out, map[string]interface{}{
				"topic": tr.topic, "mention_count": tr.mentionCount,
				"percentage": round6(float64(tr.mentionCount) / float64(len(reviews))),
				"avg_rating": tr.avgRating, "reason": reason,
			})
		}
		return out
	}

	posTopics := buildRows(extractTopics(pos), "positive_topic")
	negTopics := buildRows(extractTopics(neg), "negative_topic")

	payload := map[string]interface{}{
		"available":       true,
		"positive_topics": posTopics,
		"negative_topics": negTopics,
		"meta":            meta,
	}
	return Result{ModuleCode: "review.customer_sentiment", SchemaVersion: 1, Payload: payload, Evidence: evidence}
}
