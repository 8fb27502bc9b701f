package analyzer

import (
	"sort"

	"github.com/yaccii-voc/kbcore/internal/model"
	"github.com/yaccii-voc/kbcore/internal/resultsdb"
)

// topicRow is the shared shape produced by n-gram topic extraction, before
// each caller (sentiment, rating_optimization) attaches its own reason/
// evidence and sort order.
type topicRow struct {
	topic        string
	mentionCount int
	avgRating    float64
	reviews      []resultsdb.ReviewRow
}

// extractTopics maps a group of reviews to normalized topic keys via 2- and
// 3-gram extraction, same heuristic as original_source's sentiment and
// rating_optimization analyzers share.
func extractTopics(group []resultsdb.ReviewRow) []topicRow {
	phraseToReviewIDs := map[string]map[int64]bool{}

	for _, r := range group {
		text := r.ReviewTitle + " " + r.ReviewBody
		tokens := tokenize(text)
		phrases := map[string]bool{}
		for _, n := range []int{2, 3} {
			for _, p := range ngrams(tokens, n) {
				if hasStopword(p) {
					continue
				}
				phrases[p] = true
			}
		}
		if len(phrases) == 0 {
			limit := len(tokens)
			if limit > 20 {
				limit = 20
			}
			for _, t := range tokens[:limit] {
				phrases[t] = true
			}
		}
		for p := range phrases {
			ids, ok := phraseToReviewIDs[p]
			if !ok {
				ids = map[int64]bool{}
				phraseToReviewIDs[p] = ids
			}
			ids[r.ReviewID] = true
		}
	}

	topicToReviewIDs := map[string]map[int64]bool{}
	for phrase, ids := range phraseToReviewIDs {
		topic := normalizeTopic(phrase)
		if topic == "" {
			continue
		}
		dst, ok := topicToReviewIDs[topic]
		if !ok {
			dst = map[int64]bool{}
			topicToReviewIDs[topic] = dst
		}
		for id := range ids {
			dst[id] = true
		}
	}

	byID := map[int64]resultsdb.ReviewRow{}
	for _, r := range group {
		byID[r.ReviewID] = r
	}

	rows := make([]topicRow, 0, len(topicToReviewIDs))
	for topic, ids := range topicToReviewIDs {
		var rs []resultsdb.ReviewRow
		var starsSum int
		for id := range ids {
			r, ok := byID[id]
			if !ok {
				continue
			}
			rs = append(rs, r)
			starsSum += r.Stars
		}
		if len(rs) == 0 {
			continue
		}
		rows = append(rows, topicRow{
			topic:        topic,
			mentionCount: len(rs),
			avgRating:    round4(float64(starsSum) / float64(len(rs))),
			reviews:      rs,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].mentionCount != rows[j].mentionCount {
			return rows[i].mentionCount > rows[j].mentionCount
		}
		return rows[i].avgRating > rows[j].avgRating
	})
	return rows
}

func topicEvidence(topic, kind string, r resultsdb.ReviewRow) model.VocEvidence {
	body := r.ReviewBody
	if body == "" {
		body = r.ReviewTitle
	}
	return model.VocEvidence{
		SourceType: "review",
		SourceID:   r.ReviewID,
		Kind:       kind,
		Snippet:    safeSnippet(body, 220),
		Meta: map[string]interface{}{
			"topic": topic, "asin": r.ASIN, "stars": r.Stars,
			"helpful_votes": r.HelpfulVotes, "review_time": r.ReviewTime,
		},
	}
}
