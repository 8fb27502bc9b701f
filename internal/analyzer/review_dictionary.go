package analyzer

import (
	"sort"
	"strings"

	"github.com/yaccii-voc/kbcore/internal/model"
	"github.com/yaccii-voc/kbcore/internal/resultsdb"
)

// dictionaryMatch is the shared engine behind usage_scenario,
// buyers_motivation and customer_expectations: each review is matched
// against every label's keyword list by substring search, and matched
// labels are aggregated into rows with mention_count/percentage/avg_rating
// and a reason built from the two most helpful snippets.
//
// candidates is the set of reviews eligible for matching, and totalN the
// denominator for percentage; callers that restrict eligibility filter
// candidates themselves (customer_expectations passes only stars<=3 reviews
// that contain an expectation marker, with totalN still the full count).
func dictionaryMatch(totalN int, candidates []resultsdb.ReviewRow, dict map[string][]string, labelField, evidenceKind string, topK, maxEvidencePerLabel int) ([]map[string]interface{}, []model.VocEvidence) {
	matched := map[string][]resultsdb.ReviewRow{}
	for _, r := range candidates {
		text := strings.ToLower(r.ReviewTitle + " " + r.ReviewBody)
		for label, keys := range dict {
			if len(keys) == 0 {
				continue
			}
			for _, k := range keys {
				if k != "" && strings.Contains(text, k) {
					matched[label] = append(matched[label], r)
					break
				}
			}
		}
	}

	var evidence []model.VocEvidence
	rows := make([]map[string]interface{}, 0, len(matched))
	for label, rs := range matched {
		uniq := map[int64]resultsdb.ReviewRow{}
		for _, r := range rs {
			uniq[r.ReviewID] = r
		}
		if len(uniq) == 0 {
			continue
		}
		list := make([]resultsdb.ReviewRow, 0, len(uniq))
		var starsSum int
		for _, r := range uniq {
			list = append(list, r)
			starsSum += r.Stars
		}
		mentionCount := len(list)
		pct := 0.0
		if totalN > 0 {
			pct = round6(float64(mentionCount) / float64(totalN))
		}
		avgRating := round4(float64(starsSum) / float64(mentionCount))

		picked := sortReviewsByHelpfulDesc(list)
		if len(picked) > maxEvidencePerLabel {
			picked = picked[:maxEvidencePerLabel]
		}
		var snippets []string
		for _, r := range picked {
			body := r.ReviewBody
			if body == "" {
				body = r.ReviewTitle
			}
			snippet := safeSnippet(body, 220)
			snippets = append(snippets, snippet)
			evidence = append(evidence, model.VocEvidence{
				SourceType: "review", SourceID: r.ReviewID, Kind: evidenceKind, Snippet: snippet,
				Meta: map[string]interface{}{
					labelField: label, "asin": r.ASIN, "stars": r.Stars,
					"helpful_votes": r.HelpfulVotes, "review_time": r.ReviewTime,
				},
			})
		}
		var reason interface{}
		if len(snippets) > 0 {
			n := 2
			if len(snippets) < n {
				n = len(snippets)
			}
			reason = strings.TrimSpace(strings.Join(snippets[:n], " "))
		}
		rows = append(rows, map[string]interface{}{
			labelField: label, "percentage": pct, "mention_count": mentionCount,
			"avg_rating": avgRating, "reason": reason,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		pi, pj := rows[i]["percentage"].(float64), rows[j]["percentage"].(float64)
		if pi != pj {
			return pi > pj
		}
		return rows[i]["mention_count"].(int) > rows[j]["mention_count"].(int)
	})
	if len(rows) > topK {
		rows = rows[:topK]
	}
	return rows, evidence
}

var usageScenarioDict = map[string][]string{
	"travel":    {"travel", "plane", "airport", "flight", "vacation", "trip", "hotel"},
	"commuting": {"commute", "commuting", "train", "subway", "bus", "metro"},
	"school":    {"school", "class", "college", "campus", "student", "backpack"},
	"office":    {"office", "work", "workplace", "desk"},
	"gym":       {"gym", "workout", "fitness"},
	"gift":      {"gift", "present", "christmas", "birthday"},
}

// ReviewUsageScenario computes review.usage_scenario via keyword-dictionary
// matching over every review (no stars restriction).
func ReviewUsageScenario(siteCode string, asins []string, reviewTimeFrom, reviewTimeTo int64, reviews []resultsdb.ReviewRow, topK, maxEvidencePerScenario int) Result {
	meta := map[string]interface{}{
		"site_code": siteCode, "asins": asins,
		"review_time_from": reviewTimeFrom, "review_time_to": reviewTimeTo,
	}
	if len(reviews) == 0 {
		return Result{ModuleCode: "review.usage_scenario", SchemaVersion: 1,
			Payload: map[string]interface{}{"available": false, "unavailable_reason": "no_reviews", "meta": meta}}
	}
	rows, evidence := dictionaryMatch(len(reviews), reviews, usageScenarioDict, "scenario", "scenario", topK, maxEvidencePerScenario)
	return Result{ModuleCode: "review.usage_scenario", SchemaVersion: 1,
		Payload: map[string]interface{}{"available": true, "items": rows, "meta": meta}, Evidence: evidence}
}

var buyersMotivationDict = map[string][]string{
	"durability":   {"durable", "sturdy", "last", "lasting", "tough", "well made", "well-built"},
	"price_value":  {"price", "value", "worth", "affordable", "cheap", "bargain"},
	"brand_trust":  {"brand", "trust", "reputation", "recommend"},
	"design_style": {"stylish", "design", "look", "color", "appearance"},
	"capacity":     {"capacity", "spacious", "room for", "fits a lot", "storage"},
	"gift_purpose": {"gift", "present", "surprise"},
}

// ReviewBuyersMotivation computes review.buyers_motivation via the same
// dictionary-matching engine with its own label set.
func ReviewBuyersMotivation(siteCode string, asins []string, reviewTimeFrom, reviewTimeTo int64, reviews []resultsdb.ReviewRow, topK, maxEvidencePerMotivation int) Result {
	meta := map[string]interface{}{
		"site_code": siteCode, "asins": asins,
		"review_time_from": reviewTimeFrom, "review_time_to": reviewTimeTo,
	}
	if len(reviews) == 0 {
		return Result{ModuleCode: "review.buyers_motivation", SchemaVersion: 1,
			Payload: map[string]interface{}{"available": false, "unavailable_reason": "no_reviews", "meta": meta}}
	}
	rows, evidence := dictionaryMatch(len(reviews), reviews, buyersMotivationDict, "motivation", "motivation", topK, maxEvidencePerMotivation)
	return Result{ModuleCode: "review.buyers_motivation", SchemaVersion: 1,
		Payload: map[string]interface{}{"available": true, "items": rows, "meta": meta}, Evidence: evidence}
}

var customerExpectationsDict = map[string][]string{
	"more_colors":     {"color", "colour"},
	"more_sizes":      {"size", "bigger", "smaller"},
	"better_material": {"material", "fabric", "leather"},
	"longer_warranty": {"warranty", "guarantee"},
	"more_pockets":    {"pocket", "compartment"},
	"lower_price":     {"price", "cheaper", "expensive"},
}

var expectationMarkers = []string{"expected", "wish", "should", "hope", "would like", "i want"}

// ReviewCustomerExpectations computes review.customer_expectations: the
// same dictionary-matching engine, restricted to candidate reviews with
// stars<=3 that additionally contain an expectation marker phrase.
func ReviewCustomerExpectations(siteCode string, asins []string, reviewTimeFrom, reviewTimeTo int64, reviews []resultsdb.ReviewRow, topK, maxEvidencePerNeed int) Result {
	meta := map[string]interface{}{
		"site_code": siteCode, "asins": asins,
		"review_time_from": reviewTimeFrom, "review_time_to": reviewTimeTo,
	}
	var candidates []resultsdb.ReviewRow
	for _, r := range reviews {
		if r.Stars > 3 {
			continue
		}
		text := strings.ToLower(r.ReviewTitle + " " + r.ReviewBody)
		for _, marker := range expectationMarkers {
			if strings.Contains(text, marker) {
				candidates = append(candidates, r)
				break
			}
		}
	}
	if len(candidates) == 0 {
		return Result{ModuleCode: "review.customer_expectations", SchemaVersion: 1,
			Payload: map[string]interface{}{"available": false, "unavailable_reason": "no_candidate_reviews", "meta": meta}}
	}
	rows, evidence := dictionaryMatch(len(reviews), candidates, customerExpectationsDict, "need", "expectation", topK, maxEvidencePerNeed)
	return Result{ModuleCode: "review.customer_expectations", SchemaVersion: 1,
		Payload: map[string]interface{}{"available": true, "items": rows, "meta": meta}, Evidence: evidence}
}
