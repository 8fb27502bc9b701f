package analyzer

import (
	"sort"
	"strings"

	"k8s.io/klog/v2"

	"github.com/yaccii-voc/kbcore/internal/model"
	"github.com/yaccii-voc/kbcore/internal/resultsdb"
)

// KeywordDetails computes keyword.keyword_details: per-keyword SERP
// metrics (sponsored_ratio, avg price/rating, title_density,
// serp_sales_proxy, target_asin_share), each row additionally tagged with
// the CEL rule labels it matches. Grounded on original_source's
// KeywordDetailsAnalyzer.
func KeywordDetails(siteCode string, keywords, targetASINs []string, itemsByKeyword map[string][]resultsdb.KeywordSERPRow, capturedDay string, topItemsPerKeyword, maxEvidencePerKeyword int) Result {
	targetSet := toSet(targetASINs)

	engine, err := newRuleEngine(DefaultKeywordRules)
	if err != nil {
		klog.ErrorS(err, "keyword.keyword_details: rule engine unavailable, skipping row flags")
	}

	var outItems []map[string]interface{}
	var missing []string
	var evidence []model.VocEvidence

	for _, kw := range keywords {
		items := append([]resultsdb.KeywordSERPRow(nil), itemsByKeyword[kw]...)
		sort.Slice(items, func(i, j int) bool { return items[i].Position < items[j].Position })
		if len(items) == 0 {
			missing = append(missing, kw)
			continue
		}

		total := len(items)
		var sponsored int
		var priceSum, priceN, ratingSum, ratingN float64
		var titleHits int
		var salesProxy int
		var targetHits int
		terms := keywordTerms(kw)

		for _, it := range items {
			if it.IsSponsored {
				sponsored++
			}
			if it.PriceAmount > 0 {
				priceSum += it.PriceAmount
				priceN++
			}
			if it.Stars > 0 {
				ratingSum += it.Stars
				ratingN++
			}
			if titleMatchesTerms(it.Title, terms) {
				titleHits++
			}
			salesProxy += it.BoughtPastMonth
			if targetSet[it.ASIN] {
				targetHits++
			}
		}

		var avgPrice, avgRating interface{}
		if priceN > 0 {
			avgPrice = round4(priceSum / priceN)
		}
		if ratingN > 0 {
			avgRating = round4(ratingSum / ratingN)
		}
		var targetShare interface{}
		if len(targetSet) > 0 {
			targetShare = round6(float64(targetHits) / float64(total))
		}

		row := map[string]interface{}{
			"keyword": kw, "total_items": total,
			"sponsored_ratio": round6(float64(sponsored) / float64(total)),
			"avg_price":       avgPrice, "avg_rating": avgRating,
			"title_density":      round6(float64(titleHits) / float64(total)),
			"serp_sales_proxy":   salesProxy,
			"target_asin_share": targetShare,
		}
		if engine != nil {
			row["flags"] = engine.evaluate(row)
		}

		top := items
		if len(top) > topItemsPerKeyword {
			top = top[:topItemsPerKeyword]
		}
		topItems := make([]map[string]interface{}, 0, len(top))
		for _, it := range top {
			topItems = append(topItems, map[string]interface{}{
				"position": it.Position, "is_sponsored": it.IsSponsored, "asin": it.ASIN,
				"title": safeSnippet(it.Title, 220), "price_amount": it.PriceAmount, "stars": it.Stars,
				"bought_past_month": it.BoughtPastMonth,
			})
		}
		row["top_items"] = topItems
		outItems = append(outItems, row)

		evItems := items
		if len(evItems) > maxEvidencePerKeyword {
			evItems = evItems[:maxEvidencePerKeyword]
		}
		for _, it := range evItems {
			evidence = append(evidence, model.VocEvidence{
				SourceType: "keyword_serp", SourceID: int64(it.Position), Kind: "serp_item",
				Snippet: safeSnippet(it.Title, 220),
				Meta: map[string]interface{}{
					"keyword": kw, "position": it.Position, "is_sponsored": it.IsSponsored, "asin": it.ASIN,
					"price_amount": it.PriceAmount, "stars": it.Stars, "bought_past_month": it.BoughtPastMonth,
				},
			})
		}
	}

	available := len(outItems) > 0
	var unavailableReason interface{}
	if !available {
		unavailableReason = "no_keyword_serp_data"
	}
	payload := map[string]interface{}{
		"available": available, "captured_day": capturedDay, "items": outItems,
		"missing_keywords": missing, "unavailable_reason": unavailableReason,
		"meta": map[string]interface{}{"site_code": siteCode, "keywords": keywords, "target_asins": sortedKeys(targetSet)},
	}
	return Result{ModuleCode: "keyword.keyword_details", SchemaVersion: 1, Payload: payload, Evidence: evidence}
}

func keywordTerms(keyword string) []string {
	fields := strings.Fields(strings.ToLower(strings.ReplaceAll(keyword, "/", " ")))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func titleMatchesTerms(title string, terms []string) bool {
	if title == "" {
		return false
	}
	t := strings.ToLower(title)
	for _, term := range terms {
		if term != "" && !strings.Contains(t, term) {
			return false
		}
	}
	return true
}
