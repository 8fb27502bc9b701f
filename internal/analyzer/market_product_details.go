package analyzer

import (
	"sort"

	"github.com/yaccii-voc/kbcore/internal/model"
	"github.com/yaccii-voc/kbcore/internal/resultsdb"
)

// MarketProductDetails computes market.product_details: the latest listing
// snapshot per ASIN, tagged target/competitor/other, grounded on
// original_source's MarketProductDetailsAnalyzer.
func MarketProductDetails(siteCode string, targetASINs, competitorASINs []string, snapshots []resultsdb.ListingSnapshot, capturedDay string, maxEvidence int) Result {
	targetSet := toSet(targetASINs)
	competitorSet := toSet(competitorASINs)

	byASIN := map[string][]resultsdb.ListingSnapshot{}
	asinSet := map[string]bool{}
	for _, s := range snapshots {
		byASIN[s.ASIN] = append(byASIN[s.ASIN], s)
		asinSet[s.ASIN] = true
	}
	for a := range targetSet {
		asinSet[a] = true
	}
	for a := range competitorSet {
		asinSet[a] = true
	}
	allASINs := make([]string, 0, len(asinSet))
	for a := range asinSet {
		allASINs = append(allASINs, a)
	}
	sort.Strings(allASINs)

	var rows []map[string]interface{}
	var missing []string
	var evidence []model.VocEvidence

	for _, asin := range allASINs {
		snap := latestSnapshot(byASIN[asin])
		if snap == nil {
			missing = append(missing, asin)
			continue
		}
		group := "other"
		if targetSet[asin] {
			group = "target"
		} else if competitorSet[asin] {
			group = "competitor"
		}
		row := map[string]interface{}{
			"asin": asin, "group": group, "title": safeSnippet(snap.Title, 220),
			"brand_name": snap.BrandName, "price_amount": snap.PriceAmount, "stars": snap.Stars,
			"ratings_count": snap.RatingsCount, "review_count": snap.ReviewCount,
			"bought_past_month": snap.BoughtPastMonth, "listing_id": snap.ListingID,
		}
		rows = append(rows, row)
		if len(evidence) < maxEvidence {
			evidence = append(evidence, model.VocEvidence{
				SourceType: "listing", SourceID: snap.ListingID, Kind: "listing_snapshot",
				Snippet: safeSnippet(snap.Title, 220),
				Meta: map[string]interface{}{
					"asin": asin, "group": group, "price_amount": snap.PriceAmount,
					"stars": snap.Stars, "review_count": snap.ReviewCount, "bought_past_month": snap.BoughtPastMonth,
				},
			})
		}
	}

	available := len(rows) > 0
	var unavailableReason interface{}
	if !available {
		unavailableReason = "no_listing_data"
	}
	payload := map[string]interface{}{
		"available": available, "captured_day": capturedDay, "rows": rows,
		"missing_asins": missing, "unavailable_reason": unavailableReason,
		"meta": map[string]interface{}{
			"site_code": siteCode, "target_asins": sortedKeys(targetSet), "competitor_asins": sortedKeys(competitorSet),
		},
	}
	return Result{ModuleCode: "market.product_details", SchemaVersion: 1, Payload: payload, Evidence: evidence}
}

func latestSnapshot(snaps []resultsdb.ListingSnapshot) *resultsdb.ListingSnapshot {
	if len(snaps) == 0 {
		return nil
	}
	best := snaps[0]
	for _, s := range snaps[1:] {
		if s.CapturedAt > best.CapturedAt || (s.CapturedAt == best.CapturedAt && s.ListingID > best.ListingID) {
			best = s
		}
	}
	return &best
}

func toSet(xs []string) map[string]bool {
	out := map[string]bool{}
	for _, x := range xs {
		out[x] = true
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
