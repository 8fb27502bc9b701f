package analyzer

import (
	"time"

	"github.com/yaccii-voc/kbcore/internal/model"
	"github.com/yaccii-voc/kbcore/internal/resultsdb"
)

// ReviewOverview computes review.overview: count, avg stars, a 5-bucket
// rating distribution, an N-day trend, and top helpful positive/negative
// samples. Grounded on original_source's ReviewOverviewAnalyzer.
func ReviewOverview(siteCode string, asins []string, reviewTimeFrom, reviewTimeTo int64, reviews []resultsdb.ReviewRow, daysForTrend int) Result {
	n := len(reviews)

	var starsSum int
	dist := map[int]int{}
	for _, r := range reviews {
		starsSum += r.Stars
		dist[r.Stars]++
	}
	var avgStars interface{}
	if n > 0 {
		avgStars = round4(float64(starsSum) / float64(n))
	}

	distRows := make([]map[string]interface{}, 0, 5)
	for s := 5; s >= 1; s-- {
		c := dist[s]
		pct := 0.0
		if n > 0 {
			pct = round6(float64(c) / float64(n))
		}
		distRows = append(distRows, map[string]interface{}{"stars": s, "count": c, "pct": pct})
	}

	byDayCount := map[string]int{}
	byDaySum := map[string]int{}
	for _, r := range reviews {
		if r.ReviewTime == 0 {
			continue
		}
		d := time.Unix(r.ReviewTime, 0).UTC().Format("2006-01-02")
		byDayCount[d]++
		byDaySum[d] += r.Stars
	}
	today := time.Now().UTC()
	trendRows := make([]map[string]interface{}, 0, daysForTrend)
	for i := daysForTrend - 1; i >= 0; i-- {
		d := today.AddDate(0, 0, -i).Format("2006-01-02")
		c := byDayCount[d]
		var avg interface{}
		if c > 0 {
			avg = round4(float64(byDaySum[d]) / float64(c))
		}
		trendRows = append(trendRows, map[string]interface{}{"day": d, "count": c, "avg_stars": avg})
	}

	var neg, pos []resultsdb.ReviewRow
	for _, r := range reviews {
		if r.Stars <= 2 {
			neg = append(neg, r)
		} else if r.Stars >= 4 {
			pos = append(pos, r)
		}
	}
	neg = sortReviewsByHelpfulDesc(neg)
	pos = sortReviewsByHelpfulDesc(pos)
	if len(neg) > 10 {
		neg = neg[:10]
	}
	if len(pos) > 10 {
		pos = pos[:10]
	}

	toSample := func(r resultsdb.ReviewRow) map[string]interface{} {
		body := r.ReviewBody
		if body == "" {
			body = r.ReviewTitle
		}
		verified := 0
		if r.VerifiedPurchase {
			verified = 1
		}
		return map[string]interface{}{
			"review_id": r.ReviewID, "asin": r.ASIN, "stars": r.Stars,
			"helpful_votes": r.HelpfulVotes, "review_time": r.ReviewTime,
			"title": r.ReviewTitle, "snippet": safeSnippet(body, 220),
			"verified_purchase": verified,
		}
	}

	negSamples := make([]map[string]interface{}, 0, len(neg))
	posSamples := make([]map[string]interface{}, 0, len(pos))
	var evidence []model.VocEvidence
	for _, r := range neg {
		negSamples = append(negSamples, toSample(r))
		evidence = append(evidence, reviewEvidence(r, "negative"))
	}
	for _, r := range pos {
		posSamples = append(posSamples, toSample(r))
		evidence = append(evidence, reviewEvidence(r, "positive"))
	}

	payload := map[string]interface{}{
		"summary":          map[string]interface{}{"review_count": n, "avg_stars": avgStars},
		"rating_distribution": distRows,
		"trend_last_days":  map[string]interface{}{"days": daysForTrend, "rows": trendRows},
		"evidence_samples": map[string]interface{}{"negative": negSamples, "positive": posSamples},
		"meta": map[string]interface{}{
			"site_code": siteCode, "asins": asins,
			"review_time_from": reviewTimeFrom, "review_time_to": reviewTimeTo,
		},
	}
	return Result{ModuleCode: "review.overview", SchemaVersion: 1, Payload: payload, Evidence: evidence}
}

func reviewEvidence(r resultsdb.ReviewRow, kind string) model.VocEvidence {
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
			"asin": r.ASIN, "stars": r.Stars, "helpful_votes": r.HelpfulVotes, "review_time": r.ReviewTime,
		},
	}
}

func round4(f float64) float64 { return roundN(f, 10000) }
func round6(f float64) float64 { return roundN(f, 1000000) }
func roundN(f float64, scale float64) float64 {
	return float64(int64(f*scale+sign(f)*0.5)) / scale
}
func sign(f float64) float64 {
	if f < 0 {
		return -1
	}
	return 1
}
