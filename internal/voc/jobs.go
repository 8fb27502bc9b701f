package voc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/yaccii-voc/kbcore/internal/model"
	"github.com/yaccii-voc/kbcore/internal/store"
)

// Jobs constructs idempotent VocJob rows. CreateVocJobByHash already derives
// the input_hash from (site_code, scope_type, scope_value, params), so
// callers here only need to settle on a stable scope_value.
type Jobs struct {
	Store *store.JobStore
}

// CreateOrReuseReviewJob creates (or reuses) a review-only VocJob scoped to
// a set of ASINs. scope_value is the first 32 hex characters of the digest
// of the sorted, comma-joined ASIN set, grounded on create_or_reuse_review_job.
func (j *Jobs) CreateOrReuseReviewJob(ctx context.Context, siteCode string, asins []string, reviewDays int) (*model.VocJob, error) {
	sorted := sortUnique(asins)
	scopeValue := asinSetDigest(sorted)
	params := map[string]interface{}{
		"site_code":    siteCode,
		"target_asins": toInterfaceSlice(sorted),
		"review_days":  reviewDays,
		"kind":         "review",
	}
	return j.Store.CreateVocJobByHash(ctx, siteCode, "asin_set", scopeValue, params)
}

// CreateOrReuseVocJob creates (or reuses) a full bundle VocJob covering
// target/competitor ASINs and keywords, grounded on create_or_reuse_voc_job.
func (j *Jobs) CreateOrReuseVocJob(ctx context.Context, siteCode string, targetASINs, competitorASINs, keywords []string, reviewDays, maxSerpPageNum int) (*model.VocJob, error) {
	targetSorted := sortUnique(targetASINs)
	competitorSorted := sortUnique(competitorASINs)
	keywordsSorted := sortUnique(keywords)
	scopeValue := asinSetDigest(unionSorted(targetSorted, competitorSorted))
	params := map[string]interface{}{
		"site_code":         siteCode,
		"target_asins":      toInterfaceSlice(targetSorted),
		"competitor_asins":  toInterfaceSlice(competitorSorted),
		"keywords":          toInterfaceSlice(keywordsSorted),
		"review_days":       reviewDays,
		"max_serp_page_num": maxSerpPageNum,
		"kind":              "bundle",
	}
	return j.Store.CreateVocJobByHash(ctx, siteCode, "asin_set", scopeValue, params)
}

func asinSetDigest(sorted []string) string {
	h := sha256.New()
	for i, a := range sorted {
		if i > 0 {
			h.Write([]byte(","))
		}
		h.Write([]byte(a))
	}
	sum := hex.EncodeToString(h.Sum(nil))
	if len(sum) > 32 {
		return sum[:32]
	}
	return sum
}

func toInterfaceSlice(xs []string) []interface{} {
	out := make([]interface{}, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}
