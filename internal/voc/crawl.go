package voc

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/yaccii-voc/kbcore/internal/model"
	"github.com/yaccii-voc/kbcore/internal/resultsdb"
	"github.com/yaccii-voc/kbcore/internal/spider"
	"github.com/yaccii-voc/kbcore/internal/store"
)

// CrawlUnit is one crawl task decide_crawl_units wants dispatched.
type CrawlUnit struct {
	RunType    model.RunType
	ScopeType  string
	ScopeValue string
}

// freshnessWindow: a captured day is fresh if it is today or yesterday
// (UTC), per the specification's "today_utc - 1 day" floor.
const freshnessWindow = 24 * time.Hour

// DecideCrawlUnits implements the crawl decision: OFF enqueues nothing,
// FORCE enqueues one unit per listing/review asin and per keyword, AUTO
// consults the read-only results DB and only enqueues units whose latest
// captured day is stale.
func DecideCrawlUnits(ctx context.Context, results *resultsdb.Reader, triggerMode model.TriggerMode, siteCode string, targetASINs, competitorASINs, keywords []string) ([]CrawlUnit, error) {
	if triggerMode == model.TriggerOff {
		return nil, nil
	}

	listingASINs := unionSorted(targetASINs, competitorASINs)

	if triggerMode == model.TriggerForce {
		var units []CrawlUnit
		for _, asin := range listingASINs {
			units = append(units, CrawlUnit{RunType: model.RunTypeListing, ScopeType: "asin", ScopeValue: asin})
			units = append(units, CrawlUnit{RunType: model.RunTypeReview, ScopeType: "asin", ScopeValue: asin})
		}
		for _, kw := range sortUnique(keywords) {
			units = append(units, CrawlUnit{RunType: model.RunTypeKeyword, ScopeType: "keyword", ScopeValue: kw})
		}
		return units, nil
	}

	// AUTO: reviews are incremental, always skipped.
	now := time.Now().UTC()
	var units []CrawlUnit
	for _, asin := range listingASINs {
		day, err := results.LatestListingCapturedDay(ctx, siteCode, asin)
		if err != nil {
			return nil, fmt.Errorf("voc: check listing freshness for %s: %w", asin, err)
		}
		if isStale(day, now) {
			units = append(units, CrawlUnit{RunType: model.RunTypeListing, ScopeType: "asin", ScopeValue: asin})
		}
	}
	for _, kw := range sortUnique(keywords) {
		day, err := results.LatestKeywordCapturedDay(ctx, siteCode, kw)
		if err != nil {
			return nil, fmt.Errorf("voc: check keyword freshness for %s: %w", kw, err)
		}
		if isStale(day, now) {
			units = append(units, CrawlUnit{RunType: model.RunTypeKeyword, ScopeType: "keyword", ScopeValue: kw})
		}
	}
	return units, nil
}

func isStale(lastCaptured, now time.Time) bool {
	if lastCaptured.IsZero() {
		return true
	}
	return lastCaptured.Before(now.Add(-freshnessWindow).Truncate(24 * time.Hour))
}

func unionSorted(a, b []string) []string {
	set := map[string]bool{}
	for _, x := range a {
		set[x] = true
	}
	for _, x := range b {
		set[x] = true
	}
	return sortedKeysFromSet(set)
}

func sortUnique(xs []string) []string {
	set := map[string]bool{}
	for _, x := range xs {
		set[x] = true
	}
	return sortedKeysFromSet(set)
}

func sortedKeysFromSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Enqueuer dispatches crawl units to the spider over the Redis gateway and
// records the pending SpiderTasks.
type Enqueuer struct {
	Store         *store.JobStore
	Gateway       *spider.Gateway
	JWTSecretKey  string
	PublicBaseURL string
}

type redisPayload struct {
	TaskID       string                 `json:"task_id"`
	RunType      string                 `json:"run_type"`
	SiteCode     string                 `json:"site_code"`
	ScopeType    string                 `json:"scope_type"`
	ScopeValue   string                 `json:"scope_value"`
	CallbackURL  string                 `json:"callback_url"`
	CallbackToken string                `json:"callback_token"`
	Extra        map[string]interface{} `json:"extra,omitempty"`
}

// Enqueue dispatches every unit, records its SpiderTask, and transitions
// the job to CRAWLING with params.pending_crawl populated. Callers must
// have already verified PublicBaseURL is configured.
func (e *Enqueuer) Enqueue(ctx context.Context, job *model.VocJob, siteCode string, units []CrawlUnit) error {
	pending := make([]interface{}, 0, len(units))
	for _, u := range units {
		taskID := fmt.Sprintf("voc:%d:%s:%s", job.JobID, u.RunType, u.ScopeValue)
		token, err := e.callbackToken(taskID)
		if err != nil {
			return err
		}
		tokenHash := spider.TokenHash(token)

		if _, err := e.Store.CreateSpiderTask(ctx, job.JobID, taskID, u.RunType, u.ScopeType, u.ScopeValue, tokenHash); err != nil {
			return fmt.Errorf("voc: create spider task %s: %w", taskID, err)
		}

		callbackURL := fmt.Sprintf("%s/voc/spider/callback/%d", e.PublicBaseURL, job.JobID)
		payload := redisPayload{
			TaskID: taskID, RunType: string(u.RunType), SiteCode: siteCode,
			ScopeType: u.ScopeType, ScopeValue: u.ScopeValue,
			CallbackURL: callbackURL, CallbackToken: token,
		}
		body, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("voc: marshal crawl payload: %w", err)
		}
		if _, err := e.Gateway.LPushJSON(string(body)); err != nil {
			return fmt.Errorf("voc: push crawl task %s: %w", taskID, err)
		}
		pending = append(pending, taskID)
	}

	params := job.Params
	if params == nil {
		params = map[string]interface{}{}
	}
	params["pending_crawl"] = pending
	if err := e.Store.UpdateVocJobParams(ctx, job.JobID, params); err != nil {
		return err
	}
	return e.Store.UpdateVocJobStatus(ctx, job.JobID, model.VocCrawling, "CRAWLING", "", "", "")
}

// callbackToken derives a one-time token as HMAC-SHA256(JWTSecretKey,
// task_id || nonce): random per the specification's "token is random"
// clause (the nonce), yet keyed off JWT_SECRET_KEY per the configuration
// section's "also used as HMAC key for callback tokens" clause. Only
// spider.TokenHash(token) is ever persisted.
func (e *Enqueuer) callbackToken(taskID string) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("voc: generate callback nonce: %w", err)
	}
	mac := hmac.New(sha256.New, []byte(e.JWTSecretKey))
	mac.Write([]byte(taskID))
	mac.Write(nonce)
	return hex.EncodeToString(mac.Sum(nil)), nil
}
