// Package voc drives the VocPipeline: decide a crawl plan, enqueue spider
// tasks, and — once EXTRACTING — read datasets from the read-only results
// DB, run the deterministic analyzers, persist outputs/evidence, and build
// report.v1.
package voc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"k8s.io/klog/v2"

	"github.com/yaccii-voc/kbcore/internal/analyzer"
	"github.com/yaccii-voc/kbcore/internal/lease"
	"github.com/yaccii-voc/kbcore/internal/model"
	"github.com/yaccii-voc/kbcore/internal/notify"
	"github.com/yaccii-voc/kbcore/internal/resultsdb"
	"github.com/yaccii-voc/kbcore/internal/store"
)

var tracer = otel.Tracer("kbcore-voc")

const (
	defaultReviewDays     = 365
	defaultMaxSerpPageNum = 2
)

// Enricher is the optional, best-effort AI annotation step: on success its
// returned map is merged into a module's payload.meta.ai; on error the
// module is persisted unannotated. internal/llm provides the concrete
// implementation; passing a nil Enricher disables enrichment entirely.
type Enricher interface {
	Enrich(ctx context.Context, flowCode string, payload map[string]interface{}) (map[string]interface{}, error)
}

// Pipeline wires the ANALYZING-stage dependencies. Crawl decision and
// enqueueing (the PENDING->CRAWLING transition) live in
// Enqueuer/DecideCrawlUnits, not in the WorkerPool; nothing in this module
// calls them, and Jobs creates jobs in PENDING without enqueueing.
type Pipeline struct {
	Store   *store.JobStore
	Results *resultsdb.Reader
	AI      Enricher
	// Notify is optional: a nil *notify.Publisher is safe to call Publish
	// on, so a deployment without NATS configured just gets no ready hint.
	Notify *notify.Publisher
}

// Run executes one claimed VocJob through EXTRACTING->ANALYZING->
// PERSISTING->DONE. It is the lease.Runner passed to lease.NewPool. Every
// terminal VocJobStatus is written by Run itself; Claimer.Finish only
// releases the lease afterward.
func (p *Pipeline) Run(ctx context.Context, j lease.Job) lease.Result {
	jh, ok := j.(*jobHandle)
	if !ok {
		klog.ErrorS(errors.New("voc: unexpected job type"), "run aborted")
		return lease.Permanent
	}
	ctx, span := tracer.Start(ctx, "VocPipeline.Run")
	defer span.End()

	job := jh.job
	if job.Status == model.VocDone {
		return lease.Succeeded
	}

	if err := p.run(ctx, jh); err != nil {
		jh.lastErr = err.Error()
		klog.ErrorS(err, "voc pipeline failed", "jobID", job.JobID, "stage", jh.failedStage)
		_ = p.Store.UpdateVocJobStatus(ctx, job.JobID, model.VocFailed, "failed", "voc.pipeline_error", err.Error(), jh.failedStage)
		p.Notify.Publish(notify.ReadyEvent{JobKind: "voc", JobID: job.JobID, Status: model.VocFailed.String()})
		return lease.Permanent
	}
	p.Notify.Publish(notify.ReadyEvent{JobKind: "voc", JobID: job.JobID, Status: model.VocDone.String()})
	return lease.Succeeded
}

func (p *Pipeline) run(ctx context.Context, jh *jobHandle) error {
	job := jh.job

	jh.failedStage = "extracting"
	if err := p.Store.UpdateVocJobStatus(ctx, job.JobID, model.VocExtracting, "extracting", "", "", ""); err != nil {
		return fmt.Errorf("voc: transition to extracting: %w", err)
	}

	params := job.Params
	siteCode := stringOr(params["site_code"], job.SiteCode)
	targetASINs := stringSlice(params["target_asins"])
	competitorASINs := stringSlice(params["competitor_asins"])
	keywords := stringSlice(params["keywords"])
	reviewDays := intOr(params["review_days"], defaultReviewDays)
	maxSerpPage := intOr(params["max_serp_page_num"], defaultMaxSerpPageNum)
	listingASINs := unionSorted(targetASINs, competitorASINs)

	var reviews []resultsdb.ReviewRow
	var reviewTimeFrom, reviewTimeTo int64
	if len(targetASINs) > 0 {
		nowTS := time.Now().UTC()
		reviewTimeTo = nowTS.Unix()
		reviewTimeFrom = nowTS.Add(-time.Duration(reviewDays) * 24 * time.Hour).Unix()
		var err error
		reviews, err = p.Results.ListReviews(ctx, siteCode, targetASINs, reviewDays)
		if err != nil {
			return fmt.Errorf("voc: load review dataset: %w", err)
		}
	}

	var listings []resultsdb.ListingSnapshot
	if len(listingASINs) > 0 {
		var err error
		listings, err = p.Results.ListLatestListingSnapshots(ctx, siteCode, listingASINs)
		if err != nil {
			return fmt.Errorf("voc: load listing dataset: %w", err)
		}
	}

	itemsByKeyword := map[string][]resultsdb.KeywordSERPRow{}
	for _, kw := range keywords {
		items, err := p.Results.ListLatestKeywordSERP(ctx, siteCode, kw, maxSerpPage)
		if err != nil {
			return fmt.Errorf("voc: load keyword SERP dataset for %q: %w", kw, err)
		}
		itemsByKeyword[kw] = items
	}

	capturedDay := time.Now().UTC().Format("2006-01-02")
	if err := p.persistModule(ctx, job.JobID, "debug.datasets", buildDebugDatasets(siteCode, targetASINs, keywords, reviews, listings, itemsByKeyword, reviewTimeFrom, reviewTimeTo), nil); err != nil {
		return fmt.Errorf("voc: persist debug.datasets: %w", err)
	}

	jh.failedStage = "analyzing"
	if err := p.Store.UpdateVocJobStatus(ctx, job.JobID, model.VocAnalyzing, "analyzing", "", "", ""); err != nil {
		return fmt.Errorf("voc: transition to analyzing: %w", err)
	}

	var computed []analyzer.Result
	if len(targetASINs) > 0 {
		computed = append(computed,
			analyzer.ReviewOverview(siteCode, targetASINs, reviewTimeFrom, reviewTimeTo, reviews, 30),
			analyzer.ReviewCustomerSentiment(siteCode, targetASINs, reviewTimeFrom, reviewTimeTo, reviews, 12, 5),
			analyzer.ReviewUsageScenario(siteCode, targetASINs, reviewTimeFrom, reviewTimeTo, reviews, 12, 6),
			analyzer.ReviewBuyersMotivation(siteCode, targetASINs, reviewTimeFrom, reviewTimeTo, reviews, 12, 6),
			analyzer.ReviewCustomerExpectations(siteCode, targetASINs, reviewTimeFrom, reviewTimeTo, reviews, 12, 6),
			analyzer.ReviewRatingOptimization(siteCode, targetASINs, reviewTimeFrom, reviewTimeTo, reviews, 25, 5),
		)
	}
	if len(listingASINs) > 0 {
		computed = append(computed, analyzer.MarketProductDetails(siteCode, targetASINs, competitorASINs, listings, capturedDay, 120))
	}
	if len(keywords) > 0 {
		computed = append(computed, analyzer.KeywordDetails(siteCode, keywords, targetASINs, itemsByKeyword, capturedDay, 8, 20))
	}

	jh.failedStage = "persisting"
	if err := p.Store.UpdateVocJobStatus(ctx, job.JobID, model.VocPersisting, "persisting", "", "", ""); err != nil {
		return fmt.Errorf("voc: transition to persisting: %w", err)
	}

	for _, r := range computed {
		p.enrich(ctx, r.ModuleCode, r.Payload)
		if err := p.persistModule(ctx, job.JobID, r.ModuleCode, r.Payload, r.Evidence); err != nil {
			return fmt.Errorf("voc: persist %s: %w", r.ModuleCode, err)
		}
	}

	outputs, err := p.Store.ListVocOutputs(ctx, job.JobID)
	if err != nil {
		return fmt.Errorf("voc: list outputs for report: %w", err)
	}
	evidenceCounts, err := p.Store.CountVocEvidence(ctx, job.JobID)
	if err != nil {
		return fmt.Errorf("voc: count evidence for report: %w", err)
	}
	report := analyzer.BuildReportV1(outputs, evidenceCounts)
	p.enrich(ctx, report.ModuleCode, report.Payload)
	if err := p.Store.UpsertVocReport(ctx, job.JobID, "v1", report.Payload, reportMeta(report.Payload)); err != nil {
		return fmt.Errorf("voc: upsert report.v1: %w", err)
	}

	if err := p.Store.UpdateVocJobStatus(ctx, job.JobID, model.VocDone, "done", "", "", ""); err != nil {
		return fmt.Errorf("voc: transition to done: %w", err)
	}
	return nil
}

// persistModule writes a module's output then its evidence, strictly in
// upsert -> clear -> insert order so evidence is never visible for an
// output that has not been written yet.
func (p *Pipeline) persistModule(ctx context.Context, jobID int64, moduleCode string, payload map[string]interface{}, evidence []model.VocEvidence) error {
	if err := p.Store.UpsertVocOutput(ctx, jobID, moduleCode, payload, 1); err != nil {
		return err
	}
	if err := p.Store.ClearVocEvidence(ctx, jobID, moduleCode); err != nil {
		return err
	}
	return p.Store.InsertVocEvidenceMany(ctx, jobID, moduleCode, evidence)
}

// enrich best-effort annotates payload["meta"]["ai"]; it never returns an
// error to its caller because LLM failure must never change pipeline
// status, only skip the annotation.
func (p *Pipeline) enrich(ctx context.Context, moduleCode string, payload map[string]interface{}) {
	if p.AI == nil {
		return
	}
	ai, err := p.AI.Enrich(ctx, moduleCode, payload)
	if err != nil {
		klog.V(2).InfoS("voc AI enrichment skipped", "module", moduleCode, "err", err)
		return
	}
	meta, _ := payload["meta"].(map[string]interface{})
	if meta == nil {
		meta = map[string]interface{}{}
		payload["meta"] = meta
	}
	meta["ai"] = ai
}

func reportMeta(payload map[string]interface{}) map[string]interface{} {
	if m, ok := payload["meta"].(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}

func buildDebugDatasets(siteCode string, asins, keywords []string, reviews []resultsdb.ReviewRow, listings []resultsdb.ListingSnapshot, itemsByKeyword map[string][]resultsdb.KeywordSERPRow, reviewTimeFrom, reviewTimeTo int64) map[string]interface{} {
	keywordCounts := map[string]interface{}{}
	for kw, items := range itemsByKeyword {
		keywordCounts[kw] = len(items)
	}
	return map[string]interface{}{
		"site_code": siteCode,
		"asins":     asins,
		"keywords":  keywords,
		"datasets": map[string]interface{}{
			"reviews": map[string]interface{}{
				"count": len(reviews), "time_from": reviewTimeFrom, "time_to": reviewTimeTo,
			},
			"listings": map[string]interface{}{"count": len(listings)},
			"keyword_serp": map[string]interface{}{"counts_by_keyword": keywordCounts},
		},
	}
}

func stringOr(v interface{}, def string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}

func stringSlice(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		if ss, ok := v.([]string); ok {
			return ss
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, x := range raw {
		if s, ok := x.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func intOr(v interface{}, def int) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return def
	}
}
