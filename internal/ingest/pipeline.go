// Package ingest drives the IngestPipeline: for a claimed IngestJob, parse
// and chunk a document's stored bytes, persist the chunks, vectorize and
// text-index them, then atomically promote the new index_version.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"k8s.io/klog/v2"

	"github.com/yaccii-voc/kbcore/internal/blobstore"
	"github.com/yaccii-voc/kbcore/internal/chunk"
	"github.com/yaccii-voc/kbcore/internal/embed"
	"github.com/yaccii-voc/kbcore/internal/lease"
	"github.com/yaccii-voc/kbcore/internal/model"
	"github.com/yaccii-voc/kbcore/internal/parser"
	"github.com/yaccii-voc/kbcore/internal/store"
	"github.com/yaccii-voc/kbcore/internal/textindex"
	"github.com/yaccii-voc/kbcore/internal/vectorindex"
)

var tracer = otel.Tracer("kbcore-ingest")

const pipelineVersion = "v1"

// Pipeline wires everything the ingest stages need. VectorIndex, TextIndex
// and Embedder are optional: a nil pointer means that index is disabled for
// this deployment and the corresponding stage is skipped entirely, exactly
// as the specification describes retrieval degrading to whichever backends
// are present.
type Pipeline struct {
	Store    *store.JobStore
	Blobs    blobstore.Store
	Router   *parser.Router
	Chunker  *chunk.Chunker
	Embedder embed.Embedder
	Vector   vectorindex.Index
	Text     textindex.Index
	MaxRetries int
}

// Enqueue creates (or, on idempotent replay, returns the existing) ingest
// job for a freshly uploaded or re-processed document.
func (p *Pipeline) Enqueue(ctx context.Context, documentID int64, space string) (*model.IngestJob, error) {
	version, err := p.Store.AllocateIndexVersion(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("ingest: allocate index version: %w", err)
	}
	maxRetries := p.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return p.Store.CreateIngestJob(ctx, documentID, space, pipelineVersion, version, maxRetries)
}

// Run executes one claimed IngestJob end to end, implementing the
// Load/Parse/Chunk/Persist/Vectorize/Index/Promote/cleanup stage sequence.
// It is the lease.Runner passed to lease.NewPool.
func (p *Pipeline) Run(ctx context.Context, j lease.Job) lease.Result {
	jh, ok := j.(*jobHandle)
	if !ok {
		klog.ErrorS(errors.New("ingest: unexpected job type"), "run aborted")
		return lease.Permanent
	}
	ctx, span := tracer.Start(ctx, "IngestPipeline.Run")
	defer span.End()

	job := jh.job
	doc, err := p.Store.GetDocument(ctx, job.DocumentID)
	if err != nil {
		jh.lastErr = err.Error()
		if isRetryableStoreErr(err) {
			return lease.Retryable
		}
		return lease.Permanent
	}
	if doc.Status == model.DocumentDeleted {
		return lease.Permanent
	}

	if err := p.Store.MarkDocumentStatus(ctx, doc.DocumentID, model.DocumentProcessing, ""); err != nil {
		jh.lastErr = err.Error()
		return lease.Retryable
	}

	result := p.runStages(ctx, jh, doc)
	if result != lease.Succeeded {
		_ = p.Store.MarkDocumentStatus(ctx, doc.DocumentID, model.DocumentFailed, jh.lastErr)
	}
	return result
}

func (p *Pipeline) runStages(ctx context.Context, jh *jobHandle, doc *model.Document) lease.Result {
	job := jh.job

	reader, err := loadBlob(ctx, p.Blobs, doc.StorageURI, doc.ContentType, doc.Filename)
	if err != nil {
		jh.lastErr = err.Error()
		return lease.Retryable
	}

	parsed, err := p.Router.Parse(ctx, reader)
	if err != nil {
		jh.lastErr = err.Error()
		if parser.IsRetryable(err) {
			return lease.Retryable
		}
		return lease.Permanent
	}

	chunks := p.Chunker.Chunk(parsed, doc.DocumentID, doc.SpaceCode, job.IndexVersion)
	if len(chunks) == 0 {
		jh.lastErr = "ingest: chunker produced zero chunks"
		return lease.Permanent
	}

	if err := p.Store.ReplaceChunks(ctx, doc.DocumentID, job.IndexVersion, chunks); err != nil {
		jh.lastErr = err.Error()
		if isRetryableStoreErr(err) {
			return lease.Retryable
		}
		return lease.Permanent
	}

	if p.Vector != nil && p.Embedder != nil {
		if err := p.vectorize(ctx, doc, job, chunks); err != nil {
			jh.lastErr = err.Error()
			return lease.Retryable
		}
	}

	if p.Text != nil {
		if err := p.textIndex(ctx, doc, job, chunks); err != nil {
			jh.lastErr = err.Error()
			return lease.Retryable
		}
	}

	if err := p.Store.SetActiveIndexVersion(ctx, doc.DocumentID, job.IndexVersion); err != nil {
		jh.lastErr = err.Error()
		if isRetryableStoreErr(err) {
			return lease.Retryable
		}
		return lease.Permanent
	}
	if err := p.Store.MarkDocumentStatus(ctx, doc.DocumentID, model.DocumentIndexed, ""); err != nil {
		jh.lastErr = err.Error()
		return lease.Retryable
	}

	p.cleanupStaleVersions(ctx, doc, job.IndexVersion)
	return lease.Succeeded
}

func (p *Pipeline) vectorize(ctx context.Context, doc *model.Document, job *model.IngestJob, chunks []model.Chunk) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := p.Embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("ingest: embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("ingest: embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}
	points := make([]vectorindex.Point, len(chunks))
	for i, c := range chunks {
		points[i] = vectorindex.Point{
			ChunkID:      c.ChunkID,
			DocumentID:   c.DocumentID,
			IndexVersion: job.IndexVersion,
			ChunkIndex:   c.ChunkIndex,
			Vector:       vectors[i],
		}
	}
	if err := p.Vector.Upsert(ctx, doc.SpaceCode, points); err != nil {
		return fmt.Errorf("ingest: upsert vectors: %w", err)
	}
	return nil
}

func (p *Pipeline) textIndex(ctx context.Context, doc *model.Document, job *model.IngestJob, chunks []model.Chunk) error {
	docs := make([]textindex.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = textindex.Document{
			ChunkID:      c.ChunkID,
			DocumentID:   c.DocumentID,
			IndexVersion: c.IndexVersion,
			ChunkIndex:   c.ChunkIndex,
			Content:      c.Content,
		}
	}
	if err := p.Text.Upsert(ctx, doc.SpaceCode, docs); err != nil {
		return fmt.Errorf("ingest: upsert text index: %w", err)
	}
	return nil
}

// cleanupStaleVersions is the best-effort, non-fatal post-commit step: it
// never influences the job's result, only logs on failure.
func (p *Pipeline) cleanupStaleVersions(ctx context.Context, doc *model.Document, keepVersion int64) {
	if p.Vector != nil {
		if err := p.Vector.DeleteByDocument(ctx, doc.SpaceCode, doc.DocumentID, keepVersion); err != nil {
			klog.ErrorS(err, "stale vector cleanup failed", "documentID", doc.DocumentID)
		}
	}
	if p.Text != nil {
		if err := p.Text.DeleteByDocument(ctx, doc.SpaceCode, doc.DocumentID, keepVersion); err != nil {
			klog.ErrorS(err, "stale text cleanup failed", "documentID", doc.DocumentID)
		}
	}
	if err := p.Store.DeleteStaleChunkVersions(ctx, doc.DocumentID, keepVersion); err != nil {
		klog.ErrorS(err, "stale chunk cleanup failed", "documentID", doc.DocumentID)
	}
}
