package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"github.com/yaccii-voc/kbcore/internal/chunk"
	"github.com/yaccii-voc/kbcore/internal/config"
	"github.com/yaccii-voc/kbcore/internal/ingest"
	"github.com/yaccii-voc/kbcore/internal/lease"
)

// IngestWorkerOptions contains configuration for the ingest worker pool.
type IngestWorkerOptions struct {
	Concurrency int
	MaxRetries  int
}

func NewIngestWorkerOptions() *IngestWorkerOptions {
	return &IngestWorkerOptions{Concurrency: 4, MaxRetries: 3}
}

func (o *IngestWorkerOptions) AddFlags(fs *pflag.FlagSet) {
	fs.IntVar(&o.Concurrency, "concurrency", o.Concurrency, "Number of concurrent ingest worker goroutines.")
	fs.IntVar(&o.MaxRetries, "max-retries", o.MaxRetries, "Max retry attempts for a transient ingest failure.")
}

// NewIngestWorkerCommand creates the ingest-worker subcommand.
func NewIngestWorkerCommand() *cobra.Command {
	options := NewIngestWorkerOptions()

	cmd := &cobra.Command{
		Use:   "ingest-worker",
		Short: "Run the IngestPipeline worker pool",
		Long: `Run the ingest worker pool: claim IngestJobs, parse and chunk the
stored document bytes, vectorize and text-index the chunks, and promote the
new index_version. Runs until the process receives SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunIngestWorker(cmd.Context(), options)
		},
	}

	options.AddFlags(cmd.Flags())
	return cmd
}

// RunIngestWorker drives the ingest worker pool to completion (i.e. until
// cancelled), following reindex_worker.go's RunReindexWorker shape.
func RunIngestWorker(ctx context.Context, options *IngestWorkerOptions) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("ingest-worker: load config: %w", err)
	}

	st, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	blobs, err := buildBlobstore(cfg)
	if err != nil {
		return fmt.Errorf("ingest-worker: build blobstore: %w", err)
	}
	vector, err := buildVectorIndex(cfg)
	if err != nil {
		return fmt.Errorf("ingest-worker: build vector index: %w", err)
	}
	text, err := buildTextIndex(cfg)
	if err != nil {
		return fmt.Errorf("ingest-worker: build text index: %w", err)
	}

	pipeline := &ingest.Pipeline{
		Store:      st,
		Blobs:      blobs,
		Router:     buildParserRouter(),
		Chunker:    chunk.New(),
		Embedder:   buildEmbedder(cfg),
		Vector:     vector,
		Text:       text,
		MaxRetries: options.MaxRetries,
	}

	claimer := &ingest.Claimer{Store: st}
	opts := lease.DefaultIngestOptions(options.Concurrency)
	pool := lease.NewPool(opts, claimer, pipeline.Run)

	klog.InfoS("ingest-worker: starting", "concurrency", options.Concurrency)
	pool.Run(ctx)
	klog.InfoS("ingest-worker: stopped")
	return nil
}
