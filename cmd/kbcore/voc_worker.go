package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"github.com/yaccii-voc/kbcore/internal/config"
	"github.com/yaccii-voc/kbcore/internal/lease"
	"github.com/yaccii-voc/kbcore/internal/llm"
	"github.com/yaccii-voc/kbcore/internal/notify"
	"github.com/yaccii-voc/kbcore/internal/voc"
)

// VocWorkerOptions contains configuration for the VOC worker pool.
type VocWorkerOptions struct {
	Concurrency int
}

func NewVocWorkerOptions() *VocWorkerOptions {
	return &VocWorkerOptions{Concurrency: 2}
}

func (o *VocWorkerOptions) AddFlags(fs *pflag.FlagSet) {
	fs.IntVar(&o.Concurrency, "concurrency", o.Concurrency, "Number of concurrent VOC worker goroutines.")
}

// NewVocWorkerCommand creates the voc-worker subcommand.
func NewVocWorkerCommand() *cobra.Command {
	options := NewVocWorkerOptions()

	cmd := &cobra.Command{
		Use:   "voc-worker",
		Short: "Run the VocPipeline worker pool",
		Long: `Run the VOC worker pool: claim VocJobs, load the already-crawled
marketplace datasets from the results database, run the module analyzers,
and persist outputs, evidence, and the report. Runs until the process
receives SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunVocWorker(cmd.Context(), options)
		},
	}

	options.AddFlags(cmd.Flags())
	return cmd
}

// RunVocWorker drives the VOC worker pool to completion (i.e. until
// cancelled).
func RunVocWorker(ctx context.Context, options *VocWorkerOptions) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("voc-worker: load config: %w", err)
	}

	st, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	results, err := buildResultsReader(ctx, cfg)
	if err != nil {
		return fmt.Errorf("voc-worker: build results reader: %w", err)
	}
	if results == nil {
		return fmt.Errorf("voc-worker: SPIDER_DB_URL is required")
	}
	defer results.Close()

	natsConn, err := notify.Dial(ctx, cfg.NATSURL)
	if err != nil {
		klog.ErrorS(err, "voc-worker: NATS dial failed, continuing without ready notifications")
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	pipeline := &voc.Pipeline{
		Store:   st,
		Results: results,
		AI:      llm.NewSummarizer(cfg),
		Notify:  notify.NewPublisher(natsConn),
	}

	claimer := &voc.Claimer{Store: st}
	opts := lease.DefaultVocOptions(options.Concurrency)
	pool := lease.NewPool(opts, claimer, pipeline.Run)

	klog.InfoS("voc-worker: starting", "concurrency", options.Concurrency, "llmEnabled", cfg.LLMEnabled)
	pool.Run(ctx)
	klog.InfoS("voc-worker: stopped")
	return nil
}
