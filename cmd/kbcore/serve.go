package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"github.com/yaccii-voc/kbcore/internal/config"
	"github.com/yaccii-voc/kbcore/internal/spider"
)

// ServeOptions contains configuration for the HTTP listener.
//
// The specification's Non-goals treat general HTTP routing, auth, and file
// upload transport as fixed external collaborators; the one HTTP surface
// this service itself owns is the spider callback receiver.
type ServeOptions struct {
	Addr string
}

func NewServeOptions() *ServeOptions {
	return &ServeOptions{Addr: ":8080"}
}

func (o *ServeOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Addr, "addr", o.Addr, "Address to listen on for the spider callback receiver.")
}

// NewServeCommand creates the serve subcommand.
func NewServeCommand() *cobra.Command {
	options := NewServeOptions()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the spider callback HTTP receiver",
		Long: `Start the HTTP listener for the one inbound surface this service owns:
the spider callback at /voc/spider/callback/{job_id} (plus the legacy path
without a job_id segment). Runs until the process receives SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunServe(cmd.Context(), options)
		},
	}

	options.AddFlags(cmd.Flags())
	return cmd
}

// RunServe builds the store and starts the HTTP server.
func RunServe(ctx context.Context, options *ServeOptions) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("serve: load config: %w", err)
	}

	st, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	receiver := &spider.CallbackReceiver{Store: st}

	mux := http.NewServeMux()
	mux.Handle("/voc/spider/callback", receiver)
	mux.Handle("/voc/spider/callback/", receiver)

	srv := &http.Server{
		Addr:         options.Addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		klog.InfoS("serve: listening", "addr", options.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		klog.InfoS("serve: shutting down")
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("serve: listen: %w", err)
	}
}
