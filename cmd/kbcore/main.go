package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/yaccii-voc/kbcore/internal/version"
)

func main() {
	klog.InitFlags(nil)
	cmd := NewKBCoreCommand()
	if err := cmd.Execute(); err != nil {
		klog.ErrorS(err, "kbcore: fatal")
		os.Exit(1)
	}
}

// NewKBCoreCommand creates the root command with subcommands for the
// knowledge-base/VOC backend, following cmd/activity/main.go's
// NewActivityServerCommand shape: one root command, one subcommand per
// operating mode.
func NewKBCoreCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kbcore",
		Short: "Multi-tenant knowledge base and VOC analysis backend",
		Long: `kbcore ingests documents into a hybrid-searchable knowledge base and
runs voice-of-customer analysis over externally crawled marketplace data.

It has no reconcile loop of its own: serve exposes the spider callback
receiver, mcp exposes the retriever as an MCP tool over stdio, and
ingest-worker and voc-worker each drive one lease-scheduled pipeline to
completion.`,
	}

	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewIngestWorkerCommand())
	cmd.AddCommand(NewVocWorkerCommand())
	cmd.AddCommand(NewMCPCommand())
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// NewVersionCommand creates the version subcommand to display build
// information.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Get()
			fmt.Printf("kbcore\n")
			fmt.Printf("  Version:     %s\n", info.Version)
			fmt.Printf("  Git Commit:  %s\n", info.GitCommit)
			fmt.Printf("  Git Tree:    %s\n", info.GitTreeState)
			fmt.Printf("  Build Date:  %s\n", info.BuildDate)
			fmt.Printf("  Go Version:  %s\n", info.GoVersion)
			fmt.Printf("  Go Compiler: %s\n", info.Compiler)
			fmt.Printf("  Platform:    %s\n", info.Platform)
		},
	}
}
