// Package cmd defines the CLI commands for the spindle executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spindle",
		Short: "An asynchronous multi-site crawl scheduler.",
		Long: `spindle schedules crawls over many sites at once: a priority frontier
with fingerprint dedup, per-domain politeness, blocked-response retries, and
checkpoint-based pause/resume. Cancel a running crawl with Ctrl-C and it
checkpoints instead of losing work.`,
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./spindle.yaml)")
	cmd.AddCommand(newCrawlCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
