package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for tagscope.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tagscope",
		Short: "Audit the marketing tag stack of a web page",
		Long: `tagscope loads a page in a headless browser, resolves its cookie consent
banner, and reports the Google Tag Manager containers, advertising pixels and
analytics platforms it finds, together with performance, privacy, tracking
and compliance scores.

Run "tagscope serve" for the HTTP API or "tagscope scan <url>" for a one-off
scan from the terminal.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: config.yaml in the XDG config directory)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
