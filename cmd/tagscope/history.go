package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/use-agent/tagscope/report"
	"github.com/use-agent/tagscope/store"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List or show recorded scans",
		Long: `History lists recent scans from the local scan history, newest first.
With --id it prints the full stored report of one scan.`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().String("url", "", "Only list scans of this exact URL")
	cmd.Flags().IntP("limit", "n", store.DefaultLimit, "Maximum number of scans to list")
	cmd.Flags().Int64("id", 0, "Show the full report of this scan")
	cmd.Flags().StringP("format", "f", "markdown", "Output format: json or markdown")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	if st == nil {
		return errors.New("scan history is disabled (store.enabled: false)")
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	format, _ := cmd.Flags().GetString("format")

	if id, _ := cmd.Flags().GetInt64("id"); id > 0 {
		result, err := st.Get(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("scan %d not found", id)
		}
		if err != nil {
			return err
		}
		w, err := report.New(format, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		_, err = w.Write(result)
		return err
	}

	url, _ := cmd.Flags().GetString("url")
	limit, _ := cmd.Flags().GetInt("limit")
	entries, err := st.Recent(ctx, url, limit)
	if err != nil {
		return err
	}
	return report.WriteHistory(format, cmd.OutOrStdout(), entries)
}
