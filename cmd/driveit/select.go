package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var selectAt string

var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "Process due routes once and print a summary",
	RunE:  selectOnce,
}

func init() {
	selectCmd.Flags().StringVar(&selectAt, "at", "", "reference time (RFC3339), defaults to now")
	rootCmd.AddCommand(selectCmd)
}

func selectOnce(cmd *cobra.Command, args []string) error {
	now := time.Now()
	if selectAt != "" {
		t, err := time.Parse(time.RFC3339, selectAt)
		if err != nil {
			return fmt.Errorf("--at: %w", err)
		}
		now = t
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	_, summary, err := a.paths.ProcessDue(ctx, now)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
