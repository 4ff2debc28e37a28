package main

import (
	"github.com/jonathan/visa-navigator/internal/observability"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List assessments received on this machine",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openLocalStore()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		entries, err := store.ListAssessments(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		observability.NewPrinter(cmd.OutOrStdout()).PrintHistory(entries)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum entries to show (0 for all)")
	rootCmd.AddCommand(historyCmd)
}
