package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/datalytics/console/internal/batch"
)

func newBatchCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Print the guard and default batch for a date",
		Long: "batch prints the batch that access checks use and the batch member forms\n" +
			"preselect for a date (default today), using the configured cutover months.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(false)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			at := time.Now()
			if date != "" {
				at, err = time.Parse(time.DateOnly, date)
				if err != nil {
					return fmt.Errorf("--date must look like 2024-06-15: %w", err)
				}
			}

			guardTok := batch.Current(at, cfg.GuardCutover)
			defaultTok := batch.Current(at, cfg.DefaultCutover)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Date:     %s\n", at.Format(time.DateOnly))
			fmt.Fprintf(out, "  Guard:   %s (cutover %s)\n", guardTok, cfg.GuardCutover)
			fmt.Fprintf(out, "  Default: %s (cutover %s)\n", defaultTok, cfg.DefaultCutover)
			if guardTok != defaultTok {
				fmt.Fprintln(out, "  The two disagree on this date.")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Date to evaluate (YYYY-MM-DD)")
	return cmd
}
