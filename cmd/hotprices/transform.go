package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hotprices/internal/pipeline"
	"hotprices/internal/report"
)

type transformOptions struct {
	day        string
	store      string
	reportPath string
}

func newTransformCmd(global *globalOptions) *cobra.Command {
	opts := &transformOptions{}

	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Canonicalize the day's raw data and merge it into the price history",
		Long: `Loads every enabled store's raw files for the day, canonicalizes and deduplicates them,
merges the result with the previous snapshot and publishes the per-store slices.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := global.newApp(cmd)
			if err != nil {
				return err
			}

			return a.transform(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.day, "day", "", "Day to process, YYYY-MM-DD (defaults to today)")
	cmd.Flags().StringVarP(&opts.store, "store", "s", "", "Only process this store")
	cmd.Flags().StringVar(&opts.reportPath, "report", "", "Write a markdown run report to this file ('-' for stdout)")

	return cmd
}

func (a *app) transform(cmd *cobra.Command, opts *transformOptions) error {
	ctx := cmd.Context()

	day := opts.day
	if day == "" {
		day = pipeline.Today()
	}

	p, cleanup, err := a.buildPipeline(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := p.Run(ctx, pipeline.Options{Day: day, Store: opts.store})
	if err != nil {
		return err
	}

	switch opts.reportPath {
	case "":
		fmt.Fprintf(a.out, "✅ %s: %d items in snapshot (run %s)\n", res.Day, res.Total, res.RunID)
	case "-":
		return report.Write(a.out, res)
	default:
		f, err := os.Create(opts.reportPath)
		if err != nil {
			return fmt.Errorf("failed to create report: %w", err)
		}
		defer f.Close()

		if err := report.Write(f, res); err != nil {
			return err
		}

		fmt.Fprintf(a.out, "✅ %s: %d items in snapshot, report written to %s\n", res.Day, res.Total, opts.reportPath)
	}

	return nil
}
