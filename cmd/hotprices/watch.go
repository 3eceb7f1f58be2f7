package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"hotprices/internal/pipeline"
	"hotprices/internal/watch"
)

// runner is the part of the pipeline watch mode drives.
type runner interface {
	Run(ctx context.Context, opts pipeline.Options) (*pipeline.RunResult, error)
}

func newWatchCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Re-run transform for today whenever new raw files appear",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := global.newApp(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			p, cleanup, err := a.buildPipeline(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			debounce := time.Duration(a.cfg.Watch.DebounceMs) * time.Millisecond

			w, err := watch.New(a.cfg.Paths.OutputDir, debounce, a.log)
			if err != nil {
				return err
			}

			return w.Run(ctx, func(ctx context.Context, stores []string) error {
				return runChanged(ctx, p, pipeline.Today(), stores)
			})
		},
	}
}

// runChanged runs one store-filtered transform per changed store, so a store
// whose raw files have not landed yet cannot hold back the others.
func runChanged(ctx context.Context, p runner, day string, stores []string) error {
	var (
		failed []string
		errs   []error
	)

	for i, store := range stores {
		if err := ctx.Err(); err != nil {
			failed = append(failed, stores[i:]...)
			errs = append(errs, err)

			break
		}

		if _, err := p.Run(ctx, pipeline.Options{Day: day, Store: store}); err != nil {
			failed = append(failed, store)
			errs = append(errs, fmt.Errorf("%s: %w", store, err))
		}
	}

	if len(errs) == 0 {
		return nil
	}

	return &watch.StoresError{Stores: failed, Err: errors.Join(errs...)}
}
