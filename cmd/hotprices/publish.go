package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hotprices/pkg/metadata"
)

func newPublishCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Republish the per-store slices from the persisted snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := global.newApp(cmd)
			if err != nil {
				return err
			}

			files, err := a.snapshots().PublishFromSnapshot(cmd.Context())
			if err != nil {
				return err
			}

			if a.cfg.Publish.Manifest {
				if err := metadata.Write(a.cfg.Paths.DataDir, &metadata.Manifest{Files: files}); err != nil {
					return err
				}
			}

			for _, f := range files {
				fmt.Fprintf(a.out, "📦 %-8s %6d items  %s\n", f.Store, f.Items, f.File)
			}

			return nil
		},
	}
}
