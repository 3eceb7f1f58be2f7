package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hotprices/pkg/metadata"
)

func newVerifyCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check the published slices against their manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := global.newApp(cmd)
			if err != nil {
				return err
			}

			m, err := metadata.Verify(a.cfg.Paths.DataDir)
			if err != nil {
				fmt.Fprintf(a.out, "❌ %v\n", err)
				return fmt.Errorf("%w: %s", errVerifyFailed, a.cfg.Paths.DataDir)
			}

			fmt.Fprintf(a.out, "✅ %d files verified (run %s, %s)\n", len(m.Files), m.RunID, m.LastModify.Format("2006-01-02 15:04:05"))

			return nil
		},
	}
}
