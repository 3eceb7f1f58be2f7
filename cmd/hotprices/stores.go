package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hotprices/internal/report"
)

func newStoresCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stores",
		Short: "List the registered store adapters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := global.newApp(cmd)
			if err != nil {
				return err
			}

			table := report.Table{Header: []string{"Store", "State"}}

			for _, name := range a.registry.Names() {
				state := "enabled"
				if !a.cfg.StoreEnabled(name) {
					state = "disabled"
				}

				table.AddRow(name, state)
			}

			_, err = fmt.Fprintln(a.out, table.String())

			return err
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hotprices %s\n", Version)
		},
	}
}
