package main

import (
	"github.com/spf13/cobra"
)

func newNavbarCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "navbar FILE",
		Short: "Print the weeks and groups of a saved navbar frame",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readPage(args[0])
			if err != nil {
				return err
			}
			meta, err := newParser().ParseNavbar(raw)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), meta)
		},
	}
}
