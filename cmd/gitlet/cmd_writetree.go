package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newWriteTreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "write-tree",
		Short: "Create tree objects from the working directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			h, err := r.WriteTree()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	}
}
