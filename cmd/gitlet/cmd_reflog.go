package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReflogCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "reflog [ref]",
		Short: "Show ref update history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			ref := ""
			if len(args) == 1 {
				ref = args[0]
			}
			entries, err := r.ReadReflog(ref, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, e := range entries {
				fmt.Fprintf(out, "%s %s@{%d}: %s\n", e.NewHash.Short(), e.Ref, i, e.Reason)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "max-count", "n", 50, "maximum entries to show (0 for all)")
	return cmd
}
