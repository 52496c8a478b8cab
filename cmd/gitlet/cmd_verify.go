package main

import (
	"fmt"

	"github.com/odvcencio/gitlet/pkg/object"
	"github.com/spf13/cobra"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [revision...]",
		Short: "Check that every object reachable from refs is present and intact",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			var roots []object.Hash
			for _, rev := range args {
				h, err := resolveRevision(r, rev)
				if err != nil {
					return err
				}
				roots = append(roots, h)
			}
			if len(args) == 0 {
				refs, err := r.ListRefs("")
				if err != nil {
					return err
				}
				for _, ref := range refs {
					roots = append(roots, ref.Hash)
				}
				if h, err := r.ResolveRef("HEAD"); err == nil {
					roots = append(roots, h)
				}
			}

			n, err := r.Store.Verify(roots)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: verified %d object(s) from %d root(s)\n", n, len(roots))
			return nil
		},
	}
}
