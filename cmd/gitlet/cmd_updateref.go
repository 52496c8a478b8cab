package main

import (
	"github.com/odvcencio/gitlet/pkg/object"
	"github.com/spf13/cobra"
)

func newUpdateRefCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "update-ref <ref> <new> [<old>]",
		Short: "Point a ref at an object, optionally only if it still holds <old>",
		Long: "update-ref writes <new> to a full ref name such as refs/heads/main.\n" +
			"When <old> is given the update fails unless the ref currently holds it;\n" +
			"an <old> of all zeros requires the ref to not exist yet.",
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			h, err := resolveRevision(r, args[1])
			if err != nil {
				return err
			}
			if reason == "" {
				reason = "update-ref"
			}
			if len(args) == 2 {
				return r.UpdateRef(args[0], h, reason)
			}

			old, err := object.ParseHash(args[2])
			if err != nil {
				return err
			}
			if old == object.ZeroHash {
				old = ""
			}
			return r.UpdateRefCAS(args[0], h, old, reason)
		},
	}
	cmd.Flags().StringVarP(&reason, "message", "m", "", "reason recorded in the reflog")
	return cmd
}
