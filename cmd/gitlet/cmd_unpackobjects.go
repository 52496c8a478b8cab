package main

import (
	"fmt"
	"io"
	"os"

	"github.com/odvcencio/gitlet/pkg/object"
	"github.com/spf13/cobra"
)

func newUnpackObjectsCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "unpack-objects [pack-file]",
		Short: "Resolve a pack stream into the object store",
		Long:  "unpack-objects reads a pack from the named file or standard input and stores\nevery object it contains, applying ref-deltas against the pack or the store.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			pack, err := object.ReadPackFromReader(in)
			if err != nil {
				return err
			}
			res, err := object.ResolvePack(r.Store, pack.Entries)
			if err != nil {
				return err
			}
			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "Unpacked %d objects (%d deltas)\n", len(res.Entries), res.Deltas)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print nothing on success")
	return cmd
}
