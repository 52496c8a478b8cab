package main

import (
	"fmt"

	"github.com/odvcencio/gitlet/pkg/object"
	"github.com/odvcencio/gitlet/pkg/repo"
	"github.com/spf13/cobra"
)

func newLsTreeCmd() *cobra.Command {
	var nameOnly, recursive bool

	cmd := &cobra.Command{
		Use:   "ls-tree [--name-only] [-r] <tree-ish> [name...]",
		Short: "List the contents of a tree object",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			h, err := resolveRevision(r, args[0])
			if err != nil {
				return err
			}
			tree, err := peelTo(r.Store, h, object.TypeTree)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			opts := repo.LsTreeOptions{Recursive: recursive, Names: args[1:]}
			return repo.LsTree(r.Store, tree, opts, func(path string, e object.TreeEntry) bool {
				if nameOnly {
					fmt.Fprintln(out, path)
				} else {
					fmt.Fprintf(out, "%s %s %s\t%s\n", displayMode(e.Mode), entryType(e), e.Hash, path)
				}
				return true
			})
		},
	}
	cmd.Flags().BoolVar(&nameOnly, "name-only", false, "list only entry names")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "recurse into subtrees")
	return cmd
}
