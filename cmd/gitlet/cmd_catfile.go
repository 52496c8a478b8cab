package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/odvcencio/gitlet/pkg/object"
	"github.com/spf13/cobra"
)

func newCatFileCmd() *cobra.Command {
	var pretty, showType, showSize bool

	cmd := &cobra.Command{
		Use:   "cat-file (-p | -t | -s) <object>",
		Short: "Print the content, type or size of an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n := 0
			for _, set := range []bool{pretty, showType, showSize} {
				if set {
					n++
				}
			}
			if n != 1 {
				return fmt.Errorf("exactly one of -p, -t or -s is required")
			}

			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			h, err := resolveRevision(r, args[0])
			if err != nil {
				return err
			}
			typ, data, err := r.Store.Read(h)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case showType:
				fmt.Fprintln(out, typ)
			case showSize:
				fmt.Fprintln(out, len(data))
			case typ == object.TypeTree:
				return printTree(out, data)
			default:
				_, err = out.Write(data)
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&pretty, "pretty", "p", false, "pretty-print the object's content")
	cmd.Flags().BoolVarP(&showType, "type", "t", false, "show the object's type")
	cmd.Flags().BoolVarP(&showSize, "size", "s", false, "show the object's size")
	return cmd
}

// printTree lists a tree payload sorted by name, git-style.
func printTree(w io.Writer, data []byte) error {
	tr, err := object.UnmarshalTree(data)
	if err != nil {
		return err
	}
	object.SortTreeEntries(tr.Entries)
	for _, e := range tr.Entries {
		fmt.Fprintf(w, "%s %s %s\t%s\n", displayMode(e.Mode), entryType(e), e.Hash, e.Name)
	}
	return nil
}

// displayMode pads a tree mode to six digits ("40000" -> "040000").
func displayMode(mode string) string {
	if len(mode) >= 6 {
		return mode
	}
	return strings.Repeat("0", 6-len(mode)) + mode
}

func entryType(e object.TreeEntry) object.ObjectType {
	switch e.Mode {
	case object.TreeModeDir:
		return object.TypeTree
	case object.TreeModeGitlink:
		return object.TypeCommit
	default:
		return object.TypeBlob
	}
}
