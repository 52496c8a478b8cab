package main

import (
	"fmt"
	"io"
	"os"

	"github.com/odvcencio/gitlet/pkg/object"
	"github.com/spf13/cobra"
)

func newHashObjectCmd() *cobra.Command {
	var write, stdin bool
	var kind string

	cmd := &cobra.Command{
		Use:   "hash-object [-w] [-t <type>] [--stdin | <file>...]",
		Short: "Compute object ids and optionally store the objects",
		RunE: func(cmd *cobra.Command, args []string) error {
			objType := object.ObjectType(kind)
			if !objType.Valid() {
				return fmt.Errorf("invalid object type %q", kind)
			}
			if stdin == (len(args) > 0) {
				return fmt.Errorf("give either --stdin or at least one file")
			}

			var inputs [][]byte
			if stdin {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				inputs = append(inputs, data)
			}
			for _, name := range args {
				data, err := os.ReadFile(name)
				if err != nil {
					return err
				}
				inputs = append(inputs, data)
			}

			var store *object.Store
			if write {
				r, err := openRepo()
				if err != nil {
					return err
				}
				defer r.Close()
				store = r.Store
			}

			out := cmd.OutOrStdout()
			for _, data := range inputs {
				h := object.HashObject(objType, data)
				if store != nil {
					var err error
					if h, err = store.Write(objType, data); err != nil {
						return err
					}
				}
				fmt.Fprintln(out, h)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "write the object into the object store")
	cmd.Flags().BoolVar(&stdin, "stdin", false, "read the object from standard input")
	cmd.Flags().StringVarP(&kind, "type", "t", string(object.TypeBlob), "object type")
	return cmd
}
