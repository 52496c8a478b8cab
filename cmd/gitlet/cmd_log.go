package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/odvcencio/gitlet/pkg/object"
	"github.com/spf13/cobra"
)

func newLogCmd() *cobra.Command {
	var oneline bool
	var limit int

	cmd := &cobra.Command{
		Use:   "log [revision]",
		Short: "Show first-parent commit history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			rev := "HEAD"
			if len(args) == 1 {
				rev = args[0]
			}
			start, err := resolveRevision(r, rev)
			if err != nil {
				return err
			}
			entries, err := r.Log(start, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, e := range entries {
				c := e.Commit
				subject, _, _ := strings.Cut(strings.TrimSpace(c.Message), "\n")
				if oneline {
					fmt.Fprintf(out, "%s %s\n", e.Hash.Short(), subject)
					continue
				}
				fmt.Fprintf(out, "commit %s\n", e.Hash)
				if len(c.Parents) > 1 {
					fmt.Fprintf(out, "Merge: %s\n", joinShort(c.Parents))
				}
				fmt.Fprintf(out, "Author: %s\n", c.Author)
				fmt.Fprintf(out, "Date:   %s %s\n", time.Unix(c.Timestamp, 0).UTC().Format("Mon Jan 2 15:04:05 2006"), c.AuthorTimezone)
				fmt.Fprintln(out)
				for _, line := range strings.Split(strings.TrimRight(c.Message, "\n"), "\n") {
					fmt.Fprintf(out, "    %s\n", line)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&oneline, "oneline", false, "show each commit on a single line")
	cmd.Flags().IntVarP(&limit, "max-count", "n", 0, "limit the number of commits shown")
	return cmd
}

func joinShort(hashes []object.Hash) string {
	parts := make([]string, len(hashes))
	for i, h := range hashes {
		parts[i] = h.Short()
	}
	return strings.Join(parts, " ")
}
