package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVerifyCommitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-commit <commit>",
		Short: "Check the SSH signature of a commit",
		Args:  cobra.ExactArgs(1),
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
			c, err := r.Store.ReadCommit(h)
			if err != nil {
				return err
			}
			fingerprint, err := verifySSHCommitSignature(c)
			if err != nil {
				return fmt.Errorf("commit %s: %w", h.Short(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Good signature on %s from key %s\n", h.Short(), fingerprint)
			return nil
		},
	}
}
