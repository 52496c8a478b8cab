package main

import (
	"fmt"
	"strings"

	"github.com/odvcencio/gitlet/pkg/config"
	"github.com/odvcencio/gitlet/pkg/object"
	"github.com/odvcencio/gitlet/pkg/repo"
	"github.com/spf13/cobra"
)

func newCommitTreeCmd() *cobra.Command {
	var parents []string
	var messages []string
	var signKey string
	var sign bool

	cmd := &cobra.Command{
		Use:   "commit-tree <tree> [-p <parent>]... -m <message> [--sign-key <path>]",
		Short: "Create a commit object from a tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(messages) == 0 {
				return fmt.Errorf("a commit message is required (-m)")
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			tree, err := resolveRevision(r, args[0])
			if err != nil {
				return err
			}
			if tree, err = peelTo(r.Store, tree, object.TypeTree); err != nil {
				return err
			}
			opts := repo.CommitTreeOptions{
				Tree:    tree,
				Author:  cfg.Identity(),
				Message: strings.Join(messages, "\n\n"),
			}
			for _, p := range parents {
				h, err := resolveRevision(r, p)
				if err != nil {
					return err
				}
				opts.Parents = append(opts.Parents, h)
			}
			if sign || strings.TrimSpace(signKey) != "" {
				signer, _, err := newSSHCommitSigner(signKey)
				if err != nil {
					return err
				}
				opts.Signer = signer
			}

			h, err := r.CommitTree(opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&parents, "parent", "p", nil, "parent commit (repeatable)")
	cmd.Flags().StringArrayVarP(&messages, "message", "m", nil, "commit message (repeatable, joined as paragraphs)")
	cmd.Flags().StringVar(&signKey, "sign-key", "", "SSH private key used to sign the commit")
	cmd.Flags().BoolVarP(&sign, "sign", "S", false, "sign with the default SSH key")
	return cmd
}
