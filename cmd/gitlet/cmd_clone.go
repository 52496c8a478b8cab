package main

import (
	"fmt"
	"io"

	"github.com/odvcencio/gitlet/pkg/config"
	"github.com/odvcencio/gitlet/pkg/repo"
	"github.com/spf13/cobra"
)

func newCloneCmd() *cobra.Command {
	var branch string
	var backend string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "clone <url> [directory]",
		Short: "Clone a branch from a smart-HTTP remote",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			opts := repo.CloneOptions{
				URL:           args[0],
				Branch:        branch,
				Progress:      cmd.ErrOrStderr(),
				ObjectBackend: backend,
				Client:        clientOptions(cfg),
				Identity:      cfg.Identity(),
			}
			if len(args) == 2 {
				opts.Dir = args[1]
			}
			if opts.ObjectBackend == "" {
				opts.ObjectBackend = cfg.Storage.Backend
			}
			if quiet {
				opts.Progress = io.Discard
			}

			res, err := repo.Clone(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer res.Repo.Close()

			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "Checked out %s at %s (%d objects, %d deltas)\n",
					res.Ref, res.Commit.Short(), res.Objects, res.Deltas)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&branch, "branch", "b", "", "branch to clone instead of the remote's default")
	cmd.Flags().StringVar(&backend, "backend", "", "object backend: loose or pebble (default from config)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress output")
	return cmd
}
