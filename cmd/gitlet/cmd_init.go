package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/odvcencio/gitlet/pkg/config"
	"github.com/odvcencio/gitlet/pkg/repo"
	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	var backend string
	var branch string

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create an empty repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			if err := os.MkdirAll(abs, 0o755); err != nil {
				return fmt.Errorf("create directory: %w", err)
			}

			if backend == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				backend = cfg.Storage.Backend
			}
			r, err := repo.InitWithOptions(abs, repo.InitOptions{DefaultBranch: branch, ObjectBackend: backend})
			if err != nil {
				return err
			}
			defer r.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Initialized empty repository in %s%c\n", r.GitDir, filepath.Separator)
			return nil
		},
	}
	cmd.Flags().StringVar(&backend, "backend", "", "object backend: loose or pebble (default from config)")
	cmd.Flags().StringVarP(&branch, "initial-branch", "b", "", "name of the initial branch (default main)")
	return cmd
}
