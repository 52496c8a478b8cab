package main

import (
	"fmt"
	"os"

	"github.com/odvcencio/gitlet/pkg/remote"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "gitlet:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gitlet",
		Short:         "A small git-compatible object store and smart-HTTP clone client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newCatFileCmd())
	root.AddCommand(newHashObjectCmd())
	root.AddCommand(newLsTreeCmd())
	root.AddCommand(newWriteTreeCmd())
	root.AddCommand(newCommitTreeCmd())
	root.AddCommand(newCloneCmd())
	root.AddCommand(newLogCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newVerifyCmd())
	root.AddCommand(newVerifyCommitCmd())
	root.AddCommand(newUpdateRefCmd())
	root.AddCommand(newReflogCmd())
	root.AddCommand(newUnpackObjectsCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gitlet %s\n", remote.Version)
		},
	}
}
