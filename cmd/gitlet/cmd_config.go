package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	var list, unset bool

	cmd := &cobra.Command{
		Use:   "config [--list | --unset <key> | <key> [value]]",
		Short: "Get and set repository options in .git/config",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()
			cfg, err := r.ReadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			switch {
			case list:
				for _, e := range cfg.Entries() {
					fmt.Fprintln(out, e)
				}
				return nil
			case unset:
				if len(args) != 1 {
					return fmt.Errorf("--unset takes exactly one key")
				}
				cfg.Unset(args[0])
				return r.WriteConfig(cfg)
			case len(args) == 1:
				v, ok := cfg.Get(args[0])
				if !ok {
					return fmt.Errorf("config key %q not set", args[0])
				}
				fmt.Fprintln(out, v)
				return nil
			case len(args) == 2:
				if err := cfg.Set(args[0], args[1]); err != nil {
					return err
				}
				return r.WriteConfig(cfg)
			default:
				return fmt.Errorf("a key is required")
			}
		},
	}
	cmd.Flags().BoolVarP(&list, "list", "l", false, "list all options")
	cmd.Flags().BoolVar(&unset, "unset", false, "remove an option")
	return cmd
}
