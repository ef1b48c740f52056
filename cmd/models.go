package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newModelsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the selectable models",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Provider: %s\n", opts.cfg.APIHost)
			for _, m := range opts.cfg.Models() {
				marker := " "
				if m == opts.cfg.Model {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s\n", marker, m)
			}
			return nil
		},
	}

	return cmd
}
