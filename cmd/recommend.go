package cmd

import (
	"github.com/spf13/cobra"
)

func newRecommendCmd(opts *rootOptions) *cobra.Command {
	var flags requestFlags

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Recommend an outfit from the saved wardrobe",
		Long: `Loads the normalized wardrobe saved by the last harvest and asks the model
for an outfit. No browser session is needed.`,
		Example: `  outfitter recommend --style minimalist --temperature 25`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := newPipeline(opts.cfg)
			if err != nil {
				return err
			}

			if err := statusErr(p.LoadSnapshot()); err != nil {
				return err
			}

			result, status := p.Recommend(cmd.Context(), flags.request(cmd))
			printRecommendation(cmd.OutOrStdout(), result, status)
			return statusErr(status)
		},
	}

	flags.register(cmd)

	return cmd
}
