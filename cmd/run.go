package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var flags requestFlags
	var lookback int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Log in, harvest purchases and recommend an outfit",
		Long: `Runs the whole pipeline in one process: opens a browser for you to log in,
harvests purchases from the lookback window, normalizes them into a wardrobe
and asks the model for an outfit.`,
		Example: `  # Recommend with the default model
  outfitter run --style "smart casual" --temperature 12 --mood relaxed

  # Harvest the last 90 days and use another model
  outfitter run --lookback 90 --model gpt-4o-mini --style sporty`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := newPipeline(opts.cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := p.Close(); err != nil {
					slog.Warn("Failed to close session", "err", err)
				}
			}()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "Complete the login in the browser window...")
			status := p.StartSession(ctx)
			if err := statusErr(status); err != nil {
				return err
			}

			gallery, status := p.HarvestAndNormalize(ctx, lookback)
			if err := statusErr(status); err != nil {
				return err
			}
			fmt.Fprintf(out, "%s\nWardrobe has %d items\n\n", status.Message, len(gallery))

			result, status := p.Recommend(ctx, flags.request(cmd))
			printRecommendation(out, result, status)
			return statusErr(status)
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVar(&lookback, "lookback", 0, "Days of purchase history to harvest (defaults to the configured lookback)")

	return cmd
}
