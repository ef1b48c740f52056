package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/wardrobe-labs/outfitter/internal/config"
)

type rootOptions struct {
	configPath string
	verbose    bool
	cfg        *config.Config
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "outfitter",
		Short: "Outfit recommendations from your own purchase history",
		Long: `Outfitter logs into your shopping account in a real browser, harvests the
clothes you bought, normalizes them into a wardrobe and asks a language model
to put an outfit together from it.

Run "outfitter serve" for the HTTP interface or "outfitter run" for a one-shot
login, harvest and recommendation from the terminal.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			level := slog.LevelInfo
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultPath, "Path to YAML configuration file")
	cmd.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "Verbose logging")

	// Add subcommands
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newRecommendCmd(opts))
	cmd.AddCommand(newNormalizeCmd(opts))
	cmd.AddCommand(newModelsCmd(opts))
	cmd.AddCommand(newGalleryCmd(opts))

	return cmd
}
