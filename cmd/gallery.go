package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wardrobe-labs/outfitter/internal/images"
)

func newGalleryCmd(opts *rootOptions) *cobra.Command {
	var outputDir string
	var concurrency int

	cmd := &cobra.Command{
		Use:   "gallery",
		Short: "Download the wardrobe images",
		Long: `Downloads the image of every item in the saved wardrobe. Images that were
already downloaded are skipped.`,
		Example: `  outfitter gallery --output ./wardrobe --concurrency 8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := newStore(opts.cfg)
			if err != nil {
				return err
			}
			items, err := store.LoadCollection()
			if err != nil {
				return fmt.Errorf("failed to load wardrobe: %w", err)
			}

			if outputDir == "" {
				outputDir = filepath.Join(store.Dir(), "images")
			}

			fetcher := images.NewFetcher()
			fetcher.Concurrency = concurrency
			results, err := fetcher.DownloadGallery(cmd.Context(), items, outputDir)
			if err != nil {
				return err
			}

			downloaded, skipped, failed := 0, 0, 0
			for _, r := range results {
				switch {
				case r.Err != nil:
					failed++
				case r.Skipped:
					skipped++
				default:
					downloaded++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Downloaded %d, skipped %d, failed %d images into %s\n", downloaded, skipped, failed, outputDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&outputDir, "output", "", "Directory for images (defaults to <data dir>/images)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Number of parallel downloads")

	return cmd
}
