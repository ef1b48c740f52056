package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wardrobe-labs/outfitter/internal/normalize"
)

func newNormalizeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Rebuild the wardrobe from the saved raw purchases",
		Long: `Re-runs normalization over the raw purchase file from the last harvest and
overwrites the normalized wardrobe snapshot.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := newStore(opts.cfg)
			if err != nil {
				return err
			}

			records, err := store.LoadRaw()
			if err != nil {
				return fmt.Errorf("failed to load raw purchases: %w", err)
			}

			collection, diag, err := normalize.NewService(store).Run(records)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Records:        %d\n", diag.Total)
			fmt.Fprintf(out, "Kept:           %d\n", diag.Kept)
			fmt.Fprintf(out, "Duplicates:     %d\n", diag.Duplicates)
			fmt.Fprintf(out, "Missing image:  %d\n", diag.MissingImage)
			fmt.Fprintf(out, "Invalid image:  %d\n", diag.InvalidImage)
			fmt.Fprintf(out, "Saved %d items to %s\n", collection.Len(), store.ItemsPath())
			return nil
		},
	}

	return cmd
}
