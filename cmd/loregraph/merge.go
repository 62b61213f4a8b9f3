package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge <primary> <secondary>",
		Short: "Merge one entity into another",
		Long: `Folds the secondary entity into the primary one. The secondary's names
become aliases, its relationships move to the primary, and it is deleted.

Examples:
  loregraph merge -c vox-machina Grog "Grog Strongjaw"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withCampaignDeps(ctx, func(d *Deps) error {
				primary, err := resolveEntity(ctx, d.EntityHandler, globalCampaign, args[0])
				if err != nil {
					return err
				}
				secondary, err := resolveEntity(ctx, d.EntityHandler, globalCampaign, args[1])
				if err != nil {
					return err
				}

				merged, err := d.EntityHandler.HandleMerge(ctx, primary.ID, secondary.ID)
				if err != nil {
					return fmt.Errorf("merging entities: %w", err)
				}
				fmt.Printf("Merged %s into %s\n", secondary.Name, merged.Name)
				if len(merged.Aliases) > 0 {
					fmt.Printf("  aliases: %v\n", merged.Aliases)
				}
				return nil
			})
		},
	}
}
