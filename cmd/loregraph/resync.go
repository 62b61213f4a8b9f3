package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newResyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resync [entity]",
		Short: "Re-embed entities",
		Long:  "Rebuilds the indexed chunks of one entity, or of every entity in the campaign.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withCampaignDeps(ctx, func(d *Deps) error {
				var entityID string
				if len(args) == 1 {
					entity, err := resolveEntity(ctx, d.EntityHandler, globalCampaign, args[0])
					if err != nil {
						return err
					}
					entityID = entity.ID
				}

				result, err := d.EntityHandler.HandleResync(ctx, globalCampaign, entityID)
				if err != nil {
					return fmt.Errorf("resyncing: %w", err)
				}
				for _, r := range result.Entities {
					switch {
					case r.Disabled:
						fmt.Printf("  %s: embeddings disabled\n", shortID(r.EntityID))
					case !r.Complete():
						fmt.Printf("  %s: %d/%d chunks stored\n", shortID(r.EntityID), r.Stored, r.Attempted)
					}
				}
				fmt.Printf("%d complete, %d partial\n", result.Complete, result.Partial)
				return nil
			})
		},
	}
}
