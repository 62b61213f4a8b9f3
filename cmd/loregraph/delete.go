package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <entity>",
		Short: "Delete an entity",
		Long:  "Deletes an entity with its relationships, versions and indexed chunks.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withCampaignDeps(ctx, func(d *Deps) error {
				entity, err := resolveEntity(ctx, d.EntityHandler, globalCampaign, args[0])
				if err != nil {
					return err
				}
				if err := d.EntityHandler.HandleDelete(ctx, entity.ID); err != nil {
					return fmt.Errorf("deleting entity: %w", err)
				}
				fmt.Printf("Deleted %s (%s)\n", entity.Name, entity.ID)
				return nil
			})
		},
	}
}
