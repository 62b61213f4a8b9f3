package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRelateCmd() *cobra.Command {
	var reverseLabel string

	cmd := &cobra.Command{
		Use:   "relate <source-entity> <type> <target-entity>",
		Short: "Create a relationship between two entities",
		Long: `Creates a directed relationship between two existing entities.
Entities can be given by ID, name or alias. The type is normalized to
snake_case.

Examples:
  loregraph relate -c vox-machina Grog ally_of Pike
  loregraph relate -c vox-machina Vex "sibling of" Vax --reverse "sibling of"`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelate(cmd, args, reverseLabel)
		},
	}

	cmd.Flags().StringVar(&reverseLabel, "reverse", "", "Label read from the target's side")

	cmd.AddCommand(newRelateDeleteCmd())

	return cmd
}

func runRelate(cmd *cobra.Command, args []string, reverseLabel string) error {
	ctx := cmd.Context()

	return withCampaignDeps(ctx, func(d *Deps) error {
		source, err := resolveEntity(ctx, d.EntityHandler, globalCampaign, args[0])
		if err != nil {
			return err
		}
		target, err := resolveEntity(ctx, d.EntityHandler, globalCampaign, args[2])
		if err != nil {
			return err
		}

		rel, err := d.RelationshipHandler.HandleCreate(ctx, source.ID, args[1], target.ID, reverseLabel)
		if err != nil {
			return fmt.Errorf("creating relationship: %w", err)
		}

		fmt.Printf("Created relationship: %s\n", rel.ID)
		fmt.Printf("  %s -[%s]-> %s\n", source.Name, rel.Type, target.Name)
		return nil
	})
}

func newRelateDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <relationship-id>",
		Short: "Delete a relationship",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, func(d *Deps) error {
				if err := d.RelationshipHandler.HandleDelete(ctx, args[0]); err != nil {
					return fmt.Errorf("deleting relationship: %w", err)
				}
				fmt.Printf("Deleted relationship: %s\n", args[0])
				return nil
			})
		},
	}
}
