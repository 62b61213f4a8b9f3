package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ersonp/lore-graph/internal/application/handlers"
)

func newEntitiesCmd() *cobra.Command {
	var (
		searchQuery string
		limit       int
		offset      int
		viewer      bool
		spotlight   bool
	)

	cmd := &cobra.Command{
		Use:   "entities",
		Short: "List entities in a campaign",
		Long: `List the entities of a campaign.

Use --search to filter by name or alias, --spotlight for a summary.

Examples:
  loregraph entities -c vox-machina
  loregraph entities -c vox-machina --search "Grog"
  loregraph entities -c vox-machina --spotlight`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if spotlight {
				return runSpotlight(cmd, !viewer)
			}
			return runEntities(cmd, searchQuery, limit, offset, !viewer)
		},
	}

	cmd.Flags().StringVar(&searchQuery, "search", "", "Search entities by name")
	cmd.Flags().IntVar(&limit, "limit", DefaultListLimit, "Maximum number of entities to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of entities to skip")
	cmd.Flags().BoolVar(&viewer, "viewer", false, "Hide restricted entities")
	cmd.Flags().BoolVar(&spotlight, "spotlight", false, "Show counts and the most connected entities")

	return cmd
}

func runEntities(cmd *cobra.Command, searchQuery string, limit, offset int, privileged bool) error {
	ctx := cmd.Context()

	return withCampaignDeps(ctx, func(d *Deps) error {
		var result *handlers.EntityListResult
		var err error

		if searchQuery != "" {
			result, err = d.EntityHandler.HandleSearch(ctx, globalCampaign, searchQuery, limit, privileged)
		} else {
			result, err = d.EntityHandler.HandleList(ctx, globalCampaign, limit, offset, privileged)
		}
		if err != nil {
			return fmt.Errorf("listing entities: %w", err)
		}

		if len(result.Entities) == 0 {
			fmt.Println("No entities found.")
			return nil
		}

		fmt.Printf("Entities (%d total):\n\n", result.Total)
		for _, entity := range result.Entities {
			marker := ""
			if entity.Restricted {
				marker = " (restricted)"
			}
			fmt.Printf("  %-10s %-30s %s%s\n", shortID(entity.ID), entity.Name, entity.Type, marker)
		}
		return nil
	})
}

func runSpotlight(cmd *cobra.Command, privileged bool) error {
	ctx := cmd.Context()

	return withCampaignDeps(ctx, func(d *Deps) error {
		spot, err := d.EntityHandler.HandleSpotlight(ctx, globalCampaign, privileged)
		if err != nil {
			return err
		}

		fmt.Printf("%d entities, %d relationships\n\n", spot.EntityCount, spot.RelationshipCount)
		for t, n := range spot.CountsByType {
			fmt.Printf("  %-15s %d\n", t, n)
		}
		if len(spot.TopConnected) > 0 {
			fmt.Println("\nMost connected:")
			for _, c := range spot.TopConnected {
				fmt.Printf("  %-30s %d\n", c.Name, c.Degree)
			}
		}
		return nil
	})
}
