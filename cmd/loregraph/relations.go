package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ersonp/lore-graph/internal/application/handlers"
	"github.com/ersonp/lore-graph/internal/domain/entities"
)

type relationsFlags struct {
	relType string
	depth   int
	format  string
	viewer  bool
}

func newRelationsCmd() *cobra.Command {
	var flags relationsFlags

	cmd := &cobra.Command{
		Use:   "relations <entity>",
		Short: "List relationships for an entity",
		Long: `Shows all relationships connected to an entity, with optional filtering.

Examples:
  loregraph relations -c vox-machina Grog
  loregraph relations -c vox-machina Grog --type ally_of
  loregraph relations -c vox-machina Whitestone --depth 2 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelations(cmd, args[0], flags)
		},
	}

	cmd.Flags().StringVar(&flags.relType, "type", "", "Filter by relationship type")
	cmd.Flags().IntVar(&flags.depth, "depth", 1, "Traversal depth (1-5)")
	cmd.Flags().StringVar(&flags.format, "format", "list", "Output format: list, json")
	cmd.Flags().BoolVar(&flags.viewer, "viewer", false, "Hide restricted entities")

	return cmd
}

func runRelations(cmd *cobra.Command, ref string, flags relationsFlags) error {
	ctx := cmd.Context()

	if flags.depth < 1 || flags.depth > MaxDepth {
		return fmt.Errorf("depth must be between 1 and %d", MaxDepth)
	}
	if flags.format != "list" && flags.format != "json" {
		return errors.New("invalid format (valid: list, json)")
	}

	return withCampaignDeps(ctx, func(d *Deps) error {
		entity, err := resolveEntity(ctx, d.EntityHandler, globalCampaign, ref)
		if err != nil {
			return err
		}

		result, err := d.RelationshipHandler.HandleList(ctx, entity.ID, handlers.ListOptions{
			Type:       flags.relType,
			Depth:      flags.depth,
			Privileged: !flags.viewer,
		})
		if err != nil {
			return fmt.Errorf("listing relationships: %w", err)
		}

		if flags.format == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		if len(result.Relationships) == 0 {
			fmt.Printf("No relationships found for entity: %s\n", entity.Name)
			return nil
		}
		printRelations(entity, result)
		return nil
	})
}

func printRelations(entity *entities.Entity, result *handlers.ListResult) {
	fmt.Printf("%s:\n", entity.Name)
	for _, info := range result.Relationships {
		rel := info.Relationship
		if rel.SourceEntityID == entity.ID {
			fmt.Printf("  -[%s]-> %s  (%s)\n", rel.Type, info.Target.Name, shortID(rel.ID))
		} else {
			label := rel.ReverseLabel
			if label == "" {
				label = rel.Type
			}
			fmt.Printf("  <-[%s]- %s  (%s)\n", label, info.Source.Name, shortID(rel.ID))
		}
	}
	if len(result.Related) > 0 {
		fmt.Println("\nWithin reach:")
		for _, e := range result.Related {
			fmt.Printf("  %s [%s]\n", e.Name, e.Type)
		}
	}
}
