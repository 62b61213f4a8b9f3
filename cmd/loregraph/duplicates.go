package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ersonp/lore-graph/internal/domain/services"
)

func newDuplicatesCmd() *cobra.Command {
	var threshold float64

	cmd := &cobra.Command{
		Use:   "duplicates <name>",
		Short: "Find entities with a similar name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withCampaignDeps(ctx, func(d *Deps) error {
				candidates, err := d.EntityHandler.HandleDuplicates(ctx, globalCampaign, args[0], threshold, true)
				if err != nil {
					return err
				}
				if len(candidates) == 0 {
					fmt.Println("No similar entities found.")
					return nil
				}
				for _, c := range candidates {
					fmt.Printf("  %.2f  %-10s %s", c.Score, shortID(c.Entity.ID), c.Entity.Name)
					if c.MatchedOn != c.Entity.Name {
						fmt.Printf(" (alias %q)", c.MatchedOn)
					}
					fmt.Println()
				}
				return nil
			})
		},
	}

	cmd.Flags().Float64Var(&threshold, "threshold", services.DefaultDuplicateThreshold, "Minimum name similarity (0-1)")

	return cmd
}
