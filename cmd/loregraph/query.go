package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ersonp/lore-graph/internal/application/handlers"
	"github.com/ersonp/lore-graph/internal/domain/services"
)

func newQueryCmd() *cobra.Command {
	var opts handlers.QueryOptions
	var viewer bool

	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Search campaign lore",
		Long: `Performs semantic search over entity content. Falls back to keyword
search when no embedding provider is configured or it fails.

Examples:
  loregraph query -c vox-machina "who rules Whitestone"
  loregraph query -c vox-machina "vestige" --keyword --limit 5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Privileged = !viewer
			return runQuery(cmd, args[0], opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "l", DefaultQueryLimit, "Maximum number of results")
	cmd.Flags().Float64Var(&opts.Threshold, "threshold", 0, "Minimum similarity (0-1)")
	cmd.Flags().BoolVar(&opts.Keyword, "keyword", false, "Use keyword search only")
	cmd.Flags().BoolVar(&viewer, "viewer", false, "Hide restricted entities")

	return cmd
}

func runQuery(cmd *cobra.Command, query string, opts handlers.QueryOptions) error {
	ctx := cmd.Context()

	return withCampaignDeps(ctx, func(d *Deps) error {
		result, err := d.QueryHandler.Handle(ctx, globalCampaign, query, opts)
		if err != nil {
			return err
		}

		if result.Mode == services.ModeKeyword && result.FallbackReason != "" {
			fmt.Printf("(keyword search: %s)\n", result.FallbackReason)
		}
		if len(result.Results) == 0 {
			fmt.Println("No results found.")
			return nil
		}

		fmt.Printf("Found %d results:\n\n", len(result.Results))
		for i, r := range result.Results {
			fmt.Printf("%d. %s [%s]", i+1, r.EntityName, r.EntityType)
			if result.Mode == services.ModeVector {
				fmt.Printf(" %.2f", r.Similarity)
			}
			fmt.Println()
			fmt.Printf("   %s\n\n", r.ChunkText)
		}
		return nil
	})
}
