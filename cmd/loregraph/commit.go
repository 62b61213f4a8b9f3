package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ersonp/lore-graph/internal/application/handlers"
)

func newCommitCmd() *cobra.Command {
	var opts handlers.CommitOptions

	cmd := &cobra.Command{
		Use:   "commit <review-file>",
		Short: "Commit a reviewed extraction",
		Long: `Stores the approved entities and relationships of a review file written
by ingest. Records still marked pending are skipped unless --approve-pending
is set.

Examples:
  loregraph commit session-12.review.json
  loregraph commit session-12.review.json --approve-pending --merge-matches`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommit(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.ApprovePending, "approve-pending", false, "Treat unreviewed records as approved")
	cmd.Flags().BoolVar(&opts.MergeMatches, "merge-matches", false, "Merge matched duplicates into the existing entity")

	return cmd
}

func runCommit(cmd *cobra.Command, path string, opts handlers.CommitOptions) error {
	ctx := cmd.Context()

	return withDeps(ctx, func(d *Deps) error {
		result, err := d.CommitHandler.HandleFile(ctx, path, opts)
		if err != nil {
			return fmt.Errorf("committing review file: %w", err)
		}

		for _, r := range result.Results {
			fmt.Printf("Document %s: %d created, %d merged, %d relationships",
				shortID(r.DocumentID), r.Created, r.Merged, r.Relationships)
			if r.RelationshipsSkipped > 0 {
				fmt.Printf(" (%d skipped)", r.RelationshipsSkipped)
			}
			fmt.Println()
			if r.EmbeddingsFailed > 0 {
				fmt.Printf("  %d entities only partially indexed, run resync later\n", r.EmbeddingsFailed)
			}
		}
		if result.Skipped > 0 {
			fmt.Printf("%d extractions had nothing approved\n", result.Skipped)
		}
		for _, e := range result.Errors {
			fmt.Fprintf(os.Stderr, "  error: %v\n", e)
		}
		if len(result.Errors) > 0 && len(result.Results) == 0 {
			return errors.New("no extraction committed")
		}
		return nil
	})
}
