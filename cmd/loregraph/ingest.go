package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ersonp/lore-graph/internal/application/handlers"
	"github.com/ersonp/lore-graph/internal/domain/entities"
)

type ingestFlags struct {
	output    string
	format    string
	pattern   string
	recursive bool
	verbose   bool
}

func newIngestCmd() *cobra.Command {
	var flags ingestFlags

	cmd := &cobra.Command{
		Use:   "ingest <file-or-dir>",
		Short: "Extract entities from session notes",
		Long: `Reads session notes, extracts entities and relationships, and writes a
review file. Nothing is stored until the review file is committed.

Examples:
  loregraph ingest -c vox-machina session-12.md
  loregraph ingest -c vox-machina notes/ --pattern "*.md" --recursive
  loregraph ingest -c vox-machina export.json -o review.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Review file to write (default: <input>.review.json)")
	cmd.Flags().StringVar(&flags.format, "format", "", "Force input format: markdown, text, json, csv")
	cmd.Flags().StringVar(&flags.pattern, "pattern", "", "Glob pattern for files when ingesting a directory")
	cmd.Flags().BoolVarP(&flags.recursive, "recursive", "r", false, "Recurse into subdirectories")
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "Print extraction progress")

	return cmd
}

func runIngest(cmd *cobra.Command, path string, flags ingestFlags) error {
	ctx := cmd.Context()

	return withCampaignDeps(ctx, func(d *Deps) error {
		opts := handlers.IngestOptions{Format: flags.format}
		if flags.verbose {
			opts.Progress = func(source string, ev entities.ProgressEvent) {
				fmt.Printf("  [%s] %s\n", source, ev.Stage)
			}
		}

		var (
			extractions []*entities.StagedExtraction
			problems    []error
		)
		if handlers.IsDirectory(path) {
			batch, err := d.IngestHandler.HandleDirectory(ctx, globalCampaign, path, flags.pattern, flags.recursive,
				func(file string) { fmt.Printf("Ingesting %s...\n", file) }, opts)
			if err != nil {
				return fmt.Errorf("ingesting directory: %w", err)
			}
			for _, r := range batch.FileResults {
				extractions = append(extractions, r.Extractions...)
			}
			problems = batch.Errors
		} else {
			fmt.Printf("Ingesting %s...\n", path)
			result, err := d.IngestHandler.Handle(ctx, globalCampaign, path, opts)
			if err != nil {
				return fmt.Errorf("ingesting file: %w", err)
			}
			extractions = result.Extractions
			problems = result.Errors
		}

		for _, p := range problems {
			fmt.Fprintf(os.Stderr, "  warning: %v\n", p)
		}
		if len(extractions) == 0 {
			fmt.Println("Nothing extracted.")
			return nil
		}

		output := flags.output
		if output == "" {
			output = reviewPath(path)
		}
		if err := handlers.WriteReviewFile(output, extractions); err != nil {
			return err
		}

		printStaged(extractions)
		fmt.Printf("\nReview file written to %s\n", output)
		fmt.Printf("Edit the review decisions, then run: loregraph commit -c %s %s\n", globalCampaign, output)
		return nil
	})
}

func reviewPath(input string) string {
	clean := strings.TrimRight(input, string(filepath.Separator))
	return strings.TrimSuffix(clean, filepath.Ext(clean)) + ".review.json"
}

func printStaged(extractions []*entities.StagedExtraction) {
	for _, ex := range extractions {
		fmt.Printf("\n%s: %d entities, %d relationships\n", ex.SourceName, len(ex.Entities), len(ex.Relationships))
		for _, e := range ex.Entities {
			fmt.Printf("  %-4s %-30s [%s]\n", e.TempID, e.Name, e.Type)
		}
		for _, m := range ex.Matches {
			fmt.Printf("  %s matches existing %q (%s)\n", m.TempID, m.ExistingName, m.Kind)
		}
	}
}
