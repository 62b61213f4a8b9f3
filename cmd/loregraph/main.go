// Package main provides the entry point for the loregraph CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	version        = "0.1.0-dev"
	globalCampaign string
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	rootCmd := newRootCmd()
	return rootCmd.ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "loregraph",
		Short:         "A campaign knowledge graph built from session notes",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("loading .env: %w", err)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&globalCampaign, "campaign", "c", "", "Campaign to operate on")

	rootCmd.AddCommand(
		newInitCmd(),
		newIngestCmd(),
		newCommitCmd(),
		newQueryCmd(),
		newEntitiesCmd(),
		newDuplicatesCmd(),
		newMergeCmd(),
		newRelateCmd(),
		newRelationsCmd(),
		newDeleteCmd(),
		newResyncCmd(),
		newServeCmd(),
	)

	return rootCmd
}
