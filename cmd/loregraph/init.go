package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ersonp/lore-graph/internal/infrastructure/config"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a new lore graph",
		Long:  "Creates a .loregraph directory with default configuration, the SQLite schema and, when Qdrant is the vector store, its collection.",
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	if config.Exists(cwd) {
		return fmt.Errorf("loregraph already initialized in %s", cwd)
	}

	if err := config.WriteDefault(cwd); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}

	fmt.Printf("Created %s\n", config.ConfigFilePath(cwd))

	return withDeps(ctx, func(d *Deps) error {
		result, err := d.InitHandler.Handle(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Database ready: %s\n", d.Config.SQLite.Path)
		if result.CollectionCreated {
			fmt.Printf("Qdrant collection ready: %s\n", d.Config.Qdrant.Collection)
		}
		fmt.Println("Lore graph initialized successfully!")
		return nil
	})
}
