package main

import (
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/ersonp/lore-graph/internal/application/httpapi"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serves extraction, commit, search and entity management over HTTP.
Extraction progress is streamed as server-sent events.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, func(d *Deps) error {
				if d.Config.Log.Mode == "production" {
					gin.SetMode(gin.ReleaseMode)
				}
				if addr == "" {
					addr = d.Config.Server.Addr
				}

				server := httpapi.NewServer(httpapi.Handlers{
					Ingest:       d.IngestHandler,
					Commit:       d.CommitHandler,
					Query:        d.QueryHandler,
					Entity:       d.EntityHandler,
					Relationship: d.RelationshipHandler,
				}, httpapi.Options{AllowedOrigins: d.Config.Server.AllowedOrigins}, d.Logger)

				return server.Run(ctx, addr)
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")

	return cmd
}
