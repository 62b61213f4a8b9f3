// Package httpapi exposes the lore graph over HTTP with gin.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ersonp/lore-graph/internal/application/handlers"
)

// PrivilegeHeader marks a request as coming from a privileged viewer when
// set to "true". It is meant to be set by a trusted proxy.
const PrivilegeHeader = "X-Viewer-Privileged"

const shutdownTimeout = 10 * time.Second

// PrivilegeFunc decides whether the caller may see restricted entities.
type PrivilegeFunc func(c *gin.Context) bool

// HeaderPrivilege reads PrivilegeHeader.
func HeaderPrivilege(c *gin.Context) bool {
	return c.GetHeader(PrivilegeHeader) == "true"
}

// Handlers are the use cases served over HTTP.
type Handlers struct {
	Ingest       *handlers.IngestHandler
	Commit       *handlers.CommitHandler
	Query        *handlers.QueryHandler
	Entity       *handlers.EntityHandler
	Relationship *handlers.RelationshipHandler
}

// Options configure the server.
type Options struct {
	AllowedOrigins []string
	// Privilege defaults to HeaderPrivilege.
	Privilege PrivilegeFunc
}

// Server is the HTTP surface.
type Server struct {
	engine     *gin.Engine
	h          Handlers
	privileged PrivilegeFunc
	logger     *zap.Logger
}

// NewServer builds the router.
func NewServer(h Handlers, opts Options, logger *zap.Logger) *Server {
	s := &Server{
		h:          h,
		privileged: opts.Privilege,
		logger:     logger.Named("http"),
	}
	if s.privileged == nil {
		s.privileged = HeaderPrivilege
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(s.logger))
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: opts.AllowedOrigins,
			AllowMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders: []string{"Content-Type", PrivilegeHeader},
		}))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	campaign := r.Group("/api/campaigns/:campaignID")
	{
		campaign.POST("/extract", s.extract)
		campaign.POST("/commit", s.commit)
		campaign.GET("/search", s.search)
		campaign.GET("/duplicates", s.duplicates)
		campaign.GET("/spotlight", s.spotlight)
		campaign.POST("/resync", s.resyncCampaign)

		campaign.GET("/entities", s.listEntities)
		campaign.POST("/entities", s.createEntity)
		campaign.GET("/entities/:entityID", s.getEntity)
		campaign.PATCH("/entities/:entityID", s.updateEntity)
		campaign.DELETE("/entities/:entityID", s.deleteEntity)
		campaign.GET("/entities/:entityID/history", s.entityHistory)
		campaign.GET("/entities/:entityID/relationships", s.entityRelationships)
		campaign.POST("/entities/:entityID/merge", s.mergeEntity)
		campaign.POST("/entities/:entityID/resync", s.resyncEntity)

		campaign.POST("/relationships", s.createRelationship)
		campaign.DELETE("/relationships/:relationshipID", s.deleteRelationship)
	}

	s.engine = r
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		}

		switch {
		case status >= 500:
			logger.Error("http request", fields...)
		case status >= 400:
			logger.Warn("http request", fields...)
		default:
			logger.Debug("http request", fields...)
		}
	}
}
