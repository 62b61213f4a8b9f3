package httpapi

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ersonp/lore-graph/internal/application/handlers"
	"github.com/ersonp/lore-graph/internal/domain/entities"
)

type extractRequest struct {
	Name       string   `json:"name"`
	Text       string   `json:"text" binding:"required"`
	KnownNames []string `json:"known_names"`
}

// extract streams extraction progress as server-sent events. The stream
// ends with a single complete or error event.
func (s *Server) extract(c *gin.Context) {
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalid(err))
		return
	}
	name := req.Name
	if name == "" {
		name = "pasted text"
	}

	events := s.h.Ingest.Stream(c.Request.Context(), c.Param("campaignID"), name, req.Text, req.KnownNames)

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	c.Stream(func(w io.Writer) bool {
		ev, ok := <-events
		if !ok {
			return false
		}
		c.SSEvent(ev.Stage, ev.Data)
		return !ev.Terminal()
	})
	// Drain so the producer never blocks after the client goes away.
	go drain(events)
}

func drain(events <-chan entities.ProgressEvent) {
	for range events {
	}
}

// commit commits one reviewed extraction posted in the review file format.
func (s *Server) commit(c *gin.Context) {
	var staged entities.StagedExtraction
	if err := c.ShouldBindJSON(&staged); err != nil {
		respondError(c, invalid(err))
		return
	}
	staged.CampaignID = c.Param("campaignID")

	opts := handlers.CommitOptions{
		ApprovePending: queryBool(c, "approve_pending"),
		MergeMatches:   queryBool(c, "merge_matches"),
	}
	result, err := s.h.Commit.Handle(c.Request.Context(), &staged, opts)
	if err != nil {
		respondError(c, err)
		return
	}
	if result == nil {
		c.Status(http.StatusNoContent)
		return
	}
	respondOK(c, result)
}
