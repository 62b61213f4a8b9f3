package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ersonp/lore-graph/internal/application/handlers"
	"github.com/ersonp/lore-graph/internal/domain/apperrors"
	"github.com/ersonp/lore-graph/internal/domain/entities"
	"github.com/ersonp/lore-graph/internal/domain/services"
)

const (
	defaultSearchLimit = 10
	defaultListLimit   = 50
)

func invalid(err error) error {
	return fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
}

func queryBool(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(c.Query(key))
	return err == nil && v
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, invalid(fmt.Errorf("%s must be a non-negative integer", key))
	}
	return v, nil
}

func queryFloat(c *gin.Context, key string, def float64) (float64, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || v > 1 {
		return 0, invalid(fmt.Errorf("%s must be between 0 and 1", key))
	}
	return v, nil
}

// campaignEntity loads the entity named in the path and checks it belongs
// to the campaign in the path.
func (s *Server) campaignEntity(c *gin.Context, privileged bool) (*entities.Entity, bool) {
	return s.campaignEntityByID(c, c.Param("entityID"), privileged)
}

// campaignEntityByID answers 404 for entities outside the path's campaign or
// hidden from the viewer.
func (s *Server) campaignEntityByID(c *gin.Context, id string, privileged bool) (*entities.Entity, bool) {
	e, err := s.h.Entity.HandleGet(c.Request.Context(), id, privileged)
	if err == nil && e.CampaignID != c.Param("campaignID") {
		err = fmt.Errorf("%w: entity %s", apperrors.ErrNotFound, id)
	}
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return e, true
}

func (s *Server) search(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultSearchLimit)
	if err != nil {
		respondError(c, err)
		return
	}
	threshold, err := queryFloat(c, "threshold", 0)
	if err != nil {
		respondError(c, err)
		return
	}
	result, err := s.h.Query.Handle(c.Request.Context(), c.Param("campaignID"), c.Query("q"), handlers.QueryOptions{
		Limit:      limit,
		Threshold:  threshold,
		Privileged: s.privileged(c),
		Keyword:    c.Query("mode") == "keyword",
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}

func (s *Server) duplicates(c *gin.Context) {
	threshold, err := queryFloat(c, "threshold", services.DefaultDuplicateThreshold)
	if err != nil {
		respondError(c, err)
		return
	}
	candidates, err := s.h.Entity.HandleDuplicates(c.Request.Context(), c.Param("campaignID"), c.Query("name"), threshold, s.privileged(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"candidates": candidates})
}

func (s *Server) spotlight(c *gin.Context) {
	spot, err := s.h.Entity.HandleSpotlight(c.Request.Context(), c.Param("campaignID"), s.privileged(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, spot)
}

func (s *Server) listEntities(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultListLimit)
	if err != nil {
		respondError(c, err)
		return
	}
	ctx := c.Request.Context()
	campaignID := c.Param("campaignID")
	privileged := s.privileged(c)

	var result *handlers.EntityListResult
	if q := c.Query("q"); q != "" {
		result, err = s.h.Entity.HandleSearch(ctx, campaignID, q, limit, privileged)
	} else {
		var offset int
		if offset, err = queryInt(c, "offset", 0); err != nil {
			respondError(c, err)
			return
		}
		result, err = s.h.Entity.HandleList(ctx, campaignID, limit, offset, privileged)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}

type createEntityRequest struct {
	Name       string   `json:"name" binding:"required"`
	Type       string   `json:"type" binding:"required"`
	Content    string   `json:"content"`
	Aliases    []string `json:"aliases"`
	Tags       []string `json:"tags"`
	Restricted bool     `json:"restricted"`
}

func (s *Server) createEntity(c *gin.Context) {
	var req createEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalid(err))
		return
	}
	e, err := s.h.Entity.HandleCreate(c.Request.Context(), &entities.Entity{
		CampaignID: c.Param("campaignID"),
		Name:       req.Name,
		Type:       req.Type,
		Content:    req.Content,
		Aliases:    req.Aliases,
		Tags:       req.Tags,
		Restricted: req.Restricted,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (s *Server) getEntity(c *gin.Context) {
	e, ok := s.campaignEntity(c, s.privileged(c))
	if !ok {
		return
	}
	respondOK(c, e)
}

type updateEntityRequest struct {
	services.EntityUpdate
	Reason string `json:"reason"`
}

func (s *Server) updateEntity(c *gin.Context) {
	e, ok := s.campaignEntity(c, s.privileged(c))
	if !ok {
		return
	}
	var req updateEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalid(err))
		return
	}
	updated, err := s.h.Entity.HandleUpdate(c.Request.Context(), e.ID, req.EntityUpdate, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, updated)
}

func (s *Server) deleteEntity(c *gin.Context) {
	e, ok := s.campaignEntity(c, s.privileged(c))
	if !ok {
		return
	}
	if err := s.h.Entity.HandleDelete(c.Request.Context(), e.ID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) entityHistory(c *gin.Context) {
	e, ok := s.campaignEntity(c, s.privileged(c))
	if !ok {
		return
	}
	versions, err := s.h.Entity.HandleHistory(c.Request.Context(), e.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"versions": versions})
}

type mergeRequest struct {
	SecondaryID string `json:"secondary_id" binding:"required"`
}

func (s *Server) mergeEntity(c *gin.Context) {
	privileged := s.privileged(c)
	primary, ok := s.campaignEntity(c, privileged)
	if !ok {
		return
	}
	var req mergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalid(err))
		return
	}
	secondary, ok := s.campaignEntityByID(c, req.SecondaryID, privileged)
	if !ok {
		return
	}
	merged, err := s.h.Entity.HandleMerge(c.Request.Context(), primary.ID, secondary.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, merged)
}

func (s *Server) resyncEntity(c *gin.Context) {
	e, ok := s.campaignEntity(c, s.privileged(c))
	if !ok {
		return
	}
	result, err := s.h.Entity.HandleResync(c.Request.Context(), e.CampaignID, e.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}

func (s *Server) resyncCampaign(c *gin.Context) {
	result, err := s.h.Entity.HandleResync(c.Request.Context(), c.Param("campaignID"), "")
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}

func (s *Server) entityRelationships(c *gin.Context) {
	privileged := s.privileged(c)
	e, ok := s.campaignEntity(c, privileged)
	if !ok {
		return
	}
	depth, err := queryInt(c, "depth", 1)
	if err != nil {
		respondError(c, err)
		return
	}
	result, err := s.h.Relationship.HandleList(c.Request.Context(), e.ID, handlers.ListOptions{
		Type:       c.Query("type"),
		Depth:      depth,
		Privileged: privileged,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}

type createRelationshipRequest struct {
	SourceID     string `json:"source_id" binding:"required"`
	TargetID     string `json:"target_id" binding:"required"`
	Type         string `json:"type" binding:"required"`
	ReverseLabel string `json:"reverse_label"`
}

func (s *Server) createRelationship(c *gin.Context) {
	var req createRelationshipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalid(err))
		return
	}
	ctx := c.Request.Context()
	source, err := s.h.Entity.HandleGet(ctx, req.SourceID, s.privileged(c))
	if err == nil && source.CampaignID != c.Param("campaignID") {
		err = fmt.Errorf("%w: source entity %s", apperrors.ErrNotFound, req.SourceID)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	rel, err := s.h.Relationship.HandleCreate(ctx, source.ID, req.Type, req.TargetID, req.ReverseLabel)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rel)
}

func (s *Server) deleteRelationship(c *gin.Context) {
	if err := s.h.Relationship.HandleDelete(c.Request.Context(), c.Param("relationshipID")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
