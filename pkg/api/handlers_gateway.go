package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shift-health/pipeline/pkg/models"
	"github.com/shift-health/pipeline/pkg/services"
)

// postWatchEvents handles POST /watch_events (spec.md §4.B submit-batch,
// §6).
func (s *Server) postWatchEvents(c *gin.Context) {
	var req watchEventsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	userID := authedUserID(c)
	result, err := s.ingestion.SubmitBatch(c.Request.Context(), userID, req.toBatch())
	if err != nil {
		respondError(c, err)
		return
	}

	message := "batch accepted"
	if result.Duplicate {
		message = "duplicate batch"
	}
	c.JSON(http.StatusOK, watchEventsResponse{
		Message:         message,
		SamplesReceived: result.SamplesReceived,
		UserID:          userID,
	})
}

// postAppInteractions handles POST /app_interactions (spec.md §4.B
// submit-interaction, §6).
func (s *Server) postAppInteractions(c *gin.Context) {
	var req appInteractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	interactionID, err := s.interaction.SubmitInteraction(c.Request.Context(), authedUserID(c), services.InteractionRequest{
		TraceID:    req.TraceID,
		UserID:     req.UserID,
		InstanceID: req.InterventionInstance,
		EventType:  req.EventType,
		Timestamp:  req.Timestamp,
		Payload:    req.Payload,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, appInteractionResponse{Status: "accepted", InteractionID: interactionID})
}

// getContext handles GET /context (spec.md §4.E, §6).
func (s *Server) getContext(c *gin.Context) {
	ctx, err := s.aggregator.GetContext(c.Request.Context(), authedUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ctx)
}

// postUserReset handles POST /user/reset (spec.md §4.B reset, §6).
func (s *Server) postUserReset(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if !models.ValidResetScope(req.Scope) {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "scope must be one of all, flows, saved"})
		return
	}

	interactionID, err := s.interaction.Reset(c.Request.Context(), authedUserID(c), models.ResetScope(req.Scope))
	if err != nil {
		var ve *services.ValidationError
		if errors.As(err, &ve) {
			c.JSON(http.StatusBadRequest, errorResponse{Error: ve.Error()})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resetResponse{Scope: req.Scope, InteractionID: interactionID})
}
