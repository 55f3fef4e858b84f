package handlers

import (
	"errors"
	"net/http"

	"voting-service/internal/models"
	"voting-service/internal/server/middleware"
	"voting-service/internal/voting"
	"voting-service/pkg/response"

	"github.com/gin-gonic/gin"
)

type VotingHandler struct {
	engine *voting.Engine
}

func NewVotingHandler(engine *voting.Engine) *VotingHandler {
	return &VotingHandler{engine: engine}
}

// CastVote godoc
// @Summary      Cast a vote in a poll
// @Tags         voting
// @Accept       json
// @Produce      json
// @Param        poll_id path string true "poll id"
// @Param        request body models.CastVoteRequest true "vote payload"
// @Success      201 {object} models.VoteReceipt
// @Security     BearerAuth
// @Router       /polls/{poll_id}/vote [post]
func (h *VotingHandler) CastVote(c *gin.Context) {
	identity, err := middleware.GetIdentityFromContext(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.NewError(response.CodeUnauthorized, "unauthorized"))
		return
	}

	var req models.CastVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.NewError(response.CodeValidation, err.Error()))
		return
	}

	opts := voting.CastOptions{
		Anonymous: req.Anonymous,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
	receipt, err := h.engine.CastVote(c.Request.Context(), c.Param("poll_id"), identity.UserID, *req.OptionIndex, opts)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

// RetractVote godoc
// @Summary      Retract a vote (moderation)
// @Tags         voting
// @Produce      json
// @Param        vote_id path string true "vote id"
// @Success      204
// @Security     BearerAuth
// @Router       /votes/{vote_id} [delete]
func (h *VotingHandler) RetractVote(c *gin.Context) {
	if err := h.engine.RetractVote(c.Request.Context(), c.Param("vote_id")); err != nil {
		writeEngineError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetResults godoc
// @Summary      Poll results with per-option percentages
// @Tags         voting
// @Produce      json
// @Param        poll_id path string true "poll id"
// @Success      200 {object} models.PollResults
// @Router       /polls/{poll_id}/results [get]
func (h *VotingHandler) GetResults(c *gin.Context) {
	results, err := h.engine.GetResults(c.Request.Context(), c.Param("poll_id"))
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// CanVote godoc
// @Summary      Pre-flight eligibility check
// @Tags         voting
// @Produce      json
// @Param        poll_id path string true "poll id"
// @Success      200 {object} models.EligibilityResponse
// @Security     BearerAuth
// @Router       /polls/{poll_id}/can-vote [get]
func (h *VotingHandler) CanVote(c *gin.Context) {
	identity, err := middleware.GetIdentityFromContext(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.NewError(response.CodeUnauthorized, "unauthorized"))
		return
	}

	resp, err := h.engine.CanUserVote(c.Request.Context(), c.Param("poll_id"), identity.UserID)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// writeEngineError translates the engine's error taxonomy into status
// codes and stable response codes.
func writeEngineError(c *gin.Context, err error) {
	if reason, ok := voting.IsIneligible(err); ok {
		c.JSON(http.StatusBadRequest, response.NewError(response.CodeIneligible, reason))
		return
	}
	switch {
	case errors.Is(err, voting.ErrPollNotFound), errors.Is(err, voting.ErrVoteNotFound):
		c.JSON(http.StatusNotFound, response.NewError(response.CodeNotFound, err.Error()))
	case errors.Is(err, voting.ErrInvalidOption):
		c.JSON(http.StatusBadRequest, response.NewError(response.CodeInvalidOption, err.Error()))
	case errors.Is(err, voting.ErrStorageConflict):
		c.JSON(http.StatusConflict, response.NewError(response.CodeConflict, "concurrent modification, retry"))
	default:
		c.JSON(http.StatusInternalServerError, response.NewError(response.CodeInternalFailure, "internal error"))
	}
}
