package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"voting-service/internal/models"
	"voting-service/internal/poll"
	"voting-service/internal/server/middleware"
	"voting-service/internal/voting"
	"voting-service/pkg/response"

	"github.com/gin-gonic/gin"
)

type PollHandler struct {
	polls *poll.Service
}

func NewPollHandler(polls *poll.Service) *PollHandler {
	return &PollHandler{polls: polls}
}

// CreatePoll godoc
// @Summary      Create a poll
// @Tags         polls
// @Accept       json
// @Produce      json
// @Param        request body models.CreatePollRequest true "poll definition"
// @Success      201 {object} models.Poll
// @Security     BearerAuth
// @Router       /polls [post]
func (h *PollHandler) CreatePoll(c *gin.Context) {
	identity, err := middleware.GetIdentityFromContext(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.NewError(response.CodeUnauthorized, "unauthorized"))
		return
	}

	var req models.CreatePollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.NewError(response.CodeValidation, err.Error()))
		return
	}

	created, err := h.polls.Create(c.Request.Context(), identity, &req)
	if err != nil {
		writePollError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// GetPoll godoc
// @Summary      Fetch one poll
// @Tags         polls
// @Produce      json
// @Param        poll_id path string true "poll id"
// @Success      200 {object} models.PollResponse
// @Router       /polls/{poll_id} [get]
func (h *PollHandler) GetPoll(c *gin.Context) {
	identity, _ := middleware.GetIdentityFromContext(c.Request.Context())
	resp, err := h.polls.Get(c.Request.Context(), c.Param("poll_id"), identity)
	if err != nil {
		writePollError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListPolls godoc
// @Summary      List visible polls
// @Tags         polls
// @Produce      json
// @Success      200 {array} models.PollResponse
// @Router       /polls [get]
func (h *PollHandler) ListPolls(c *gin.Context) {
	identity, _ := middleware.GetIdentityFromContext(c.Request.Context())
	polls, err := h.polls.List(c.Request.Context(), identity)
	if err != nil {
		writePollError(c, err)
		return
	}
	c.JSON(http.StatusOK, polls)
}

// UpdatePoll godoc
// @Summary      Edit poll metadata and, before any vote, its options
// @Tags         polls
// @Accept       json
// @Param        poll_id path string true "poll id"
// @Param        request body models.UpdatePollRequest true "fields to update"
// @Success      204
// @Security     BearerAuth
// @Router       /polls/{poll_id} [patch]
func (h *PollHandler) UpdatePoll(c *gin.Context) {
	identity, err := middleware.GetIdentityFromContext(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.NewError(response.CodeUnauthorized, "unauthorized"))
		return
	}

	var req models.UpdatePollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.NewError(response.CodeValidation, err.Error()))
		return
	}

	if err := h.polls.Update(c.Request.Context(), c.Param("poll_id"), identity, &req); err != nil {
		writePollError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetStatus godoc
// @Summary      Toggle a poll between active and inactive
// @Tags         polls
// @Param        poll_id path string true "poll id"
// @Param        status query string true "active or inactive"
// @Success      204
// @Security     BearerAuth
// @Router       /polls/{poll_id}/status [put]
func (h *PollHandler) SetStatus(c *gin.Context) {
	identity, err := middleware.GetIdentityFromContext(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.NewError(response.CodeUnauthorized, "unauthorized"))
		return
	}
	status := models.PollStatus(c.Query("status"))
	if err := h.polls.SetStatus(c.Request.Context(), c.Param("poll_id"), identity, status); err != nil {
		writePollError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CancelPoll godoc
// @Summary      Cancel a poll
// @Tags         polls
// @Param        poll_id path string true "poll id"
// @Success      204
// @Security     BearerAuth
// @Router       /polls/{poll_id}/cancel [post]
func (h *PollHandler) CancelPoll(c *gin.Context) {
	identity, err := middleware.GetIdentityFromContext(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.NewError(response.CodeUnauthorized, "unauthorized"))
		return
	}
	if err := h.polls.Cancel(c.Request.Context(), c.Param("poll_id"), identity); err != nil {
		writePollError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeletePoll godoc
// @Summary      Delete a poll
// @Tags         polls
// @Param        poll_id path string true "poll id"
// @Success      204
// @Security     BearerAuth
// @Router       /polls/{poll_id} [delete]
func (h *PollHandler) DeletePoll(c *gin.Context) {
	identity, err := middleware.GetIdentityFromContext(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.NewError(response.CodeUnauthorized, "unauthorized"))
		return
	}
	if err := h.polls.Delete(c.Request.Context(), c.Param("poll_id"), identity); err != nil {
		writePollError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadOptionImage godoc
// @Summary      Attach an image to one option
// @Tags         polls
// @Accept       multipart/form-data
// @Param        poll_id path string true "poll id"
// @Param        option_index path int true "option index"
// @Param        image formData file true "image file"
// @Success      200 {object} map[string]string
// @Security     BearerAuth
// @Router       /polls/{poll_id}/options/{option_index}/image [post]
func (h *PollHandler) UploadOptionImage(c *gin.Context) {
	identity, err := middleware.GetIdentityFromContext(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.NewError(response.CodeUnauthorized, "unauthorized"))
		return
	}
	optionIndex, err := strconv.Atoi(c.Param("option_index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.NewError(response.CodeInvalidOption, "option index must be a number"))
		return
	}
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.NewError(response.CodeValidation, "image file required"))
		return
	}

	url, err := h.polls.SetOptionImage(c.Request.Context(), c.Param("poll_id"), identity, optionIndex, file)
	if err != nil {
		writePollError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"image_url": url})
}

func writePollError(c *gin.Context, err error) {
	var validation *poll.ValidationError
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, response.NewError(response.CodeValidation, validation.Message))
	case errors.Is(err, poll.ErrOptionsLocked):
		c.JSON(http.StatusConflict, response.NewError(response.CodeConflict, err.Error()))
	case errors.Is(err, poll.ErrNotAllowed):
		c.JSON(http.StatusForbidden, response.NewError(response.CodeForbidden, "not allowed"))
	case errors.Is(err, voting.ErrPollNotFound):
		c.JSON(http.StatusNotFound, response.NewError(response.CodeNotFound, err.Error()))
	case errors.Is(err, voting.ErrInvalidOption):
		c.JSON(http.StatusBadRequest, response.NewError(response.CodeInvalidOption, err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, response.NewError(response.CodeInternalFailure, "internal error"))
	}
}
