package handlers

import (
	"net/http"

	"dissent/internal/middleware"
	"dissent/internal/services"

	"github.com/gin-gonic/gin"
)

type VoteHandler struct {
	votes *services.VoteService
}

func NewVoteHandler(votes *services.VoteService) *VoteHandler {
	return &VoteHandler{votes: votes}
}

type voteRequest struct {
	Vote string `json:"vote"`
}

// Cast handles POST /comment/:commentId/vote.
func (h *VoteHandler) Cast(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		AbortError(c, services.Forbidden("You must be connected before you can vote."))
		return
	}

	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortError(c, services.BadRequest("invalid vote request"))
		return
	}

	comment, err := h.votes.Cast(c.Param("commentId"), user.ID, req.Vote)
	if err != nil {
		AbortError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats":   comment.Stats,
	})
}
