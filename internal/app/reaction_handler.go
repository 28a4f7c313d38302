package app

import (
	"net/http"

	"forumsync/internal/model"
	"forumsync/internal/service"
	"forumsync/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type ReactionHandler struct {
	reactionService service.ReactionService
	log             logrus.FieldLogger
}

func NewReactionHandler(reactionService service.ReactionService, log logrus.FieldLogger) *ReactionHandler {
	return &ReactionHandler{
		reactionService: reactionService,
		log:             log,
	}
}

// GetCommentSummary returns the bare summary for a comment
// GET /api/reactions/comment/:id/summary?userEmail=
func (h *ReactionHandler) GetCommentSummary(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	summary, err := h.reactionService.GetSummary(c.Request.Context(), model.TargetTypeComment, id, c.Query("userEmail"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// GetSummary returns the summary wrapped in {result}
// GET /api/reactions/{POST|COMMENT}/:id/summary?userEmail=
func (h *ReactionHandler) GetSummary(targetType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}

		summary, err := h.reactionService.GetSummary(c.Request.Context(), targetType, id, c.Query("userEmail"))
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"result": summary})
	}
}

// AddReaction sets the caller's reaction
// POST /api/reactions/add
func (h *ReactionHandler) AddReaction(c *gin.Context) {
	var in model.ReactionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	reaction, err := h.reactionService.AddReaction(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	util.SuccessResponse(c, http.StatusOK, "Reaction saved", reaction)
}

// RemoveReaction clears the caller's reaction
// POST /api/reactions/{POST|COMMENT}/:id?userEmail=
func (h *ReactionHandler) RemoveReaction(targetType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		userEmail := c.Query("userEmail")
		if userEmail == "" {
			util.BadRequest(c, "userEmail is required")
			return
		}

		if err := h.reactionService.RemoveReaction(c.Request.Context(), targetType, id, userEmail); err != nil {
			respondError(c, h.log, err)
			return
		}
		util.SuccessResponse(c, http.StatusOK, "Reaction removed", nil)
	}
}
