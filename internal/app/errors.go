package app

import (
	"errors"
	"net/http"

	"forumsync/internal/service"
	"forumsync/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// respondError maps service errors onto status codes and the error envelope.
func respondError(c *gin.Context, log logrus.FieldLogger, err error) {
	switch {
	case errors.Is(err, service.ErrCommentNotFound),
		errors.Is(err, service.ErrTargetNotFound),
		errors.Is(err, service.ErrReactionNotFound):
		util.NotFound(c, err.Error())
	case errors.Is(err, service.ErrForbidden):
		util.Forbidden(c, err.Error())
	case errors.Is(err, service.ErrParentNotFound),
		errors.Is(err, service.ErrParentMismatch),
		errors.Is(err, service.ErrInvalidReaction),
		errors.Is(err, service.ErrDuplicateReport),
		errors.Is(err, service.ErrNoReasons):
		util.BadRequest(c, err.Error())
	default:
		log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		util.ErrorResponse(c, http.StatusInternalServerError, "internal server error", nil)
	}
}
