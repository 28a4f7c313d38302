package util

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the envelope used for every non-contract payload (errors, reports).
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// SuccessResponse writes a success envelope
func SuccessResponse(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Response{Success: true, Message: message, Data: data})
}

// ErrorResponse writes an error envelope and aborts the handler chain
func ErrorResponse(c *gin.Context, status int, message string, data interface{}) {
	c.AbortWithStatusJSON(status, Response{Success: false, Message: message, Data: data})
}

func BadRequest(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusBadRequest, message, nil)
}

func NotFound(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusNotFound, message, nil)
}

func Forbidden(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusForbidden, message, nil)
}
