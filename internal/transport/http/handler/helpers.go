package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ragdesk/internal/ai"
	"ragdesk/internal/app"
	"ragdesk/internal/transport/http/middleware"
	"ragdesk/internal/transport/http/response"
)

func getUserIDFromContext(c *gin.Context) (uint, bool) {
	userIDAny, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}
	userID, ok := userIDAny.(uint)
	return userID, ok
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// writeError maps service errors onto the response envelope. Unrecognised
// errors become a 500 carrying the action and the underlying message.
func writeError(c *gin.Context, action string, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, app.ErrInvalidInput),
		errors.Is(err, app.ErrMessageEmpty),
		errors.Is(err, app.ErrNoFiles):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrInvalidFileType):
		response.Error(c, http.StatusBadRequest, response.CodeInvalidFileType, err.Error())
	case errors.Is(err, app.ErrUnreadablePDF):
		response.Error(c, http.StatusBadRequest, response.CodeUnreadablePDF, err.Error())
	case errors.Is(err, ai.ErrUnknownBackend):
		response.Error(c, http.StatusBadRequest, response.CodeUnknownBackend, err.Error())
	case errors.Is(err, app.ErrCollectionExists):
		response.Error(c, http.StatusConflict, response.CodeCollectionExists, err.Error())
	case errors.Is(err, app.ErrCollectionNotFound):
		response.Error(c, http.StatusNotFound, response.CodeCollectionNotFound, err.Error())
	case errors.Is(err, app.ErrSessionNotFound):
		response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, err.Error())
	case errors.Is(err, app.ErrPromptNotFound):
		response.Error(c, http.StatusNotFound, response.CodePromptNotFound, err.Error())
	case errors.Is(err, ai.ErrBackendUnavailable):
		response.Error(c, http.StatusServiceUnavailable, response.CodeServiceUnavailable, err.Error())
	case errors.Is(err, app.ErrMessageEnqueue):
		response.Error(c, http.StatusServiceUnavailable, response.CodeInternalServer, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, action+" failed: "+err.Error())
	}
}
