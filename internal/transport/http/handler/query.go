package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ragdesk/internal/app"
	"ragdesk/internal/transport/http/response"
)

type QueryHandler struct {
	queryService *app.QueryService
}

// QueryRequest binds from JSON or from a form post.
type QueryRequest struct {
	Prompt         string `json:"prompt" form:"prompt" binding:"required"`
	Collection     string `json:"collection" form:"collection" binding:"required"`
	Length         string `json:"length" form:"length"`
	Tone           string `json:"tone" form:"tone"`
	Formality      string `json:"formality" form:"formality"`
	SystemPromptID *uint  `json:"system_prompt_id" form:"system_prompt_id"`
	Backend        string `json:"backend" form:"backend"`
}

func NewQueryHandler(queryService *app.QueryService) *QueryHandler {
	return &QueryHandler{queryService: queryService}
}

func (h *QueryHandler) Ask(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req QueryRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.queryService.Ask(c.Request.Context(), app.QueryInput{
		UserID:     userID,
		Prompt:     req.Prompt,
		Collection: req.Collection,
		Style: app.StyleOptions{
			Length:    req.Length,
			Tone:      req.Tone,
			Formality: req.Formality,
		},
		SystemPromptID: req.SystemPromptID,
		Backend:        req.Backend,
	})
	if err != nil {
		writeError(c, "query", err)
		return
	}

	response.OK(c, result)
}

func (h *QueryHandler) ListConversations(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	limit := 10
	if raw := c.Query("limit"); raw != "" {
		if parsed, parseErr := strconv.Atoi(raw); parseErr == nil {
			limit = parsed
		}
	}

	conversations, err := h.queryService.ListConversations(userID, limit)
	if err != nil {
		writeError(c, "list conversations", err)
		return
	}
	response.OK(c, conversations)
}

func (h *QueryHandler) ClearConversations(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	deleted, err := h.queryService.ClearConversations(userID)
	if err != nil {
		writeError(c, "clear conversations", err)
		return
	}
	response.OK(c, gin.H{"deleted": deleted})
}
