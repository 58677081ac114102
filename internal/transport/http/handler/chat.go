package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ragdesk/internal/app"
	"ragdesk/internal/transport/http/response"
)

type ChatHandler struct {
	chatService *app.ChatService
}

type CreateSessionRequest struct {
	Title          string `json:"title" binding:"max=128"`
	Collection     string `json:"collection" binding:"required"`
	Backend        string `json:"backend"`
	SystemPromptID *uint  `json:"system_prompt_id"`
}

type SendMessageRequest struct {
	SessionID uint   `json:"session_id" binding:"required,gt=0"`
	Content   string `json:"content" binding:"required"`
	Length    string `json:"length"`
	Tone      string `json:"tone"`
	Formality string `json:"formality"`
}

func NewChatHandler(chatService *app.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

func (h *ChatHandler) CreateSession(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	session, err := h.chatService.CreateSession(c.Request.Context(), app.CreateSessionInput{
		UserID:         userID,
		Title:          req.Title,
		Collection:     req.Collection,
		Backend:        req.Backend,
		SystemPromptID: req.SystemPromptID,
	})
	if err != nil {
		writeError(c, "create session", err)
		return
	}

	response.OK(c, session)
}

func (h *ChatHandler) ListSessions(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	sessions, err := h.chatService.ListSessions(userID)
	if err != nil {
		writeError(c, "list sessions", err)
		return
	}

	response.OK(c, sessions)
}

func (h *ChatHandler) DeleteSession(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid session id")
		return
	}

	if err := h.chatService.DeleteSession(c.Request.Context(), userID, sessionID); err != nil {
		writeError(c, "delete session", err)
		return
	}

	response.OK(c, gin.H{"deleted_session_id": sessionID})
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.chatService.SendMessage(c.Request.Context(), app.SendMessageInput{
		UserID:    userID,
		SessionID: req.SessionID,
		Content:   req.Content,
		Style: app.StyleOptions{
			Length:    req.Length,
			Tone:      req.Tone,
			Formality: req.Formality,
		},
	})
	if err != nil {
		writeError(c, "send message", err)
		return
	}

	response.OK(c, result)
}

func (h *ChatHandler) GetHistory(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	sessionID64, err := strconv.ParseUint(c.Query("session_id"), 10, 64)
	if err != nil || sessionID64 == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid session_id")
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, parseErr := strconv.Atoi(raw); parseErr == nil {
			limit = parsed
		}
	}

	history, err := h.chatService.GetHistory(c.Request.Context(), userID, uint(sessionID64), limit)
	if err != nil {
		writeError(c, "get history", err)
		return
	}

	response.OK(c, history)
}
