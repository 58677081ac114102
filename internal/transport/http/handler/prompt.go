package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ragdesk/internal/app"
	"ragdesk/internal/transport/http/response"
)

type SystemPromptHandler struct {
	prompts *app.SystemPromptService
}

type SystemPromptRequest struct {
	Title   string `json:"title" binding:"max=128"`
	Content string `json:"content"`
}

func NewSystemPromptHandler(prompts *app.SystemPromptService) *SystemPromptHandler {
	return &SystemPromptHandler{prompts: prompts}
}

func (h *SystemPromptHandler) List(c *gin.Context) {
	prompts, err := h.prompts.List()
	if err != nil {
		writeError(c, "list system prompts", err)
		return
	}
	response.OK(c, prompts)
}

func (h *SystemPromptHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid system prompt id")
		return
	}
	prompt, err := h.prompts.Get(id)
	if err != nil {
		writeError(c, "get system prompt", err)
		return
	}
	response.OK(c, prompt)
}

func (h *SystemPromptHandler) Create(c *gin.Context) {
	var req SystemPromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	prompt, err := h.prompts.Create(app.SystemPromptInput{Title: req.Title, Content: req.Content})
	if err != nil {
		writeError(c, "create system prompt", err)
		return
	}
	response.OK(c, prompt)
}

// Update replaces the non-empty fields of the request.
func (h *SystemPromptHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid system prompt id")
		return
	}
	var req SystemPromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	prompt, err := h.prompts.Update(id, app.SystemPromptInput{Title: req.Title, Content: req.Content})
	if err != nil {
		writeError(c, "update system prompt", err)
		return
	}
	response.OK(c, prompt)
}

func (h *SystemPromptHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid system prompt id")
		return
	}
	if err := h.prompts.Delete(id); err != nil {
		writeError(c, "delete system prompt", err)
		return
	}
	response.OK(c, gin.H{"deleted_system_prompt_id": id})
}
