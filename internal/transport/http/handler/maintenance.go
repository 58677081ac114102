package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ragdesk/internal/app"
	"ragdesk/internal/transport/http/response"
)

type MaintenanceHandler struct {
	settings *app.SettingsService
}

type SetMaintenanceRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func NewMaintenanceHandler(settings *app.SettingsService) *MaintenanceHandler {
	return &MaintenanceHandler{settings: settings}
}

func (h *MaintenanceHandler) Status(c *gin.Context) {
	on, err := h.settings.MaintenanceMode(c.Request.Context())
	if err != nil {
		writeError(c, "read maintenance mode", err)
		return
	}
	response.OK(c, gin.H{"maintenance": on})
}

func (h *MaintenanceHandler) Toggle(c *gin.Context) {
	on, err := h.settings.ToggleMaintenance(c.Request.Context())
	if err != nil {
		writeError(c, "toggle maintenance mode", err)
		return
	}
	response.OK(c, gin.H{"maintenance": on})
}

func (h *MaintenanceHandler) Set(c *gin.Context) {
	var req SetMaintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	if err := h.settings.SetMaintenanceMode(c.Request.Context(), *req.Enabled); err != nil {
		writeError(c, "set maintenance mode", err)
		return
	}
	response.OK(c, gin.H{"maintenance": *req.Enabled})
}
