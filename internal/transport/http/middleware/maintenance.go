package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ragdesk/internal/pkg/logger"
	"ragdesk/internal/transport/http/response"
)

type MaintenanceReader interface {
	MaintenanceMode(ctx context.Context) (bool, error)
}

// Maintenance rejects GET requests from non-admin users while maintenance
// mode is on. It must run after AuthJWT. A failed lookup lets the request
// through.
func Maintenance(settings MaintenanceReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet || IsAdmin(c) {
			c.Next()
			return
		}
		on, err := settings.MaintenanceMode(c.Request.Context())
		if err != nil {
			logger.WithContext(c.Request.Context()).Warn("read maintenance mode failed", zap.Error(err))
			c.Next()
			return
		}
		if on {
			response.Error(c, http.StatusServiceUnavailable, response.CodeMaintenance, "service is under maintenance")
			c.Abort()
			return
		}
		c.Next()
	}
}
