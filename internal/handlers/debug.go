package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-backend/internal/telemetry"
	"chat-backend/internal/ws"
)

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router *gin.Engine, emitter *telemetry.AuditEmitter, dispatcher *ws.Dispatcher, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), "INFO", "audit test", requestIDFromContext(c), userIDFromContext(c))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Pushes a one-off announcement to every connected client.
	router.POST("/debug/announce", func(c *gin.Context) {
		var req struct {
			Text string `json:"text" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		dispatcher.BroadcastAll(gin.H{"type": "announcement", "text": req.Text})
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
