package handlers

import (
	"net/http"
	"time"

	"github.com/chachabrian/propnest-backend/internal/services"
	"github.com/gin-gonic/gin"
)

func Health(relay *services.Relay, dataMode string) gin.HandlerFunc {
	started := time.Now()
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"dataMode":    dataMode,
			"connections": relay.ConnectedCount(),
			"uptime":      time.Since(started).Round(time.Second).String(),
		})
	}
}
