package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"enoriel/autos/internal/services"
)

// RestConfigHandler serves the settings the booking page needs before it renders.
type RestConfigHandler struct {
	configService services.IConfigService
	now           func() time.Time
}

func NewRestConfigHandler(configService services.IConfigService) *RestConfigHandler {
	return &RestConfigHandler{configService: configService, now: time.Now}
}

// GetPublicConfig handles GET /v1/config. SERVER_TIME is the value a fresh page
// sends as its first last_check when polling for updates.
func (h *RestConfigHandler) GetPublicConfig(c *gin.Context) {
	stored, err := h.configService.GetAllPublic(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve configuration"})
		return
	}
	publicConfig := make(map[string]interface{}, len(stored)+1)
	for k, v := range stored {
		publicConfig[k] = v
	}
	publicConfig["SERVER_TIME"] = h.now().UTC().Format(time.RFC3339)
	c.JSON(http.StatusOK, publicConfig)
}

// Ping handles GET /v1/ping
func (h *RestConfigHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong", "server_time": h.now().UTC().Format(time.RFC3339)})
}
