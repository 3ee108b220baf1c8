package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"enoriel/autos/internal/auth"
	"enoriel/autos/internal/config"
)

// RestAdminHandler issues back-office bearer tokens.
type RestAdminHandler struct {
	cfg *config.Config
}

func NewRestAdminHandler(cfg *config.Config) *RestAdminHandler {
	return &RestAdminHandler{cfg: cfg}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /v1/admin/login
func (h *RestAdminHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	if !auth.CheckAdminCredentials(req.Username, req.Password, h.cfg.AdminUsername, h.cfg.AdminPasswordHash) {
		log.Printf("Failed admin login for %q from %s", req.Username, c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
		return
	}
	token, expiresAt, err := auth.GenerateAdminToken(h.cfg.AdminUsername, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
	})
}
