package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSMiddleware allows the storefront and back-office SPAs to call the API and read
// the refreshed captcha token.
func CORSMiddleware(origins []string) gin.HandlerFunc {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	allowCredentials := true
	for _, origin := range origins {
		if origin == "*" {
			allowCredentials = false
			break
		}
	}
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", "X-BFP", "X-SPA", "X-C-V", "X-C-T"},
		ExposeHeaders:    []string{"X-C-T"},
		AllowCredentials: allowCredentials,
		MaxAge:           12 * time.Hour,
	})
}
