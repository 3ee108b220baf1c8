package middleware

import (
	"log"

	"enoriel/autos/internal/captcha"
	"enoriel/autos/internal/config"

	"github.com/gin-gonic/gin"
)

// ContextKeyIsHumanVerified is set by CaptchaMiddleware for the rate limiter.
const ContextKeyIsHumanVerified = "isHumanVerified"

func requestClient(c *gin.Context) captcha.Client {
	return captcha.Client{
		IP:          c.ClientIP(),
		Fingerprint: c.GetHeader("X-BFP"),
		Session:     c.GetHeader("X-SPA"),
	}
}

// CaptchaMiddleware marks the request as human when it carries a valid X-C-T token, or
// when a fresh Turnstile response in X-C-V verifies. In the second case a new X-C-T
// token is returned in the response headers.
func CaptchaMiddleware(cfg *config.Config, verifier captcha.ITurnstileVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		client := requestClient(c)
		humanToken := c.GetHeader("X-C-T")
		challenge := c.GetHeader("X-C-V")

		isHuman := humanToken != "" && verifier.ValidateHumanToken(humanToken, client)

		if !isHuman && challenge != "" {
			verified, err := verifier.Verify(c.Request.Context(), challenge, client.IP)
			if err != nil {
				// Treated as not human; the rate limiter decides.
				log.Printf("Error verifying Turnstile response: %v", err)
			} else if verified {
				isHuman = true
				token, err := verifier.GenerateHumanToken(client, cfg.CaptchaTokenTTL)
				if err != nil {
					log.Printf("Error generating X-C-T token: %v", err)
				} else {
					c.Header("X-C-T", token)
				}
			}
		}

		c.Set(ContextKeyIsHumanVerified, isHuman)
		c.Next()
	}
}
