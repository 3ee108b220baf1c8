package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"enoriel/autos/internal/config"
	"enoriel/autos/internal/models"
	"enoriel/autos/internal/services"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	clientIdleTimeout = 30 * time.Minute
	cleanupInterval   = 10 * time.Minute
	// Only this much of a JSON API body is read to find the method name.
	maxMethodPeekBytes = 64 << 10
)

type clientLimiter struct {
	softLimiter *rate.Limiter
	hardLimiter *rate.Limiter
	lastSeen    time.Time
}

// RateLimiterMiddleware keeps two token buckets per client. Exhausting the hard bucket
// yields 429; exhausting the soft bucket yields 418 until the client proves it is human.
type RateLimiterMiddleware struct {
	clients       map[string]*clientLimiter
	mu            sync.Mutex
	cfg           *config.Config
	configService services.IConfigService
}

func NewRateLimiterMiddleware(cfg *config.Config, configService services.IConfigService) *RateLimiterMiddleware {
	rm := &RateLimiterMiddleware{
		clients:       make(map[string]*clientLimiter),
		cfg:           cfg,
		configService: configService,
	}
	go rm.cleanupClients()
	return rm
}

// ClientIdentifier is the key for per-client limits: IP, browser fingerprint and SPA session.
func ClientIdentifier(c *gin.Context) string {
	return fmt.Sprintf("%s|%s|%s", c.ClientIP(), c.GetHeader("X-BFP"), c.GetHeader("X-SPA"))
}

// jsonAPIMethod returns the "method" of a JSON API call and leaves the body readable.
func jsonAPIMethod(c *gin.Context) string {
	if c.Request.Body == nil {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxMethodPeekBytes))
	rest := c.Request.Body
	c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), rest))
	if err != nil {
		return ""
	}
	var envelope struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	return envelope.Method
}

func (rm *RateLimiterMiddleware) getClientLimiter(identifier string, softRate, softBurst, hardRate, hardBurst int) *clientLimiter {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	limiter, exists := rm.clients[identifier]
	if !exists {
		limiter = &clientLimiter{
			softLimiter: rate.NewLimiter(rate.Limit(softRate), softBurst),
			hardLimiter: rate.NewLimiter(rate.Limit(hardRate), hardBurst),
		}
		rm.clients[identifier] = limiter
	}
	limiter.lastSeen = time.Now()
	return limiter
}

func (rm *RateLimiterMiddleware) cleanupClients() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for range ticker.C {
		rm.mu.Lock()
		removed := 0
		for id, client := range rm.clients {
			if time.Since(client.lastSeen) > clientIdleTimeout {
				delete(rm.clients, id)
				removed++
			}
		}
		rm.mu.Unlock()
		if removed > 0 {
			log.Printf("Rate limiter cleanup removed %d idle clients.", removed)
		}
	}
}

// Limit applies REST limits keyed on the route path.
func (rm *RateLimiterMiddleware) Limit() gin.HandlerFunc {
	return rm.limit(models.APITypeREST)
}

// LimitJSON applies JSON API limits keyed on the "method" field of the request body.
func (rm *RateLimiterMiddleware) LimitJSON() gin.HandlerFunc {
	return rm.limit(models.APITypeJSON)
}

func (rm *RateLimiterMiddleware) limit(apiType models.APIType) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientKey := ClientIdentifier(c)
		endpoint := c.FullPath()
		if apiType == models.APITypeJSON {
			endpoint = jsonAPIMethod(c)
		}
		isAuthenticated := c.GetBool(ContextKeyIsAdmin)

		softRate := rm.cfg.RateLimitSoftRefillRate
		softBurst := rm.cfg.RateLimitSoftBucketSize
		hardRate := rm.cfg.RateLimitHardRefillRate
		hardBurst := rm.cfg.RateLimitHardBucketSize

		bucketKey := clientKey
		apiCfg, err := rm.configService.GetAPIEndpointConfig(c.Request.Context(), apiType, endpoint, isAuthenticated)
		if err != nil {
			log.Printf("Error fetching API config for %s %s: %v. Using defaults.", apiType, endpoint, err)
		}
		if apiCfg != nil {
			// Overridden endpoints get their own buckets.
			bucketKey = fmt.Sprintf("%s|%s:%s", clientKey, apiType, endpoint)
			if apiCfg.RateLimitSoft != nil {
				softRate = apiCfg.RateLimitSoft.TokenRefillRate
				softBurst = apiCfg.RateLimitSoft.BucketSize
			}
			if apiCfg.RateLimitHard != nil {
				hardRate = apiCfg.RateLimitHard.TokenRefillRate
				hardBurst = apiCfg.RateLimitHard.BucketSize
			}
		}

		limiter := rm.getClientLimiter(bucketKey, softRate, softBurst, hardRate, hardBurst)

		if !limiter.hardLimiter.Allow() {
			log.Printf("Hard rate limit exceeded for client: %s on %s %s", clientKey, apiType, endpoint)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}

		// Admins and verified humans skip the soft bucket.
		if !isAuthenticated && !c.GetBool(ContextKeyIsHumanVerified) && !limiter.softLimiter.Allow() {
			log.Printf("Soft rate limit exceeded for client: %s on %s %s (captcha required)", clientKey, apiType, endpoint)
			c.AbortWithStatusJSON(http.StatusTeapot, gin.H{"error": "Captcha validation required"})
			return
		}

		c.Next()
	}
}
