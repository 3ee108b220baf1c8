package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"enoriel/autos/internal/api/handlers"
	"enoriel/autos/internal/api/middleware"
	"enoriel/autos/internal/captcha"
	"enoriel/autos/internal/config"
	"enoriel/autos/internal/email"
	"enoriel/autos/internal/services"
	"enoriel/autos/internal/storage"
)

// Deps are the services behind the public and admin HTTP surface.
type Deps struct {
	ConfigService services.IConfigService
	Bookings      services.IBookingService
	Messages      services.IMessageService
	Updates       services.IUpdateService
	Inquiries     services.IInquiryService
	Cars          services.ICarService
	Activities    services.IActivityService
	Limiter       services.ISubmissionLimiter
	Attachments   storage.IAttachmentStorage
	Notifier      handlers.INotifier
	Captcha       captcha.ITurnstileVerifier // NewTurnstileVerifier(cfg) when nil
}

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, deps Deps) *gin.Engine {
	captchaVerifier := deps.Captcha
	if captchaVerifier == nil {
		captchaVerifier = captcha.NewTurnstileVerifier(cfg)
	}

	r := gin.Default()
	r.Use(middleware.CORSMiddleware(cfg.CorsOrigins))

	rateLimiter := middleware.NewRateLimiterMiddleware(cfg, deps.ConfigService)

	bookingHandler := handlers.NewRestBookingHandler(cfg, deps.Bookings, deps.Messages, deps.Updates,
		deps.Inquiries, deps.Cars, deps.Limiter, deps.Notifier)
	configHandler := handlers.NewRestConfigHandler(deps.ConfigService)
	adminHandler := handlers.NewRestAdminHandler(cfg)
	jsonApiHandler := handlers.NewJsonApiHandler(cfg, deps.Bookings, deps.Messages, deps.Inquiries,
		deps.Cars, deps.Activities, deps.Attachments, deps.Notifier, deps.ConfigService)

	v1 := r.Group("/v1")
	v1.Use(middleware.CaptchaMiddleware(cfg, captchaVerifier), rateLimiter.Limit())
	{
		v1.GET("/ping", configHandler.Ping)
		v1.GET("/config", configHandler.GetPublicConfig)

		v1.POST("/inquiry", bookingHandler.CreateInquiry)
		v1.POST("/booking", bookingHandler.CreateBooking)
		v1.GET("/booking/:id", bookingHandler.GetBooking)
		v1.POST("/booking/:id/message", bookingHandler.PostMessage)
		v1.POST("/booking/:id/inspection", bookingHandler.ScheduleInspection)
		v1.POST("/booking/:id/payment", bookingHandler.SchedulePayment)
		v1.GET("/booking/:id/updates", bookingHandler.GetUpdates)
		v1.GET("/my-bookings", bookingHandler.MyBookings)

		v1.POST("/admin/login", adminHandler.Login)
	}

	// The admin JSON API is limited per method, after the token has been checked.
	admin := r.Group("/v1/admin")
	admin.Use(middleware.AdminAuthMiddleware(cfg.JwtSecret), rateLimiter.LimitJSON())
	{
		admin.POST("/api", jsonApiHandler.HandleRequest)
	}

	return r
}

// SetupServiceRouter configures the internal service API used by operators and
// end-to-end tests.
func SetupServiceRouter(cfg *config.Config, rdb *redis.Client, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	mockEmails := email.NewRedisSender(rdb)

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			log.Println("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
			default:
				log.Println("Shutdown channel already signaled.")
			}
		case "getTestEmail":
			var args []string // [template, email]
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 2 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [template, email]"})
				return
			}
			template, emailAddr := args[0], args[1]

			ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
			defer cancel()

			// Delivery is asynchronous; give the worker a moment.
			var found *email.MockEmail
			for i := 0; i < 10; i++ {
				msg, err := mockEmails.Lookup(ctx, emailAddr, template)
				if err != nil {
					log.Printf("Service API: %v", err)
					c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Redis error"})
					return
				}
				if msg != nil {
					found = msg
					break
				}
				time.Sleep(200 * time.Millisecond)
			}
			if found == nil {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Test email not found for key %s", email.MockEmailKey(emailAddr, template))})
				return
			}
			rdb.Del(ctx, email.MockEmailKey(emailAddr, template))
			c.JSON(http.StatusOK, gin.H{"success": true, "data": found})

		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}
