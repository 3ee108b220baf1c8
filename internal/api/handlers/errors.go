package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"enoriel/autos/internal/models"
	"enoriel/autos/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Binding errors name fields the way the client sent them.
func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

// INotifier is implemented by tasks.Notifier.
type INotifier interface {
	BookingCreated(ctx context.Context, b *models.Booking, car *models.Car, message string)
	CustomerMessage(ctx context.Context, b *models.Booking, text string)
	AdminMessage(ctx context.Context, b *models.Booking, car *models.Car, text string)
	InspectionScheduled(ctx context.Context, b *models.Booking)
	AttachmentPosted(ctx context.Context, bookingID uint64, key string)
}

// publicMessage is the caller-facing text of a service error.
func publicMessage(err error) string {
	switch {
	case errors.Is(err, services.ErrValidation):
		return strings.TrimPrefix(err.Error(), services.ErrValidation.Error()+": ")
	case errors.Is(err, services.ErrInvalidState):
		return "This action isn't available at the current stage of your booking"
	case errors.Is(err, services.ErrCarNotFound):
		return "Car not found"
	case errors.Is(err, services.ErrNotFound):
		return "Booking not found"
	case errors.Is(err, services.ErrCarSold), errors.Is(err, services.ErrRateLimited):
		return err.Error()
	default:
		return "Internal server error"
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrCarSold):
		return http.StatusConflict
	case errors.Is(err, services.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes a service error with its HTTP status.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("Error handling %s %s: %v", c.Request.Method, c.FullPath(), err)
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"success": false, "error": publicMessage(err)})
}

// bindingMessage describes why a request body was rejected before reaching a service.
func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request format"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": bindingMessage(err)})
		return false
	}
	return true
}

func parseBookingID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid booking ID"})
		return 0, false
	}
	return id, true
}
