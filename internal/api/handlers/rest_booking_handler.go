package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"enoriel/autos/internal/config"
	"enoriel/autos/internal/models"
	"enoriel/autos/internal/services"

	"github.com/gin-gonic/gin"
)

// RestBookingHandler serves the customer side of the booking lifecycle.
type RestBookingHandler struct {
	cfg       *config.Config
	bookings  services.IBookingService
	messages  services.IMessageService
	updates   services.IUpdateService
	inquiries services.IInquiryService
	cars      services.ICarService
	limiter   services.ISubmissionLimiter
	notifier  INotifier
}

func NewRestBookingHandler(
	cfg *config.Config,
	bookings services.IBookingService,
	messages services.IMessageService,
	updates services.IUpdateService,
	inquiries services.IInquiryService,
	cars services.ICarService,
	limiter services.ISubmissionLimiter,
	notifier INotifier,
) *RestBookingHandler {
	return &RestBookingHandler{
		cfg:       cfg,
		bookings:  bookings,
		messages:  messages,
		updates:   updates,
		inquiries: inquiries,
		cars:      cars,
		limiter:   limiter,
		notifier:  notifier,
	}
}

type inquiryRequest struct {
	CarID         int64  `json:"car_id" binding:"required"`
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	Message       string `json:"message" binding:"max=2000"`
	NotifyByEmail bool   `json:"notify_by_email"`
}

func (h *RestBookingHandler) bindInquiry(c *gin.Context) (*inquiryRequest, bool) {
	var req inquiryRequest
	if !bindJSON(c, &req) {
		return nil, false
	}
	if err := h.limiter.Check(c.Request.Context(), c.ClientIP()); err != nil {
		respondError(c, err)
		return nil, false
	}
	return &req, true
}

// CreateInquiry handles POST /v1/inquiry.
func (h *RestBookingHandler) CreateInquiry(c *gin.Context) {
	req, ok := h.bindInquiry(c)
	if !ok {
		return
	}
	inquiry, err := h.inquiries.CreateInquiry(c.Request.Context(), req.CarID, req.Name, req.Phone, req.Email, req.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	h.limiter.Record(c.Request.Context(), c.ClientIP())
	c.JSON(http.StatusCreated, gin.H{
		"success":    true,
		"inquiry_id": inquiry.ID,
		"message":    "Thank you! We'll contact you shortly.",
	})
}

// CreateBooking handles POST /v1/booking: the inquiry form that opens a booking.
func (h *RestBookingHandler) CreateBooking(c *gin.Context) {
	req, ok := h.bindInquiry(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	booking, err := h.bookings.CreateFromInquiry(ctx, services.CreateBookingRequest{
		CarID:         req.CarID,
		Name:          req.Name,
		Phone:         req.Phone,
		Email:         req.Email,
		Message:       req.Message,
		NotifyByEmail: req.NotifyByEmail,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	h.limiter.Record(ctx, c.ClientIP())

	car, err := h.cars.GetCar(ctx, booking.CarID)
	if err != nil {
		log.Printf("Error loading car %d for booking %d notification: %v", booking.CarID, booking.ID, err)
	}
	h.notifier.BookingCreated(ctx, booking, car, req.Message)

	c.JSON(http.StatusCreated, gin.H{
		"success":    true,
		"booking_id": booking.ID,
		"booking":    booking,
	})
}

// GetBooking handles GET /v1/booking/:id. Viewing marks the admin's messages read.
func (h *RestBookingHandler) GetBooking(c *gin.Context) {
	id, ok := parseBookingID(c)
	if !ok {
		return
	}
	view, err := h.bookings.View(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// respondTransition writes the result of a lifecycle operation. Operations that do not
// fit the current stage are reported as information alongside the unchanged booking.
func (h *RestBookingHandler) respondTransition(c *gin.Context, id uint64, booking *models.Booking, err error) {
	if errors.Is(err, services.ErrInvalidState) {
		current, getErr := h.bookings.Get(c.Request.Context(), id)
		if getErr != nil {
			respondError(c, getErr)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": false, "info": publicMessage(err), "booking": current})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "booking": booking})
}

type messageRequest struct {
	Message    string   `json:"message" binding:"max=2000"`
	PriceOffer *float64 `json:"price_offer"`
}

// PostMessage handles POST /v1/booking/:id/message.
func (h *RestBookingHandler) PostMessage(c *gin.Context) {
	id, ok := parseBookingID(c)
	if !ok {
		return
	}
	var req messageRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	msg, err := h.messages.PostCustomerMessage(ctx, id, req.Message, req.PriceOffer)
	if err != nil {
		respondError(c, err)
		return
	}
	if booking, err := h.bookings.Get(ctx, id); err == nil {
		h.notifier.CustomerMessage(ctx, booking, msg.Body)
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": msg})
}

type inspectionRequest struct {
	Date     string `json:"date"`
	Time     string `json:"time"`
	At       string `json:"at"`
	Location string `json:"location"`
	Notes    string `json:"notes" binding:"max=1000"`
}

// wallClock returns the slot as dealership wall-clock time stored in UTC fields.
func (h *RestBookingHandler) wallClock(req inspectionRequest) (time.Time, bool) {
	if req.At != "" {
		at, err := time.Parse(time.RFC3339, req.At)
		if err != nil {
			return time.Time{}, false
		}
		if h.cfg.BusinessLocation != nil {
			at = at.In(h.cfg.BusinessLocation)
		}
		return time.Date(at.Year(), at.Month(), at.Day(), at.Hour(), at.Minute(), at.Second(), 0, time.UTC), true
	}
	if req.Date == "" || req.Time == "" {
		return time.Time{}, true
	}
	at, err := time.ParseInLocation("2006-01-02 15:04", req.Date+" "+req.Time, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return at, true
}

// ScheduleInspection handles POST /v1/booking/:id/inspection.
func (h *RestBookingHandler) ScheduleInspection(c *gin.Context) {
	id, ok := parseBookingID(c)
	if !ok {
		return
	}
	var req inspectionRequest
	if !bindJSON(c, &req) {
		return
	}
	at, ok := h.wallClock(req)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid inspection date or time"})
		return
	}
	ctx := c.Request.Context()
	booking, err := h.bookings.ScheduleInspection(ctx, id, at, req.Location, req.Notes)
	if err == nil {
		h.notifier.InspectionScheduled(ctx, booking)
	}
	h.respondTransition(c, id, booking, err)
}

type paymentRequest struct {
	Date   string `json:"date"`
	Method string `json:"method"`
}

// SchedulePayment handles POST /v1/booking/:id/payment.
func (h *RestBookingHandler) SchedulePayment(c *gin.Context) {
	id, ok := parseBookingID(c)
	if !ok {
		return
	}
	var req paymentRequest
	if !bindJSON(c, &req) {
		return
	}
	var date time.Time
	if strings.TrimSpace(req.Date) != "" {
		d, err := time.Parse("2006-01-02", strings.TrimSpace(req.Date))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid payment date"})
			return
		}
		date = d
	}
	booking, err := h.bookings.SchedulePayment(c.Request.Context(), id, date, models.PaymentMethod(req.Method))
	h.respondTransition(c, id, booking, err)
}

// GetUpdates handles GET /v1/booking/:id/updates?last_check=.
func (h *RestBookingHandler) GetUpdates(c *gin.Context) {
	id, ok := parseBookingID(c)
	if !ok {
		return
	}
	update, err := h.updates.Poll(c.Request.Context(), id, c.Query("last_check"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, update)
}

// MyBookings handles GET /v1/my-bookings?phone=&email=.
func (h *RestBookingHandler) MyBookings(c *gin.Context) {
	bookings, err := h.bookings.FindByCustomer(c.Request.Context(), c.Query("phone"), c.Query("email"))
	if err != nil {
		respondError(c, err)
		return
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}
