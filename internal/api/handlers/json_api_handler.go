package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"enoriel/autos/internal/api/middleware"
	"enoriel/autos/internal/config"
	"enoriel/autos/internal/models"
	"enoriel/autos/internal/services"
	"enoriel/autos/internal/storage"
)

// JsonApiRequest defines the expected structure for JSON API requests.
type JsonApiRequest struct {
	Method    string          `json:"method"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// JsonApiResponse defines the structure for JSON API responses.
// Info is set instead of Error when an operation was refused because of the booking's
// current stage; Data then carries the unchanged booking.
type JsonApiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Info    string      `json:"info,omitempty"`
}

// apiMethodFunc defines the signature for handler methods.
type apiMethodFunc func(c *gin.Context, args json.RawMessage) (interface{}, *ApiError)

type ApiError struct {
	Message string
	Info    bool
	Data    interface{}
}

func (e *ApiError) Error() string {
	return e.Message
}

func NewApiError(message string) *ApiError {
	return &ApiError{Message: message}
}

// JsonApiHandler serves the admin dashboard's POST /v1/admin/api endpoint.
// Authentication happens in middleware before the request reaches it.
type JsonApiHandler struct {
	cfg        *config.Config
	bookings   services.IBookingService
	messages   services.IMessageService
	inquiries  services.IInquiryService
	cars       services.ICarService
	activities services.IActivityService
	storage    storage.IAttachmentStorage
	notifier   INotifier
	settings   services.IConfigService
	methods    map[string]apiMethodFunc
}

// NewJsonApiHandler creates a new handler for the admin JSON API endpoint.
func NewJsonApiHandler(
	cfg *config.Config,
	bookings services.IBookingService,
	messages services.IMessageService,
	inquiries services.IInquiryService,
	cars services.ICarService,
	activities services.IActivityService,
	attachments storage.IAttachmentStorage,
	notifier INotifier,
	settings services.IConfigService,
) *JsonApiHandler {
	h := &JsonApiHandler{
		cfg:        cfg,
		bookings:   bookings,
		messages:   messages,
		inquiries:  inquiries,
		cars:       cars,
		activities: activities,
		storage:    attachments,
		notifier:   notifier,
		settings:   settings,
	}
	h.methods = map[string]apiMethodFunc{
		"ping":                   h.ping,
		"getBooking":             h.getBooking,
		"confirmPayment":         h.confirmPayment,
		"completeBooking":        h.completeBooking,
		"cancelBooking":          h.cancelBooking,
		"advanceBookings":        h.advanceBookings,
		"postAdminMessage":       h.postAdminMessage,
		"getAttachmentUploadURL": h.getAttachmentUploadURL,
		"setNegotiatedPrice":     h.setNegotiatedPrice,
		"addNote":                h.addNote,
		"getTimeline":            h.getTimeline,
		"unreadCount":            h.unreadCount,
		"markCarSold":            h.markCarSold,
		"markInquiryContacted":   h.markInquiryContacted,
		"setConfig":              h.setConfig,
	}
	return h
}

// HandleRequest is the main entry point for POST /v1/admin/api
func (h *JsonApiHandler) HandleRequest(c *gin.Context) {
	bodyBytes, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.sendErrorResponse(c, NewApiError("Failed to read request body"))
		return
	}

	var req JsonApiRequest
	if err := json.Unmarshal(bodyBytes, &req); err != nil {
		h.sendErrorResponse(c, NewApiError("Invalid JSON request format"))
		return
	}

	handlerFunc, ok := h.methods[req.Method]
	if !ok {
		h.sendErrorResponse(c, NewApiError(fmt.Sprintf("Unknown method: %s", req.Method)))
		return
	}

	result, apiErr := handlerFunc(c, req.Arguments)
	if apiErr != nil {
		h.sendErrorResponse(c, apiErr)
		return
	}
	h.sendSuccessResponse(c, result)
}

func (h *JsonApiHandler) sendSuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, JsonApiResponse{Success: true, Data: data})
}

func (h *JsonApiHandler) sendErrorResponse(c *gin.Context, apiErr *ApiError) {
	resp := JsonApiResponse{Success: false}
	if apiErr.Info {
		resp.Info = apiErr.Message
		resp.Data = apiErr.Data
	} else {
		resp.Error = apiErr.Message
	}
	c.JSON(http.StatusOK, resp)
}

// serviceError converts a service failure for bookingID into an ApiError.
func (h *JsonApiHandler) serviceError(c *gin.Context, method string, bookingID uint64, err error) *ApiError {
	switch {
	case errors.Is(err, services.ErrInvalidState):
		current, getErr := h.bookings.Get(c.Request.Context(), bookingID)
		if getErr != nil {
			return NewApiError(publicMessage(getErr))
		}
		return &ApiError{
			Message: fmt.Sprintf("Booking %d is %s; %s is not available", bookingID, current.Status.Display(), method),
			Info:    true,
			Data:    current,
		}
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrNotFound),
		errors.Is(err, services.ErrCarSold):
		return NewApiError(publicMessage(err))
	default:
		log.Printf("Error in admin method %s (by %q) for booking %d: %v", method, middleware.AdminUsername(c), bookingID, err)
		return NewApiError(fmt.Sprintf("Failed to %s", method))
	}
}

func (h *JsonApiHandler) parseRequiredSingleArgFromArray(rawArgPayload json.RawMessage, targetVarPtr interface{}) *ApiError {
	if rawArgPayload == nil {
		return NewApiError("Missing 'arguments' field; expected a JSON array with one argument.")
	}
	var argArray []json.RawMessage
	if err := json.Unmarshal(rawArgPayload, &argArray); err != nil {
		return NewApiError("Invalid 'arguments': expected a JSON array.")
	}
	if len(argArray) == 0 {
		return NewApiError("Invalid 'arguments': array is empty, but one argument is expected.")
	}
	if err := json.Unmarshal(argArray[0], targetVarPtr); err != nil {
		return NewApiError("Invalid format for argument: the first element in 'arguments' array has unexpected structure.")
	}
	return nil
}

// BookingArgs identifies the booking an admin method acts on.
type BookingArgs struct {
	BookingID uint64 `json:"booking_id"`
}

func (h *JsonApiHandler) parseBookingArgs(args json.RawMessage, target interface{ bookingID() uint64 }) *ApiError {
	if apiErr := h.parseRequiredSingleArgFromArray(args, target); apiErr != nil {
		return apiErr
	}
	if target.bookingID() == 0 {
		return NewApiError("booking_id is required")
	}
	return nil
}

func (a *BookingArgs) bookingID() uint64 { return a.BookingID }

func (h *JsonApiHandler) ping(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	_ = args
	return "pong", nil
}

func (h *JsonApiHandler) getBooking(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var reqArgs BookingArgs
	if apiErr := h.parseBookingArgs(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	view, err := h.bookings.AdminView(c.Request.Context(), reqArgs.BookingID)
	if err != nil {
		return nil, h.serviceError(c, "getBooking", reqArgs.BookingID, err)
	}
	return view, nil
}

type ConfirmPaymentArgs struct {
	BookingArgs
	Reference string `json:"reference"`
}

func (h *JsonApiHandler) confirmPayment(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var reqArgs ConfirmPaymentArgs
	if apiErr := h.parseBookingArgs(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	b, err := h.bookings.ConfirmPayment(c.Request.Context(), reqArgs.BookingID, reqArgs.Reference)
	if err != nil {
		return nil, h.serviceError(c, "confirmPayment", reqArgs.BookingID, err)
	}
	return b, nil
}

func (h *JsonApiHandler) completeBooking(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var reqArgs BookingArgs
	if apiErr := h.parseBookingArgs(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	b, err := h.bookings.Complete(c.Request.Context(), reqArgs.BookingID)
	if err != nil {
		return nil, h.serviceError(c, "completeBooking", reqArgs.BookingID, err)
	}
	return b, nil
}

func (h *JsonApiHandler) cancelBooking(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var reqArgs BookingArgs
	if apiErr := h.parseBookingArgs(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	b, err := h.bookings.Cancel(c.Request.Context(), reqArgs.BookingID)
	if err != nil {
		return nil, h.serviceError(c, "cancelBooking", reqArgs.BookingID, err)
	}
	return b, nil
}

type AdvanceBookingsArgs struct {
	BookingIDs []uint64 `json:"booking_ids"`
}

// advanceBookings is the dashboard's bulk action. Bookings that cannot move are skipped.
func (h *JsonApiHandler) advanceBookings(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var reqArgs AdvanceBookingsArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	if len(reqArgs.BookingIDs) == 0 {
		return nil, NewApiError("booking_ids is required")
	}
	moved, err := h.bookings.AdvanceMany(c.Request.Context(), reqArgs.BookingIDs)
	if err != nil {
		log.Printf("Error advancing bookings %v: %v", reqArgs.BookingIDs, err)
		return nil, NewApiError("Failed to advance bookings")
	}
	return gin.H{
		"moved":   moved,
		"message": fmt.Sprintf("%d booking(s) moved to the next stage", moved),
	}, nil
}

type PostAdminMessageArgs struct {
	BookingArgs
	Message    string   `json:"message"`
	PriceOffer *float64 `json:"price_offer"`
	Attachment string   `json:"attachment"`
}

func (h *JsonApiHandler) postAdminMessage(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var reqArgs PostAdminMessageArgs
	if apiErr := h.parseBookingArgs(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	if reqArgs.Attachment != "" && !storage.IsAttachmentKey(reqArgs.BookingID, reqArgs.Attachment) {
		return nil, NewApiError("Invalid attachment")
	}

	ctx := c.Request.Context()
	msg, err := h.messages.PostAdminMessage(ctx, reqArgs.BookingID, reqArgs.Message, reqArgs.PriceOffer, reqArgs.Attachment)
	if err != nil {
		return nil, h.serviceError(c, "postAdminMessage", reqArgs.BookingID, err)
	}

	if b, err := h.bookings.Get(ctx, reqArgs.BookingID); err == nil {
		car, carErr := h.cars.GetCar(ctx, b.CarID)
		if carErr != nil {
			car = nil
		}
		h.notifier.AdminMessage(ctx, b, car, msg.Body)
	}
	if msg.AttachmentKey != "" {
		h.notifier.AttachmentPosted(ctx, reqArgs.BookingID, msg.AttachmentKey)
	}
	return msg, nil
}

type GetAttachmentUploadURLArgs struct {
	BookingArgs
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

// getAttachmentUploadURL returns a presigned PUT URL. The key goes back in postAdminMessage.
func (h *JsonApiHandler) getAttachmentUploadURL(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var reqArgs GetAttachmentUploadURLArgs
	if apiErr := h.parseBookingArgs(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	if strings.TrimSpace(reqArgs.Filename) == "" || strings.TrimSpace(reqArgs.ContentType) == "" {
		return nil, NewApiError("Missing required arguments (filename, content_type)")
	}
	if h.storage == nil {
		return nil, NewApiError("Attachments are not configured")
	}

	ctx := c.Request.Context()
	if _, err := h.bookings.Get(ctx, reqArgs.BookingID); err != nil {
		return nil, h.serviceError(c, "getAttachmentUploadURL", reqArgs.BookingID, err)
	}
	url, key, err := h.storage.PresignUpload(ctx, reqArgs.BookingID, reqArgs.Filename, reqArgs.ContentType)
	if err != nil {
		log.Printf("Error generating attachment upload URL for booking %d: %v", reqArgs.BookingID, err)
		return nil, NewApiError("Failed to generate upload URL")
	}
	return gin.H{
		"upload_url": url,
		"object_key": key,
	}, nil
}

type SetNegotiatedPriceArgs struct {
	BookingArgs
	Price float64 `json:"price"`
	Note  string  `json:"note"`
}

func (h *JsonApiHandler) setNegotiatedPrice(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var reqArgs SetNegotiatedPriceArgs
	if apiErr := h.parseBookingArgs(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	b, err := h.bookings.SetNegotiatedPrice(c.Request.Context(), reqArgs.BookingID, reqArgs.Price, reqArgs.Note)
	if err != nil {
		return nil, h.serviceError(c, "setNegotiatedPrice", reqArgs.BookingID, err)
	}
	return b, nil
}

type AddNoteArgs struct {
	BookingArgs
	Note string `json:"note"`
}

func (h *JsonApiHandler) addNote(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var reqArgs AddNoteArgs
	if apiErr := h.parseBookingArgs(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	activity, err := h.bookings.AddNote(c.Request.Context(), reqArgs.BookingID, reqArgs.Note)
	if err != nil {
		return nil, h.serviceError(c, "addNote", reqArgs.BookingID, err)
	}
	return activity, nil
}

type GetTimelineArgs struct {
	BookingArgs
	CustomerView bool `json:"customer_view"`
}

// getTimeline lists activities newest first, optionally as the customer sees them.
func (h *JsonApiHandler) getTimeline(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var reqArgs GetTimelineArgs
	if apiErr := h.parseBookingArgs(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	activities, err := h.activities.Timeline(c.Request.Context(), reqArgs.BookingID, reqArgs.CustomerView)
	if err != nil {
		return nil, h.serviceError(c, "getTimeline", reqArgs.BookingID, err)
	}
	if activities == nil {
		activities = []models.Activity{}
	}
	return activities, nil
}

func (h *JsonApiHandler) unreadCount(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var reqArgs BookingArgs
	if apiErr := h.parseBookingArgs(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	n, err := h.messages.UnreadCountForAdmin(c.Request.Context(), reqArgs.BookingID)
	if err != nil {
		return nil, h.serviceError(c, "unreadCount", reqArgs.BookingID, err)
	}
	return gin.H{"unread_count": n}, nil
}

type MarkCarSoldArgs struct {
	CarID int64 `json:"car_id"`
	Sold  *bool `json:"sold"`
}

func (h *JsonApiHandler) markCarSold(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var reqArgs MarkCarSoldArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	if reqArgs.CarID <= 0 {
		return nil, NewApiError("car_id is required")
	}
	sold := true
	if reqArgs.Sold != nil {
		sold = *reqArgs.Sold
	}
	if err := h.cars.MarkSold(c.Request.Context(), reqArgs.CarID, sold); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return nil, NewApiError("Car not found")
		}
		log.Printf("Error marking car %d sold=%t: %v", reqArgs.CarID, sold, err)
		return nil, NewApiError("Failed to update car")
	}
	return gin.H{"car_id": reqArgs.CarID, "is_sold": sold}, nil
}

type MarkInquiryContactedArgs struct {
	InquiryID uint64 `json:"inquiry_id"`
}

func (h *JsonApiHandler) markInquiryContacted(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var reqArgs MarkInquiryContactedArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	if reqArgs.InquiryID == 0 {
		return nil, NewApiError("inquiry_id is required")
	}
	if err := h.inquiries.MarkContacted(c.Request.Context(), reqArgs.InquiryID); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return nil, NewApiError("Inquiry not found")
		}
		log.Printf("Error marking inquiry %d contacted: %v", reqArgs.InquiryID, err)
		return nil, NewApiError("Failed to update inquiry")
	}
	return nil, nil
}

type SetConfigArgs struct {
	Key    string      `json:"key"`
	Value  interface{} `json:"value"`
	Public bool        `json:"public"`
}

// setConfig stores a runtime setting. Every instance reloads it through the config channel.
func (h *JsonApiHandler) setConfig(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var reqArgs SetConfigArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	reqArgs.Key = strings.TrimSpace(reqArgs.Key)
	if reqArgs.Key == "" || reqArgs.Value == nil {
		return nil, NewApiError("Missing required arguments (key, value)")
	}
	if err := h.settings.SetConfigValue(c.Request.Context(), reqArgs.Key, reqArgs.Value, reqArgs.Public); err != nil {
		if errors.Is(err, services.ErrValidation) {
			return nil, NewApiError(publicMessage(err))
		}
		log.Printf("Error setting config key %q (by %q): %v", reqArgs.Key, middleware.AdminUsername(c), err)
		return nil, NewApiError("Failed to update configuration")
	}
	log.Printf("Config key %q updated by %q", reqArgs.Key, middleware.AdminUsername(c))
	return gin.H{"key": reqArgs.Key, "public": reqArgs.Public}, nil
}
