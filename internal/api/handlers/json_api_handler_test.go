package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"enoriel/autos/internal/api/handlers"
	"enoriel/autos/internal/auth"
	"enoriel/autos/internal/config"
	"enoriel/autos/internal/models"
	"enoriel/autos/internal/services"
)

type adminMocks struct {
	bookings   *MockBookingService
	messages   *MockMessageService
	inquiries  *MockInquiryService
	cars       *MockCarService
	activities *MockActivityService
	storage    *MockAttachmentStorage
	notifier   *MockNotifier
	settings   *MockConfigService
}

func setupTestRouter() (*gin.Engine, *adminMocks) {
	gin.SetMode(gin.TestMode)
	m := &adminMocks{
		bookings:   new(MockBookingService),
		messages:   new(MockMessageService),
		inquiries:  new(MockInquiryService),
		cars:       new(MockCarService),
		activities: new(MockActivityService),
		storage:    new(MockAttachmentStorage),
		notifier:   new(MockNotifier),
		settings:   new(MockConfigService),
	}
	cfg := &config.Config{JwtSecret: "testsecret", JwtTTL: time.Hour}
	handler := handlers.NewJsonApiHandler(cfg, m.bookings, m.messages, m.inquiries, m.cars, m.activities, m.storage, m.notifier, m.settings)
	r := gin.New()
	r.POST("/v1/admin/api", handler.HandleRequest)
	return r, m
}

func callMethod(t *testing.T, r *gin.Engine, method string, arg interface{}) handlers.JsonApiResponse {
	t.Helper()
	reqBody := map[string]interface{}{"method": method}
	if arg != nil {
		reqBody["arguments"] = []interface{}{arg}
	}
	jsonBody, _ := json.Marshal(reqBody)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/admin/api", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var resp handlers.JsonApiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestJsonApiHandler_Ping(t *testing.T) {
	router, _ := setupTestRouter()
	resp := callMethod(t, router, "ping", nil)
	assert.True(t, resp.Success)
	assert.Equal(t, "pong", resp.Data)
	assert.Empty(t, resp.Error)
}

func TestJsonApiHandler_UnknownMethod(t *testing.T) {
	router, _ := setupTestRouter()
	resp := callMethod(t, router, "dropTables", nil)
	assert.False(t, resp.Success)
	assert.Equal(t, "Unknown method: dropTables", resp.Error)
}

func TestJsonApiHandler_MissingBookingID(t *testing.T) {
	router, m := setupTestRouter()
	resp := callMethod(t, router, "completeBooking", map[string]interface{}{})
	assert.False(t, resp.Success)
	assert.Equal(t, "booking_id is required", resp.Error)
	m.bookings.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestJsonApiHandler_ConfirmPayment(t *testing.T) {
	router, m := setupTestRouter()
	confirmed := &models.Booking{ID: 9, Status: models.StatusPaymentConfirmed, PaymentReference: "TRF-001"}
	m.bookings.On("ConfirmPayment", mock.Anything, uint64(9), "TRF-001").Return(confirmed, nil).Once()

	resp := callMethod(t, router, "confirmPayment", map[string]interface{}{"booking_id": 9, "reference": "TRF-001"})

	assert.True(t, resp.Success)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "payment_confirmed", data["status"])
	m.bookings.AssertExpectations(t)
}

func TestJsonApiHandler_CancelBooking_WrongStage(t *testing.T) {
	router, m := setupTestRouter()
	current := &models.Booking{ID: 9, Status: models.StatusCompleted}
	m.bookings.On("Cancel", mock.Anything, uint64(9)).Return(nil, invalidState()).Once()
	m.bookings.On("Get", mock.Anything, uint64(9)).Return(current, nil).Once()

	resp := callMethod(t, router, "cancelBooking", map[string]interface{}{"booking_id": 9})

	assert.False(t, resp.Success)
	assert.Empty(t, resp.Error)
	assert.Contains(t, resp.Info, "cancelBooking is not available")
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "completed", data["status"])
}

func TestJsonApiHandler_AdvanceBookings(t *testing.T) {
	router, m := setupTestRouter()
	m.bookings.On("AdvanceMany", mock.Anything, []uint64{1, 2, 3}).Return(2, nil).Once()

	resp := callMethod(t, router, "advanceBookings", map[string]interface{}{"booking_ids": []int{1, 2, 3}})

	assert.True(t, resp.Success)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(2), data["moved"])
	assert.Equal(t, "2 booking(s) moved to the next stage", data["message"])
}

func TestJsonApiHandler_PostAdminMessage(t *testing.T) {
	t.Run("with attachment", func(t *testing.T) {
		router, m := setupTestRouter()
		key := "attachments/9/0b5e_receipt.jpg"
		booking := &models.Booking{ID: 9, CarID: 4}
		car := &models.Car{ID: 4, Title: "2016 Honda Accord"}
		msg := &models.Message{ID: 31, BookingID: 9, Body: "Here is the receipt", IsFromAdmin: true, AttachmentKey: key}

		m.messages.On("PostAdminMessage", mock.Anything, uint64(9), "Here is the receipt", (*float64)(nil), key).Return(msg, nil).Once()
		m.bookings.On("Get", mock.Anything, uint64(9)).Return(booking, nil).Once()
		m.cars.On("GetCar", mock.Anything, int64(4)).Return(car, nil).Once()
		m.notifier.On("AdminMessage", mock.Anything, booking, car, "Here is the receipt").Once()
		m.notifier.On("AttachmentPosted", mock.Anything, uint64(9), key).Once()

		resp := callMethod(t, router, "postAdminMessage", map[string]interface{}{
			"booking_id": 9, "message": "Here is the receipt", "attachment": key,
		})

		assert.True(t, resp.Success)
		m.messages.AssertExpectations(t)
		m.notifier.AssertExpectations(t)
	})

	t.Run("foreign attachment key", func(t *testing.T) {
		router, m := setupTestRouter()
		resp := callMethod(t, router, "postAdminMessage", map[string]interface{}{
			"booking_id": 9, "message": "x", "attachment": "attachments/10/other.jpg",
		})

		assert.False(t, resp.Success)
		assert.Equal(t, "Invalid attachment", resp.Error)
		m.messages.AssertNotCalled(t, "PostAdminMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestJsonApiHandler_GetAttachmentUploadURL(t *testing.T) {
	router, m := setupTestRouter()
	m.bookings.On("Get", mock.Anything, uint64(9)).Return(&models.Booking{ID: 9}, nil).Once()
	m.storage.On("PresignUpload", mock.Anything, uint64(9), "receipt.jpg", "image/jpeg").
		Return("https://s3.example.com/put", "attachments/9/abc_receipt.jpg", nil).Once()

	resp := callMethod(t, router, "getAttachmentUploadURL", map[string]interface{}{
		"booking_id": 9, "filename": "receipt.jpg", "content_type": "image/jpeg",
	})

	assert.True(t, resp.Success)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "https://s3.example.com/put", data["upload_url"])
	assert.Equal(t, "attachments/9/abc_receipt.jpg", data["object_key"])
	m.storage.AssertExpectations(t)
}

func TestJsonApiHandler_SetNegotiatedPrice_Validation(t *testing.T) {
	router, m := setupTestRouter()
	m.bookings.On("SetNegotiatedPrice", mock.Anything, uint64(9), float64(-5), "").
		Return(nil, services.ErrValidation).Once()

	resp := callMethod(t, router, "setNegotiatedPrice", map[string]interface{}{"booking_id": 9, "price": -5})

	assert.False(t, resp.Success)
	assert.Equal(t, "validation failed", resp.Error)
}

func TestJsonApiHandler_MarkCarSold(t *testing.T) {
	router, m := setupTestRouter()
	m.cars.On("MarkSold", mock.Anything, int64(4), true).Return(nil).Once()
	m.cars.On("MarkSold", mock.Anything, int64(5), false).Return(nil).Once()
	m.cars.On("MarkSold", mock.Anything, int64(6), true).Return(services.ErrCarNotFound).Once()

	assert.True(t, callMethod(t, router, "markCarSold", map[string]interface{}{"car_id": 4}).Success)
	assert.True(t, callMethod(t, router, "markCarSold", map[string]interface{}{"car_id": 5, "sold": false}).Success)
	resp := callMethod(t, router, "markCarSold", map[string]interface{}{"car_id": 6})
	assert.Equal(t, "Car not found", resp.Error)
	m.cars.AssertExpectations(t)
}

func TestJsonApiHandler_GetTimeline(t *testing.T) {
	router, m := setupTestRouter()
	m.activities.On("Timeline", mock.Anything, uint64(9), true).Return([]models.Activity{
		{ID: 2, BookingID: 9, Type: models.ActivityPayment, Title: "Payment Scheduled"},
		{ID: 1, BookingID: 9, Type: models.ActivityStatusChange, Title: "Booking Created"},
	}, nil).Once()
	m.activities.On("Timeline", mock.Anything, uint64(10), false).Return(nil, nil).Once()

	resp := callMethod(t, router, "getTimeline", map[string]interface{}{"booking_id": 9, "customer_view": true})
	require.True(t, resp.Success)
	entries := resp.Data.([]interface{})
	require.Len(t, entries, 2)
	assert.Equal(t, "Payment Scheduled", entries[0].(map[string]interface{})["title"])

	resp = callMethod(t, router, "getTimeline", map[string]interface{}{"booking_id": 10})
	assert.Equal(t, []interface{}{}, resp.Data)
	m.activities.AssertExpectations(t)
}

func TestJsonApiHandler_UnreadCountAndContacted(t *testing.T) {
	router, m := setupTestRouter()
	m.messages.On("UnreadCountForAdmin", mock.Anything, uint64(9)).Return(int64(3), nil).Once()
	m.inquiries.On("MarkContacted", mock.Anything, uint64(40)).Return(nil).Once()

	resp := callMethod(t, router, "unreadCount", map[string]interface{}{"booking_id": 9})
	assert.Equal(t, float64(3), resp.Data.(map[string]interface{})["unread_count"])

	assert.True(t, callMethod(t, router, "markInquiryContacted", map[string]interface{}{"inquiry_id": 40}).Success)
	m.inquiries.AssertExpectations(t)
}

func TestRestAdminHandler_Login(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hash, err := auth.HashPassword("s3cret-pass")
	require.NoError(t, err)
	cfg := &config.Config{JwtSecret: "testsecret", JwtTTL: time.Hour, AdminUsername: "desk", AdminPasswordHash: hash}
	r := gin.New()
	r.POST("/v1/admin/login", handlers.NewRestAdminHandler(cfg).Login)

	w, resp := doJSON(r, http.MethodPost, "/v1/admin/login", gin.H{"username": "desk", "password": "s3cret-pass"})
	require.Equal(t, http.StatusOK, w.Code)
	token, _ := resp["token"].(string)
	claims, err := auth.ValidateJWT(token, "testsecret")
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin)
	assert.Equal(t, "desk", claims.Username)

	w, _ = doJSON(r, http.MethodPost, "/v1/admin/login", gin.H{"username": "desk", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, resp = doJSON(r, http.MethodPost, "/v1/admin/login", gin.H{"username": "desk"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "password is required", resp["error"])
}

func TestJsonApiHandler_SetConfig(t *testing.T) {
	router, m := setupTestRouter()
	m.settings.On("SetConfigValue", mock.Anything, "FREE_GIFT", "Full Tank of Fuel", true).Return(nil).Once()

	resp := callMethod(t, router, "setConfig", map[string]interface{}{"key": " FREE_GIFT ", "value": "Full Tank of Fuel", "public": true})
	require.True(t, resp.Success, resp.Error)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "FREE_GIFT", data["key"])
	m.settings.AssertExpectations(t)
}

func TestJsonApiHandler_SetConfig_Rejections(t *testing.T) {
	router, m := setupTestRouter()
	m.settings.On("SetConfigValue", mock.Anything, "SUBMISSION_LIMIT", "lots", false).
		Return(fmt.Errorf("%w: SUBMISSION_LIMIT must be a number", services.ErrValidation)).Once()

	resp := callMethod(t, router, "setConfig", map[string]interface{}{"key": "SUBMISSION_LIMIT", "value": "lots"})
	assert.False(t, resp.Success)
	assert.Equal(t, "SUBMISSION_LIMIT must be a number", resp.Error)

	resp = callMethod(t, router, "setConfig", map[string]interface{}{"key": "FREE_GIFT"})
	assert.False(t, resp.Success)
	assert.Equal(t, "Missing required arguments (key, value)", resp.Error)
	m.settings.AssertExpectations(t)
}
