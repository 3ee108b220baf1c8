package handlers_test

import (
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/mock"

	"enoriel/autos/internal/models"
	"enoriel/autos/internal/services"
)

// --- Mocks ---

type MockBookingService struct {
	mock.Mock
}

func (m *MockBookingService) booking(args mock.Arguments) (*models.Booking, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *MockBookingService) view(args mock.Arguments) (*models.BookingView, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BookingView), args.Error(1)
}

func (m *MockBookingService) CreateFromInquiry(ctx context.Context, req services.CreateBookingRequest) (*models.Booking, error) {
	return m.booking(m.Called(ctx, req))
}
func (m *MockBookingService) Get(ctx context.Context, bookingID uint64) (*models.Booking, error) {
	return m.booking(m.Called(ctx, bookingID))
}
func (m *MockBookingService) View(ctx context.Context, bookingID uint64) (*models.BookingView, error) {
	return m.view(m.Called(ctx, bookingID))
}
func (m *MockBookingService) AdminView(ctx context.Context, bookingID uint64) (*models.BookingView, error) {
	return m.view(m.Called(ctx, bookingID))
}
func (m *MockBookingService) FindByCustomer(ctx context.Context, phone, email string) ([]models.Booking, error) {
	args := m.Called(ctx, phone, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}
func (m *MockBookingService) ScheduleInspection(ctx context.Context, bookingID uint64, at time.Time, location, notes string) (*models.Booking, error) {
	return m.booking(m.Called(ctx, bookingID, at, location, notes))
}
func (m *MockBookingService) SchedulePayment(ctx context.Context, bookingID uint64, date time.Time, method models.PaymentMethod) (*models.Booking, error) {
	return m.booking(m.Called(ctx, bookingID, date, method))
}
func (m *MockBookingService) ConfirmPayment(ctx context.Context, bookingID uint64, reference string) (*models.Booking, error) {
	return m.booking(m.Called(ctx, bookingID, reference))
}
func (m *MockBookingService) Complete(ctx context.Context, bookingID uint64) (*models.Booking, error) {
	return m.booking(m.Called(ctx, bookingID))
}
func (m *MockBookingService) Cancel(ctx context.Context, bookingID uint64) (*models.Booking, error) {
	return m.booking(m.Called(ctx, bookingID))
}
func (m *MockBookingService) Advance(ctx context.Context, bookingID uint64) (bool, error) {
	args := m.Called(ctx, bookingID)
	return args.Bool(0), args.Error(1)
}
func (m *MockBookingService) AdvanceMany(ctx context.Context, bookingIDs []uint64) (int, error) {
	args := m.Called(ctx, bookingIDs)
	return args.Int(0), args.Error(1)
}
func (m *MockBookingService) SetNegotiatedPrice(ctx context.Context, bookingID uint64, price float64, note string) (*models.Booking, error) {
	return m.booking(m.Called(ctx, bookingID, price, note))
}
func (m *MockBookingService) AddNote(ctx context.Context, bookingID uint64, note string) (*models.Activity, error) {
	args := m.Called(ctx, bookingID, note)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Activity), args.Error(1)
}

type MockMessageService struct {
	mock.Mock
}

func (m *MockMessageService) message(args mock.Arguments) (*models.Message, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMessageService) PostCustomerMessage(ctx context.Context, bookingID uint64, text string, priceOffer *float64) (*models.Message, error) {
	return m.message(m.Called(ctx, bookingID, text, priceOffer))
}
func (m *MockMessageService) PostAdminMessage(ctx context.Context, bookingID uint64, text string, priceOffer *float64, attachmentKey string) (*models.Message, error) {
	return m.message(m.Called(ctx, bookingID, text, priceOffer, attachmentKey))
}
func (m *MockMessageService) MarkAdminMessagesRead(ctx context.Context, bookingID uint64) (int64, error) {
	args := m.Called(ctx, bookingID)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockMessageService) List(ctx context.Context, bookingID uint64) ([]models.Message, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}
func (m *MockMessageService) UnreadCountForAdmin(ctx context.Context, bookingID uint64) (int64, error) {
	args := m.Called(ctx, bookingID)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockMessageService) HasUnreadMessages(ctx context.Context, bookingID uint64) (bool, error) {
	args := m.Called(ctx, bookingID)
	return args.Bool(0), args.Error(1)
}

type MockActivityService struct {
	mock.Mock
}

func (m *MockActivityService) Record(ctx context.Context, bookingID uint64, activity *models.Activity) error {
	return m.Called(ctx, bookingID, activity).Error(0)
}
func (m *MockActivityService) Timeline(ctx context.Context, bookingID uint64, customerView bool) ([]models.Activity, error) {
	args := m.Called(ctx, bookingID, customerView)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Activity), args.Error(1)
}

type MockUpdateService struct {
	mock.Mock
}

func (m *MockUpdateService) Poll(ctx context.Context, bookingID uint64, lastCheck string) (*models.BookingUpdate, error) {
	args := m.Called(ctx, bookingID, lastCheck)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BookingUpdate), args.Error(1)
}

type MockInquiryService struct {
	mock.Mock
}

func (m *MockInquiryService) CreateInquiry(ctx context.Context, carID int64, name, phone, email, message string) (*models.Inquiry, error) {
	args := m.Called(ctx, carID, name, phone, email, message)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Inquiry), args.Error(1)
}
func (m *MockInquiryService) MarkContacted(ctx context.Context, inquiryID uint64) error {
	return m.Called(ctx, inquiryID).Error(0)
}

type MockCarService struct {
	mock.Mock
}

func (m *MockCarService) GetCar(ctx context.Context, carID int64) (*models.Car, error) {
	args := m.Called(ctx, carID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Car), args.Error(1)
}
func (m *MockCarService) GetCarFresh(ctx context.Context, carID int64) (*models.Car, error) {
	args := m.Called(ctx, carID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Car), args.Error(1)
}
func (m *MockCarService) MarkSold(ctx context.Context, carID int64, sold bool) error {
	return m.Called(ctx, carID, sold).Error(0)
}

type MockSubmissionLimiter struct {
	mock.Mock
}

func (m *MockSubmissionLimiter) Check(ctx context.Context, clientKey string) error {
	return m.Called(ctx, clientKey).Error(0)
}
func (m *MockSubmissionLimiter) Record(ctx context.Context, clientKey string) {
	m.Called(ctx, clientKey)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) BookingCreated(ctx context.Context, b *models.Booking, car *models.Car, message string) {
	m.Called(ctx, b, car, message)
}
func (m *MockNotifier) CustomerMessage(ctx context.Context, b *models.Booking, text string) {
	m.Called(ctx, b, text)
}
func (m *MockNotifier) AdminMessage(ctx context.Context, b *models.Booking, car *models.Car, text string) {
	m.Called(ctx, b, car, text)
}
func (m *MockNotifier) InspectionScheduled(ctx context.Context, b *models.Booking) {
	m.Called(ctx, b)
}
func (m *MockNotifier) AttachmentPosted(ctx context.Context, bookingID uint64, key string) {
	m.Called(ctx, bookingID, key)
}

type MockAttachmentStorage struct {
	mock.Mock
}

func (m *MockAttachmentStorage) PresignUpload(ctx context.Context, bookingID uint64, filename, contentType string) (string, string, error) {
	args := m.Called(ctx, bookingID, filename, contentType)
	return args.String(0), args.String(1), args.Error(2)
}
func (m *MockAttachmentStorage) GetObject(ctx context.Context, key string) (io.ReadCloser, int64, string, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, 0, "", args.Error(3)
	}
	return args.Get(0).(io.ReadCloser), args.Get(1).(int64), args.String(2), args.Error(3)
}
func (m *MockAttachmentStorage) PutObject(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	return m.Called(ctx, key, contentType, body, size).Error(0)
}

type MockConfigService struct {
	mock.Mock
}

func (m *MockConfigService) GetAllPublic(ctx context.Context) (map[string]interface{}, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]interface{}), args.Error(1)
}
func (m *MockConfigService) Get(ctx context.Context, key string) (interface{}, error) {
	args := m.Called(ctx, key)
	return args.Get(0), args.Error(1)
}
func (m *MockConfigService) GetInt(ctx context.Context, key string, defaultValue int) int {
	return defaultValue
}
func (m *MockConfigService) GetString(ctx context.Context, key string, defaultValue string) string {
	return defaultValue
}
func (m *MockConfigService) GetDuration(ctx context.Context, key string, defaultValue time.Duration) time.Duration {
	return defaultValue
}
func (m *MockConfigService) Load(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
func (m *MockConfigService) SubscribeToChanges(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
func (m *MockConfigService) SetConfigValue(ctx context.Context, key string, value interface{}, isPublic bool) error {
	return m.Called(ctx, key, value, isPublic).Error(0)
}
func (m *MockConfigService) GetAPIEndpointConfig(ctx context.Context, apiType models.APIType, endpoint string, isAuthenticated bool) (*models.APIEndpointConfig, error) {
	args := m.Called(ctx, apiType, endpoint, isAuthenticated)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.APIEndpointConfig), args.Error(1)
}
