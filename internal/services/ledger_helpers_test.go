package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"enoriel/autos/internal/config"
	"enoriel/autos/internal/models"
	"enoriel/autos/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeCars is an in-memory catalog with a memo in front of it, like the real service.
type fakeCars struct {
	mu     sync.Mutex
	cars   map[int64]*models.Car
	cached map[int64]models.Car
}

func newFakeCars(cars ...models.Car) *fakeCars {
	f := &fakeCars{cars: make(map[int64]*models.Car), cached: make(map[int64]models.Car)}
	for i := range cars {
		c := cars[i]
		f.cars[c.ID] = &c
	}
	return f
}

func (f *fakeCars) GetCar(ctx context.Context, carID int64) (*models.Car, error) {
	f.mu.Lock()
	if c, ok := f.cached[carID]; ok {
		f.mu.Unlock()
		return &c, nil
	}
	f.mu.Unlock()
	return f.GetCarFresh(ctx, carID)
}

func (f *fakeCars) GetCarFresh(ctx context.Context, carID int64) (*models.Car, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cars[carID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrCarNotFound, carID)
	}
	f.cached[carID] = *c
	cp := *c
	return &cp, nil
}

func (f *fakeCars) MarkSold(ctx context.Context, carID int64, sold bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cars[carID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrCarNotFound, carID)
	}
	c.IsSold = sold
	delete(f.cached, carID)
	return nil
}

// sellBehindCache flips the catalog row the way the listing side does, leaving any
// memoized copy untouched.
func (f *fakeCars) sellBehindCache(carID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cars[carID].IsSold = true
}

const (
	testCarID     int64 = 1
	testSoldCarID int64 = 2
)

func testConfig() *config.Config {
	return &config.Config{
		StoreTimeout:           5 * time.Second,
		CurrencySymbol:         "₦",
		FreeGift:               "5L Engine Oil",
		PaymentBankName:        "GTBank",
		PaymentAccountNumber:   "0123456789",
		PaymentAccountName:     "Enoriel Growth Ltd",
		InspectionReminderLead: 24 * time.Hour,
	}
}

type testLedger struct {
	db         *gorm.DB
	cfg        *config.Config
	cars       *fakeCars
	settings   *configService
	bookings   IBookingService
	messages   IMessageService
	updates    IUpdateService
	activities IActivityService
	inquiries  IInquiryService
}

func setupLedger(t *testing.T) *testLedger {
	t.Helper()
	gdb := utils.SetupTestLedger(t)
	cfg := testConfig()
	cars := newFakeCars(
		models.Car{ID: testCarID, Title: "2018 Toyota Camry", Price: 12500000, Slug: "2018-toyota-camry"},
		models.Car{ID: testSoldCarID, Title: "2015 Honda Accord", Price: 6000000, IsSold: true, Slug: "2015-honda-accord"},
	)
	// Settings without a catalog: only environment defaults and values set on its cache.
	settings := newConfigService(nil, cfg, nil)
	messages := NewMessageService(gdb, cfg, settings)
	return &testLedger{
		db:         gdb,
		cfg:        cfg,
		cars:       cars,
		settings:   settings,
		bookings:   NewBookingService(gdb, cfg, cars, messages, settings),
		messages:   messages,
		updates:    NewUpdateService(gdb, cfg.StoreTimeout),
		activities: NewActivityService(gdb, cfg.StoreTimeout),
		inquiries:  NewInquiryService(gdb, cfg.StoreTimeout, cars),
	}
}

func (l *testLedger) createBooking(t *testing.T) *models.Booking {
	t.Helper()
	b, err := l.bookings.CreateFromInquiry(context.Background(), CreateBookingRequest{
		CarID: testCarID,
		Name:  "Ada",
		Phone: "+2348012345678",
		Email: "ada@example.com",
	})
	require.NoError(t, err)
	return b
}

// advanceTo walks a fresh booking through the canonical operations up to status.
func (l *testLedger) advanceTo(t *testing.T, status models.BookingStatus) *models.Booking {
	t.Helper()
	ctx := context.Background()
	b := l.createBooking(t)
	steps := []struct {
		reached models.BookingStatus
		run     func() (*models.Booking, error)
	}{
		{models.StatusInspectionScheduled, func() (*models.Booking, error) {
			return l.bookings.ScheduleInspection(ctx, b.ID, time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC), "Lagos", "")
		}},
		{models.StatusPaymentScheduled, func() (*models.Booking, error) {
			return l.bookings.SchedulePayment(ctx, b.ID, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), models.PaymentBankTransfer)
		}},
		{models.StatusPaymentConfirmed, func() (*models.Booking, error) {
			return l.bookings.ConfirmPayment(ctx, b.ID, "TRX-001")
		}},
		{models.StatusCompleted, func() (*models.Booking, error) {
			return l.bookings.Complete(ctx, b.ID)
		}},
	}
	for _, step := range steps {
		if b.Status == status {
			return b
		}
		var err error
		b, err = step.run()
		require.NoError(t, err)
		require.Equal(t, step.reached, b.Status)
	}
	require.Equal(t, status, b.Status)
	return b
}

func (l *testLedger) countMessages(t *testing.T, bookingID uint64) int64 {
	t.Helper()
	var n int64
	require.NoError(t, l.db.Model(&models.Message{}).Where("booking_id = ?", bookingID).Count(&n).Error)
	return n
}

func (l *testLedger) reload(t *testing.T, bookingID uint64) *models.Booking {
	t.Helper()
	var b models.Booking
	require.NoError(t, l.db.First(&b, bookingID).Error)
	return &b
}

// failCreates runs next before every insert into table and fails the insert with the error
// it returns, if any.
func (l *testLedger) failCreates(t *testing.T, table string, next func() error) {
	t.Helper()
	err := l.db.Callback().Create().Before("gorm:create").Register("test:fail_"+table, func(tx *gorm.DB) {
		if tx.Statement.Table != table {
			return
		}
		if err := next(); err != nil {
			_ = tx.AddError(err)
		}
	})
	require.NoError(t, err)
}

// override sets a runtime setting the way a stored value would.
func (l *testLedger) override(key string, value interface{}) {
	l.settings.mutex.Lock()
	defer l.settings.mutex.Unlock()
	l.settings.cache[key] = value
}

// assertSameInstant compares instants regardless of the location the driver attached.
func assertSameInstant(t *testing.T, want, got time.Time) {
	t.Helper()
	assert.True(t, want.Equal(got), "want %s, got %s", want, got)
}
