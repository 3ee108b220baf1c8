package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"enoriel/autos/internal/config"
	"enoriel/autos/internal/models"

	"gorm.io/gorm"
)

// IBookingService drives a booking through its lifecycle. Every transition runs as one
// ledger transaction holding the booking's row lock: status, side-effect messages and
// timeline entries are written together or not at all.
type IBookingService interface {
	CreateFromInquiry(ctx context.Context, req CreateBookingRequest) (*models.Booking, error)
	Get(ctx context.Context, bookingID uint64) (*models.Booking, error)
	View(ctx context.Context, bookingID uint64) (*models.BookingView, error)
	AdminView(ctx context.Context, bookingID uint64) (*models.BookingView, error)
	FindByCustomer(ctx context.Context, phone, email string) ([]models.Booking, error)

	ScheduleInspection(ctx context.Context, bookingID uint64, at time.Time, location, notes string) (*models.Booking, error)
	SchedulePayment(ctx context.Context, bookingID uint64, date time.Time, method models.PaymentMethod) (*models.Booking, error)
	ConfirmPayment(ctx context.Context, bookingID uint64, reference string) (*models.Booking, error)
	Complete(ctx context.Context, bookingID uint64) (*models.Booking, error)
	Cancel(ctx context.Context, bookingID uint64) (*models.Booking, error)
	Advance(ctx context.Context, bookingID uint64) (bool, error)
	AdvanceMany(ctx context.Context, bookingIDs []uint64) (int, error)

	SetNegotiatedPrice(ctx context.Context, bookingID uint64, price float64, note string) (*models.Booking, error)
	AddNote(ctx context.Context, bookingID uint64, note string) (*models.Activity, error)
}

// CreateBookingRequest is the inquiry form that starts a booking.
type CreateBookingRequest struct {
	CarID         int64
	Name          string
	Phone         string
	Email         string
	Message       string
	NotifyByEmail bool
}

type bookingService struct {
	ledger
	cfg      *config.Config
	cars     ICarService
	messages IMessageService
	settings IConfigService
}

// NewBookingService creates a new BookingService. The free gift and currency symbol in
// system messages come from settings so runtime overrides reach the conversation.
func NewBookingService(gdb *gorm.DB, cfg *config.Config, cars ICarService, messages IMessageService, settings IConfigService) IBookingService {
	return &bookingService{
		ledger:   newLedger(gdb, cfg.StoreTimeout),
		cfg:      cfg,
		cars:     cars,
		messages: messages,
		settings: settings,
	}
}

// CreateFromInquiry records the inquiry, converts it into a booking and posts the welcome
// message in one transaction.
func (s *bookingService) CreateFromInquiry(ctx context.Context, req CreateBookingRequest) (*models.Booking, error) {
	contact, err := normalizeContact(req.Name, req.Phone, req.Email)
	if err != nil {
		return nil, err
	}
	if req.CarID <= 0 {
		return nil, validationError("please fill in all required fields")
	}

	// The sold flag is set outside this service too, so it is read past the cache.
	car, err := s.cars.GetCarFresh(ctx, req.CarID)
	if err != nil {
		return nil, err
	}
	if car.IsSold {
		return nil, ErrCarSold
	}
	gift := freeGift(ctx, s.settings, s.cfg)

	text := strings.TrimSpace(req.Message)
	if text == "" {
		text = fmt.Sprintf("I'm interested in %s", car.Title)
	}

	booking := &models.Booking{}
	err = s.inTx(ctx, func(tx *gorm.DB) error {
		now := s.now()

		inquiry := &models.Inquiry{
			CarID:              car.ID,
			Name:               contact.name,
			Email:              contact.email,
			Phone:              contact.phone,
			Message:            text,
			ConvertedToBooking: true,
			CreatedAt:          now,
		}
		if err := tx.Create(inquiry).Error; err != nil {
			return fmt.Errorf("failed to create inquiry: %w", err)
		}

		*booking = models.Booking{
			CarID:         car.ID,
			InquiryID:     &inquiry.ID,
			CustomerName:  contact.name,
			CustomerPhone: contact.phone,
			CustomerEmail: contact.email,
			Status:        models.StatusInterestShown,
			IsActive:      true,
			NotifyByEmail: req.NotifyByEmail,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.Create(booking).Error; err != nil {
			return fmt.Errorf("failed to create booking: %w", err)
		}

		if err := appendActivity(tx, booking, &models.Activity{
			Type:                models.ActivityStatusChange,
			Title:               "Booking Created",
			Description:         fmt.Sprintf("%s started the booking journey for %s", contact.name, car.Title),
			PerformedBy:         models.ActorCustomer,
			IsVisibleToCustomer: true,
		}, now); err != nil {
			return err
		}

		// The welcome message lands strictly after CreatedAt so a poll from the creation
		// time sees it.
		return appendMessage(tx, booking, &models.Message{
			Body:        welcomeMessage(gift),
			IsFromAdmin: true,
		}, now)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Booking %d created for car %d by %s", booking.ID, car.ID, contact.name)
	return booking, nil
}

func welcomeMessage(gift string) string {
	return fmt.Sprintf(`Welcome to your booking journey! 🚗

Here's what happens next:

1. Schedule Inspection - Pick a time to view the car
2. Negotiate Price - Chat with us to get the best deal
3. Schedule Payment - Choose when to make payment
4. Complete Purchase - Collect documents & FREE %s! 🎁

You can message us anytime using the chat. We typically respond within 30 minutes during business hours.

Let's get started! 🎉`, gift)
}

// Get returns an active booking.
func (s *bookingService) Get(ctx context.Context, bookingID uint64) (*models.Booking, error) {
	var b *models.Booking
	err := s.run(ctx, func(q *gorm.DB) error {
		var err error
		b, err = findBooking(q, bookingID, true)
		return err
	})
	return b, err
}

// View assembles the customer booking page. Viewing marks the admin's messages read.
func (s *bookingService) View(ctx context.Context, bookingID uint64) (*models.BookingView, error) {
	if _, err := s.Get(ctx, bookingID); err != nil {
		return nil, err
	}
	if _, err := s.messages.MarkAdminMessagesRead(ctx, bookingID); err != nil {
		return nil, err
	}
	return s.buildView(ctx, bookingID, true, true)
}

// AdminView is the full booking page including internal entries and inactive bookings.
func (s *bookingService) AdminView(ctx context.Context, bookingID uint64) (*models.BookingView, error) {
	return s.buildView(ctx, bookingID, false, false)
}

func (s *bookingService) buildView(ctx context.Context, bookingID uint64, activeOnly, customerView bool) (*models.BookingView, error) {
	view := &models.BookingView{}
	err := s.run(ctx, func(q *gorm.DB) error {
		b, err := findBooking(q, bookingID, activeOnly)
		if err != nil {
			return err
		}
		view.Booking = b
		if err := q.Where("booking_id = ?", b.ID).Order("created_at ASC").Order("id ASC").Find(&view.Messages).Error; err != nil {
			return fmt.Errorf("failed to list messages of booking %d: %w", b.ID, err)
		}
		if err := timelineQuery(q, b.ID, customerView).Find(&view.Activities).Error; err != nil {
			return fmt.Errorf("failed to list activities of booking %d: %w", b.ID, err)
		}
		view.HasUnreadMessages, err = hasUnreadMessages(q, b)
		return err
	})
	if err != nil {
		return nil, err
	}

	b := view.Booking
	car, err := s.cars.GetCar(ctx, b.CarID)
	if err != nil && !errors.Is(err, ErrCarNotFound) {
		return nil, err
	}
	view.Car = car
	view.StatusDisplay = b.Status.Display()
	view.Progress = b.Progress()
	view.FinalPrice = b.FinalPrice(car)
	view.FormattedPrice = FormatPrice(currencySymbol(ctx, s.settings, s.cfg), view.FinalPrice)
	view.NextAction = b.NextAction()
	view.ShowFreeGiftBanner = b.ShowFreeGiftBanner()
	return view, nil
}

// FindByCustomer lists bookings whose phone contains the cleaned phone number or whose
// email matches exactly, ignoring case. Newest first.
func (s *bookingService) FindByCustomer(ctx context.Context, phone, email string) ([]models.Booking, error) {
	phone = cleanPhone(phone)
	email = strings.TrimSpace(email)
	if phone == "" && email == "" {
		return nil, validationError("phone or email is required")
	}

	var bookings []models.Booking
	err := s.run(ctx, func(q *gorm.DB) error {
		var conds []string
		var args []interface{}
		if phone != "" {
			conds = append(conds, "customer_phone LIKE ? ESCAPE '!'")
			args = append(args, containsPattern(phone))
		}
		if email != "" {
			conds = append(conds, "LOWER(customer_email) = LOWER(?)")
			args = append(args, email)
		}
		return q.Where(strings.Join(conds, " OR "), args...).
			Order("created_at DESC").Order("id DESC").
			Find(&bookings).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search bookings: %w", err)
	}
	return bookings, nil
}

// transitionFunc applies the side effects of one transition. b already carries the new
// status; the caller saves it afterwards.
type transitionFunc func(tx *gorm.DB, b *models.Booking, now time.Time) error

// chooseFunc picks the event and its effects for the locked booking. An error aborts the
// transition before anything is written.
type chooseFunc func(b *models.Booking) (models.BookingEvent, transitionFunc, error)

// transition locks the booking, runs it through the state machine and applies the side
// effects chosen for the event. An event the current status does not accept fails with
// ErrInvalidState before anything is written.
func (s *bookingService) transition(ctx context.Context, bookingID uint64, choose chooseFunc) (*models.Booking, error) {
	var booking *models.Booking
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		b, err := lockBooking(tx, bookingID, true)
		if err != nil {
			return err
		}
		ev, apply, err := choose(b)
		if err != nil {
			return err
		}
		to, err := models.Transition(b.Status, ev)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidState, err)
		}

		now := s.now()
		b.Status = to
		b.UpdatedAt = laterThan(now, b.UpdatedAt)
		if apply != nil {
			if err := apply(tx, b, now); err != nil {
				return err
			}
		}
		if err := saveBooking(tx, b); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

func fixed(ev models.BookingEvent, apply transitionFunc) chooseFunc {
	return func(*models.Booking) (models.BookingEvent, transitionFunc, error) { return ev, apply, nil }
}

// ScheduleInspection books the viewing slot. Valid only while interest is shown.
func (s *bookingService) ScheduleInspection(ctx context.Context, bookingID uint64, at time.Time, location, notes string) (*models.Booking, error) {
	location = strings.TrimSpace(location)
	if at.IsZero() {
		return nil, validationError("inspection date and time are required")
	}
	if location == "" {
		return nil, validationError("inspection location is required")
	}
	if len([]rune(location)) > 200 {
		return nil, validationError("inspection location is too long")
	}
	at = at.UTC().Truncate(time.Microsecond)

	return s.transition(ctx, bookingID, fixed(models.EventScheduleInspection, func(tx *gorm.DB, b *models.Booking, now time.Time) error {
		b.InspectionDate = &at
		b.InspectionLocation = location
		b.InspectionNotes = strings.TrimSpace(notes)

		if err := appendActivity(tx, b, &models.Activity{
			Type:                models.ActivityInspection,
			Title:               "Inspection Scheduled",
			Description:         fmt.Sprintf("Inspection scheduled for %s at %s", at.Format("January 02, 2006 at 03:04 PM"), location),
			PerformedBy:         models.ActorCustomer,
			IsVisibleToCustomer: true,
			Details:             map[string]interface{}{"inspection_date": at.Format(time.RFC3339), "location": location},
		}, now); err != nil {
			return err
		}

		return appendMessage(tx, b, &models.Message{
			Body:        s.inspectionMessage(at, location),
			IsFromAdmin: true,
		}, now)
	}))
}

func (s *bookingService) inspectionMessage(at time.Time, location string) string {
	return fmt.Sprintf(`✅ Inspection confirmed!

Date: %s
Time: %s
Location: %s

We'll send you a reminder %d hours before. See you then! 🚗`,
		at.Format("January 02, 2006"), at.Format("03:04 PM"), location, int(s.cfg.InspectionReminderLead.Hours()))
}

// SchedulePayment records when and how the customer will pay. Valid only once an
// inspection is scheduled.
func (s *bookingService) SchedulePayment(ctx context.Context, bookingID uint64, date time.Time, method models.PaymentMethod) (*models.Booking, error) {
	if date.IsZero() {
		return nil, validationError("payment date is required")
	}
	if _, err := models.ParsePaymentMethod(string(method)); err != nil {
		return nil, validationError("%v", err)
	}
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	// The car is read before the transaction; the catalog lives outside the ledger.
	current, err := s.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	car, err := s.cars.GetCar(ctx, current.CarID)
	if err != nil {
		return nil, err
	}
	symbol := currencySymbol(ctx, s.settings, s.cfg)
	gift := freeGift(ctx, s.settings, s.cfg)

	return s.transition(ctx, bookingID, fixed(models.EventSchedulePayment, func(tx *gorm.DB, b *models.Booking, now time.Time) error {
		b.PaymentScheduledDate = &day
		b.PaymentMethod = method
		dayStr := day.Format("2006-01-02")

		if err := appendActivity(tx, b, &models.Activity{
			Type:                models.ActivityPayment,
			Title:               "Payment Date Scheduled",
			Description:         fmt.Sprintf("Payment scheduled for %s via %s", dayStr, method.Display()),
			PerformedBy:         models.ActorCustomer,
			IsVisibleToCustomer: true,
			Details:             map[string]interface{}{"payment_date": dayStr, "payment_method": string(method)},
		}, now); err != nil {
			return err
		}

		return appendMessage(tx, b, &models.Message{
			Body:        s.paymentMessage(dayStr, FormatPrice(symbol, b.FinalPrice(car)), method, gift),
			IsFromAdmin: true,
		}, now)
	}))
}

func (s *bookingService) paymentMessage(day, finalPrice string, method models.PaymentMethod, gift string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ Payment scheduled for %s!\n\n", day)
	fmt.Fprintf(&sb, "Final Price: %s\n", finalPrice)
	fmt.Fprintf(&sb, "Method: %s\n\n", method.Display())
	if s.cfg.PaymentBankName != "" {
		sb.WriteString("Bank Details:\n")
		fmt.Fprintf(&sb, "Bank: %s\n", s.cfg.PaymentBankName)
		fmt.Fprintf(&sb, "Account: %s\n", s.cfg.PaymentAccountNumber)
		fmt.Fprintf(&sb, "Name: %s\n\n", s.cfg.PaymentAccountName)
	}
	sb.WriteString("Send payment confirmation screenshot here after payment.\n\n")
	fmt.Fprintf(&sb, "🎁 Don't forget: You'll receive %s as a FREE gift when you complete payment!", gift)
	return sb.String()
}

// ConfirmPayment is the administrative acknowledgement that the money arrived.
func (s *bookingService) ConfirmPayment(ctx context.Context, bookingID uint64, reference string) (*models.Booking, error) {
	gift := freeGift(ctx, s.settings, s.cfg)
	return s.transition(ctx, bookingID, fixed(models.EventConfirmPayment, confirmPaymentEffects(strings.TrimSpace(reference), gift)))
}

func confirmPaymentEffects(reference, gift string) transitionFunc {
	return func(tx *gorm.DB, b *models.Booking, now time.Time) error {
		b.PaymentConfirmedDate = &now
		if reference != "" {
			b.PaymentReference = reference
		}

		if err := appendMessage(tx, b, &models.Message{
			Body:        fmt.Sprintf("✅ Payment confirmed! Visit our showroom to collect documents and your free %s gift. Congratulations! 🎉", gift),
			IsFromAdmin: true,
		}, now); err != nil {
			return err
		}

		return appendActivity(tx, b, &models.Activity{
			Type:                models.ActivityPayment,
			Title:               "Payment Confirmed",
			Description:         "Admin confirmed payment received",
			PerformedBy:         models.ActorAdmin,
			IsVisibleToCustomer: true,
		}, now)
	}
}

// Complete closes a paid booking and claims the free gift.
func (s *bookingService) Complete(ctx context.Context, bookingID uint64) (*models.Booking, error) {
	return s.transition(ctx, bookingID, fixed(models.EventComplete, completeEffects))
}

func completeEffects(tx *gorm.DB, b *models.Booking, now time.Time) error {
	claimFreeGift(b, now)
	return appendActivity(tx, b, &models.Activity{
		Type:                models.ActivityStatusChange,
		Title:               "Purchase Completed",
		Description:         "Booking completed successfully",
		PerformedBy:         models.ActorAdmin,
		IsVisibleToCustomer: true,
	}, now)
}

// claimFreeGift flips the claim flag once; later calls keep the original claim date.
func claimFreeGift(b *models.Booking, now time.Time) {
	if b.FreeGiftClaimed {
		return
	}
	b.FreeGiftClaimed = true
	b.FreeGiftClaimedDate = &now
}

// Cancel deactivates a booking that has not finished. No message is sent.
func (s *bookingService) Cancel(ctx context.Context, bookingID uint64) (*models.Booking, error) {
	return s.transition(ctx, bookingID, fixed(models.EventCancel, func(tx *gorm.DB, b *models.Booking, now time.Time) error {
		b.IsActive = false
		return appendActivity(tx, b, &models.Activity{
			Type:        models.ActivityStatusChange,
			Title:       "Booking Cancelled",
			PerformedBy: models.ActorAdmin,
		}, now)
	}))
}

// Advance moves a booking one stage along the forward chain through the same operation an
// admin would run for that stage, so it never writes a second version of a transition.
// Stages whose operation needs the customer's inspection or payment details cannot be
// advanced generically. It reports false without error when the booking cannot advance.
func (s *bookingService) Advance(ctx context.Context, bookingID uint64) (bool, error) {
	gift := freeGift(ctx, s.settings, s.cfg)
	_, err := s.transition(ctx, bookingID, func(b *models.Booking) (models.BookingEvent, transitionFunc, error) {
		switch b.Status {
		case models.StatusPaymentScheduled:
			return models.EventConfirmPayment, confirmPaymentEffects("", gift), nil
		case models.StatusPaymentConfirmed:
			return models.EventComplete, completeEffects, nil
		case models.StatusInterestShown:
			return "", nil, fmt.Errorf("%w: scheduling an inspection needs a date and location", ErrInvalidState)
		case models.StatusInspectionScheduled:
			return "", nil, fmt.Errorf("%w: scheduling payment needs a date and method", ErrInvalidState)
		default:
			return "", nil, fmt.Errorf("%w: booking is %s", ErrInvalidState, b.Status)
		}
	})
	if errors.Is(err, ErrInvalidState) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// AdvanceMany advances each booking independently and returns how many moved. Unknown or
// inactive bookings are skipped.
func (s *bookingService) AdvanceMany(ctx context.Context, bookingIDs []uint64) (int, error) {
	moved := 0
	for _, id := range bookingIDs {
		ok, err := s.Advance(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return moved, err
		}
		if ok {
			moved++
		}
	}
	return moved, nil
}

// SetNegotiatedPrice records the price agreed in the conversation. It replaces the listed
// price in every later final price.
func (s *bookingService) SetNegotiatedPrice(ctx context.Context, bookingID uint64, price float64, note string) (*models.Booking, error) {
	if price <= 0 {
		return nil, validationError("negotiated price must be positive")
	}
	symbol := currencySymbol(ctx, s.settings, s.cfg)

	var booking *models.Booking
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		b, err := lockBooking(tx, bookingID, true)
		if err != nil {
			return err
		}
		if b.Status.IsTerminal() {
			return fmt.Errorf("%w: booking is %s", ErrInvalidState, b.Status)
		}

		now := s.now()
		b.NegotiatedPrice = &price
		b.UpdatedAt = laterThan(now, b.UpdatedAt)
		if err := appendActivity(tx, b, &models.Activity{
			Type:                models.ActivityNote,
			Title:               "Price agreed at " + FormatPrice(symbol, price),
			Description:         strings.TrimSpace(note),
			PerformedBy:         models.ActorAdmin,
			IsVisibleToCustomer: true,
			Details:             map[string]interface{}{"negotiated_price": price},
		}, now); err != nil {
			return err
		}
		if err := saveBooking(tx, b); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// AddNote appends an internal note. Notes never show in the customer timeline.
func (s *bookingService) AddNote(ctx context.Context, bookingID uint64, note string) (*models.Activity, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, validationError("note cannot be empty")
	}

	var activity *models.Activity
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		b, err := lockBooking(tx, bookingID, false)
		if err != nil {
			return err
		}
		now := s.now()
		if b.AdminNotes == "" {
			b.AdminNotes = note
		} else {
			b.AdminNotes = b.AdminNotes + "\n" + note
		}
		if err := tx.Model(&models.Booking{}).Where("id = ?", b.ID).Update("admin_notes", b.AdminNotes).Error; err != nil {
			return fmt.Errorf("failed to update notes of booking %d: %w", b.ID, err)
		}
		activity = &models.Activity{
			Type:        models.ActivityNote,
			Title:       "Internal note",
			Description: note,
			PerformedBy: models.ActorAdmin,
		}
		return appendActivity(tx, b, activity, now)
	})
	if err != nil {
		return nil, err
	}
	return activity, nil
}
