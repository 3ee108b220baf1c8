package tasks

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"enoriel/autos/internal/config"
	"enoriel/autos/internal/models"
	"enoriel/autos/internal/services"

	"github.com/hibiken/asynq"
)

// Enqueuer is the part of *asynq.Client the notifier uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Notifier turns booking events into background tasks. Enqueue failures are logged and
// never fail the request that triggered them.
type Notifier struct {
	client Enqueuer
	cfg    *config.Config
	now    func() time.Time
}

func NewNotifier(client Enqueuer, cfg *config.Config) *Notifier {
	return &Notifier{client: client, cfg: cfg, now: time.Now}
}

func customerLink(cfg *config.Config, bookingID uint64) string {
	return fmt.Sprintf("%s/booking/%d", strings.TrimRight(cfg.PublicBaseURL, "/"), bookingID)
}

func adminLink(cfg *config.Config, bookingID uint64) string {
	return fmt.Sprintf("%s/admin/bookings/%d", strings.TrimRight(cfg.PublicBaseURL, "/"), bookingID)
}

func carTitle(car *models.Car) string {
	if car == nil {
		return ""
	}
	return car.Title
}

func (n *Notifier) enqueue(ctx context.Context, task *asynq.Task, err error) {
	if err != nil {
		log.Printf("Error building task: %v", err)
		return
	}
	if n.client == nil {
		return
	}
	if _, err := n.client.EnqueueContext(ctx, task); err != nil {
		log.Printf("Error enqueuing %s task: %v", task.Type(), err)
	}
}

func (n *Notifier) email(ctx context.Context, to, templateID string, data map[string]interface{}) {
	if to == "" {
		return
	}
	task, err := NewEmailDeliveryTask(EmailTaskPayload{To: to, TemplateID: templateID, Data: data})
	n.enqueue(ctx, task, err)
}

func (n *Notifier) customerEmail(b *models.Booking) string {
	if !b.NotifyByEmail {
		return ""
	}
	return b.CustomerEmail
}

// BookingCreated tells the sales desk about a new booking and welcomes the customer.
func (n *Notifier) BookingCreated(ctx context.Context, b *models.Booking, car *models.Car, message string) {
	n.email(ctx, n.cfg.AdminEmail, services.TemplateBookingCreatedAdmin, map[string]interface{}{
		"booking_id":     b.ID,
		"car_title":      carTitle(car),
		"customer_name":  b.CustomerName,
		"customer_phone": b.CustomerPhone,
		"message":        message,
		"link":           adminLink(n.cfg, b.ID),
	})
	n.email(ctx, n.customerEmail(b), services.TemplateBookingCreatedCustomer, map[string]interface{}{
		"booking_id":    b.ID,
		"car_title":     carTitle(car),
		"customer_name": b.CustomerName,
		"link":          customerLink(n.cfg, b.ID),
	})
}

func (n *Notifier) CustomerMessage(ctx context.Context, b *models.Booking, text string) {
	n.email(ctx, n.cfg.AdminEmail, services.TemplateCustomerMessageAdmin, map[string]interface{}{
		"booking_id":    b.ID,
		"customer_name": b.CustomerName,
		"message":       text,
		"link":          adminLink(n.cfg, b.ID),
	})
}

func (n *Notifier) AdminMessage(ctx context.Context, b *models.Booking, car *models.Car, text string) {
	n.email(ctx, n.customerEmail(b), services.TemplateAdminMessageCustomer, map[string]interface{}{
		"booking_id":    b.ID,
		"car_title":     carTitle(car),
		"customer_name": b.CustomerName,
		"message":       text,
		"link":          customerLink(n.cfg, b.ID),
	})
}

// ReminderTime is when the reminder for a slot fires. The stored slot is a wall-clock
// time at the dealership.
func ReminderTime(cfg *config.Config, slot time.Time) time.Time {
	loc := cfg.BusinessLocation
	if loc == nil {
		loc = time.UTC
	}
	s := slot.UTC()
	local := time.Date(s.Year(), s.Month(), s.Day(), s.Hour(), s.Minute(), s.Second(), s.Nanosecond(), loc)
	return local.Add(-cfg.InspectionReminderLead)
}

// InspectionScheduled schedules the reminder. Slots too close to remind about are skipped.
func (n *Notifier) InspectionScheduled(ctx context.Context, b *models.Booking) {
	if b.InspectionDate == nil || n.customerEmail(b) == "" {
		return
	}
	at := ReminderTime(n.cfg, *b.InspectionDate)
	if !at.After(n.now()) {
		return
	}
	task, err := NewInspectionReminderTask(InspectionReminderPayload{BookingID: b.ID, InspectionAt: *b.InspectionDate}, at)
	n.enqueue(ctx, task, err)
}

func (n *Notifier) AttachmentPosted(ctx context.Context, bookingID uint64, key string) {
	if key == "" {
		return
	}
	task, err := NewAttachmentProcessTask(AttachmentTaskPayload{BookingID: bookingID, Key: key})
	n.enqueue(ctx, task, err)
}
