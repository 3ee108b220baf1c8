package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"enoriel/autos/internal/db"
	"enoriel/autos/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ledger bundles the relational store with the deadline every call is bounded by and the
// clock used for record timestamps.
type ledger struct {
	db      *gorm.DB
	timeout time.Duration
	now     func() time.Time
}

func newLedger(gdb *gorm.DB, timeout time.Duration) ledger {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return ledger{db: gdb, timeout: timeout, now: ledgerNow}
}

// ledgerNow matches the microsecond precision of the timestamp columns so values read back
// compare equal to the ones written.
func ledgerNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func (l ledger) inTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return db.InTx(ctx, l.db, l.timeout, fn)
}

func (l ledger) run(ctx context.Context, fn func(q *gorm.DB) error) error {
	return db.Run(ctx, l.db, l.timeout, fn)
}

// laterThan returns t, or the smallest representable instant after ref when t is not
// strictly after it.
func laterThan(t, ref time.Time) time.Time {
	if t.After(ref) {
		return t
	}
	return ref.Add(time.Microsecond)
}

// lockBooking loads a booking and holds its row lock until the transaction ends.
func lockBooking(tx *gorm.DB, id uint64, activeOnly bool) (*models.Booking, error) {
	return findBooking(tx.Clauses(clause.Locking{Strength: "UPDATE"}), id, activeOnly)
}

func findBooking(q *gorm.DB, id uint64, activeOnly bool) (*models.Booking, error) {
	var b models.Booking
	q = q.Where("id = ?", id)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	err := q.First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("booking %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load booking %d: %w", id, err)
	}
	return &b, nil
}

// appendMessage stores msg and moves the booking's watermark for the message's direction
// in the same transaction. The message timestamp is kept strictly after every earlier
// write to the booking so per-booking ordering is total.
func appendMessage(tx *gorm.DB, b *models.Booking, msg *models.Message, now time.Time) error {
	msg.BookingID = b.ID
	msg.CreatedAt = laterThan(now, b.UpdatedAt)
	if err := tx.Create(msg).Error; err != nil {
		return fmt.Errorf("failed to append message to booking %d: %w", b.ID, err)
	}

	at := msg.CreatedAt
	updates := map[string]interface{}{"updated_at": at}
	if msg.IsFromAdmin {
		b.LastAdminResponse = &at
		updates["last_admin_response"] = at
	} else {
		b.LastCustomerMessage = &at
		updates["last_customer_message"] = at
	}
	b.UpdatedAt = at
	if err := tx.Model(&models.Booking{}).Where("id = ?", b.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update watermark of booking %d: %w", b.ID, err)
	}
	return nil
}

func appendActivity(tx *gorm.DB, b *models.Booking, a *models.Activity, now time.Time) error {
	a.BookingID = b.ID
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.PerformedBy == "" {
		a.PerformedBy = models.ActorSystem
	}
	if err := tx.Create(a).Error; err != nil {
		return fmt.Errorf("failed to record activity for booking %d: %w", b.ID, err)
	}
	return nil
}

func unreadCountForAdmin(q *gorm.DB, b *models.Booking) (int64, error) {
	var n int64
	q = q.Model(&models.Message{}).Where("booking_id = ? AND is_from_admin = ?", b.ID, false)
	if b.LastAdminResponse != nil {
		q = q.Where("created_at > ?", *b.LastAdminResponse)
	}
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count unread messages of booking %d: %w", b.ID, err)
	}
	return n, nil
}

// hasUnreadMessages is false until the customer has written at least once, so the
// welcome message alone never raises the badge.
func hasUnreadMessages(q *gorm.DB, b *models.Booking) (bool, error) {
	if b.LastAdminResponse == nil || b.LastCustomerMessage == nil {
		return false, nil
	}
	var n int64
	q = q.Model(&models.Message{}).
		Where("booking_id = ? AND is_from_admin = ? AND created_at > ?", b.ID, true, *b.LastCustomerMessage)
	if err := q.Count(&n).Error; err != nil {
		return false, fmt.Errorf("failed to check unread messages of booking %d: %w", b.ID, err)
	}
	return n > 0, nil
}

// saveBooking writes every mutable column of b.
func saveBooking(tx *gorm.DB, b *models.Booking) error {
	if err := tx.Model(b).Select("*").Omit("ID", "CreatedAt").Updates(b).Error; err != nil {
		return fmt.Errorf("failed to save booking %d: %w", b.ID, err)
	}
	return nil
}
