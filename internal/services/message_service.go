package services

import (
	"context"
	"fmt"
	"strings"

	"enoriel/autos/internal/config"
	"enoriel/autos/internal/models"

	"gorm.io/gorm"
)

// IMessageService is the conversation channel of a booking.
type IMessageService interface {
	PostCustomerMessage(ctx context.Context, bookingID uint64, text string, priceOffer *float64) (*models.Message, error)
	PostAdminMessage(ctx context.Context, bookingID uint64, text string, priceOffer *float64, attachmentKey string) (*models.Message, error)
	MarkAdminMessagesRead(ctx context.Context, bookingID uint64) (int64, error)
	List(ctx context.Context, bookingID uint64) ([]models.Message, error)
	UnreadCountForAdmin(ctx context.Context, bookingID uint64) (int64, error)
	HasUnreadMessages(ctx context.Context, bookingID uint64) (bool, error)
}

const activityDescriptionLimit = 100

type messageService struct {
	ledger
	cfg      *config.Config
	settings IConfigService
}

// NewMessageService creates a new MessageService. Timeline titles format prices with the
// runtime currency symbol from settings.
func NewMessageService(gdb *gorm.DB, cfg *config.Config, settings IConfigService) IMessageService {
	return &messageService{ledger: newLedger(gdb, cfg.StoreTimeout), cfg: cfg, settings: settings}
}

// PostCustomerMessage appends a customer message, moves the customer watermark and records
// a timeline entry, all in one transaction.
func (s *messageService) PostCustomerMessage(ctx context.Context, bookingID uint64, text string, priceOffer *float64) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, validationError("message cannot be empty")
	}
	if priceOffer != nil && *priceOffer <= 0 {
		return nil, validationError("price offer must be positive")
	}

	title := "New message from customer"
	if priceOffer != nil {
		title = "Customer offered " + FormatPrice(currencySymbol(ctx, s.settings, s.cfg), *priceOffer)
	}

	var msg *models.Message
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		b, err := lockBooking(tx, bookingID, true)
		if err != nil {
			return err
		}
		now := s.now()
		msg = &models.Message{Body: text, PriceOffer: priceOffer}
		if err := appendMessage(tx, b, msg, now); err != nil {
			return err
		}
		return appendActivity(tx, b, &models.Activity{
			Type:                models.ActivityMessage,
			Title:               title,
			Description:         truncateRunes(text, activityDescriptionLimit),
			PerformedBy:         models.ActorCustomer,
			IsVisibleToCustomer: true,
			CreatedAt:           msg.CreatedAt,
		}, now)
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// PostAdminMessage appends an admin message and moves the admin watermark.
func (s *messageService) PostAdminMessage(ctx context.Context, bookingID uint64, text string, priceOffer *float64, attachmentKey string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, validationError("message cannot be empty")
	}
	if priceOffer != nil && *priceOffer <= 0 {
		return nil, validationError("price offer must be positive")
	}

	var msg *models.Message
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		b, err := lockBooking(tx, bookingID, true)
		if err != nil {
			return err
		}
		msg = &models.Message{Body: text, IsFromAdmin: true, PriceOffer: priceOffer, AttachmentKey: attachmentKey}
		return appendMessage(tx, b, msg, s.now())
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// MarkAdminMessagesRead flags every unread admin message of the booking as read and
// returns how many changed. A second call changes nothing.
func (s *messageService) MarkAdminMessagesRead(ctx context.Context, bookingID uint64) (int64, error) {
	var n int64
	err := s.run(ctx, func(q *gorm.DB) error {
		now := s.now()
		res := q.Model(&models.Message{}).
			Where("booking_id = ? AND is_from_admin = ? AND is_read = ?", bookingID, true, false).
			Updates(map[string]interface{}{"is_read": true, "read_at": now})
		n = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages of booking %d read: %w", bookingID, err)
	}
	return n, nil
}

// List returns the conversation oldest first.
func (s *messageService) List(ctx context.Context, bookingID uint64) ([]models.Message, error) {
	var msgs []models.Message
	err := s.run(ctx, func(q *gorm.DB) error {
		return q.Where("booking_id = ?", bookingID).Order("created_at ASC").Order("id ASC").Find(&msgs).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list messages of booking %d: %w", bookingID, err)
	}
	return msgs, nil
}

// UnreadCountForAdmin counts customer messages newer than the last admin response.
func (s *messageService) UnreadCountForAdmin(ctx context.Context, bookingID uint64) (int64, error) {
	var n int64
	err := s.run(ctx, func(q *gorm.DB) error {
		b, err := findBooking(q, bookingID, false)
		if err != nil {
			return err
		}
		n, err = unreadCountForAdmin(q, b)
		return err
	})
	return n, err
}

// HasUnreadMessages reports whether the admin wrote after the customer's last message.
func (s *messageService) HasUnreadMessages(ctx context.Context, bookingID uint64) (bool, error) {
	var unread bool
	err := s.run(ctx, func(q *gorm.DB) error {
		b, err := findBooking(q, bookingID, false)
		if err != nil {
			return err
		}
		unread, err = hasUnreadMessages(q, b)
		return err
	})
	return unread, err
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
