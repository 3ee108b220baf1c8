package services

import (
	"context"
	"strings"
	"time"

	"enoriel/autos/internal/models"

	"gorm.io/gorm"
)

// IUpdateService answers the booking page's periodic "anything new?" question.
type IUpdateService interface {
	Poll(ctx context.Context, bookingID uint64, lastCheck string) (*models.BookingUpdate, error)
}

type updateService struct {
	ledger
}

// NewUpdateService creates a new UpdateService.
func NewUpdateService(gdb *gorm.DB, timeout time.Duration) IUpdateService {
	return &updateService{ledger: newLedger(gdb, timeout)}
}

var lastCheckLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
}

// parseLastCheck accepts ISO-8601 timestamps. A '+' in an unescaped query string arrives
// as a space, so the offset is repaired before giving up.
func parseLastCheck(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	candidates := []string{s}
	if i := strings.LastIndex(s, " "); i > 10 {
		candidates = append(candidates, s[:i]+"+"+s[i+1:])
	}
	for _, c := range candidates {
		for _, layout := range lastCheckLayouts {
			if t, err := time.Parse(layout, c); err == nil {
				return t.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

// Poll reports the booking's status and how many messages arrived after lastCheck. A
// missing or unreadable lastCheck falls back to the booking's last update. Deactivated
// bookings yield ErrNotFound. Nothing is written.
func (s *updateService) Poll(ctx context.Context, bookingID uint64, lastCheck string) (*models.BookingUpdate, error) {
	var update *models.BookingUpdate
	err := s.run(ctx, func(q *gorm.DB) error {
		b, err := findBooking(q, bookingID, true)
		if err != nil {
			return err
		}

		since, ok := parseLastCheck(lastCheck)
		if !ok {
			since = b.UpdatedAt
		}

		var newMessages int64
		if err := q.Model(&models.Message{}).
			Where("booking_id = ? AND created_at > ?", b.ID, since).
			Count(&newMessages).Error; err != nil {
			return err
		}

		unread, err := unreadCountForAdmin(q, b)
		if err != nil {
			return err
		}

		update = &models.BookingUpdate{
			BookingID:     b.ID,
			Status:        b.Status,
			StatusDisplay: b.Status.Display(),
			Progress:      b.Progress(),
			NewMessages:   newMessages,
			UnreadCount:   unread,
			UpdatedAt:     b.UpdatedAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return update, nil
}
