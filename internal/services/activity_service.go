package services

import (
	"context"
	"fmt"
	"time"

	"enoriel/autos/internal/models"

	"gorm.io/gorm"
)

// IActivityService records and lists booking timeline entries.
type IActivityService interface {
	Record(ctx context.Context, bookingID uint64, activity *models.Activity) error
	Timeline(ctx context.Context, bookingID uint64, customerView bool) ([]models.Activity, error)
}

type activityService struct {
	ledger
}

// NewActivityService creates a new ActivityService.
func NewActivityService(gdb *gorm.DB, timeout time.Duration) IActivityService {
	return &activityService{ledger: newLedger(gdb, timeout)}
}

// Record appends an activity to any booking, active or not.
func (s *activityService) Record(ctx context.Context, bookingID uint64, activity *models.Activity) error {
	if activity.Title == "" {
		return validationError("activity title is required")
	}
	return s.inTx(ctx, func(tx *gorm.DB) error {
		b, err := lockBooking(tx, bookingID, false)
		if err != nil {
			return err
		}
		return appendActivity(tx, b, activity, s.now())
	})
}

// Timeline lists a booking's activities newest first. The customer view leaves out entries
// not visible to the customer.
func (s *activityService) Timeline(ctx context.Context, bookingID uint64, customerView bool) ([]models.Activity, error) {
	var activities []models.Activity
	err := s.run(ctx, func(q *gorm.DB) error {
		return timelineQuery(q, bookingID, customerView).Find(&activities).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list activities of booking %d: %w", bookingID, err)
	}
	return activities, nil
}

func timelineQuery(q *gorm.DB, bookingID uint64, customerView bool) *gorm.DB {
	q = q.Where("booking_id = ?", bookingID)
	if customerView {
		q = q.Where("is_visible_to_customer = ?", true)
	}
	return q.Order("created_at DESC").Order("id DESC")
}
