package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"enoriel/autos/internal/models"

	"gorm.io/gorm"
)

// IInquiryService handles interest expressed without starting a booking.
type IInquiryService interface {
	CreateInquiry(ctx context.Context, carID int64, name, phone, email, message string) (*models.Inquiry, error)
	MarkContacted(ctx context.Context, inquiryID uint64) error
}

type inquiryService struct {
	ledger
	cars ICarService
}

// NewInquiryService creates a new InquiryService.
func NewInquiryService(gdb *gorm.DB, timeout time.Duration, cars ICarService) IInquiryService {
	return &inquiryService{ledger: newLedger(gdb, timeout), cars: cars}
}

// CreateInquiry stores an inquiry for follow-up by the sales team.
func (s *inquiryService) CreateInquiry(ctx context.Context, carID int64, name, phone, email, message string) (*models.Inquiry, error) {
	contact, err := normalizeContact(name, phone, email)
	if err != nil {
		return nil, err
	}
	if carID <= 0 {
		return nil, validationError("please fill in all required fields")
	}
	car, err := s.cars.GetCar(ctx, carID)
	if err != nil {
		return nil, err
	}

	message = strings.TrimSpace(message)
	if message == "" {
		message = fmt.Sprintf("I'm interested in %s", car.Title)
	}

	inquiry := &models.Inquiry{
		CarID:     car.ID,
		Name:      contact.name,
		Email:     contact.email,
		Phone:     contact.phone,
		Message:   message,
		CreatedAt: s.now(),
	}
	err = s.run(ctx, func(q *gorm.DB) error {
		return q.Create(inquiry).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create inquiry: %w", err)
	}
	return inquiry, nil
}

// MarkContacted records that the sales team followed up.
func (s *inquiryService) MarkContacted(ctx context.Context, inquiryID uint64) error {
	return s.run(ctx, func(q *gorm.DB) error {
		var inquiry models.Inquiry
		if err := q.First(&inquiry, inquiryID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("inquiry %d: %w", inquiryID, ErrNotFound)
			}
			return fmt.Errorf("failed to load inquiry %d: %w", inquiryID, err)
		}
		if inquiry.Contacted {
			return nil
		}
		return q.Model(&inquiry).Update("contacted", true).Error
	})
}
