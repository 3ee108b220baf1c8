package models

import (
	"fmt"
	"time"
)

// PaymentMethod is how the customer intends to pay.
type PaymentMethod string

const (
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentCash         PaymentMethod = "cash"
	PaymentBankDraft    PaymentMethod = "bank_draft"
	PaymentPOS          PaymentMethod = "pos"
)

// ParsePaymentMethod validates a payment method value.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(s) {
	case PaymentBankTransfer, PaymentCash, PaymentBankDraft, PaymentPOS:
		return PaymentMethod(s), nil
	default:
		return "", fmt.Errorf("unknown payment method: %q", s)
	}
}

func (m PaymentMethod) Display() string {
	switch m {
	case PaymentBankTransfer:
		return "Bank Transfer"
	case PaymentCash:
		return "Cash Payment"
	case PaymentBankDraft:
		return "Bank Draft"
	case PaymentPOS:
		return "POS Payment"
	default:
		return string(m)
	}
}

// Booking is one customer's negotiation journey for one car.
// Rows are never deleted; cancellation clears IsActive.
type Booking struct {
	ID        uint64  `gorm:"primaryKey" json:"id"`
	CarID     int64   `gorm:"not null;index:idx_bookings_car_status,priority:1" json:"car_id"`
	InquiryID *uint64 `gorm:"uniqueIndex" json:"inquiry_id,omitempty"`

	CustomerName  string `gorm:"size:200;not null" json:"customer_name"`
	CustomerPhone string `gorm:"size:20;not null;index" json:"customer_phone"`
	CustomerEmail string `gorm:"size:254" json:"customer_email,omitempty"`

	Status          BookingStatus `gorm:"size:30;not null;index;index:idx_bookings_car_status,priority:2" json:"status"`
	NegotiatedPrice *float64      `gorm:"type:decimal(12,2)" json:"negotiated_price,omitempty"`

	InspectionDate     *time.Time `gorm:"precision:6" json:"inspection_date,omitempty"`
	InspectionLocation string     `gorm:"size:200" json:"inspection_location,omitempty"`
	InspectionNotes    string     `gorm:"type:text" json:"inspection_notes,omitempty"`

	PaymentScheduledDate *time.Time    `gorm:"precision:6" json:"payment_scheduled_date,omitempty"`
	PaymentMethod        PaymentMethod `gorm:"size:100" json:"payment_method,omitempty"`
	PaymentConfirmedDate *time.Time    `gorm:"precision:6" json:"payment_confirmed_date,omitempty"`
	PaymentReference     string        `gorm:"size:200" json:"payment_reference,omitempty"`

	FreeGiftClaimed     bool       `gorm:"not null" json:"free_gift_claimed"`
	FreeGiftClaimedDate *time.Time `gorm:"precision:6" json:"free_gift_claimed_date,omitempty"`

	AdminNotes    string `gorm:"type:text" json:"-"`
	IsActive      bool   `gorm:"not null;index" json:"is_active"`
	NotifyByEmail bool   `gorm:"not null" json:"notify_by_email"`

	LastCustomerMessage *time.Time `gorm:"precision:6" json:"last_customer_message,omitempty"`
	LastAdminResponse   *time.Time `gorm:"precision:6" json:"last_admin_response,omitempty"`

	CreatedAt time.Time `gorm:"precision:6;autoCreateTime:false;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"precision:6;autoUpdateTime:false" json:"updated_at"`
}

// Progress is derived from Status on every read.
func (b *Booking) Progress() int {
	return b.Status.Progress()
}

// FinalPrice is the negotiated price when one was agreed, otherwise the car's listed price.
func (b *Booking) FinalPrice(car *Car) float64 {
	if b.NegotiatedPrice != nil {
		return *b.NegotiatedPrice
	}
	if car == nil {
		return 0
	}
	return car.Price
}

// ShowFreeGiftBanner reports whether the free gift incentive is still ahead of the customer.
func (b *Booking) ShowFreeGiftBanner() bool {
	return !b.Status.IsTerminal()
}

// Message is one entry in the customer/admin conversation of a booking.
type Message struct {
	ID            uint64     `gorm:"primaryKey" json:"id"`
	BookingID     uint64     `gorm:"not null;index:idx_messages_booking_created,priority:1" json:"booking_id"`
	Body          string     `gorm:"type:text;not null" json:"message"`
	IsFromAdmin   bool       `gorm:"not null;index:idx_messages_sender_read,priority:1" json:"is_from_admin"`
	PriceOffer    *float64   `gorm:"type:decimal(12,2)" json:"price_offer,omitempty"`
	AttachmentKey string     `gorm:"size:512" json:"attachment,omitempty"`
	CreatedAt     time.Time  `gorm:"precision:6;autoCreateTime:false;index:idx_messages_booking_created,priority:2" json:"created_at"`
	IsRead        bool       `gorm:"not null;index:idx_messages_sender_read,priority:2" json:"is_read"`
	ReadAt        *time.Time `gorm:"precision:6" json:"read_at,omitempty"`
}

// Inquiry is a customer's expression of interest in a car, optionally converted to a booking.
type Inquiry struct {
	ID                 uint64    `gorm:"primaryKey" json:"id"`
	CarID              int64     `gorm:"not null;index" json:"car_id"`
	Name               string    `gorm:"size:100;not null" json:"name"`
	Email              string    `gorm:"size:254" json:"email,omitempty"`
	Phone              string    `gorm:"size:20;not null" json:"phone"`
	Message            string    `gorm:"type:text" json:"message"`
	Contacted          bool      `gorm:"not null" json:"contacted"`
	ConvertedToBooking bool      `gorm:"not null" json:"converted_to_booking"`
	CreatedAt          time.Time `gorm:"precision:6;autoCreateTime:false;index" json:"created_at"`
}
