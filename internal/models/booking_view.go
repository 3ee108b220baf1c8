package models

import "time"

// BookingUpdate is the poller's answer for one booking.
type BookingUpdate struct {
	BookingID     uint64        `json:"booking_id"`
	Status        BookingStatus `json:"status"`
	StatusDisplay string        `json:"status_display"`
	Progress      int           `json:"progress"`
	NewMessages   int64         `json:"new_messages"`
	UnreadCount   int64         `json:"unread_count"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// BookingView is everything the customer booking page shows.
type BookingView struct {
	Booking            *Booking    `json:"booking"`
	Car                *Car        `json:"car,omitempty"`
	StatusDisplay      string      `json:"status_display"`
	Progress           int         `json:"progress"`
	FinalPrice         float64     `json:"final_price"`
	FormattedPrice     string      `json:"formatted_final_price"`
	Messages           []Message   `json:"messages"`
	Activities         []Activity  `json:"activities"`
	NextAction         *NextAction `json:"next_action,omitempty"`
	ShowFreeGiftBanner bool        `json:"show_free_gift_banner"`
	HasUnreadMessages  bool        `json:"has_unread_messages"`
}

// NextAction is the hint shown to the customer for the booking's current stage, or nil once
// the booking is cancelled.
func (b *Booking) NextAction() *NextAction {
	switch b.Status {
	case StatusInterestShown:
		return &NextAction{Title: "Schedule Inspection", Description: "Pick a date and time to inspect the car", CanAct: true}
	case StatusInspectionScheduled:
		when := "TBD"
		if b.InspectionDate != nil {
			when = b.InspectionDate.Format("January 02 at 03:04 PM")
		}
		return &NextAction{Title: "Attend Inspection", Description: "Inspection on " + when}
	case StatusPaymentScheduled:
		due := "TBD"
		if b.PaymentScheduledDate != nil {
			due = b.PaymentScheduledDate.Format("January 02, 2006")
		}
		return &NextAction{Title: "Make Payment", Description: "Payment due: " + due, CanAct: true}
	case StatusPaymentConfirmed:
		return &NextAction{Title: "Collect Documents", Description: "Visit showroom to collect car documents and free gift", CanAct: true}
	case StatusCompleted:
		return &NextAction{Title: "Congratulations!", Description: "Enjoy your new car!"}
	default:
		return nil
	}
}
