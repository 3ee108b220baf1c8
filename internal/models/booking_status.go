package models

import (
	"errors"
	"fmt"
)

// BookingStatus is the lifecycle stage of a booking.
type BookingStatus string

const (
	StatusInterestShown       BookingStatus = "interest_shown"
	StatusInspectionScheduled BookingStatus = "inspection_scheduled"
	StatusPaymentScheduled    BookingStatus = "payment_scheduled"
	StatusPaymentConfirmed    BookingStatus = "payment_confirmed"
	StatusCompleted           BookingStatus = "completed"
	StatusCancelled           BookingStatus = "cancelled"
)

// AllBookingStatuses lists every status in forward-chain order, cancelled last.
var AllBookingStatuses = []BookingStatus{
	StatusInterestShown,
	StatusInspectionScheduled,
	StatusPaymentScheduled,
	StatusPaymentConfirmed,
	StatusCompleted,
	StatusCancelled,
}

// BookingEvent is an input to the booking state machine.
type BookingEvent string

const (
	EventScheduleInspection BookingEvent = "schedule_inspection"
	EventSchedulePayment    BookingEvent = "schedule_payment"
	EventConfirmPayment     BookingEvent = "confirm_payment"
	EventComplete           BookingEvent = "complete"
	EventCancel             BookingEvent = "cancel"
	EventAdvance            BookingEvent = "advance"
)

// ErrInvalidTransition is returned by Transition when the event is not accepted in the
// current status.
var ErrInvalidTransition = errors.New("invalid status transition")

// ParseBookingStatus validates a stored or user-supplied status value.
func ParseBookingStatus(s string) (BookingStatus, error) {
	switch BookingStatus(s) {
	case StatusInterestShown, StatusInspectionScheduled, StatusPaymentScheduled,
		StatusPaymentConfirmed, StatusCompleted, StatusCancelled:
		return BookingStatus(s), nil
	default:
		return "", fmt.Errorf("unknown booking status: %q", s)
	}
}

// IsTerminal reports whether no further transitions are possible.
func (s BookingStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// next returns the following stage on the forward chain.
func (s BookingStatus) next() (BookingStatus, bool) {
	switch s {
	case StatusInterestShown:
		return StatusInspectionScheduled, true
	case StatusInspectionScheduled:
		return StatusPaymentScheduled, true
	case StatusPaymentScheduled:
		return StatusPaymentConfirmed, true
	case StatusPaymentConfirmed:
		return StatusCompleted, true
	case StatusCompleted, StatusCancelled:
		return s, false
	default:
		return s, false
	}
}

// Transition is the total transition function of the booking state machine. Every
// (status, event) pair has a defined outcome: the target status, or ErrInvalidTransition.
func Transition(from BookingStatus, ev BookingEvent) (BookingStatus, error) {
	if from.IsTerminal() {
		return from, fmt.Errorf("%w: %s is final", ErrInvalidTransition, from)
	}

	var required BookingStatus
	switch ev {
	case EventScheduleInspection:
		required = StatusInterestShown
	case EventSchedulePayment:
		required = StatusInspectionScheduled
	case EventConfirmPayment:
		required = StatusPaymentScheduled
	case EventComplete:
		required = StatusPaymentConfirmed
	case EventCancel:
		return StatusCancelled, nil
	case EventAdvance:
		to, ok := from.next()
		if !ok {
			return from, fmt.Errorf("%w: no stage after %s", ErrInvalidTransition, from)
		}
		return to, nil
	default:
		return from, fmt.Errorf("%w: unknown event %q", ErrInvalidTransition, ev)
	}

	if from != required {
		return from, fmt.Errorf("%w: %s requires %s, booking is %s", ErrInvalidTransition, ev, required, from)
	}
	to, _ := from.next()
	return to, nil
}

// Progress is the completion percentage shown for a status.
func (s BookingStatus) Progress() int {
	switch s {
	case StatusInterestShown:
		return 20
	case StatusInspectionScheduled:
		return 40
	case StatusPaymentScheduled:
		return 60
	case StatusPaymentConfirmed:
		return 80
	case StatusCompleted:
		return 100
	default:
		return 0
	}
}

// Display is the human-readable status label.
func (s BookingStatus) Display() string {
	switch s {
	case StatusInterestShown:
		return "Interest Shown"
	case StatusInspectionScheduled:
		return "Inspection Scheduled"
	case StatusPaymentScheduled:
		return "Payment Scheduled"
	case StatusPaymentConfirmed:
		return "Payment Confirmed"
	case StatusCompleted:
		return "Completed"
	case StatusCancelled:
		return "Cancelled"
	default:
		return string(s)
	}
}

// NextAction describes what the customer should do next at a given stage.
type NextAction struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	CanAct      bool   `json:"can_act"`
}
