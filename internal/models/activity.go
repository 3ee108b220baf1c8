package models

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityType classifies a timeline entry.
type ActivityType string

const (
	ActivityStatusChange ActivityType = "status_change"
	ActivityMessage      ActivityType = "message"
	ActivityInspection   ActivityType = "inspection"
	ActivityPayment      ActivityType = "payment"
	ActivityNote         ActivityType = "note"
)

// Actor labels recorded in Activity.PerformedBy.
const (
	ActorCustomer = "Customer"
	ActorAdmin    = "Admin"
	ActorSystem   = "System"
)

// Activity is an immutable timeline entry of a booking. It is audit only and never drives
// booking state.
type Activity struct {
	ID                  uint64            `gorm:"primaryKey" json:"id"`
	BookingID           uint64            `gorm:"not null;index:idx_activities_booking_created,priority:1" json:"booking_id"`
	Type                ActivityType      `gorm:"size:50;not null" json:"activity_type"`
	Title               string            `gorm:"size:200;not null" json:"title"`
	Description         string            `gorm:"type:text" json:"description,omitempty"`
	PerformedBy         string            `gorm:"size:100;not null" json:"performed_by"`
	IsVisibleToCustomer bool              `gorm:"not null" json:"is_visible_to_customer"`
	Details             datatypes.JSONMap `json:"details,omitempty"`
	CreatedAt           time.Time         `gorm:"precision:6;autoCreateTime:false;index:idx_activities_booking_created,priority:2" json:"created_at"`
}
