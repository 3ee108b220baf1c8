package models

import "time"

// Car is the subset of a catalog listing the booking engine needs. Listings are owned by
// the catalog collection; bookings only reference them by ID.
type Car struct {
	ID        int64     `bson:"_id" json:"id"`
	Title     string    `bson:"title" json:"title"`
	Price     float64   `bson:"price" json:"price"`
	IsSold    bool      `bson:"is_sold" json:"is_sold"`
	Slug      string    `bson:"slug" json:"slug"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
