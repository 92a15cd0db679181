package models

import (
	"time"

	"github.com/google/uuid"
)

// Event is organized by a single organizer and offers a fixed number of vendor slots.
type Event struct {
	BaseModel
	OrganizerID uuid.UUID `gorm:"type:uuid;index;not null" json:"organizer_id"`
	Organizer   *User     `gorm:"foreignKey:OrganizerID;constraint:OnDelete:CASCADE" json:"-"`
	Title       string    `gorm:"not null" json:"title"`
	Description string    `json:"description"`
	Venue       string    `json:"venue"`
	StartsAt    time.Time `gorm:"index" json:"starts_at"`
	Capacity    int       `gorm:"not null" json:"capacity"`
}

// BookingStatus is the state of a vendor booking.
type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking reserves one vendor slot at an event. A vendor holds at most one
// confirmed booking per event.
type Booking struct {
	BaseModel
	EventID  uuid.UUID     `gorm:"type:uuid;index;not null;uniqueIndex:idx_bookings_confirmed_vendor,where:status = 'confirmed'" json:"event_id"`
	Event    *Event        `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE" json:"event,omitempty"`
	VendorID uuid.UUID     `gorm:"type:uuid;index;not null;uniqueIndex:idx_bookings_confirmed_vendor,where:status = 'confirmed'" json:"vendor_id"`
	Vendor   *User         `gorm:"foreignKey:VendorID;constraint:OnDelete:CASCADE" json:"-"`
	Notes    string        `json:"notes"`
	Status   BookingStatus `gorm:"size:16;not null;default:confirmed" json:"status"`
}
