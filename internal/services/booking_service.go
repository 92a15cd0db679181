package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/eventhub/internal/models"
)

var (
	// ErrBookingNotFound covers both missing bookings and bookings held by another vendor.
	ErrBookingNotFound = errors.New("booking not found")
	// ErrAlreadyBooked is returned when the vendor already holds a confirmed booking for the event.
	ErrAlreadyBooked = errors.New("vendor already booked this event")
	// ErrEventFull is returned when confirmed bookings have reached the event capacity.
	ErrEventFull = errors.New("event is fully booked")
	// ErrMissingEventID is returned when a booking request names no event.
	ErrMissingEventID = errors.New("event_id is required")
)

// BookingService manages vendor slot bookings.
type BookingService struct {
	db *gorm.DB
}

// NewBookingService constructs a BookingService.
func NewBookingService(db *gorm.DB) *BookingService {
	return &BookingService{db: db}
}

// Book reserves a slot at the event for the vendor identity.
func (s *BookingService) Book(ctx context.Context, identity models.Identity, rawEventID, notes string) (*models.Booking, error) {
	if strings.TrimSpace(rawEventID) == "" {
		return nil, ErrMissingEventID
	}
	eventID, err := uuid.Parse(strings.TrimSpace(rawEventID))
	if err != nil {
		return nil, ErrEventNotFound
	}

	booking := models.Booking{
		EventID:  eventID,
		VendorID: identity.UserID,
		Notes:    strings.TrimSpace(notes),
		Status:   models.BookingConfirmed,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The event row lock serializes concurrent bookings of one event.
		event, err := findEvent(lockForUpdate(tx), "id = ?", eventID)
		if err != nil {
			return err
		}

		var mine int64
		if err := tx.Model(&models.Booking{}).
			Where("event_id = ? AND vendor_id = ? AND status = ?", eventID, identity.UserID, models.BookingConfirmed).
			Count(&mine).Error; err != nil {
			return err
		}
		if mine > 0 {
			return ErrAlreadyBooked
		}

		var confirmed int64
		if err := tx.Model(&models.Booking{}).
			Where("event_id = ? AND status = ?", eventID, models.BookingConfirmed).
			Count(&confirmed).Error; err != nil {
			return err
		}
		if confirmed >= int64(event.Capacity) {
			return ErrEventFull
		}

		return tx.Create(&booking).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ErrAlreadyBooked
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// List returns the vendor's bookings, newest first, with their events.
func (s *BookingService) List(ctx context.Context, identity models.Identity) ([]models.Booking, error) {
	bookings := make([]models.Booking, 0)
	if err := s.db.WithContext(ctx).
		Preload("Event").
		Where("vendor_id = ?", identity.UserID).
		Order("created_at DESC").
		Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}

// Cancel releases a booking owned by the vendor identity.
func (s *BookingService) Cancel(ctx context.Context, identity models.Identity, rawID string) (*models.Booking, error) {
	bookingID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, ErrBookingNotFound
	}

	var booking models.Booking
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ? AND vendor_id = ?", bookingID, identity.UserID).First(&booking).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrBookingNotFound
		}
		if err != nil {
			return err
		}
		if booking.Status == models.BookingCancelled {
			return nil
		}
		booking.Status = models.BookingCancelled
		return tx.Model(&booking).Update("status", models.BookingCancelled).Error
	})
	if err != nil {
		return nil, err
	}
	return &booking, nil
}
