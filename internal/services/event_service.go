package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/eventhub/internal/models"
)

var (
	// ErrInvalidEvent is returned when a new event lacks a title, start time or capacity.
	ErrInvalidEvent = errors.New("invalid event")
	// ErrEventNotFound covers missing events and events owned by another organizer.
	ErrEventNotFound = errors.New("event not found")
	// ErrEventHasVendor blocks deleting an event that still has confirmed bookings.
	ErrEventHasVendor = errors.New("event has confirmed bookings")
)

// CreateEventInput is the body of an event creation request.
type CreateEventInput struct {
	Title       string
	Description string
	Venue       string
	StartsAt    time.Time
	Capacity    int
}

// EventService manages organizer-owned events.
type EventService struct {
	db *gorm.DB
}

// NewEventService constructs an EventService.
func NewEventService(db *gorm.DB) *EventService {
	return &EventService{db: db}
}

// Create stores a new event owned by identity.
func (s *EventService) Create(ctx context.Context, identity models.Identity, in CreateEventInput) (*models.Event, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" || in.StartsAt.IsZero() {
		return nil, fmt.Errorf("%w: title and starts_at are required", ErrInvalidEvent)
	}
	if in.Capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be positive", ErrInvalidEvent)
	}

	event := models.Event{
		OrganizerID: identity.UserID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Venue:       strings.TrimSpace(in.Venue),
		StartsAt:    in.StartsAt.UTC(),
		Capacity:    in.Capacity,
	}
	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

// List returns all events, soonest first.
func (s *EventService) List(ctx context.Context) ([]models.Event, error) {
	events := make([]models.Event, 0)
	if err := s.db.WithContext(ctx).Order("starts_at ASC").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// Get returns a single event.
func (s *EventService) Get(ctx context.Context, rawID string) (*models.Event, error) {
	eventID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, ErrEventNotFound
	}
	return findEvent(s.db.WithContext(ctx), "id = ?", eventID)
}

// Delete removes an event owned by identity. Events with confirmed bookings stay.
func (s *EventService) Delete(ctx context.Context, identity models.Identity, rawID string) error {
	eventID, err := uuid.Parse(rawID)
	if err != nil {
		return ErrEventNotFound
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event, err := findEvent(lockForUpdate(tx), "id = ? AND organizer_id = ?", eventID, identity.UserID)
		if err != nil {
			return err
		}

		var confirmed int64
		if err := tx.Model(&models.Booking{}).
			Where("event_id = ? AND status = ?", event.ID, models.BookingConfirmed).
			Count(&confirmed).Error; err != nil {
			return err
		}
		if confirmed > 0 {
			return ErrEventHasVendor
		}

		if err := tx.Where("event_id = ?", event.ID).Delete(&models.Booking{}).Error; err != nil {
			return err
		}
		return tx.Delete(event).Error
	})
}

// Bookings lists the bookings of an event owned by identity.
func (s *EventService) Bookings(ctx context.Context, identity models.Identity, rawID string) ([]models.Booking, error) {
	eventID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, ErrEventNotFound
	}

	db := s.db.WithContext(ctx)
	if _, err := findEvent(db, "id = ? AND organizer_id = ?", eventID, identity.UserID); err != nil {
		return nil, err
	}

	bookings := make([]models.Booking, 0)
	if err := db.Where("event_id = ?", eventID).Order("created_at ASC").Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}

// lockForUpdate adds SELECT ... FOR UPDATE on dialects with row locks. sqlite
// runs on a single connection, so its transactions are already serialized.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func findEvent(db *gorm.DB, query string, args ...interface{}) (*models.Event, error) {
	var event models.Event
	err := db.Where(query, args...).First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}
