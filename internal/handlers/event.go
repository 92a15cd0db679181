package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/example/eventhub/internal/middleware"
	"github.com/example/eventhub/internal/services"
)

// EventHandler manages event endpoints.
type EventHandler struct {
	events *services.EventService
}

// NewEventHandler constructs EventHandler.
func NewEventHandler(events *services.EventService) *EventHandler {
	return &EventHandler{events: events}
}

type createEventRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Venue       string    `json:"venue"`
	StartsAt    time.Time `json:"starts_at"`
	Capacity    int       `json:"capacity"`
}

// ListEvents returns every event, soonest first.
func (h *EventHandler) ListEvents(c *fiber.Ctx) error {
	events, err := h.events.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "events": events})
}

// GetEvent returns one event.
func (h *EventHandler) GetEvent(c *fiber.Ctx) error {
	event, err := h.events.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return translate(err)
	}
	return c.JSON(fiber.Map{"success": true, "event": event})
}

// CreateEvent lets an organizer publish an event.
func (h *EventHandler) CreateEvent(c *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return unauthorized()
	}

	var req createEventRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	event, err := h.events.Create(c.UserContext(), identity, services.CreateEventInput{
		Title:       req.Title,
		Description: req.Description,
		Venue:       req.Venue,
		StartsAt:    req.StartsAt,
		Capacity:    req.Capacity,
	})
	if err != nil {
		return translate(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "event": event})
}

// DeleteEvent removes one of the organizer's events.
func (h *EventHandler) DeleteEvent(c *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return unauthorized()
	}

	if err := h.events.Delete(c.UserContext(), identity, c.Params("id")); err != nil {
		return translate(err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// ListEventBookings shows the organizer who booked their event.
func (h *EventHandler) ListEventBookings(c *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return unauthorized()
	}

	bookings, err := h.events.Bookings(c.UserContext(), identity, c.Params("id"))
	if err != nil {
		return translate(err)
	}
	return c.JSON(fiber.Map{"success": true, "bookings": bookings})
}
