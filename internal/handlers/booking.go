package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/eventhub/internal/middleware"
	"github.com/example/eventhub/internal/services"
)

// BookingHandler manages vendor booking endpoints.
type BookingHandler struct {
	bookings *services.BookingService
}

// NewBookingHandler constructs BookingHandler.
func NewBookingHandler(bookings *services.BookingService) *BookingHandler {
	return &BookingHandler{bookings: bookings}
}

type createBookingRequest struct {
	EventID string `json:"event_id"`
	Notes   string `json:"notes"`
}

// CreateBooking reserves a slot at an event for the calling vendor.
func (h *BookingHandler) CreateBooking(c *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return unauthorized()
	}

	var req createBookingRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	booking, err := h.bookings.Book(c.UserContext(), identity, req.EventID, req.Notes)
	if err != nil {
		return translate(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "booking": booking})
}

// ListBookings returns the calling vendor's bookings.
func (h *BookingHandler) ListBookings(c *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return unauthorized()
	}

	bookings, err := h.bookings.List(c.UserContext(), identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "bookings": bookings})
}

// CancelBooking cancels one of the calling vendor's bookings.
func (h *BookingHandler) CancelBooking(c *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return unauthorized()
	}

	booking, err := h.bookings.Cancel(c.UserContext(), identity, c.Params("id"))
	if err != nil {
		return translate(err)
	}
	return c.JSON(fiber.Map{"success": true, "booking": booking})
}
