package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/example/eventhub/internal/services"
	"github.com/example/eventhub/internal/utils"
)

const internalErrorMessage = "Internal server error"

// serviceErrors maps service sentinels to HTTP errors. An empty message means
// the wrapped error text is safe to show.
var serviceErrors = []struct {
	err     error
	status  int
	message string
}{
	{services.ErrInvalidPayment, fiber.StatusBadRequest, ""},
	{services.ErrPaymentNotFound, fiber.StatusNotFound, "Payment not found"},
	{services.ErrInvalidEvent, fiber.StatusBadRequest, ""},
	{services.ErrEventNotFound, fiber.StatusNotFound, "Event not found"},
	{services.ErrEventHasVendor, fiber.StatusConflict, "Event has confirmed bookings"},
	{services.ErrMissingEventID, fiber.StatusBadRequest, "event_id is required"},
	{services.ErrBookingNotFound, fiber.StatusNotFound, "Booking not found"},
	{services.ErrAlreadyBooked, fiber.StatusConflict, "Event already booked"},
	{services.ErrEventFull, fiber.StatusConflict, "Event is fully booked"},
	{utils.ErrWeakPassword, fiber.StatusBadRequest, ""},
}

// translate turns a known service error into a *fiber.Error. Unknown errors
// pass through and become 500s in ErrorHandler.
func translate(err error) error {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			message := m.message
			if message == "" {
				message = err.Error()
			}
			return fiber.NewError(m.status, message)
		}
	}
	return err
}

// ErrorHandler renders every error as {success: false, message}. Anything that
// is not a *fiber.Error is logged and reported with a generic message.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	message := internalErrorMessage

	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
		message = fe.Message
	} else {
		log.Printf("[HTTP] %s %s failed: %v", c.Method(), c.Path(), err)
	}

	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}

func unauthorized() error {
	return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
}
