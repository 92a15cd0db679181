package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/eventhub/internal/middleware"
	"github.com/example/eventhub/internal/services"
	"github.com/example/eventhub/internal/utils"
)

// PaymentHandler exposes payment processing and the owner-scoped readers.
type PaymentHandler struct {
	payments *services.PaymentService
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(payments *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

type createPaymentRequest struct {
	Amount        *float64 `json:"amount"`
	PaymentMethod string   `json:"payment_method"`
}

// ProcessPayment records a payment for the caller and returns the completed record.
func (h *PaymentHandler) ProcessPayment(c *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return unauthorized()
	}

	var req createPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	payment, err := h.payments.Process(c.UserContext(), identity, services.ProcessPaymentInput{
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		return translate(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"payment": payment,
	})
}

// GetPaymentHistory lists the caller's payments, newest first.
func (h *PaymentHandler) GetPaymentHistory(c *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return unauthorized()
	}

	payments, err := h.payments.History(c.UserContext(), identity)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"payments": payments,
	})
}

// GetPaymentDetails returns one of the caller's payments.
func (h *PaymentHandler) GetPaymentDetails(c *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return unauthorized()
	}

	payment, err := h.payments.Details(c.UserContext(), identity, c.Params("id"))
	if err != nil {
		return translate(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"payment": payment,
	})
}

// ListAllPayments is the admin ledger across every user.
func (h *PaymentHandler) ListAllPayments(c *fiber.Ctx) error {
	page := utils.ParsePagination(c)

	payments, total, err := h.payments.ListAll(c.UserContext(), page)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"payments": payments,
		"page":     page.Page,
		"limit":    page.Limit,
		"total":    total,
	})
}
