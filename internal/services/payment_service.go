package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/eventhub/internal/models"
	"github.com/example/eventhub/internal/utils"
)

var (
	// ErrInvalidPayment is returned when amount or payment_method is missing or unusable.
	ErrInvalidPayment = errors.New("invalid payment request")
	// ErrPaymentNotFound covers both missing records and records owned by someone else.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrInvalidTransition is returned when a status change breaks the lifecycle.
	ErrInvalidTransition = errors.New("invalid payment status transition")
)

// HistoryCache stores per-user payment history. Get reports the invalidation
// version it observed; Set must drop the write when Invalidate ran since then.
type HistoryCache interface {
	Get(ctx context.Context, userID uuid.UUID) ([]models.Payment, int64, bool)
	Set(ctx context.Context, userID uuid.UUID, version int64, payments []models.Payment)
	Invalidate(ctx context.Context, userID uuid.UUID)
}

// PaymentPublisher announces completed payments to other services.
type PaymentPublisher interface {
	PublishPaymentCompleted(ctx context.Context, payment models.Payment) error
}

// PaymentNotifier tells humans about completed payments.
type PaymentNotifier interface {
	NotifyPaymentCompleted(payment models.Payment) error
}

// ProcessPaymentInput is the body of a payment request.
type ProcessPaymentInput struct {
	Amount        *float64
	PaymentMethod string
}

// PaymentService records payments and serves owner-scoped reads.
type PaymentService struct {
	db          *gorm.DB
	receiptBase string
	cache       HistoryCache
	publisher   PaymentPublisher
	notifier    PaymentNotifier
}

// PaymentOption configures optional collaborators of PaymentService.
type PaymentOption func(*PaymentService)

// WithHistoryCache serves History from cache.
func WithHistoryCache(cache HistoryCache) PaymentOption {
	return func(s *PaymentService) { s.cache = cache }
}

// WithPublisher publishes an event for every completed payment.
func WithPublisher(publisher PaymentPublisher) PaymentOption {
	return func(s *PaymentService) { s.publisher = publisher }
}

// WithNotifier sends a notification for every completed payment.
func WithNotifier(notifier PaymentNotifier) PaymentOption {
	return func(s *PaymentService) { s.notifier = notifier }
}

// NewPaymentService constructs a PaymentService.
func NewPaymentService(db *gorm.DB, receiptBase string, opts ...PaymentOption) *PaymentService {
	s := &PaymentService{db: db, receiptBase: receiptBase}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Settle returns the terminal status and receipt reference for a payment made
// with method. Every method completes; only card and PayPal produce a receipt.
func Settle(method models.PaymentMethod, paymentID uuid.UUID, receiptBase string) (models.PaymentStatus, *string) {
	return models.PaymentCompleted, method.ReceiptURL(receiptBase, paymentID)
}

// Process records a payment for identity. The pending insert and the transition
// to its terminal status commit together or not at all.
func (s *PaymentService) Process(ctx context.Context, identity models.Identity, in ProcessPaymentInput) (*models.Payment, error) {
	method := strings.TrimSpace(in.PaymentMethod)
	if in.Amount == nil || method == "" {
		return nil, fmt.Errorf("%w: amount and payment_method are required", ErrInvalidPayment)
	}
	amount, err := toCents(*in.Amount)
	if err != nil {
		return nil, err
	}

	payment := models.Payment{
		UserID:        identity.UserID,
		Amount:        amount,
		PaymentMethod: models.ParsePaymentMethod(method),
		Status:        models.PaymentPending,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&payment).Error; err != nil {
			return fmt.Errorf("create pending payment: %w", err)
		}

		status, receipt := Settle(payment.PaymentMethod, payment.PaymentID, s.receiptBase)
		if !payment.Status.CanTransitionTo(status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, payment.Status, status)
		}

		if err := tx.Model(&payment).Updates(map[string]interface{}{
			"status":      status,
			"receipt_url": receipt,
		}).Error; err != nil {
			return fmt.Errorf("complete payment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var stored models.Payment
	if err := s.db.WithContext(ctx).First(&stored, "payment_id = ?", payment.PaymentID).Error; err != nil {
		return nil, fmt.Errorf("reload payment: %w", err)
	}

	s.afterCompleted(ctx, stored)
	return &stored, nil
}

// maxAmount is the largest value the decimal(10,2) amount column holds.
const maxAmount = 99999999.99

// toCents rounds amount to the two decimals the amount column stores and
// rejects values that round to zero or overflow the column.
func toCents(amount float64) (float64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, fmt.Errorf("%w: amount must be a number", ErrInvalidPayment)
	}
	rounded := math.Round(amount*100) / 100
	if rounded <= 0 {
		return 0, fmt.Errorf("%w: amount must be at least 0.01", ErrInvalidPayment)
	}
	if rounded > maxAmount {
		return 0, fmt.Errorf("%w: amount exceeds %.2f", ErrInvalidPayment, maxAmount)
	}
	return rounded, nil
}

func (s *PaymentService) afterCompleted(ctx context.Context, payment models.Payment) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, payment.UserID)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishPaymentCompleted(ctx, payment); err != nil {
			log.Printf("[Payment] publish %s failed: %v", payment.PaymentID, err)
		}
	}

	if s.notifier != nil {
		go func() {
			if err := s.notifier.NotifyPaymentCompleted(payment); err != nil {
				log.Printf("[Payment] notify %s failed: %v", payment.PaymentID, err)
			}
		}()
	}
}

// History returns every payment owned by identity, most recent first.
func (s *PaymentService) History(ctx context.Context, identity models.Identity) ([]models.Payment, error) {
	var version int64
	if s.cache != nil {
		cached, seen, ok := s.cache.Get(ctx, identity.UserID)
		if ok {
			return cached, nil
		}
		version = seen
	}

	payments := make([]models.Payment, 0)
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", identity.UserID).
		Order("payment_date DESC").
		Find(&payments).Error; err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(ctx, identity.UserID, version, payments)
	}
	return payments, nil
}

// Details returns one payment owned by identity.
func (s *PaymentService) Details(ctx context.Context, identity models.Identity, rawID string) (*models.Payment, error) {
	paymentID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, ErrPaymentNotFound
	}

	var payment models.Payment
	err = s.db.WithContext(ctx).
		Where("payment_id = ? AND user_id = ?", paymentID, identity.UserID).
		First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// ListAll returns one page of every user's payments, newest first, and the total count.
func (s *PaymentService) ListAll(ctx context.Context, page utils.Pagination) ([]models.Payment, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Payment{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	payments := make([]models.Payment, 0, page.Limit)
	if err := s.db.WithContext(ctx).
		Order("payment_date DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&payments).Error; err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}
