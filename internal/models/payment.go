package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentMethod is the instrument a payment was made with.
type PaymentMethod string

const (
	MethodCreditCard PaymentMethod = "credit-card"
	MethodPayPal     PaymentMethod = "paypal"
	MethodOther      PaymentMethod = "other"
)

// ParsePaymentMethod maps a request value onto a known method. Values that are
// not recognized become MethodOther.
func ParsePaymentMethod(value string) PaymentMethod {
	switch method := PaymentMethod(strings.ToLower(strings.TrimSpace(value))); method {
	case MethodCreditCard, MethodPayPal:
		return method
	default:
		return MethodOther
	}
}

// ReceiptURL returns the receipt reference for a completed payment made with m,
// or nil when the method does not produce one.
func (m PaymentMethod) ReceiptURL(base string, paymentID uuid.UUID) *string {
	var url string
	switch m {
	case MethodCreditCard:
		url = fmt.Sprintf("%s/credit-card/%s", base, paymentID)
	case MethodPayPal:
		url = fmt.Sprintf("%s/paypal/%s", base, paymentID)
	case MethodOther:
		return nil
	default:
		return nil
	}
	return &url
}

// PaymentStatus is the lifecycle state of a payment record.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
)

// CanTransitionTo reports whether a record in status s may move to next.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	return s == PaymentPending && next == PaymentCompleted
}

// Payment is a single charge recorded for a user.
type Payment struct {
	PaymentID     uuid.UUID     `gorm:"column:payment_id;type:uuid;primaryKey" json:"payment_id"`
	UserID        uuid.UUID     `gorm:"type:uuid;index;not null" json:"user_id"`
	User          *User         `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Amount        float64       `gorm:"type:decimal(10,2);not null" json:"amount"`
	PaymentMethod PaymentMethod `gorm:"size:32;not null" json:"payment_method"`
	Status        PaymentStatus `gorm:"size:16;not null;default:pending" json:"status"`
	ReceiptURL    *string       `json:"receipt_url"`
	PaymentDate   time.Time     `gorm:"index" json:"payment_date"`
}

// TableName keeps the schema name independent of the struct name.
func (Payment) TableName() string {
	return "payments"
}

// BeforeCreate assigns the identifier and payment date.
func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.PaymentID == uuid.Nil {
		p.PaymentID = uuid.New()
	}
	if p.PaymentDate.IsZero() {
		p.PaymentDate = time.Now().UTC()
	}
	if p.Status == "" {
		p.Status = PaymentPending
	}
	return nil
}
