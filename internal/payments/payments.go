// Package payments owns payment records and the exactly-once crediting
// of the ledger on provider confirmation.
package payments

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Method string

const (
	MethodYooMoney      Method = "yoomoney"
	MethodTelegramStars Method = "telegram_stars"
)

func ValidMethod(m Method) bool {
	return m == MethodYooMoney || m == MethodTelegramStars
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the payment can no longer change status.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusCancelled
}

var (
	// ErrNotFound is returned when no payment matches the id.
	ErrNotFound = errors.New("payment not found")
	// ErrProvider wraps payment-provider failures; surfaced to the user
	// as "try again later", never as a crash.
	ErrProvider = errors.New("payment provider error")
)

type Payment struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	Amount            decimal.Decimal
	Method            Method
	Status            Status
	ExternalPaymentID *string
	PaymentURL        *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
