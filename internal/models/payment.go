package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus mirrors the outcome reported by the payment subsystem.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusSuccess PaymentStatus = "success"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// Payment records one payment attempt for an enrollment.
type Payment struct {
	ID            int64           `db:"id" json:"id"`
	EnrollmentID  int64           `db:"enrollment_id" json:"enrollment_id"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Method        string          `db:"method" json:"method"`
	TransactionID string          `db:"transaction_id" json:"transaction_id"`
	Status        PaymentStatus   `db:"status" json:"status"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}
