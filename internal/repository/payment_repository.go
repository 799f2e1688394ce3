package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

const paymentColumns = `id, enrollment_id, amount, method, transaction_id, status, created_at, updated_at`

// PaymentRepository persists payment confirmations.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// UpsertTx records a payment keyed by (enrollment_id, transaction_id). A
// repeated confirmation only refreshes status and amount.
func (r *PaymentRepository) UpsertTx(ctx context.Context, tx *sqlx.Tx, payment *models.Payment) error {
	now := time.Now().UTC()
	payment.UpdatedAt = now
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	const query = `INSERT INTO payments (enrollment_id, amount, method, transaction_id, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (enrollment_id, transaction_id)
DO UPDATE SET amount = EXCLUDED.amount, method = EXCLUDED.method, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
RETURNING id, created_at`
	row := tx.QueryRowxContext(ctx, query,
		payment.EnrollmentID, payment.Amount, payment.Method, payment.TransactionID,
		payment.Status, payment.CreatedAt, payment.UpdatedAt)
	if err := row.Scan(&payment.ID, &payment.CreatedAt); err != nil {
		return fmt.Errorf("upsert payment: %w", err)
	}
	return nil
}

// ListByEnrollment returns the payments recorded for an enrollment.
func (r *PaymentRepository) ListByEnrollment(ctx context.Context, enrollmentID int64) ([]models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE enrollment_id = $1 ORDER BY created_at ASC, id ASC`
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}
