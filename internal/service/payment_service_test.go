package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type paymentRepoStub struct {
	upserts []models.Payment
}

func (r *paymentRepoStub) UpsertTx(ctx context.Context, tx *sqlx.Tx, payment *models.Payment) error {
	payment.ID = int64(len(r.upserts) + 1)
	r.upserts = append(r.upserts, *payment)
	return nil
}

func (r *paymentRepoStub) ListByEnrollment(ctx context.Context, enrollmentID int64) ([]models.Payment, error) {
	return nil, nil
}

type enrollmentStatusStub struct {
	enrollment *models.Enrollment
	statuses   []models.EnrollmentStatus
}

func (s *enrollmentStatusStub) FindByIDForUpdateTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Enrollment, error) {
	if s.enrollment == nil || s.enrollment.ID != id {
		return nil, sql.ErrNoRows
	}
	copied := *s.enrollment
	return &copied, nil
}

func (s *enrollmentStatusStub) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id int64, status models.EnrollmentStatus) error {
	s.statuses = append(s.statuses, status)
	return nil
}

func paymentRequest(status models.PaymentStatus) ConfirmPaymentRequest {
	return ConfirmPaymentRequest{
		Amount:        decimal.RequireFromString("250.00"),
		Method:        "bank_transfer",
		TransactionID: "TX-1",
		Status:        status,
	}
}

func TestPaymentServiceConfirmCompletesEnrollment(t *testing.T) {
	db, mock := newTxProviderMock(t)
	payments := &paymentRepoStub{}
	enrollments := &enrollmentStatusStub{enrollment: &models.Enrollment{ID: 4, Status: models.EnrollmentStatusPending}}
	svc := NewPaymentService(db, payments, enrollments, nil, nil)

	mock.ExpectBegin()
	mock.ExpectCommit()
	payment, err := svc.Confirm(context.Background(), 4, paymentRequest(models.PaymentStatusSuccess))
	require.NoError(t, err)
	assert.Equal(t, int64(4), payment.EnrollmentID)
	assert.Equal(t, []models.EnrollmentStatus{models.EnrollmentStatusCompleted}, enrollments.statuses)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentServiceConfirmPendingLeavesEnrollment(t *testing.T) {
	db, mock := newTxProviderMock(t)
	enrollments := &enrollmentStatusStub{enrollment: &models.Enrollment{ID: 4, Status: models.EnrollmentStatusPending}}
	svc := NewPaymentService(db, &paymentRepoStub{}, enrollments, nil, nil)

	mock.ExpectBegin()
	mock.ExpectCommit()
	_, err := svc.Confirm(context.Background(), 4, paymentRequest(models.PaymentStatusPending))
	require.NoError(t, err)
	assert.Empty(t, enrollments.statuses)
}

func TestPaymentServiceConfirmGuards(t *testing.T) {
	db, mock := newTxProviderMock(t)
	enrollments := &enrollmentStatusStub{enrollment: &models.Enrollment{ID: 4, Status: models.EnrollmentStatusCanceled}}
	svc := NewPaymentService(db, &paymentRepoStub{}, enrollments, nil, nil)

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err := svc.Confirm(context.Background(), 4, paymentRequest(models.PaymentStatusSuccess))
	assert.True(t, errors.Is(err, appErrors.ErrLocked))

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err = svc.Confirm(context.Background(), 99, paymentRequest(models.PaymentStatusSuccess))
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	req := paymentRequest(models.PaymentStatusSuccess)
	req.Amount = decimal.Zero
	_, err = svc.Confirm(context.Background(), 4, req)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	req = paymentRequest("refunded")
	_, err = svc.Confirm(context.Background(), 4, req)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	require.NoError(t, mock.ExpectationsWereMet())
}
