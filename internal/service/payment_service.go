package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type paymentRepository interface {
	UpsertTx(ctx context.Context, tx *sqlx.Tx, payment *models.Payment) error
	ListByEnrollment(ctx context.Context, enrollmentID int64) ([]models.Payment, error)
}

type enrollmentStatusWriter interface {
	FindByIDForUpdateTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Enrollment, error)
	UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id int64, status models.EnrollmentStatus) error
}

// ConfirmPaymentRequest is delivered by the payment subsystem.
type ConfirmPaymentRequest struct {
	Amount        decimal.Decimal      `json:"amount"`
	Method        string               `json:"method" validate:"required,max=50"`
	TransactionID string               `json:"transaction_id" validate:"required,max=100"`
	Status        models.PaymentStatus `json:"status" validate:"required,oneof=pending success failed"`
}

// PaymentService records payment confirmations against enrollments.
type PaymentService struct {
	db          txProvider
	payments    paymentRepository
	enrollments enrollmentStatusWriter
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewPaymentService constructs the service.
func NewPaymentService(db txProvider, payments paymentRepository, enrollments enrollmentStatusWriter, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{db: db, payments: payments, enrollments: enrollments, validator: validate, logger: logger}
}

// Confirm records the payment and completes a pending enrollment on success.
// Redelivery of the same transaction id updates the existing record.
func (s *PaymentService) Confirm(ctx context.Context, enrollmentID int64, req ConfirmPaymentRequest) (payment *models.Payment, err error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	if !req.Amount.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "amount must be positive")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, storageFailure(s.logger, err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	enrollment, err := s.enrollments.FindByIDForUpdateTx(ctx, tx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
			return nil, err
		}
		err = storageFailure(s.logger, err, "failed to load enrollment", zap.Int64("enrollment_id", enrollmentID))
		return nil, err
	}
	if enrollment.Status == models.EnrollmentStatusCanceled {
		err = appErrors.Clone(appErrors.ErrLocked, "enrollment is canceled")
		return nil, err
	}

	payment = &models.Payment{
		EnrollmentID:  enrollmentID,
		Amount:        req.Amount,
		Method:        req.Method,
		TransactionID: req.TransactionID,
		Status:        req.Status,
	}
	if err = s.payments.UpsertTx(ctx, tx, payment); err != nil {
		err = storageFailure(s.logger, err, "failed to record payment", zap.Int64("enrollment_id", enrollmentID), zap.String("transaction_id", req.TransactionID))
		return nil, err
	}
	if req.Status == models.PaymentStatusSuccess && enrollment.Status == models.EnrollmentStatusPending {
		if err = s.enrollments.UpdateStatusTx(ctx, tx, enrollmentID, models.EnrollmentStatusCompleted); err != nil {
			err = storageFailure(s.logger, err, "failed to complete enrollment", zap.Int64("enrollment_id", enrollmentID))
			return nil, err
		}
	}
	if err = tx.Commit(); err != nil {
		err = storageFailure(s.logger, err, "failed to commit payment", zap.Int64("enrollment_id", enrollmentID))
		return nil, err
	}
	return payment, nil
}

// ListByEnrollment returns the recorded payments of an enrollment.
func (s *PaymentService) ListByEnrollment(ctx context.Context, enrollmentID int64) ([]models.Payment, error) {
	payments, err := s.payments.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, storageFailure(s.logger, err, "failed to list payments", zap.Int64("enrollment_id", enrollmentID))
	}
	if payments == nil {
		payments = []models.Payment{}
	}
	return payments, nil
}
