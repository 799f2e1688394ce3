package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/lifecycle"
	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/export"
)

type contractRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Contract, error)
	FindDocument(ctx context.Context, id int64) (*models.ContractDocument, error)
	ListByStudent(ctx context.Context, studentID int64) ([]models.Contract, error)
	ListByTutor(ctx context.Context, tutorID int64) ([]models.Contract, error)
	UpdateStatus(ctx context.Context, id int64, status models.ContractStatus) error
}

type documentRenderer interface {
	RenderDocument(doc export.Document) ([]byte, error)
}

// ContractService exposes contracts with their end-date sweep applied.
type ContractService struct {
	contracts contractRepository
	renderer  documentRenderer
	cal       calendar
	logger    *zap.Logger
}

// NewContractService constructs the service. A nil renderer falls back to the
// gofpdf exporter.
func NewContractService(contracts contractRepository, renderer documentRenderer, loc *time.Location, logger *zap.Logger) *ContractService {
	if renderer == nil {
		renderer = export.NewPDFExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContractService{contracts: contracts, renderer: renderer, cal: newCalendar(loc), logger: logger}
}

// Get returns one contract.
func (s *ContractService) Get(ctx context.Context, id int64) (*models.Contract, error) {
	contract, err := s.contracts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "contract not found")
		}
		return nil, storageFailure(s.logger, err, "failed to load contract", zap.Int64("contract_id", id))
	}
	reconciled := s.reconcile(ctx, *contract)
	return &reconciled, nil
}

// ListByStudent returns the contracts a student is party to.
func (s *ContractService) ListByStudent(ctx context.Context, studentID int64) ([]models.Contract, error) {
	contracts, err := s.contracts.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, storageFailure(s.logger, err, "failed to list student contracts", zap.Int64("student_id", studentID))
	}
	return s.reconcileAll(ctx, contracts), nil
}

// ListByTutor returns the contracts a tutor is party to.
func (s *ContractService) ListByTutor(ctx context.Context, tutorID int64) ([]models.Contract, error) {
	contracts, err := s.contracts.ListByTutor(ctx, tutorID)
	if err != nil {
		return nil, storageFailure(s.logger, err, "failed to list tutor contracts", zap.Int64("tutor_id", tutorID))
	}
	return s.reconcileAll(ctx, contracts), nil
}

// ExportPDF renders the contract as a signed-off document.
func (s *ContractService) ExportPDF(ctx context.Context, id int64) ([]byte, *models.ContractDocument, error) {
	doc, err := s.contracts.FindDocument(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "contract not found")
		}
		return nil, nil, storageFailure(s.logger, err, "failed to load contract document", zap.Int64("contract_id", id))
	}
	doc.Contract = s.reconcile(ctx, doc.Contract)

	content, err := s.renderer.RenderDocument(export.Document{
		Title: "Tutoring Contract",
		Fields: []export.Field{
			{Label: "Contract No.", Value: fmt.Sprintf("%d", doc.ID)},
			{Label: "Course", Value: doc.CourseName},
			{Label: "Tutor", Value: doc.TutorName},
			{Label: "Student", Value: doc.StudentName},
			{Label: "Fee", Value: doc.Fee.StringFixed(2)},
			{Label: "Period", Value: fmt.Sprintf("%s to %s", doc.StartDate.Format("2006-01-02"), doc.EndDate.Format("2006-01-02"))},
			{Label: "Status", Value: string(doc.Status)},
		},
		Body:   doc.Terms,
		Footer: "Issued " + s.cal.today().Format("2006-01-02"),
	})
	if err != nil {
		s.logger.Error("failed to render contract", zap.Int64("contract_id", id), zap.Error(err))
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render contract")
	}
	return content, doc, nil
}

func (s *ContractService) reconcileAll(ctx context.Context, contracts []models.Contract) []models.Contract {
	out := make([]models.Contract, 0, len(contracts))
	for _, contract := range contracts {
		out = append(out, s.reconcile(ctx, contract))
	}
	return out
}

// reconcile completes an expired contract and persists it best effort. The
// reconciled value is returned even if the write fails.
func (s *ContractService) reconcile(ctx context.Context, contract models.Contract) models.Contract {
	next, changed := lifecycle.ReconcileContract(contract, s.cal.today())
	if !changed {
		return contract
	}
	if err := s.contracts.UpdateStatus(ctx, next.ID, next.Status); err != nil {
		s.logger.Warn("failed to persist contract completion", zap.Int64("contract_id", next.ID), zap.Error(err))
	}
	return next
}
