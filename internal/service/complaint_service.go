package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/lifecycle"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/pkg/cache"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type complaintRepository interface {
	Create(ctx context.Context, complaint *models.Complaint) error
	FindByID(ctx context.Context, id int64) (*models.Complaint, error)
	FindByIDForUpdateTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Complaint, error)
	List(ctx context.Context, status models.ComplaintStatus) ([]models.Complaint, error)
	UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id int64, status models.ComplaintStatus) error
}

type complaintContractRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Contract, error)
	FindByIDForUpdateTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Contract, error)
	UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id int64, status models.ContractStatus) error
	CompleteExpiredTx(ctx context.Context, tx *sqlx.Tx, courseID int64, today time.Time) (int64, error)
}

type complaintCourseRepository interface {
	FindByIDForUpdateTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Course, error)
	UpdateTx(ctx context.Context, tx *sqlx.Tx, course *models.Course) error
}

// Complaint review actions.
const (
	ComplaintActionApprove = "approve"
	ComplaintActionReject  = "reject"
)

// FileComplaintRequest is submitted by a contract party.
type FileComplaintRequest struct {
	ContractID  int64  `json:"contract_id" validate:"required,gt=0"`
	Description string `json:"description" validate:"required,max=2000"`
}

// ComplaintService files complaints and applies admin decisions.
type ComplaintService struct {
	db         txProvider
	complaints complaintRepository
	contracts  complaintContractRepository
	courses    complaintCourseRepository
	students   enrolledStudentLister
	writer     lifecycleWriter
	notifier   notifier
	cache      cachePort
	cal        calendar
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewComplaintService wires the complaint workflow.
func NewComplaintService(
	db txProvider,
	complaints complaintRepository,
	contracts complaintContractRepository,
	courses complaintCourseRepository,
	schedules scheduleStatusMirror,
	students enrolledStudentLister,
	notify notifier,
	cache cachePort,
	loc *time.Location,
	validate *validator.Validate,
	logger *zap.Logger,
) *ComplaintService {
	if cache == nil {
		cache = noopCache{}
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ComplaintService{
		db:         db,
		complaints: complaints,
		contracts:  contracts,
		courses:    courses,
		students:   students,
		writer:     lifecycleWriter{courses: courses, schedules: schedules, contracts: contracts},
		notifier:   notify,
		cache:      cache,
		cal:        newCalendar(loc),
		validator:  validate,
		logger:     logger,
	}
}

// File records a pending complaint from userID against a contract.
func (s *ComplaintService) File(ctx context.Context, userID int64, req FileComplaintRequest) (*models.Complaint, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid complaint payload")
	}
	if _, err := s.contracts.FindByID(ctx, req.ContractID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "contract not found")
		}
		return nil, storageFailure(s.logger, err, "failed to load contract", zap.Int64("contract_id", req.ContractID))
	}

	complaint := &models.Complaint{
		ContractID:  req.ContractID,
		UserID:      userID,
		Description: strings.TrimSpace(req.Description),
		Status:      models.ComplaintStatusPending,
	}
	if err := s.complaints.Create(ctx, complaint); err != nil {
		return nil, storageFailure(s.logger, err, "failed to file complaint", zap.Int64("contract_id", req.ContractID))
	}
	s.notify(ctx, userID, "Your complaint has been submitted and is under review.")
	return complaint, nil
}

// Get returns one complaint.
func (s *ComplaintService) Get(ctx context.Context, id int64) (*models.Complaint, error) {
	complaint, err := s.complaints.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "complaint not found")
		}
		return nil, storageFailure(s.logger, err, "failed to load complaint", zap.Int64("complaint_id", id))
	}
	return complaint, nil
}

// List returns complaints, optionally filtered by status.
func (s *ComplaintService) List(ctx context.Context, status models.ComplaintStatus) ([]models.Complaint, error) {
	switch status {
	case "", models.ComplaintStatusPending, models.ComplaintStatusApproved, models.ComplaintStatusRejected:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown complaint status")
	}
	complaints, err := s.complaints.List(ctx, status)
	if err != nil {
		return nil, storageFailure(s.logger, err, "failed to list complaints")
	}
	if complaints == nil {
		complaints = []models.Complaint{}
	}
	return complaints, nil
}

// Process applies an admin decision. Approving cancels the contract and its
// course in one transaction; both actions require a pending complaint.
func (s *ComplaintService) Process(ctx context.Context, id int64, action string) (complaint *models.Complaint, err error) {
	action = strings.ToLower(strings.TrimSpace(action))
	if action != ComplaintActionApprove && action != ComplaintActionReject {
		return nil, appErrors.Clone(appErrors.ErrValidation, "action must be approve or reject")
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

	complaint, err = s.complaints.FindByIDForUpdateTx(ctx, tx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "complaint not found")
			return nil, err
		}
		err = storageFailure(s.logger, err, "failed to load complaint", zap.Int64("complaint_id", id))
		return nil, err
	}
	if complaint.Status != models.ComplaintStatusPending {
		err = appErrors.Clone(appErrors.ErrLocked, fmt.Sprintf("complaint already %s", complaint.Status))
		return nil, err
	}

	if action == ComplaintActionReject {
		complaint.Status = models.ComplaintStatusRejected
		if err = s.complaints.UpdateStatusTx(ctx, tx, id, complaint.Status); err != nil {
			err = storageFailure(s.logger, err, "failed to reject complaint", zap.Int64("complaint_id", id))
			return nil, err
		}
		if err = tx.Commit(); err != nil {
			err = storageFailure(s.logger, err, "failed to commit complaint", zap.Int64("complaint_id", id))
			return nil, err
		}
		s.notify(ctx, complaint.UserID, "Your complaint has been rejected.")
		return complaint, nil
	}

	canceled, stale, err := s.approveTx(ctx, tx, complaint)
	if err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = storageFailure(s.logger, err, "failed to commit complaint", zap.Int64("complaint_id", id))
		return nil, err
	}

	s.logger.Info("complaint approved",
		zap.Int64("complaint_id", id),
		zap.Int64("contract_id", complaint.ContractID),
		zap.Bool("course_canceled", canceled != nil))
	if canceled != nil {
		_ = s.cache.Invalidate(ctx, stale...)
		s.notifyStudents(ctx, *canceled)
		s.notify(ctx, complaint.UserID, fmt.Sprintf("Course '%s' has been canceled due to complaint: %s", canceled.Name, complaint.Description))
	} else {
		s.notify(ctx, complaint.UserID, "Your complaint has been approved and the contract was canceled.")
	}
	return complaint, nil
}

// approveTx cancels the contract and, unless it already ended, the owning
// course. The canceled course is returned for notification together with the
// cache keys its cancellation made stale.
func (s *ComplaintService) approveTx(ctx context.Context, tx *sqlx.Tx, complaint *models.Complaint) (*models.Course, []string, error) {
	contract, err := s.contracts.FindByIDForUpdateTx(ctx, tx, complaint.ContractID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "contract not found")
		}
		return nil, nil, storageFailure(s.logger, err, "failed to load contract", zap.Int64("contract_id", complaint.ContractID))
	}
	if err := s.contracts.UpdateStatusTx(ctx, tx, contract.ID, models.ContractStatusCanceled); err != nil {
		return nil, nil, storageFailure(s.logger, err, "failed to cancel contract", zap.Int64("contract_id", contract.ID))
	}

	course, err := s.courses.FindByIDForUpdateTx(ctx, tx, contract.CourseID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, nil, storageFailure(s.logger, err, "failed to load course", zap.Int64("course_id", contract.CourseID))
	}
	var (
		canceled *models.Course
		stale    []string
	)
	if course != nil {
		plan, cancelErr := lifecycle.Cancel(*course, s.cal.today())
		if cancelErr == nil {
			if stale, err = s.writer.persist(ctx, tx, plan, true); err != nil {
				return nil, nil, storageFailure(s.logger, err, "failed to cancel course", zap.Int64("course_id", course.ID))
			}
			canceled = &plan.Course
		}
	}

	complaint.Status = models.ComplaintStatusApproved
	if err := s.complaints.UpdateStatusTx(ctx, tx, complaint.ID, complaint.Status); err != nil {
		return nil, nil, storageFailure(s.logger, err, "failed to approve complaint", zap.Int64("complaint_id", complaint.ID))
	}
	return canceled, stale, nil
}

func (s *ComplaintService) notifyStudents(ctx context.Context, course models.Course) {
	if s.notifier == nil || s.students == nil {
		return
	}
	students, err := s.students.ListEnrolledInCourse(ctx, course.ID)
	if err != nil {
		s.logger.Warn("failed to load students for cancellation notice", zap.Int64("course_id", course.ID), zap.Error(err))
		return
	}
	keys := make([]string, 0, len(students))
	message := fmt.Sprintf("Course '%s' has been canceled.", course.Name)
	for _, student := range students {
		keys = append(keys, cache.StudentCoursesKey(student.ID))
		_ = s.notifier.Notify(ctx, student.UserID, message, models.NotificationScheduleReminder)
	}
	_ = s.cache.Invalidate(ctx, keys...)
}

func (s *ComplaintService) notify(ctx context.Context, userID int64, message string) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.Notify(ctx, userID, message, models.NotificationContractUpdate)
}
