package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/jobs"
)

const notificationJobType = "notification.deliver"

type notificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListByUser(ctx context.Context, userID int64, unreadOnly bool, limit, offset int) ([]models.Notification, int, error)
	MarkRead(ctx context.Context, id, userID int64) error
}

// notifier is the dispatcher the domain services talk to. Delivery is
// fire-and-forget: a returned error only means the message was not queued.
type notifier interface {
	Notify(ctx context.Context, userID int64, message string, kind models.NotificationType) error
}

// NotificationService queues notifications and persists them from workers.
type NotificationService struct {
	repo   notificationRepository
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationService wires the repository and a dedicated delivery queue.
func NewNotificationService(repo notificationRepository, cfg jobs.QueueConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &NotificationService{repo: repo, logger: logger}
	if cfg.Logger == nil {
		cfg.Logger = logger
	}
	svc.queue = jobs.NewQueue("notifications", svc.deliver, cfg)
	return svc
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Stats exposes queue counters.
func (s *NotificationService) Stats() jobs.Stats {
	return s.queue.Stats()
}

// Notify queues a message for userID without waiting for delivery.
func (s *NotificationService) Notify(ctx context.Context, userID int64, message string, kind models.NotificationType) error {
	notification := models.Notification{UserID: userID, Message: message, Type: kind}
	if err := s.queue.TryEnqueue(jobs.Job{Type: notificationJobType, Payload: notification}); err != nil {
		s.logger.Warn("notification not queued", zap.Int64("user_id", userID), zap.String("type", string(kind)), zap.Error(err))
		return err
	}
	return nil
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	notification, ok := job.Payload.(models.Notification)
	if !ok {
		return fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.ID)
	}
	return s.repo.Create(ctx, &notification)
}

// List returns a page of the user's notifications.
func (s *NotificationService) List(ctx context.Context, userID int64, unreadOnly bool, page, size int) ([]models.Notification, *models.Pagination, error) {
	pagination := models.NewPagination(page, size, 0)
	offset := (pagination.Page - 1) * pagination.PageSize
	items, total, err := s.repo.ListByUser(ctx, userID, unreadOnly, pagination.PageSize, offset)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	pagination.TotalCount = total
	return items, pagination, nil
}

// MarkRead flags one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id int64) error {
	if err := s.repo.MarkRead(ctx, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notification")
	}
	return nil
}
