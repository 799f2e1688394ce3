package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

// NotificationRepository persists user notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create stores a notification.
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if notification.SentAt.IsZero() {
		notification.SentAt = time.Now().UTC()
	}
	const query = `INSERT INTO notifications (user_id, message, type, sent_at, is_read) VALUES ($1, $2, $3, $4, FALSE) RETURNING id`
	if err := r.db.GetContext(ctx, &notification.ID, query,
		notification.UserID, notification.Message, notification.Type, notification.SentAt); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// ListByUser returns a page of notifications addressed to the user.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID int64, unreadOnly bool, limit, offset int) ([]models.Notification, int, error) {
	where := `WHERE user_id = $1`
	if unreadOnly {
		where += ` AND is_read = FALSE`
	}
	query := `SELECT id, user_id, message, type, sent_at, is_read FROM notifications ` + where + ` ORDER BY sent_at DESC, id DESC LIMIT $2 OFFSET $3`
	var items []models.Notification
	if err := r.db.SelectContext(ctx, &items, query, userID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM notifications `+where, userID); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}
	return items, total, nil
}

// MarkRead flags a notification owned by userID as read.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification %d read: %w", id, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
