package models

import "time"

// NotificationType classifies notifications for clients.
type NotificationType string

const (
	NotificationScheduleReminder NotificationType = "schedule_reminder"
	NotificationContractUpdate   NotificationType = "contract_update"
)

// Notification is a message addressed to a user account.
type Notification struct {
	ID      int64            `db:"id" json:"id"`
	UserID  int64            `db:"user_id" json:"user_id"`
	Message string           `db:"message" json:"message"`
	Type    NotificationType `db:"type" json:"type"`
	SentAt  time.Time        `db:"sent_at" json:"sent_at"`
	IsRead  bool             `db:"is_read" json:"is_read"`
}
