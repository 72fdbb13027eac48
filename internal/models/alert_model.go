package models

import (
	"database/sql"
	"time"
)

// Alert is a write-once lifecycle notification. The read model is a
// user-scoped append log with a read/unread flag.
type Alert struct {
	ID              int64          `db:"id" json:"id"`
	UserID          int64          `db:"user_id" json:"user_id"`
	SocialAccountID sql.NullInt64  `db:"social_account_id" json:"social_account_id"`
	ScheduledPostID sql.NullInt64  `db:"scheduled_post_id" json:"scheduled_post_id"`
	AlertType       string         `db:"alert_type" json:"alert_type"`
	Platform        string         `db:"platform" json:"platform"`
	Title           string         `db:"title" json:"title"`
	Message         string         `db:"message" json:"message"`
	AccountName     string         `db:"account_name" json:"account_name"`
	PostType        string         `db:"post_type" json:"post_type"`
	ScheduledAt     sql.NullTime   `db:"scheduled_at" json:"scheduled_at"`
	IsRead          bool           `db:"is_read" json:"is_read"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
}

const (
	AlertTypeScheduled  = "scheduled"
	AlertTypeProcessing = "processing"
	AlertTypeSuccess    = "success"
	AlertTypeFailed     = "failed"
)
