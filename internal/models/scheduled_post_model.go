package models

import (
	"database/sql"
	"time"
)

type ScheduledPost struct {
	ID              int64          `db:"id" json:"id"`
	UserID          int64          `db:"user_id" json:"user_id"`
	SocialAccountID int64          `db:"social_account_id" json:"social_account_id"`
	Platform        string         `db:"platform" json:"platform"`
	PostType        string         `db:"post_type" json:"post_type"`
	Content         string         `db:"content" json:"content"`
	MediaURL        sql.NullString `db:"media_url" json:"media_url"`
	ScheduledAt     time.Time      `db:"scheduled_at" json:"scheduled_at"`
	Status          string         `db:"status" json:"status"`
	ExternalPostID  sql.NullString `db:"external_post_id" json:"external_post_id"`
	Permalink       sql.NullString `db:"permalink" json:"permalink"`
	ErrorMessage    sql.NullString `db:"error_message" json:"error_message"`
	PostedAt        sql.NullTime   `db:"posted_at" json:"posted_at"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

const (
	PostStatusScheduled  = "scheduled"
	PostStatusProcessing = "processing"
	PostStatusSuccess    = "success"
	PostStatusFailed     = "failed"
)

const (
	PostTypePhoto    = "photo"
	PostTypeVideo    = "video"
	PostTypeCarousel = "carousel"
)

const (
	PlatformInstagram = "instagram"
	PlatformFacebook  = "facebook"
	PlatformYoutube   = "youtube"
)
