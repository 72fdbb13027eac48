package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/crosspost-app/crosspost/internal/models"
)

type ScheduledPostRepository interface {
	GetByID(ctx context.Context, id int64) (*models.ScheduledPost, error)
	Create(ctx context.Context, tx *sql.Tx, post *models.ScheduledPost) (int64, error)
	GetByUserID(ctx context.Context, userID int64) ([]*models.ScheduledPost, error)
	CheckByUserID(ctx context.Context, postID, userID int64) (bool, error)
	Remove(ctx context.Context, id int64) error
	MarkProcessing(ctx context.Context, postID int64) error
	MarkSuccess(ctx context.Context, postID int64, externalPostID, permalink string) error
	MarkFailed(ctx context.Context, postID int64, errorMessage, externalPostID, permalink string) error
	ListStuckProcessing(ctx context.Context, olderThan time.Time) ([]*models.ScheduledPost, error)
}

type scheduledPostRepository struct {
	db *sql.DB
}

func NewScheduledPostRepository(db *sql.DB) ScheduledPostRepository {
	return &scheduledPostRepository{db: db}
}

const scheduledPostColumns = `id, user_id, social_account_id, platform, post_type, content, media_url, scheduled_at, status, external_post_id, permalink, error_message, posted_at, created_at, updated_at`

func scanScheduledPost(row interface{ Scan(...any) error }) (*models.ScheduledPost, error) {
	var p models.ScheduledPost
	err := row.Scan(&p.ID, &p.UserID, &p.SocialAccountID, &p.Platform, &p.PostType,
		&p.Content, &p.MediaURL, &p.ScheduledAt, &p.Status, &p.ExternalPostID,
		&p.Permalink, &p.ErrorMessage, &p.PostedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *scheduledPostRepository) Create(ctx context.Context, tx *sql.Tx, post *models.ScheduledPost) (int64, error) {
	query := `
		INSERT INTO scheduled_posts (user_id, social_account_id, platform, post_type, content, media_url, scheduled_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var id int64
	var err error

	args := []any{post.UserID, post.SocialAccountID, post.Platform, post.PostType,
		post.Content, post.MediaURL, post.ScheduledAt, post.Status}

	if tx != nil {
		err = tx.QueryRowContext(ctx, query, args...).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *scheduledPostRepository) GetByID(ctx context.Context, id int64) (*models.ScheduledPost, error) {
	query := `SELECT ` + scheduledPostColumns + ` FROM scheduled_posts WHERE id = $1`

	post, err := scanScheduledPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return post, nil
}

func (r *scheduledPostRepository) GetByUserID(ctx context.Context, userID int64) ([]*models.ScheduledPost, error) {
	query := `SELECT ` + scheduledPostColumns + ` FROM scheduled_posts WHERE user_id = $1 ORDER BY scheduled_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.ScheduledPost
	for rows.Next() {
		post, err := scanScheduledPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func (r *scheduledPostRepository) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	query := "SELECT 1 FROM scheduled_posts WHERE id = $1 AND user_id = $2"

	var result int
	err := r.db.QueryRowContext(ctx, query, postID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

func (r *scheduledPostRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM scheduled_posts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// MarkProcessing flips the status only. External post id and permalink
// recorded by an earlier attempt are never touched here.
func (r *scheduledPostRepository) MarkProcessing(ctx context.Context, postID int64) error {
	query := `
		UPDATE scheduled_posts
		SET status = $1,
			updated_at = $2
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, models.PostStatusProcessing, time.Now(), postID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *scheduledPostRepository) MarkSuccess(ctx context.Context, postID int64, externalPostID, permalink string) error {
	query := `
		UPDATE scheduled_posts
		SET status = $1,
			external_post_id = $2,
			permalink = NULLIF($3, ''),
			error_message = NULL,
			posted_at = $4,
			updated_at = $4
		WHERE id = $5
	`
	_, err := r.db.ExecContext(ctx, query, models.PostStatusSuccess, externalPostID, permalink, time.Now(), postID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// MarkFailed records the diagnostic while preserving any external post id
// or permalink obtained before the failing step. posted_at is set only when
// the platform actually accepted the post (partial success).
func (r *scheduledPostRepository) MarkFailed(ctx context.Context, postID int64, errorMessage, externalPostID, permalink string) error {
	query := `
		UPDATE scheduled_posts
		SET status = $1,
			error_message = $2,
			external_post_id = COALESCE(NULLIF($3, ''), external_post_id),
			permalink = COALESCE(NULLIF($4, ''), permalink),
			posted_at = CASE
				WHEN COALESCE(NULLIF($3, ''), external_post_id) IS NOT NULL THEN COALESCE(posted_at, $5)
				ELSE posted_at
			END,
			updated_at = $5
		WHERE id = $6
	`
	_, err := r.db.ExecContext(ctx, query, models.PostStatusFailed, errorMessage, externalPostID, permalink, time.Now(), postID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *scheduledPostRepository) ListStuckProcessing(ctx context.Context, olderThan time.Time) ([]*models.ScheduledPost, error) {
	query := `SELECT ` + scheduledPostColumns + ` FROM scheduled_posts WHERE status = $1 AND updated_at < $2`

	rows, err := r.db.QueryContext(ctx, query, models.PostStatusProcessing, olderThan)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.ScheduledPost
	for rows.Next() {
		post, err := scanScheduledPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}
