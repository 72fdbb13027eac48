package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/crosspost-app/crosspost/internal/models"
)

type AlertRepository interface {
	Create(ctx context.Context, alert *models.Alert) (int64, error)
	GetByUserID(ctx context.Context, userID int64) ([]*models.Alert, error)
	MarkRead(ctx context.Context, userID, alertID int64) error
	CountUnread(ctx context.Context, userID int64) (int, error)
}

type alertRepository struct {
	db *sql.DB
}

func NewAlertRepository(db *sql.DB) AlertRepository {
	return &alertRepository{db: db}
}

func (r *alertRepository) Create(ctx context.Context, alert *models.Alert) (int64, error) {
	query := `
		INSERT INTO alerts (user_id, social_account_id, scheduled_post_id, alert_type, platform, title, message, account_name, post_type, scheduled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		alert.UserID, alert.SocialAccountID, alert.ScheduledPostID, alert.AlertType,
		alert.Platform, alert.Title, alert.Message, alert.AccountName,
		alert.PostType, alert.ScheduledAt).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *alertRepository) GetByUserID(ctx context.Context, userID int64) ([]*models.Alert, error) {
	query := `
		SELECT id, user_id, social_account_id, scheduled_post_id, alert_type, platform, title, message, account_name, post_type, scheduled_at, is_read, created_at
		FROM alerts WHERE user_id = $1 ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		var a models.Alert
		err := rows.Scan(&a.ID, &a.UserID, &a.SocialAccountID, &a.ScheduledPostID,
			&a.AlertType, &a.Platform, &a.Title, &a.Message, &a.AccountName,
			&a.PostType, &a.ScheduledAt, &a.IsRead, &a.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		alerts = append(alerts, &a)
	}
	return alerts, rows.Err()
}

func (r *alertRepository) MarkRead(ctx context.Context, userID, alertID int64) error {
	query := `UPDATE alerts SET is_read = TRUE WHERE id = $1 AND user_id = $2`
	_, err := r.db.ExecContext(ctx, query, alertID, userID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *alertRepository) CountUnread(ctx context.Context, userID int64) (int, error) {
	query := `SELECT COUNT(*) FROM alerts WHERE user_id = $1 AND is_read = FALSE`

	var count int
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&count)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return count, nil
}
