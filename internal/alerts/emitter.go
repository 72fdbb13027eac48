package alerts

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/crosspost-app/crosspost/internal/models"
	"github.com/crosspost-app/crosspost/internal/repository"
	"github.com/crosspost-app/crosspost/internal/status"
)

// Emitter records lifecycle alerts for users. Delivery is strictly
// best-effort: any failure is logged and swallowed so alerting can never
// change post status or retry behavior.
type Emitter struct {
	ar repository.AlertRepository
	sa repository.SocialAccountRepository
}

func NewEmitter(ar repository.AlertRepository, sa repository.SocialAccountRepository) *Emitter {
	return &Emitter{ar: ar, sa: sa}
}

// Hook adapts the emitter to the status tracker's transition hook list.
func (e *Emitter) Hook() status.Hook {
	return func(ctx context.Context, tr status.Transition) {
		e.Notify(ctx, tr)
	}
}

func (e *Emitter) Notify(ctx context.Context, tr status.Transition) {
	// One processing alert per post, not one per retry.
	if tr.Status == models.PostStatusProcessing && tr.Attempt > 1 {
		return
	}

	title, message := alertText(tr)

	alert := &models.Alert{
		UserID:          tr.UserID,
		SocialAccountID: sql.NullInt64{Int64: tr.SocialAccountID, Valid: tr.SocialAccountID != 0},
		ScheduledPostID: sql.NullInt64{Int64: tr.PostID, Valid: tr.PostID != 0},
		AlertType:       tr.Status,
		Platform:        tr.Platform,
		Title:           title,
		Message:         message,
		AccountName:     e.accountName(ctx, tr.SocialAccountID),
		PostType:        tr.PostType,
		ScheduledAt:     sql.NullTime{Time: tr.ScheduledAt, Valid: !tr.ScheduledAt.IsZero()},
	}

	if _, err := e.ar.Create(ctx, alert); err != nil {
		slog.Info("failed to record alert", "post_id", tr.PostID, "alert_type", tr.Status, "error", err.Error())
	}
}

// accountName denormalizes the account display name onto the alert.
// Lookup failure only degrades the alert text.
func (e *Emitter) accountName(ctx context.Context, socialAccountID int64) string {
	if socialAccountID == 0 {
		return ""
	}
	acc, err := e.sa.GetByID(ctx, socialAccountID)
	if err != nil || acc == nil {
		if err != nil {
			slog.Info("could not resolve account for alert", "social_account_id", socialAccountID, "error", err.Error())
		}
		return ""
	}
	return acc.AccountName
}

func alertText(tr status.Transition) (string, string) {
	switch tr.Status {
	case models.PostStatusScheduled:
		return "Post scheduled",
			fmt.Sprintf("Your %s post for %s is scheduled for %s.", tr.PostType, tr.Platform, tr.ScheduledAt.Format("Jan 2, 2006 15:04 MST"))
	case models.PostStatusProcessing:
		return "Publishing started",
			fmt.Sprintf("Your %s post is being published to %s.", tr.PostType, tr.Platform)
	case models.PostStatusSuccess:
		msg := fmt.Sprintf("Your %s post was published to %s.", tr.PostType, tr.Platform)
		if tr.Permalink != "" {
			msg = fmt.Sprintf("%s View it at %s", msg, tr.Permalink)
		}
		return "Post published", msg
	case models.PostStatusFailed:
		return "Publishing failed",
			fmt.Sprintf("Your %s post could not be published to %s: %s", tr.PostType, tr.Platform, tr.ErrorMessage)
	default:
		return "Post update", fmt.Sprintf("Your %s post on %s changed status to %s.", tr.PostType, tr.Platform, tr.Status)
	}
}
