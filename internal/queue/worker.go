package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/hibiken/asynq"

	"github.com/crosspost-app/crosspost/internal/ratelimit"
	"github.com/crosspost-app/crosspost/internal/status"
	"github.com/crosspost-app/crosspost/internal/transfer"
	"github.com/crosspost-app/crosspost/pkg/utils"
)

func (q *Queue) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishJobPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	attempt := 1
	if retried, ok := asynq.GetRetryCount(ctx); ok {
		attempt = retried + 1
	}
	maxAttempts := q.maxAttempts
	if maxRetry, ok := asynq.GetMaxRetry(ctx); ok {
		maxAttempts = maxRetry + 1
	}

	return q.ProcessJob(ctx, &payload, attempt, maxAttempts)
}

// ProcessJob drives one publish attempt end to end: processing transition,
// media readiness, rate check, dispatch, terminal transition. Any error is
// re-raised to the queue so its retry bookkeeping stays authoritative; the
// failed status is written only once the attempt budget is exhausted.
func (q *Queue) ProcessJob(ctx context.Context, job *PublishJobPayload, attempt, maxAttempts int) (err error) {
	start := time.Now()

	tr := status.Transition{
		PostID:          job.PostID,
		UserID:          job.UserID,
		SocialAccountID: job.SocialAccountID,
		Platform:        job.Platform,
		PostType:        job.PostType,
		ScheduledAt:     job.ScheduledAt,
		Attempt:         attempt,
	}

	var partial *transfer.PublishResult

	defer func() {
		if r := recover(); r != nil {
			err = q.settle(ctx, tr, fmt.Errorf("panic: %v", r), partial, start, attempt, maxAttempts, string(debug.Stack()))
		}
	}()

	q.tracker.MarkProcessing(ctx, tr)

	resolvedMedia := ""
	if job.MediaURL != "" {
		resolvedMedia, err = q.checker.Prepare(ctx, job.MediaURL, job.Platform, job.PostID)
		if err != nil {
			return q.settle(ctx, tr, err, nil, start, attempt, maxAttempts, "")
		}
	}

	// Media readiness ran first so a doomed job never consumes budget.
	decision, err := q.limiter.CheckAndConsume(ctx, subjectKey(job), job.Platform)
	if err != nil {
		return q.settle(ctx, tr, err, nil, start, attempt, maxAttempts, "")
	}
	if !decision.Allowed {
		return q.settle(ctx, tr, &ratelimit.ErrRateLimited{Platform: job.Platform, ResetAt: decision.ResetAt}, nil, start, attempt, maxAttempts, "")
	}

	account, err := q.sa.GetByID(ctx, job.SocialAccountID)
	if err != nil {
		return q.settle(ctx, tr, fmt.Errorf("resolving social account %d: %w", job.SocialAccountID, err), nil, start, attempt, maxAttempts, "")
	}
	if account == nil {
		return q.settle(ctx, tr, fmt.Errorf("social account %d not found", job.SocialAccountID), nil, start, attempt, maxAttempts, "")
	}

	accessToken, err := utils.Decrypt(account.AccessToken, []byte(q.secretKey))
	if err != nil {
		return q.settle(ctx, tr, fmt.Errorf("decrypting access token: %w", err), nil, start, attempt, maxAttempts, "")
	}

	req := &transfer.PublishRequest{
		PostID:          job.PostID,
		UserID:          job.UserID,
		SocialAccountID: job.SocialAccountID,
		AccountID:       account.AccountID,
		AccessToken:     accessToken,
		Platform:        job.Platform,
		Caption:         job.Content,
		MediaURL:        resolvedMedia,
		MediaType:       job.MediaType,
		CarouselItems:   job.CarouselItems,
		CarouselURLs:    job.CarouselURLs,
		LocationID:      job.LocationID,
		UserTags:        job.UserTags,
	}

	result, err := q.dispatcher.Dispatch(ctx, req)
	if err != nil {
		partial = result
		return q.settle(ctx, tr, err, result, start, attempt, maxAttempts, "")
	}

	q.tracker.MarkSuccess(ctx, tr, result.ExternalPostID, result.Permalink)
	slog.Info("post published", "post_id", job.PostID, "platform", job.Platform, "external_post_id", result.ExternalPostID, "attempt", attempt)
	return nil
}

// settle decides retry versus exhaustion for a failed attempt. The error
// is always returned to the queue; the terminal failed transition happens
// only when no attempts remain.
func (q *Queue) settle(ctx context.Context, tr status.Transition, cause error, partial *transfer.PublishResult, start time.Time, attempt, maxAttempts int, stack string) error {
	if attempt < maxAttempts {
		slog.Warn("publish attempt failed, will retry",
			"post_id", tr.PostID, "platform", tr.Platform,
			"attempt", attempt, "max_attempts", maxAttempts, "error", cause.Error())
		return cause
	}

	diag := status.Diagnostic{
		Error:       cause.Error(),
		Attempt:     attempt,
		MaxAttempts: maxAttempts,
		DurationMS:  time.Since(start).Milliseconds(),
		Stack:       stack,
	}

	externalPostID, permalink := "", ""
	if partial != nil {
		externalPostID = partial.ExternalPostID
		permalink = partial.Permalink
	}

	q.tracker.MarkFailed(ctx, tr, diag, externalPostID, permalink)
	slog.Error("publish attempts exhausted",
		"post_id", tr.PostID, "platform", tr.Platform,
		"attempts", attempt, "error", cause.Error())
	return cause
}

func subjectKey(job *PublishJobPayload) string {
	return fmt.Sprintf("account:%d", job.SocialAccountID)
}
