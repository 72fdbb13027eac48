package status

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/crosspost-app/crosspost/internal/models"
	"github.com/crosspost-app/crosspost/internal/repository"
)

// Transition carries one lifecycle change plus the denormalized post
// fields downstream hooks need. Hooks never go back to the store for
// these; the worker already has them in hand.
type Transition struct {
	PostID          int64
	UserID          int64
	SocialAccountID int64
	Platform        string
	PostType        string
	ScheduledAt     time.Time
	Status          string
	ErrorMessage    string
	Permalink       string
	Attempt         int
}

// Hook runs after a transition has been written. Each hook is fault
// isolated: a panic or error inside one is logged and swallowed, never
// unwound into the publishing pipeline.
type Hook func(ctx context.Context, tr Transition)

// Diagnostic is the structured error detail stored on a failed post.
// It never contains the external post id or permalink.
type Diagnostic struct {
	Error       string `json:"error"`
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"max_attempts"`
	DurationMS  int64  `json:"duration_ms"`
	Stack       string `json:"stack,omitempty"`
}

const maxDiagnosticLen = 1000

// Encode renders the diagnostic for storage, capped so raw stacks never
// leak past the column.
func (d Diagnostic) Encode() string {
	if len(d.Stack) > maxDiagnosticLen/2 {
		d.Stack = d.Stack[:maxDiagnosticLen/2]
	}
	b, err := json.Marshal(d)
	if err != nil {
		return truncate(d.Error, maxDiagnosticLen)
	}
	return truncate(string(b), maxDiagnosticLen)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Tracker owns the scheduled -> processing -> success|failed state
// machine. Every transition is a single atomic update keyed by post id.
type Tracker struct {
	repo  repository.ScheduledPostRepository
	hooks []Hook
}

func NewTracker(repo repository.ScheduledPostRepository, hooks ...Hook) *Tracker {
	return &Tracker{repo: repo, hooks: hooks}
}

func (t *Tracker) AddHook(h Hook) {
	t.hooks = append(t.hooks, h)
}

// MarkProcessing records attempt start. A failed write risks status drift
// but must not abort the in-flight attempt, so it is logged and dropped.
func (t *Tracker) MarkProcessing(ctx context.Context, tr Transition) {
	tr.Status = models.PostStatusProcessing
	if err := t.repo.MarkProcessing(ctx, tr.PostID); err != nil {
		slog.Error("status write failed, post may drift", "post_id", tr.PostID, "status", tr.Status, "error", err.Error())
	}
	t.fire(ctx, tr)
}

func (t *Tracker) MarkSuccess(ctx context.Context, tr Transition, externalPostID, permalink string) {
	tr.Status = models.PostStatusSuccess
	tr.Permalink = permalink
	if err := t.repo.MarkSuccess(ctx, tr.PostID, externalPostID, permalink); err != nil {
		slog.Error("status write failed, post may drift", "post_id", tr.PostID, "status", tr.Status, "error", err.Error())
	}
	t.fire(ctx, tr)
}

// MarkFailed is the terminal transition for an exhausted job. Partial
// success fields from the failing attempt are passed through so the store
// can preserve them.
func (t *Tracker) MarkFailed(ctx context.Context, tr Transition, diag Diagnostic, externalPostID, permalink string) {
	tr.Status = models.PostStatusFailed
	tr.ErrorMessage = diag.Error
	if err := t.repo.MarkFailed(ctx, tr.PostID, diag.Encode(), externalPostID, permalink); err != nil {
		slog.Error("status write failed, post may drift", "post_id", tr.PostID, "status", tr.Status, "error", err.Error())
	}
	t.fire(ctx, tr)
}

func (t *Tracker) fire(ctx context.Context, tr Transition) {
	for _, h := range t.hooks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("transition hook panicked", "post_id", tr.PostID, "status", tr.Status, "panic", r)
				}
			}()
			h(ctx, tr)
		}()
	}
}
