package status

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosspost-app/crosspost/internal/models"
)

type statusCall struct {
	method         string
	postID         int64
	errorMessage   string
	externalPostID string
	permalink      string
}

type fakePostRepo struct {
	calls   []statusCall
	failAll bool
}

func (f *fakePostRepo) MarkProcessing(_ context.Context, postID int64) error {
	f.calls = append(f.calls, statusCall{method: "processing", postID: postID})
	if f.failAll {
		return errors.New("db down")
	}
	return nil
}

func (f *fakePostRepo) MarkSuccess(_ context.Context, postID int64, externalPostID, permalink string) error {
	f.calls = append(f.calls, statusCall{method: "success", postID: postID, externalPostID: externalPostID, permalink: permalink})
	if f.failAll {
		return errors.New("db down")
	}
	return nil
}

func (f *fakePostRepo) MarkFailed(_ context.Context, postID int64, errorMessage, externalPostID, permalink string) error {
	f.calls = append(f.calls, statusCall{method: "failed", postID: postID, errorMessage: errorMessage, externalPostID: externalPostID, permalink: permalink})
	if f.failAll {
		return errors.New("db down")
	}
	return nil
}

func (f *fakePostRepo) GetByID(context.Context, int64) (*models.ScheduledPost, error) {
	return nil, nil
}

func (f *fakePostRepo) Create(context.Context, *sql.Tx, *models.ScheduledPost) (int64, error) {
	return 0, nil
}

func (f *fakePostRepo) GetByUserID(context.Context, int64) ([]*models.ScheduledPost, error) {
	return nil, nil
}

func (f *fakePostRepo) CheckByUserID(context.Context, int64, int64) (bool, error) {
	return false, nil
}

func (f *fakePostRepo) Remove(context.Context, int64) error { return nil }

func (f *fakePostRepo) ListStuckProcessing(context.Context, time.Time) ([]*models.ScheduledPost, error) {
	return nil, nil
}

func TestTrackerTransitionsWriteAndNotify(t *testing.T) {
	t.Parallel()

	repo := &fakePostRepo{}
	var seen []Transition
	tracker := NewTracker(repo, func(_ context.Context, tr Transition) {
		seen = append(seen, tr)
	})

	tr := Transition{PostID: 42, UserID: 7, Platform: models.PlatformInstagram, Attempt: 1}
	ctx := context.Background()

	tracker.MarkProcessing(ctx, tr)
	tracker.MarkSuccess(ctx, tr, "ext-1", "https://instagram.com/p/1")

	require.Len(t, repo.calls, 2)
	assert.Equal(t, "processing", repo.calls[0].method)
	assert.Equal(t, "success", repo.calls[1].method)
	assert.Equal(t, "ext-1", repo.calls[1].externalPostID)
	assert.Equal(t, "https://instagram.com/p/1", repo.calls[1].permalink)

	require.Len(t, seen, 2)
	assert.Equal(t, models.PostStatusProcessing, seen[0].Status)
	assert.Equal(t, models.PostStatusSuccess, seen[1].Status)
	assert.Equal(t, "https://instagram.com/p/1", seen[1].Permalink)
}

func TestTrackerRedeliveredProcessingKeepsResultFields(t *testing.T) {
	t.Parallel()

	repo := &fakePostRepo{}
	tracker := NewTracker(repo)
	ctx := context.Background()

	tr := Transition{PostID: 42}
	tracker.MarkProcessing(ctx, tr)
	tracker.MarkSuccess(ctx, tr, "ext-1", "https://instagram.com/p/1")

	// A redelivered attempt marks processing again; the write carries only
	// the status, never blanks for the stored result fields.
	tr.Attempt = 2
	tracker.MarkProcessing(ctx, tr)

	require.Len(t, repo.calls, 3)
	last := repo.calls[2]
	assert.Equal(t, "processing", last.method)
	assert.Empty(t, last.externalPostID)
	assert.Empty(t, last.permalink)
}

func TestTrackerStoreFailureDoesNotAbort(t *testing.T) {
	t.Parallel()

	repo := &fakePostRepo{failAll: true}
	fired := 0
	tracker := NewTracker(repo, func(context.Context, Transition) { fired++ })

	// A status-write failure is drift, not a reason to stop the pipeline;
	// hooks still fire.
	tracker.MarkProcessing(context.Background(), Transition{PostID: 1})
	assert.Equal(t, 1, fired)
}

func TestTrackerHookPanicIsolated(t *testing.T) {
	t.Parallel()

	repo := &fakePostRepo{}
	var after []string
	tracker := NewTracker(repo,
		func(context.Context, Transition) { panic("alert sink exploded") },
		func(_ context.Context, tr Transition) { after = append(after, tr.Status) },
	)

	assert.NotPanics(t, func() {
		tracker.MarkProcessing(context.Background(), Transition{PostID: 9})
	})
	assert.Equal(t, []string{models.PostStatusProcessing}, after)
}

func TestTrackerFailedPreservesPartialResult(t *testing.T) {
	t.Parallel()

	repo := &fakePostRepo{}
	tracker := NewTracker(repo)

	diag := Diagnostic{Error: "permalink fetch timed out", Attempt: 3, MaxAttempts: 3}
	tracker.MarkFailed(context.Background(), Transition{PostID: 5}, diag, "ext-partial", "")

	require.Len(t, repo.calls, 1)
	call := repo.calls[0]
	assert.Equal(t, "failed", call.method)
	assert.Equal(t, "ext-partial", call.externalPostID)

	var stored Diagnostic
	require.NoError(t, json.Unmarshal([]byte(call.errorMessage), &stored))
	assert.Equal(t, "permalink fetch timed out", stored.Error)
	assert.Equal(t, 3, stored.Attempt)
}

func TestDiagnosticEncodeCapped(t *testing.T) {
	t.Parallel()

	d := Diagnostic{
		Error:   strings.Repeat("e", 600),
		Stack:   strings.Repeat("s", 2000),
		Attempt: 2,
	}
	encoded := d.Encode()
	assert.LessOrEqual(t, len(encoded), 1000)
}
