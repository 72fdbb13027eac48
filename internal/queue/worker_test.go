package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosspost-app/crosspost/internal/alerts"
	"github.com/crosspost-app/crosspost/internal/dispatch"
	"github.com/crosspost-app/crosspost/internal/media"
	"github.com/crosspost-app/crosspost/internal/models"
	"github.com/crosspost-app/crosspost/internal/ratelimit"
	"github.com/crosspost-app/crosspost/internal/service"
	"github.com/crosspost-app/crosspost/internal/status"
	"github.com/crosspost-app/crosspost/internal/transfer"
	"github.com/crosspost-app/crosspost/pkg/utils"
)

const testSecretKey = "0123456789abcdef0123456789abcdef"

type recordedTransition struct {
	method         string
	postID         int64
	errorMessage   string
	externalPostID string
	permalink      string
}

type recordingPostRepo struct {
	transitions []recordedTransition
}

func (f *recordingPostRepo) MarkProcessing(_ context.Context, postID int64) error {
	f.transitions = append(f.transitions, recordedTransition{method: "processing", postID: postID})
	return nil
}

func (f *recordingPostRepo) MarkSuccess(_ context.Context, postID int64, externalPostID, permalink string) error {
	f.transitions = append(f.transitions, recordedTransition{method: "success", postID: postID, externalPostID: externalPostID, permalink: permalink})
	return nil
}

func (f *recordingPostRepo) MarkFailed(_ context.Context, postID int64, errorMessage, externalPostID, permalink string) error {
	f.transitions = append(f.transitions, recordedTransition{method: "failed", postID: postID, errorMessage: errorMessage, externalPostID: externalPostID, permalink: permalink})
	return nil
}

func (f *recordingPostRepo) GetByID(context.Context, int64) (*models.ScheduledPost, error) {
	return nil, nil
}

func (f *recordingPostRepo) Create(context.Context, *sql.Tx, *models.ScheduledPost) (int64, error) {
	return 0, nil
}

func (f *recordingPostRepo) GetByUserID(context.Context, int64) ([]*models.ScheduledPost, error) {
	return nil, nil
}

func (f *recordingPostRepo) CheckByUserID(context.Context, int64, int64) (bool, error) {
	return false, nil
}

func (f *recordingPostRepo) Remove(context.Context, int64) error { return nil }

func (f *recordingPostRepo) ListStuckProcessing(context.Context, time.Time) ([]*models.ScheduledPost, error) {
	return nil, nil
}

func (f *recordingPostRepo) methods() []string {
	var out []string
	for _, tr := range f.transitions {
		out = append(out, tr.method)
	}
	return out
}

type recordingAlertRepo struct {
	created []*models.Alert
}

func (f *recordingAlertRepo) Create(_ context.Context, alert *models.Alert) (int64, error) {
	f.created = append(f.created, alert)
	return int64(len(f.created)), nil
}

func (f *recordingAlertRepo) GetByUserID(context.Context, int64) ([]*models.Alert, error) {
	return nil, nil
}

func (f *recordingAlertRepo) MarkRead(context.Context, int64, int64) error { return nil }

func (f *recordingAlertRepo) CountUnread(context.Context, int64) (int, error) { return 0, nil }

func (f *recordingAlertRepo) types() []string {
	var out []string
	for _, a := range f.created {
		out = append(out, a.AlertType)
	}
	return out
}

type stubAccountRepo struct {
	account *models.SocialAccount
}

func (f *stubAccountRepo) GetByID(context.Context, int64) (*models.SocialAccount, error) {
	return f.account, nil
}

func (f *stubAccountRepo) GetByUserID(context.Context, int64) ([]*models.SocialAccount, error) {
	return nil, nil
}

func (f *stubAccountRepo) CheckByUserID(context.Context, int64, int64) (bool, error) {
	return false, nil
}

func (f *stubAccountRepo) Remove(context.Context, int64) error { return nil }

type passChecker struct {
	err error
}

func (c passChecker) Prepare(_ context.Context, mediaURL, _ string, _ int64) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	return mediaURL, nil
}

var _ media.Checker = passChecker{}

type stubLimiter struct {
	decision ratelimit.Decision
	calls    int
}

func (l *stubLimiter) CheckAndConsume(context.Context, string, string) (*ratelimit.Decision, error) {
	l.calls++
	d := l.decision
	return &d, nil
}

func (l *stubLimiter) GetInfo(context.Context, string, string) (*ratelimit.Decision, error) {
	d := l.decision
	return &d, nil
}

func (l *stubLimiter) Reset(context.Context, string, string) error { return nil }

type stubDispatcher struct {
	last   *transfer.PublishRequest
	result *transfer.PublishResult
	err    error
	panics bool
}

func (d *stubDispatcher) Dispatch(_ context.Context, req *transfer.PublishRequest) (*transfer.PublishResult, error) {
	d.last = req
	if d.panics {
		panic("publisher blew up")
	}
	return d.result, d.err
}

type workerFixture struct {
	queue    *Queue
	posts    *recordingPostRepo
	alerts   *recordingAlertRepo
	limiter  *stubLimiter
	accounts *stubAccountRepo
}

func newWorkerFixture(t *testing.T, dispatcher Dispatcher, checker media.Checker, limiter *stubLimiter) *workerFixture {
	t.Helper()

	token, err := utils.Encrypt([]byte("platform-token"), []byte(testSecretKey))
	require.NoError(t, err)

	posts := &recordingPostRepo{}
	alertRepo := &recordingAlertRepo{}
	accounts := &stubAccountRepo{account: &models.SocialAccount{
		ID:          3,
		UserID:      1,
		AccountID:   "acct-ext-1",
		AccountName: "Studio",
		AccessToken: token,
	}}

	emitter := alerts.NewEmitter(alertRepo, accounts)
	tracker := status.NewTracker(posts, emitter.Hook())

	return &workerFixture{
		queue:    NewQueue(tracker, checker, limiter, dispatcher, accounts, testSecretKey, 3),
		posts:    posts,
		alerts:   alertRepo,
		limiter:  limiter,
		accounts: accounts,
	}
}

func testJob() *PublishJobPayload {
	return &PublishJobPayload{
		PostID:          42,
		UserID:          1,
		SocialAccountID: 3,
		Platform:        models.PlatformInstagram,
		PostType:        models.PostTypePhoto,
		Content:         "launch day",
		MediaURL:        "https://cdn.example.com/pic.jpg",
		ScheduledAt:     time.Now().Add(-time.Minute),
	}
}

func TestProcessJobSuccess(t *testing.T) {
	t.Parallel()

	dispatcher := &stubDispatcher{result: &transfer.PublishResult{
		ExternalPostID: "ig-100",
		Permalink:      "https://instagram.com/p/100",
	}}
	f := newWorkerFixture(t, dispatcher, passChecker{}, &stubLimiter{decision: ratelimit.Decision{Allowed: true}})

	err := f.queue.ProcessJob(context.Background(), testJob(), 1, 3)
	require.NoError(t, err)

	assert.Equal(t, []string{"processing", "success"}, f.posts.methods())
	assert.Equal(t, "ig-100", f.posts.transitions[1].externalPostID)
	assert.Equal(t, "https://instagram.com/p/100", f.posts.transitions[1].permalink)

	// The account token is decrypted before the request leaves the worker.
	require.NotNil(t, dispatcher.last)
	assert.Equal(t, "platform-token", dispatcher.last.AccessToken)
	assert.Equal(t, "acct-ext-1", dispatcher.last.AccountID)

	assert.Equal(t, []string{models.PostStatusProcessing, models.PostStatusSuccess}, f.alerts.types())
	assert.Equal(t, "Studio", f.alerts.created[1].AccountName)
}

func TestProcessJobPermanentErrorExhaustsBudget(t *testing.T) {
	t.Parallel()

	// A remote URL handed to the YouTube publisher fails every attempt the
	// same way; the failed status and alert appear only on the last one.
	dispatcher := dispatch.NewDispatcher(map[string]dispatch.Publisher{
		models.PlatformYoutube: service.NewYoutubeService(),
	})
	f := newWorkerFixture(t, dispatcher, passChecker{}, &stubLimiter{decision: ratelimit.Decision{Allowed: true}})

	job := testJob()
	job.Platform = models.PlatformYoutube
	job.PostType = models.PostTypeVideo
	job.MediaURL = "https://cdn.example.com/video.mp4"

	for attempt := 1; attempt <= 3; attempt++ {
		err := f.queue.ProcessJob(context.Background(), job, attempt, 3)
		require.Error(t, err)

		var perr *transfer.PlatformError
		require.True(t, errors.As(err, &perr))
		assert.True(t, perr.Permanent)
	}

	assert.Equal(t, []string{"processing", "processing", "processing", "failed"}, f.posts.methods())

	failed := f.posts.transitions[3]
	var diag status.Diagnostic
	require.NoError(t, json.Unmarshal([]byte(failed.errorMessage), &diag))
	assert.Contains(t, diag.Error, "requires a local file path")
	assert.Equal(t, 3, diag.Attempt)
	assert.Equal(t, 3, diag.MaxAttempts)
	assert.Empty(t, failed.externalPostID)

	// One processing alert for the whole job plus the terminal failure.
	assert.Equal(t, []string{models.PostStatusProcessing, models.PostStatusFailed}, f.alerts.types())
}

func TestProcessJobRateLimited(t *testing.T) {
	t.Parallel()

	dispatcher := &stubDispatcher{result: &transfer.PublishResult{}}
	limiter := &stubLimiter{decision: ratelimit.Decision{Allowed: false, ResetAt: time.Now().Add(30 * time.Minute)}}
	f := newWorkerFixture(t, dispatcher, passChecker{}, limiter)

	err := f.queue.ProcessJob(context.Background(), testJob(), 1, 3)
	require.Error(t, err)

	var rl *ratelimit.ErrRateLimited
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, models.PlatformInstagram, rl.Platform)

	// Attempt one of three: retried by the queue, never marked failed.
	assert.Equal(t, []string{"processing"}, f.posts.methods())
	assert.Nil(t, dispatcher.last)
}

func TestProcessJobMediaUnavailableRetries(t *testing.T) {
	t.Parallel()

	dispatcher := &stubDispatcher{result: &transfer.PublishResult{}}
	limiter := &stubLimiter{decision: ratelimit.Decision{Allowed: true}}
	f := newWorkerFixture(t, dispatcher, passChecker{err: media.ErrMediaUnavailable}, limiter)

	err := f.queue.ProcessJob(context.Background(), testJob(), 1, 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, media.ErrMediaUnavailable))

	// Readiness runs before the rate check so the failed probe consumed no
	// rate budget and never reached the platform.
	assert.Equal(t, 0, limiter.calls)
	assert.Nil(t, dispatcher.last)
	assert.Equal(t, []string{"processing"}, f.posts.methods())
}

func TestProcessJobSkipsMediaCheckWithoutMedia(t *testing.T) {
	t.Parallel()

	dispatcher := &stubDispatcher{result: &transfer.PublishResult{ExternalPostID: "fb-1"}}
	f := newWorkerFixture(t, dispatcher, passChecker{err: errors.New("must not be called")}, &stubLimiter{decision: ratelimit.Decision{Allowed: true}})

	job := testJob()
	job.Platform = models.PlatformFacebook
	job.MediaURL = ""

	err := f.queue.ProcessJob(context.Background(), job, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"processing", "success"}, f.posts.methods())
}

func TestProcessJobPanicSettlesOnFinalAttempt(t *testing.T) {
	t.Parallel()

	dispatcher := &stubDispatcher{panics: true}
	f := newWorkerFixture(t, dispatcher, passChecker{}, &stubLimiter{decision: ratelimit.Decision{Allowed: true}})

	err := f.queue.ProcessJob(context.Background(), testJob(), 3, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")

	assert.Equal(t, []string{"processing", "failed"}, f.posts.methods())

	var diag status.Diagnostic
	require.NoError(t, json.Unmarshal([]byte(f.posts.transitions[1].errorMessage), &diag))
	assert.NotEmpty(t, diag.Stack)
}

func TestProcessJobPartialResultPreserved(t *testing.T) {
	t.Parallel()

	// The platform accepted the post but the permalink fetch failed; on the
	// final attempt the external id still lands on the failed row.
	dispatcher := &stubDispatcher{
		result: &transfer.PublishResult{ExternalPostID: "ig-partial"},
		err:    errors.New("fetching permalink: timeout"),
	}
	f := newWorkerFixture(t, dispatcher, passChecker{}, &stubLimiter{decision: ratelimit.Decision{Allowed: true}})

	err := f.queue.ProcessJob(context.Background(), testJob(), 3, 3)
	require.Error(t, err)

	require.Equal(t, []string{"processing", "failed"}, f.posts.methods())
	assert.Equal(t, "ig-partial", f.posts.transitions[1].externalPostID)
}
