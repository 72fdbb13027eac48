package queue

import (
	"context"
	"time"

	"github.com/crosspost-app/crosspost/internal/media"
	"github.com/crosspost-app/crosspost/internal/ratelimit"
	"github.com/crosspost-app/crosspost/internal/repository"
	"github.com/crosspost-app/crosspost/internal/status"
	"github.com/crosspost-app/crosspost/internal/transfer"
)

// Dispatcher is the slice of the platform dispatcher the worker needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *transfer.PublishRequest) (*transfer.PublishResult, error)
}

type Queue struct {
	tracker     *status.Tracker
	checker     media.Checker
	limiter     ratelimit.Limiter
	dispatcher  Dispatcher
	sa          repository.SocialAccountRepository
	secretKey   string
	maxAttempts int
}

func NewQueue(
	tracker *status.Tracker,
	checker media.Checker,
	limiter ratelimit.Limiter,
	dispatcher Dispatcher,
	sa repository.SocialAccountRepository,
	secretKey string,
	maxAttempts int) *Queue {
	return &Queue{
		tracker:     tracker,
		checker:     checker,
		limiter:     limiter,
		dispatcher:  dispatcher,
		sa:          sa,
		secretKey:   secretKey,
		maxAttempts: maxAttempts,
	}
}

const TaskTypePublishPost = "publish:post"

// PublishJobPayload is the transient job the queue carries. It is owned by
// the queue between enqueue and the final attempt; terminal failure state
// lives on the scheduled post row, not here.
type PublishJobPayload struct {
	PostID          int64                   `json:"post_id"`
	UserID          int64                   `json:"user_id"`
	SocialAccountID int64                   `json:"social_account_id"`
	Platform        string                  `json:"platform"`
	PostType        string                  `json:"post_type"`
	Content         string                  `json:"content"`
	MediaURL        string                  `json:"media_url,omitempty"`
	MediaType       string                  `json:"media_type,omitempty"`
	CarouselItems   []transfer.CarouselItem `json:"carousel_items,omitempty"`
	CarouselURLs    []string                `json:"carousel_urls,omitempty"`
	LocationID      string                  `json:"location_id,omitempty"`
	UserTags        []transfer.UserTag      `json:"user_tags,omitempty"`
	ScheduledAt     time.Time               `json:"scheduled_at"`
}
