package dispatch

import (
	"context"
	"fmt"

	"github.com/crosspost-app/crosspost/internal/models"
	"github.com/crosspost-app/crosspost/internal/transfer"
)

// Publisher pushes one normalized request to a platform. On a late-stage
// failure, after the platform already accepted the post, implementations
// return the partial result alongside the error so the caller can record
// the external post id.
type Publisher interface {
	Publish(ctx context.Context, req *transfer.PublishRequest) (*transfer.PublishResult, error)
}

// Dispatcher decodes a job's content and routes it to the right platform
// publisher. It is the only component that interprets raw post content.
type Dispatcher struct {
	publishers map[string]Publisher
}

func NewDispatcher(publishers map[string]Publisher) *Dispatcher {
	return &Dispatcher{publishers: publishers}
}

func (d *Dispatcher) Dispatch(ctx context.Context, req *transfer.PublishRequest) (*transfer.PublishResult, error) {
	content := DecodeContent(req.Caption)

	// Job-level fields win over content-decoded ones. The merge happens in
	// content so media-type inference below sees the carousel lists no
	// matter which side carried them.
	if len(req.CarouselItems) > 0 {
		content.CarouselItems = req.CarouselItems
	}
	if len(req.CarouselURLs) > 0 {
		content.CarouselURLs = req.CarouselURLs
	}
	if req.LocationID != "" {
		content.LocationID = req.LocationID
	}
	if len(req.UserTags) > 0 {
		content.UserTags = req.UserTags
	}

	normalized := *req
	normalized.Caption = content.Caption
	normalized.CarouselItems = content.CarouselItems
	normalized.CarouselURLs = content.CarouselURLs
	normalized.LocationID = content.LocationID
	normalized.UserTags = content.UserTags

	switch req.Platform {
	case models.PlatformInstagram:
		normalized.MediaType = ResolveMediaType(req.MediaType, content, req.MediaURL)
	case models.PlatformFacebook:
		// Facebook takes the message from structured content when present
		// and the media type exactly as given.
		if content.Message != "" {
			normalized.Caption = content.Message
		}
	}

	pub, ok := d.publishers[req.Platform]
	if !ok {
		return nil, &transfer.PlatformError{
			Platform:  req.Platform,
			Message:   fmt.Sprintf("no publisher registered for platform %q", req.Platform),
			Permanent: true,
		}
	}

	return pub.Publish(ctx, &normalized)
}
