package transfer

import (
	"encoding/json"
	"fmt"
)

// PublishRequest is the normalized shape handed to a platform publisher.
// The dispatcher is the only place that decodes raw post content; by the
// time a request reaches a publisher every field is already resolved.
type PublishRequest struct {
	PostID          int64
	UserID          int64
	SocialAccountID int64
	AccountID       string
	AccessToken     string
	Platform        string
	Caption         string
	MediaURL        string
	MediaType       string
	CarouselItems   []CarouselItem
	CarouselURLs    []string
	LocationID      string
	UserTags        []UserTag
}

type PublishResult struct {
	ExternalPostID string
	Permalink      string
}

type CarouselItem struct {
	URL       string `json:"url"`
	MediaType string `json:"media_type,omitempty"`
}

type UserTag struct {
	Username string  `json:"username"`
	X        float64 `json:"x,omitempty"`
	Y        float64 `json:"y,omitempty"`
}

// PostContent is the structured variant of a post's opaque content payload.
// Raw fields that need defensive validation stay as json.RawMessage so a
// malformed value cannot fail the whole decode.
type PostContent struct {
	Caption       string          `json:"caption"`
	Message       string          `json:"message"`
	MediaType     string          `json:"media_type"`
	CarouselItems json.RawMessage `json:"carousel_items"`
	CarouselURLs  json.RawMessage `json:"carousel_urls"`
	LocationID    string          `json:"location_id"`
	UserTags      json.RawMessage `json:"user_tags"`
}

// PlatformError is the normalized failure shape for platform calls.
// Permanent marks failures that retrying cannot fix, such as an operation
// the platform does not support over this delivery path.
type PlatformError struct {
	Platform   string
	Message    string
	StatusCode int
	Permanent  bool
}

func (e *PlatformError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Platform, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Platform, e.Message)
}
