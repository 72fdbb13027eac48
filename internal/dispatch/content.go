package dispatch

import (
	"encoding/json"
	"log/slog"
	"path"
	"strings"

	"github.com/crosspost-app/crosspost/internal/models"
	"github.com/crosspost-app/crosspost/internal/transfer"
)

// DecodedContent is the tagged-union result of decoding a post's opaque
// content payload: either the structured variant or plain caption text.
type DecodedContent struct {
	Caption       string
	Message       string
	MediaType     string
	CarouselItems []transfer.CarouselItem
	CarouselURLs  []string
	LocationID    string
	UserTags      []transfer.UserTag
}

// DecodeContent attempts a structured decode and falls back to treating
// the whole string as the caption. A decode failure never fails the job;
// plain-text captions are a supported payload, not an error.
func DecodeContent(raw string) DecodedContent {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return DecodedContent{Caption: raw}
	}

	var pc transfer.PostContent
	if err := json.Unmarshal([]byte(trimmed), &pc); err != nil {
		slog.Info("content is not structured JSON, using as caption", "error", err.Error())
		return DecodedContent{Caption: raw}
	}

	caption := pc.Caption
	if caption == "" {
		caption = pc.Message
	}

	return DecodedContent{
		Caption:       caption,
		Message:       pc.Message,
		MediaType:     pc.MediaType,
		CarouselItems: decodeCarouselItems(pc.CarouselItems),
		CarouselURLs:  decodeCarouselURLs(pc.CarouselURLs),
		LocationID:    pc.LocationID,
		UserTags:      decodeUserTags(pc.UserTags),
	}
}

// decodeCarouselItems validates a carousel payload that has been corrupted
// in the wild (a bare count instead of an array, entries without a url).
// Anything that is not a well-formed array of {url: string} degrades to
// "no carousel" with a warning instead of failing the job.
func decodeCarouselItems(raw json.RawMessage) []transfer.CarouselItem {
	if len(raw) == 0 {
		return nil
	}

	var rawItems []json.RawMessage
	if err := json.Unmarshal(raw, &rawItems); err != nil {
		slog.Warn("discarding malformed carousel items", "value", string(raw), "error", err.Error())
		return nil
	}

	var valid []transfer.CarouselItem
	for _, ri := range rawItems {
		var item transfer.CarouselItem
		if err := json.Unmarshal(ri, &item); err != nil || strings.TrimSpace(item.URL) == "" {
			continue
		}
		valid = append(valid, item)
	}
	return valid
}

func decodeCarouselURLs(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var urls []string
	if err := json.Unmarshal(raw, &urls); err != nil {
		slog.Warn("discarding malformed carousel urls", "value", string(raw), "error", err.Error())
		return nil
	}

	valid := urls[:0]
	for _, u := range urls {
		if strings.TrimSpace(u) == "" {
			continue
		}
		valid = append(valid, u)
	}
	if len(valid) == 0 {
		return nil
	}
	return valid
}

func decodeUserTags(raw json.RawMessage) []transfer.UserTag {
	if len(raw) == 0 {
		return nil
	}

	var tags []transfer.UserTag
	if err := json.Unmarshal(raw, &tags); err != nil {
		slog.Warn("discarding malformed user tags", "value", string(raw), "error", err.Error())
		return nil
	}
	return tags
}

// ResolveMediaType picks the effective media type by priority: the
// explicit value on the job, then the decoded content, then carousel
// presence, then the media URL's file extension.
func ResolveMediaType(explicit string, content DecodedContent, mediaURL string) string {
	if explicit != "" {
		return explicit
	}
	if content.MediaType != "" {
		return content.MediaType
	}
	if len(content.CarouselItems) > 0 || len(content.CarouselURLs) > 0 {
		return models.PostTypeCarousel
	}
	return mediaTypeFromURL(mediaURL)
}

func mediaTypeFromURL(mediaURL string) string {
	ext := strings.ToLower(path.Ext(stripQuery(mediaURL)))
	switch ext {
	case ".mp4", ".mov":
		return models.PostTypeVideo
	default:
		return models.PostTypePhoto
	}
}

func stripQuery(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		return u[:i]
	}
	return u
}
