package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/crosspost-app/crosspost/internal/models"
	"github.com/crosspost-app/crosspost/internal/transfer"
)

const instagramGraphBase = "https://graph.instagram.com/v21.0"

type InstagramService interface {
	Publish(ctx context.Context, req *transfer.PublishRequest) (*transfer.PublishResult, error)
}

type instagramService struct {
	client *http.Client
	base   string
}

func NewInstagramService(client *http.Client) InstagramService {
	if client == nil {
		client = http.DefaultClient
	}
	return &instagramService{client: client, base: instagramGraphBase}
}

// Publish runs the container -> publish -> permalink flow. If the post is
// published but the permalink lookup fails, the partial result is returned
// with the error so the external id is not lost.
func (s *instagramService) Publish(ctx context.Context, req *transfer.PublishRequest) (*transfer.PublishResult, error) {
	var containerID string
	var err error

	switch req.MediaType {
	case models.PostTypeCarousel:
		containerID, err = s.createCarouselContainer(ctx, req)
	default:
		containerID, err = s.createMediaContainer(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	mediaID, err := s.publishContainer(ctx, req.AccountID, containerID, req.AccessToken)
	if err != nil {
		return nil, err
	}

	permalink, err := s.fetchPermalink(ctx, mediaID, req.AccessToken)
	if err != nil {
		// The post is live at this point. Surface the id so the failure
		// is recorded as a partial success.
		slog.Info("permalink lookup failed", "media_id", mediaID, "error", err.Error())
		return &transfer.PublishResult{ExternalPostID: mediaID}, err
	}

	return &transfer.PublishResult{ExternalPostID: mediaID, Permalink: permalink}, nil
}

func (s *instagramService) createMediaContainer(ctx context.Context, req *transfer.PublishRequest) (string, error) {
	payload := map[string]any{
		"caption":      req.Caption,
		"access_token": req.AccessToken,
	}
	if req.MediaType == models.PostTypeVideo {
		payload["media_type"] = "REELS"
		payload["video_url"] = req.MediaURL
	} else {
		payload["image_url"] = req.MediaURL
	}
	if req.LocationID != "" {
		payload["location_id"] = req.LocationID
	}
	if len(req.UserTags) > 0 {
		payload["user_tags"] = req.UserTags
	}

	return s.graphPost(ctx, fmt.Sprintf("%s/%s/media", s.base, req.AccountID), payload)
}

func (s *instagramService) createCarouselContainer(ctx context.Context, req *transfer.PublishRequest) (string, error) {
	urls := carouselURLs(req)
	if len(urls) == 0 {
		return "", &transfer.PlatformError{
			Platform:  models.PlatformInstagram,
			Message:   "carousel post has no usable media urls",
			Permanent: true,
		}
	}

	children := make([]string, 0, len(urls))
	for _, u := range urls {
		payload := map[string]any{
			"image_url":        u,
			"is_carousel_item": true,
			"access_token":     req.AccessToken,
		}
		id, err := s.graphPost(ctx, fmt.Sprintf("%s/%s/media", s.base, req.AccountID), payload)
		if err != nil {
			return "", err
		}
		children = append(children, id)
	}

	payload := map[string]any{
		"media_type":   "CAROUSEL",
		"caption":      req.Caption,
		"children":     children,
		"access_token": req.AccessToken,
	}
	if req.LocationID != "" {
		payload["location_id"] = req.LocationID
	}

	return s.graphPost(ctx, fmt.Sprintf("%s/%s/media", s.base, req.AccountID), payload)
}

func (s *instagramService) publishContainer(ctx context.Context, accountID, containerID, accessToken string) (string, error) {
	payload := map[string]any{
		"creation_id":  containerID,
		"access_token": accessToken,
	}
	return s.graphPost(ctx, fmt.Sprintf("%s/%s/media_publish", s.base, accountID), payload)
}

func (s *instagramService) fetchPermalink(ctx context.Context, mediaID, accessToken string) (string, error) {
	url := fmt.Sprintf("%s/%s?fields=permalink&access_token=%s", s.base, mediaID, accessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", instagramError(resp.StatusCode, respBody)
	}

	var result struct {
		Permalink string `json:"permalink"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("error parsing response: %w", err)
	}

	return result.Permalink, nil
}

// graphPost posts a JSON payload to the Graph API and returns the id from
// the response.
func (s *instagramService) graphPost(ctx context.Context, url string, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", instagramError(resp.StatusCode, respBody)
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("error parsing response: %w", err)
	}
	if result.ID == "" {
		return "", &transfer.PlatformError{
			Platform:   models.PlatformInstagram,
			Message:    "no media ID returned from Instagram",
			StatusCode: resp.StatusCode,
		}
	}

	return result.ID, nil
}

func instagramError(statusCode int, body []byte) error {
	var igErr transfer.GraphErrorResponse
	if err := json.Unmarshal(body, &igErr); err == nil && igErr.Error.Message != "" {
		return &transfer.PlatformError{
			Platform:   models.PlatformInstagram,
			Message:    igErr.Error.Message,
			StatusCode: statusCode,
		}
	}
	return &transfer.PlatformError{
		Platform:   models.PlatformInstagram,
		Message:    fmt.Sprintf("unexpected status code from Instagram: %d", statusCode),
		StatusCode: statusCode,
	}
}

func carouselURLs(req *transfer.PublishRequest) []string {
	if len(req.CarouselURLs) > 0 {
		return req.CarouselURLs
	}
	urls := make([]string, 0, len(req.CarouselItems))
	for _, item := range req.CarouselItems {
		if strings.TrimSpace(item.URL) != "" {
			urls = append(urls, item.URL)
		}
	}
	return urls
}
