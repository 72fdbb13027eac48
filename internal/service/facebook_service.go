package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/crosspost-app/crosspost/internal/models"
	"github.com/crosspost-app/crosspost/internal/transfer"
)

const facebookGraphBase = "https://graph.facebook.com/v21.0"

type FacebookService interface {
	Publish(ctx context.Context, req *transfer.PublishRequest) (*transfer.PublishResult, error)
}

type facebookService struct {
	client *http.Client
	base   string
}

func NewFacebookService(client *http.Client) FacebookService {
	if client == nil {
		client = http.DefaultClient
	}
	return &facebookService{client: client, base: facebookGraphBase}
}

func (s *facebookService) Publish(ctx context.Context, req *transfer.PublishRequest) (*transfer.PublishResult, error) {
	var endpoint string
	payload := map[string]any{
		"access_token": req.AccessToken,
	}

	switch {
	case req.MediaURL == "":
		endpoint = fmt.Sprintf("%s/%s/feed", s.base, req.AccountID)
		payload["message"] = req.Caption
	case req.MediaType == models.PostTypeVideo:
		endpoint = fmt.Sprintf("%s/%s/videos", s.base, req.AccountID)
		payload["file_url"] = req.MediaURL
		payload["description"] = req.Caption
	default:
		endpoint = fmt.Sprintf("%s/%s/photos", s.base, req.AccountID)
		payload["url"] = req.MediaURL
		payload["message"] = req.Caption
	}

	postID, err := s.graphPost(ctx, endpoint, payload)
	if err != nil {
		return nil, err
	}

	permalink, err := s.fetchPermalink(ctx, postID, req.AccessToken)
	if err != nil {
		slog.Info("permalink lookup failed", "post_id", postID, "error", err.Error())
		return &transfer.PublishResult{ExternalPostID: postID}, err
	}

	return &transfer.PublishResult{ExternalPostID: postID, Permalink: permalink}, nil
}

func (s *facebookService) fetchPermalink(ctx context.Context, postID, accessToken string) (string, error) {
	url := fmt.Sprintf("%s/%s?fields=permalink_url&access_token=%s", s.base, postID, accessToken)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", facebookError(resp.StatusCode, respBody)
	}

	var result struct {
		PermalinkURL string `json:"permalink_url"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("error parsing response: %w", err)
	}

	return result.PermalinkURL, nil
}

func (s *facebookService) graphPost(ctx context.Context, url string, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("error marshalling payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", facebookError(resp.StatusCode, respBody)
	}

	var result struct {
		ID     string `json:"id"`
		PostID string `json:"post_id"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("error parsing response: %w", err)
	}

	// Photo uploads return both ids; post_id is the feed-level one.
	if result.PostID != "" {
		return result.PostID, nil
	}
	if result.ID == "" {
		return "", &transfer.PlatformError{
			Platform:   models.PlatformFacebook,
			Message:    "no post ID returned from Facebook",
			StatusCode: resp.StatusCode,
		}
	}
	return result.ID, nil
}

func facebookError(statusCode int, body []byte) error {
	var fbErr transfer.GraphErrorResponse
	if err := json.Unmarshal(body, &fbErr); err == nil && fbErr.Error.Message != "" {
		return &transfer.PlatformError{
			Platform:   models.PlatformFacebook,
			Message:    fbErr.Error.Message,
			StatusCode: statusCode,
		}
	}
	return &transfer.PlatformError{
		Platform:   models.PlatformFacebook,
		Message:    fmt.Sprintf("unexpected status code from Facebook: %d", statusCode),
		StatusCode: statusCode,
	}
}
