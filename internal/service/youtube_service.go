package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/crosspost-app/crosspost/internal/models"
	"github.com/crosspost-app/crosspost/internal/transfer"
)

type YoutubeService interface {
	Publish(ctx context.Context, req *transfer.PublishRequest) (*transfer.PublishResult, error)
}

type youtubeService struct{}

func NewYoutubeService() YoutubeService {
	return &youtubeService{}
}

// Publish uploads a local video file to YouTube. The scheduled-queue flow
// normally carries remote URLs, which YouTube's upload API cannot take, so
// a URL reference fails fast with a permanent error instead of failing
// mysteriously downstream.
func (s *youtubeService) Publish(ctx context.Context, req *transfer.PublishRequest) (*transfer.PublishResult, error) {
	if isRemoteURL(req.MediaURL) || req.MediaURL == "" {
		return nil, &transfer.PlatformError{
			Platform:  models.PlatformYoutube,
			Message:   "youtube publishing requires a local file path, not a media URL",
			Permanent: true,
		}
	}

	file, err := os.Open(req.MediaURL)
	if err != nil {
		return nil, &transfer.PlatformError{
			Platform: models.PlatformYoutube,
			Message:  fmt.Sprintf("cannot open video file: %v", err),
		}
	}
	defer file.Close()

	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: req.AccessToken}))
	yt, err := youtube.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("error creating YouTube service: %w", err)
	}

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       youtubeTitle(req.Caption),
			Description: req.Caption,
		},
		Status: &youtube.VideoStatus{PrivacyStatus: "public"},
	}

	call := yt.Videos.Insert([]string{"snippet", "status"}, video)
	resp, err := call.Media(file).Context(ctx).Do()
	if err != nil {
		return nil, &transfer.PlatformError{
			Platform: models.PlatformYoutube,
			Message:  fmt.Sprintf("video upload failed: %v", err),
		}
	}

	return &transfer.PublishResult{
		ExternalPostID: resp.Id,
		Permalink:      fmt.Sprintf("https://www.youtube.com/watch?v=%s", resp.Id),
	}, nil
}

func isRemoteURL(ref string) bool {
	u, err := url.Parse(ref)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https")
}

func youtubeTitle(caption string) string {
	const maxTitleLen = 100
	if caption == "" {
		return "Untitled video"
	}
	runes := []rune(caption)
	if len(runes) > maxTitleLen {
		return string(runes[:maxTitleLen])
	}
	return caption
}
