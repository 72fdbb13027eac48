package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosspost-app/crosspost/internal/models"
	"github.com/crosspost-app/crosspost/internal/transfer"
)

type fbFixture struct {
	svc   FacebookService
	calls *[]graphCall
}

func newFacebookFixture(t *testing.T, postResponse map[string]string) fbFixture {
	t.Helper()

	var calls []graphCall
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			json.NewEncoder(w).Encode(map[string]string{"permalink_url": "https://facebook.com/page/posts/9"})
			return
		}
		var payload map[string]any
		json.NewDecoder(r.Body).Decode(&payload)
		calls = append(calls, graphCall{path: r.URL.Path, payload: payload})
		json.NewEncoder(w).Encode(postResponse)
	}))
	t.Cleanup(srv.Close)

	svc := NewFacebookService(srv.Client()).(*facebookService)
	svc.base = srv.URL
	return fbFixture{svc: svc, calls: &calls}
}

func TestFacebookPublishTextOnly(t *testing.T) {
	t.Parallel()

	f := newFacebookFixture(t, map[string]string{"id": "page_post_1"})

	res, err := f.svc.Publish(context.Background(), &transfer.PublishRequest{
		AccountID:   "page1",
		AccessToken: "tok",
		Caption:     "status update",
	})
	require.NoError(t, err)
	assert.Equal(t, "page_post_1", res.ExternalPostID)
	assert.Equal(t, "https://facebook.com/page/posts/9", res.Permalink)

	require.Len(t, *f.calls, 1)
	call := (*f.calls)[0]
	assert.Equal(t, "/page1/feed", call.path)
	assert.Equal(t, "status update", call.payload["message"])
}

func TestFacebookPublishPhotoPrefersPostID(t *testing.T) {
	t.Parallel()

	f := newFacebookFixture(t, map[string]string{"id": "photo_7", "post_id": "page_post_7"})

	res, err := f.svc.Publish(context.Background(), &transfer.PublishRequest{
		AccountID: "page1",
		Caption:   "pic",
		MediaURL:  "https://cdn.example.com/pic.jpg",
		MediaType: models.PostTypePhoto,
	})
	require.NoError(t, err)
	assert.Equal(t, "page_post_7", res.ExternalPostID)

	call := (*f.calls)[0]
	assert.Equal(t, "/page1/photos", call.path)
	assert.Equal(t, "https://cdn.example.com/pic.jpg", call.payload["url"])
}

func TestFacebookPublishVideo(t *testing.T) {
	t.Parallel()

	f := newFacebookFixture(t, map[string]string{"id": "video_3"})

	res, err := f.svc.Publish(context.Background(), &transfer.PublishRequest{
		AccountID: "page1",
		Caption:   "clip",
		MediaURL:  "https://cdn.example.com/clip.mp4",
		MediaType: models.PostTypeVideo,
	})
	require.NoError(t, err)
	assert.Equal(t, "video_3", res.ExternalPostID)

	call := (*f.calls)[0]
	assert.Equal(t, "/page1/videos", call.path)
	assert.Equal(t, "https://cdn.example.com/clip.mp4", call.payload["file_url"])
	assert.Equal(t, "clip", call.payload["description"])
}

func TestFacebookPublishGraphError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "token expired", "code": 190}})
	}))
	t.Cleanup(srv.Close)

	svc := NewFacebookService(srv.Client()).(*facebookService)
	svc.base = srv.URL

	_, err := svc.Publish(context.Background(), &transfer.PublishRequest{
		AccountID: "page1",
		Caption:   "hi",
	})
	require.Error(t, err)

	var perr *transfer.PlatformError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "token expired", perr.Message)
	assert.Equal(t, http.StatusForbidden, perr.StatusCode)
}

func TestYoutubePublishRejectsRemoteURL(t *testing.T) {
	t.Parallel()

	svc := NewYoutubeService()

	_, err := svc.Publish(context.Background(), &transfer.PublishRequest{
		MediaURL: "https://cdn.example.com/video.mp4",
	})
	require.Error(t, err)

	var perr *transfer.PlatformError
	require.True(t, errors.As(err, &perr))
	assert.True(t, perr.Permanent)
	assert.Contains(t, perr.Message, "local file path")
}

func TestYoutubeTitle(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Untitled video", youtubeTitle(""))
	assert.Equal(t, "short", youtubeTitle("short"))

	long := make([]rune, 150)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, []rune(youtubeTitle(string(long))), 100)
}
