package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"

	"github.com/crosspost-app/crosspost/internal/alerts"
	"github.com/crosspost-app/crosspost/internal/models"
	"github.com/crosspost-app/crosspost/internal/queue"
	"github.com/crosspost-app/crosspost/internal/service"
	"github.com/crosspost-app/crosspost/internal/status"
	"github.com/crosspost-app/crosspost/internal/transfer"
)

type PostHandler struct {
	s           service.PostService
	emitter     *alerts.Emitter
	AsynqClient *asynq.Client
	Inspector   *asynq.Inspector
	maxAttempts int
}

func NewPostHandler(service service.PostService, emitter *alerts.Emitter, asynqClient *asynq.Client, inspector *asynq.Inspector, maxAttempts int) *PostHandler {
	return &PostHandler{
		s:           service,
		emitter:     emitter,
		AsynqClient: asynqClient,
		Inspector:   inspector,
		maxAttempts: maxAttempts,
	}
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var pc transfer.PostCreation
	if err := c.BodyParser(&pc); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	post, err := h.s.CreatePost(c.Context(), userID, &pc)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	payload := queue.PublishJobPayload{
		PostID:          post.ID,
		UserID:          post.UserID,
		SocialAccountID: post.SocialAccountID,
		Platform:        post.Platform,
		PostType:        post.PostType,
		Content:         post.Content,
		MediaURL:        post.MediaURL.String,
		MediaType:       pc.MediaType,
		CarouselURLs:    pc.CarouselURLs,
		LocationID:      pc.LocationID,
		ScheduledAt:     post.ScheduledAt,
	}

	if err := queue.EnqueuePost(h.AsynqClient, payload, post.ScheduledAt, h.maxAttempts); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Error scheduling post",
		})
	}

	h.emitter.Notify(c.Context(), status.Transition{
		PostID:          post.ID,
		UserID:          post.UserID,
		SocialAccountID: post.SocialAccountID,
		Platform:        post.Platform,
		PostType:        post.PostType,
		ScheduledAt:     post.ScheduledAt,
		Status:          models.PostStatusScheduled,
	})

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Post scheduled successfully",
		"post_id": post.ID,
	})
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.QueryInt("id", 0)

	if postID != 0 {
		post, err := h.s.PostInfo(c.Context(), int64(postID), userID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Unable to get post",
			})
		}

		return c.Status(fiber.StatusOK).JSON(post)
	}

	posts, err := h.s.List(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list posts",
		})
	}

	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) RemovePost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.QueryInt("id", 0)

	if err := h.s.Remove(c.Context(), userID, int64(postID)); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to remove post",
		})
	}

	// Best effort: the job may already be running or done.
	if err := queue.CancelScheduledPost(h.Inspector, int64(postID)); err != nil {
		slog.Info("could not cancel queued job", "post_id", postID, "error", err.Error())
	}

	return c.SendStatus(fiber.StatusOK)
}
