package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/crosspost-app/crosspost/internal/models"
	"github.com/crosspost-app/crosspost/internal/repository"
	"github.com/crosspost-app/crosspost/internal/transfer"
)

type PostService interface {
	CreatePost(ctx context.Context, userID int64, pc *transfer.PostCreation) (*models.ScheduledPost, error)
	List(ctx context.Context, userID int64) ([]*models.ScheduledPost, error)
	PostInfo(ctx context.Context, postID, userID int64) (*models.ScheduledPost, error)
	Remove(ctx context.Context, userID, postID int64) error
}

type postService struct {
	pr repository.ScheduledPostRepository
	ac repository.SocialAccountRepository
}

func NewPostService(pr repository.ScheduledPostRepository, ac repository.SocialAccountRepository) PostService {
	return &postService{pr: pr, ac: ac}
}

var supportedPlatforms = map[string]struct{}{
	models.PlatformInstagram: {},
	models.PlatformFacebook:  {},
	models.PlatformYoutube:   {},
}

func (s *postService) CreatePost(ctx context.Context, userID int64, pc *transfer.PostCreation) (*models.ScheduledPost, error) {
	if pc == nil {
		err := errors.New("post creation data is nil")
		slog.Error(err.Error())
		return nil, err
	}
	if pc.Content == "" {
		err := errors.New("content cannot be empty")
		slog.Info(err.Error())
		return nil, err
	}
	if _, ok := supportedPlatforms[pc.Platform]; !ok {
		err := fmt.Errorf("unsupported platform %q", pc.Platform)
		slog.Info(err.Error())
		return nil, err
	}

	scheduledAt, err := time.Parse("2006-01-02T15:04", pc.ScheduledAt)
	if err != nil {
		err = fmt.Errorf("invalid scheduled time format: %w", err)
		slog.Error(err.Error())
		return nil, err
	}

	exists, err := s.ac.CheckByUserID(ctx, pc.SocialAccountID, userID)
	if err != nil {
		return nil, fmt.Errorf("error checking social account %d: %w", pc.SocialAccountID, err)
	}
	if !exists {
		err := fmt.Errorf("social account %d does not exist", pc.SocialAccountID)
		slog.Info(err.Error())
		return nil, err
	}

	postType := pc.PostType
	if postType == "" {
		postType = models.PostTypePhoto
	}

	post := &models.ScheduledPost{
		UserID:          userID,
		SocialAccountID: pc.SocialAccountID,
		Platform:        pc.Platform,
		PostType:        postType,
		Content:         pc.Content,
		MediaURL:        sql.NullString{String: pc.MediaURL, Valid: pc.MediaURL != ""},
		ScheduledAt:     scheduledAt,
		Status:          models.PostStatusScheduled,
	}

	postID, err := s.pr.Create(ctx, nil, post)
	if err != nil {
		return nil, fmt.Errorf("error creating post: %w", err)
	}
	post.ID = postID

	return post, nil
}

func (s *postService) PostInfo(ctx context.Context, postID, userID int64) (*models.ScheduledPost, error) {
	if userID == 0 || postID == 0 {
		err := errors.New("post id is not valid")
		slog.Info(err.Error())
		return nil, err
	}

	isValid, err := s.pr.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if !isValid {
		err = errors.New("post doesn't exist")
		slog.Info(err.Error())
		return nil, err
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("error getting post info: %w", err)
	}

	return post, nil
}

func (s *postService) List(ctx context.Context, userID int64) ([]*models.ScheduledPost, error) {
	posts, err := s.pr.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing posts: %w", err)
	}
	return posts, nil
}

func (s *postService) Remove(ctx context.Context, userID, postID int64) error {
	if userID == 0 || postID == 0 {
		err := errors.New("post id is not valid")
		slog.Info(err.Error())
		return err
	}

	isValid, err := s.pr.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return err
	}
	if !isValid {
		err = errors.New("post doesn't exist")
		slog.Info(err.Error())
		return err
	}

	if err := s.pr.Remove(ctx, postID); err != nil {
		return fmt.Errorf("error removing post: %w", err)
	}

	return nil
}
