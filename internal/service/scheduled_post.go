package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sakif/voicepost/internal/apperror"
	"github.com/sakif/voicepost/internal/model"
	"github.com/sakif/voicepost/internal/repository"
)

// MaxTweetLength is Twitter's per-post limit, counted in characters.
const MaxTweetLength = 280

// ScheduleService lets users queue posts for the Publisher.
type ScheduleService struct {
	repo   repository.ScheduledPostRepository
	logger *slog.Logger
}

func NewScheduleService(repo repository.ScheduledPostRepository, logger *slog.Logger) *ScheduleService {
	return &ScheduleService{
		repo:   repo,
		logger: logger,
	}
}

// ScheduleInput is the raw request. ScheduledFor is RFC 3339.
type ScheduleInput struct {
	Content      string
	Platform     string
	ScheduledFor string
}

func (s *ScheduleService) Create(ctx context.Context, userID string, in ScheduleInput) (*model.ScheduledPost, error) {
	content, err := validContent(in.Content)
	if err != nil {
		return nil, err
	}
	platform, err := parsePlatform(in.Platform)
	if err != nil {
		return nil, err
	}
	if platform == model.PlatformTwitter && utf8.RuneCountInString(content) > MaxTweetLength {
		return nil, apperror.ValidationFailed("content",
			fmt.Sprintf("twitter posts must be %d characters or less", MaxTweetLength))
	}
	at, err := time.Parse(time.RFC3339, strings.TrimSpace(in.ScheduledFor))
	if err != nil {
		return nil, apperror.ValidationFailed("scheduledFor", "scheduledFor must be an RFC 3339 timestamp")
	}

	post := &model.ScheduledPost{
		UserID:       userID,
		Content:      content,
		Platform:     platform,
		ScheduledFor: at.UTC(),
	}
	if err := s.repo.CreateScheduledPost(ctx, post); err != nil {
		s.logger.Error("failed to schedule post",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("scheduling post: %w", err)
	}

	s.logger.Info("post scheduled",
		slog.String("id", post.ID),
		slog.String("userID", userID),
		slog.String("platform", string(platform)),
		slog.Time("scheduledFor", post.ScheduledFor),
	)
	return post, nil
}

func (s *ScheduleService) List(ctx context.Context, userID string, limit, offset int) ([]model.ScheduledPost, error) {
	posts, err := s.repo.ListScheduledPosts(ctx, userID, listOptions(limit, offset))
	if err != nil {
		s.logger.Error("failed to list scheduled posts", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing scheduled posts: %w", err)
	}
	return posts, nil
}

// Delete cancels a post. Already-published rows can be deleted too; that
// only removes our record, not the post on the platform.
func (s *ScheduleService) Delete(ctx context.Context, userID, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "scheduled post ID is required")
	}

	post, err := s.repo.GetScheduledPost(ctx, id)
	if err != nil {
		return err
	}
	if post.UserID != userID {
		return apperror.Forbidden("you do not own this scheduled post")
	}
	if err := s.repo.DeleteScheduledPost(ctx, id); err != nil {
		return err
	}

	s.logger.Info("scheduled post deleted", slog.String("id", id))
	return nil
}
