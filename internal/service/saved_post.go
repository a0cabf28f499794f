package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/voicepost/internal/apperror"
	"github.com/sakif/voicepost/internal/model"
	"github.com/sakif/voicepost/internal/repository"
)

const MaxPostLength = 10000

type SavedPostService struct {
	repo   repository.SavedPostRepository
	logger *slog.Logger
}

func NewSavedPostService(repo repository.SavedPostRepository, logger *slog.Logger) *SavedPostService {
	return &SavedPostService{
		repo:   repo,
		logger: logger,
	}
}

func (s *SavedPostService) Create(ctx context.Context, userID, content, personality string) (*model.SavedPost, error) {
	content, err := validContent(content)
	if err != nil {
		return nil, err
	}

	post := &model.SavedPost{
		UserID:      userID,
		Content:     content,
		Personality: strings.TrimSpace(personality),
	}
	if err := s.repo.CreateSavedPost(ctx, post); err != nil {
		s.logger.Error("failed to save post",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("saving post: %w", err)
	}

	s.logger.Info("post saved",
		slog.String("id", post.ID),
		slog.String("userID", userID),
	)
	return post, nil
}

// Get returns the post if userID owns it.
func (s *SavedPostService) Get(ctx context.Context, userID, id string) (*model.SavedPost, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "saved post ID is required")
	}

	post, err := s.repo.GetSavedPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.UserID != userID {
		return nil, apperror.Forbidden("you do not own this saved post")
	}
	return post, nil
}

func (s *SavedPostService) List(ctx context.Context, userID string, limit, offset int) ([]model.SavedPost, error) {
	posts, err := s.repo.ListSavedPosts(ctx, userID, listOptions(limit, offset))
	if err != nil {
		s.logger.Error("failed to list saved posts", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing saved posts: %w", err)
	}
	return posts, nil
}

func (s *SavedPostService) Update(ctx context.Context, userID, id, content string) (*model.SavedPost, error) {
	post, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if post.Content, err = validContent(content); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateSavedPost(ctx, post); err != nil {
		s.logger.Error("failed to update saved post",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating saved post: %w", err)
	}
	return post, nil
}

func (s *SavedPostService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	if err := s.repo.DeleteSavedPost(ctx, id); err != nil {
		return err
	}

	s.logger.Info("saved post deleted", slog.String("id", id))
	return nil
}

func validContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", apperror.ValidationFailed("content", "content is required")
	}
	if len(content) > MaxPostLength {
		return "", apperror.ValidationFailed("content",
			fmt.Sprintf("content must be %d characters or less", MaxPostLength))
	}
	return content, nil
}
