// Package repository declares the storage contracts used by the service layer.
// The sqlite subpackage is the production implementation; service tests use
// in-memory fakes.
package repository

import (
	"context"
	"time"

	"github.com/sakif/voicepost/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// TokenRepository is the Token Store: one credential per (user, platform).
type TokenRepository interface {
	// UpsertToken inserts or overwrites the token for (UserID, Platform).
	UpsertToken(ctx context.Context, token *model.SocialToken) error
	GetToken(ctx context.Context, userID string, platform model.Platform) (*model.SocialToken, error)
	ListTokens(ctx context.Context, userID string) ([]model.SocialToken, error)
	DeleteToken(ctx context.Context, userID string, platform model.Platform) error
	// ListUsersWithTokens returns every user id holding at least one token.
	ListUsersWithTokens(ctx context.Context) ([]string, error)
}

type ScheduledPostRepository interface {
	CreateScheduledPost(ctx context.Context, post *model.ScheduledPost) error
	GetScheduledPost(ctx context.Context, id string) (*model.ScheduledPost, error)
	ListScheduledPosts(ctx context.Context, userID string, opts ListOptions) ([]model.ScheduledPost, error)
	DeleteScheduledPost(ctx context.Context, id string) error
	// ListDuePosts returns unposted rows with scheduled_for <= now, oldest first.
	ListDuePosts(ctx context.Context, now time.Time) ([]model.ScheduledPost, error)
	MarkPosted(ctx context.Context, id, platformPostID string) error
	RecordPublishError(ctx context.Context, id, message string) error
}

type SavedPostRepository interface {
	CreateSavedPost(ctx context.Context, post *model.SavedPost) error
	GetSavedPost(ctx context.Context, id string) (*model.SavedPost, error)
	ListSavedPosts(ctx context.Context, userID string, opts ListOptions) ([]model.SavedPost, error)
	UpdateSavedPost(ctx context.Context, post *model.SavedPost) error
	DeleteSavedPost(ctx context.Context, id string) error
}

// MetricFilter narrows ListMetrics. Zero values mean "any".
type MetricFilter struct {
	Platform model.Platform
	Category model.Category
	ListOptions
}

type MetricRepository interface {
	// UpsertMetric inserts or updates the row keyed on
	// (Platform, PlatformPostID) and sets metric.ID to the stored row's id.
	UpsertMetric(ctx context.Context, metric *model.PostMetric) error
	// UpsertCategory inserts or updates the category row keyed on PostMetricsID.
	UpsertCategory(ctx context.Context, cp *model.CategorizedPost) error
	ListMetrics(ctx context.Context, userID string, filter MetricFilter) ([]model.MetricWithCategory, error)
}
