package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/voicepost/internal/apperror"
	"github.com/sakif/voicepost/internal/model"
	"github.com/sakif/voicepost/internal/repository"
)

var _ repository.ScheduledPostRepository = (*DB)(nil)

const scheduledPostColumns = `id, user_id, content, platform, scheduled_for, posted,
	platform_post_id, last_error, created_at, updated_at`

// CreateScheduledPost inserts a new, unposted row and fills in ID and timestamps.
func (db *DB) CreateScheduledPost(ctx context.Context, post *model.ScheduledPost) error {
	now := db.now()
	post.ID = xid.New().String()
	post.Posted = false
	post.CreatedAt = now
	post.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO scheduled_posts (id, user_id, content, platform, scheduled_for, posted, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
		post.ID,
		post.UserID,
		post.Content,
		string(post.Platform),
		formatTime(post.ScheduledFor),
		formatTime(post.CreatedAt),
		formatTime(post.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating scheduled post: %w", err)
	}
	return nil
}

func (db *DB) GetScheduledPost(ctx context.Context, id string) (*model.ScheduledPost, error) {
	post, err := scanScheduledPost(db.conn.QueryRowContext(ctx,
		`SELECT `+scheduledPostColumns+` FROM scheduled_posts WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("scheduled post", id)
		}
		return nil, fmt.Errorf("sqlite: getting scheduled post %s: %w", id, err)
	}
	return post, nil
}

// ListScheduledPosts returns a user's posts, soonest first.
func (db *DB) ListScheduledPosts(ctx context.Context, userID string, opts repository.ListOptions) ([]model.ScheduledPost, error) {
	limit, offset := clampPage(opts)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+scheduledPostColumns+`
		 FROM scheduled_posts
		 WHERE user_id = ?
		 ORDER BY scheduled_for ASC
		 LIMIT ? OFFSET ?`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing scheduled posts: %w", err)
	}
	defer rows.Close()

	return collectScheduledPosts(rows, limit)
}

func (db *DB) DeleteScheduledPost(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM scheduled_posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting scheduled post %s: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("scheduled post", id)
	}
	return nil
}

// ListDuePosts selects `posted = false AND scheduled_for <= now`.
// The string comparison is chronological because of timeLayout.
func (db *DB) ListDuePosts(ctx context.Context, now time.Time) ([]model.ScheduledPost, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+scheduledPostColumns+`
		 FROM scheduled_posts
		 WHERE posted = 0 AND scheduled_for <= ?
		 ORDER BY scheduled_for ASC`,
		formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing due posts: %w", err)
	}
	defer rows.Close()

	return collectScheduledPosts(rows, 0)
}

// MarkPosted flips posted to true. It is the only mutation the publisher
// makes to a successful row.
func (db *DB) MarkPosted(ctx context.Context, id, platformPostID string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE scheduled_posts
		 SET posted = 1, platform_post_id = ?, last_error = '', updated_at = ?
		 WHERE id = ?`,
		platformPostID, formatTime(db.now()), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: marking post %s posted: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("scheduled post", id)
	}
	return nil
}

// RecordPublishError keeps the last failure reason for display; the row
// stays unposted and is retried on the next run.
func (db *DB) RecordPublishError(ctx context.Context, id, message string) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE scheduled_posts SET last_error = ?, updated_at = ? WHERE id = ?`,
		message, formatTime(db.now()), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: recording publish error for %s: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScheduledPost(row rowScanner) (*model.ScheduledPost, error) {
	var p model.ScheduledPost
	var platform string
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Content,
		&platform,
		timestamp{&p.ScheduledFor},
		&p.Posted,
		&p.PlatformPostID,
		&p.LastError,
		timestamp{&p.CreatedAt},
		timestamp{&p.UpdatedAt},
	)
	if err != nil {
		return nil, err
	}
	p.Platform = model.Platform(platform)
	return &p, nil
}

func collectScheduledPosts(rows *sql.Rows, capacity int) ([]model.ScheduledPost, error) {
	posts := make([]model.ScheduledPost, 0, capacity)
	for rows.Next() {
		p, err := scanScheduledPost(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning scheduled post row: %w", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating scheduled posts: %w", err)
	}
	return posts, nil
}

// clampPage applies the default (20) and maximum (100) page sizes.
func clampPage(opts repository.ListOptions) (limit, offset int) {
	limit = opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset = opts.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
