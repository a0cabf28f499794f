package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/xid"
	"github.com/sakif/voicepost/internal/apperror"
	"github.com/sakif/voicepost/internal/model"
	"github.com/sakif/voicepost/internal/repository"
)

var _ repository.SavedPostRepository = (*DB)(nil)

// CreateSavedPost inserts a new saved post.
//
// The struct is modified in place: ID, CreatedAt and UpdatedAt are set here
// so the caller can return the stored record without a second query.
func (db *DB) CreateSavedPost(ctx context.Context, post *model.SavedPost) error {
	post.ID = xid.New().String()

	now := db.now()
	post.CreatedAt = now
	post.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO saved_posts (id, user_id, content, personality, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		post.ID,
		post.UserID,
		post.Content,
		post.Personality,
		formatTime(post.CreatedAt),
		formatTime(post.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating saved post: %w", err)
	}

	return nil
}

// GetSavedPost retrieves a saved post by ID.
func (db *DB) GetSavedPost(ctx context.Context, id string) (*model.SavedPost, error) {
	var post model.SavedPost

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, content, personality, created_at, updated_at
		 FROM saved_posts
		 WHERE id = ?`,
		id,
	).Scan(
		&post.ID,
		&post.UserID,
		&post.Content,
		&post.Personality,
		timestamp{&post.CreatedAt},
		timestamp{&post.UpdatedAt},
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("saved post", id)
		}
		return nil, fmt.Errorf("sqlite: getting saved post %s: %w", id, err)
	}

	return &post, nil
}

// ListSavedPosts returns a page of the user's saved posts, newest first.
func (db *DB) ListSavedPosts(ctx context.Context, userID string, opts repository.ListOptions) ([]model.SavedPost, error) {
	limit, offset := clampPage(opts)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, content, personality, created_at, updated_at
		 FROM saved_posts
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		userID,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing saved posts: %w", err)
	}
	defer rows.Close()

	posts := make([]model.SavedPost, 0, limit)
	for rows.Next() {
		var p model.SavedPost
		if err := rows.Scan(
			&p.ID, &p.UserID, &p.Content, &p.Personality,
			timestamp{&p.CreatedAt}, timestamp{&p.UpdatedAt},
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning saved post row: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating saved posts: %w", err)
	}

	return posts, nil
}

// UpdateSavedPost rewrites content and personality.
// Returns apperror.ErrNotFound if the row does not exist.
func (db *DB) UpdateSavedPost(ctx context.Context, post *model.SavedPost) error {
	post.UpdatedAt = db.now()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE saved_posts
		 SET content = ?, personality = ?, updated_at = ?
		 WHERE id = ?`,
		post.Content,
		post.Personality,
		formatTime(post.UpdatedAt),
		post.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating saved post %s: %w", post.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("saved post", post.ID)
	}

	return nil
}

// DeleteSavedPost removes a saved post by ID.
func (db *DB) DeleteSavedPost(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM saved_posts WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting saved post %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("saved post", id)
	}

	return nil
}
