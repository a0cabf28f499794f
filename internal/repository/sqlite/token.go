package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/voicepost/internal/apperror"
	"github.com/sakif/voicepost/internal/model"
	"github.com/sakif/voicepost/internal/repository"
)

var _ repository.TokenRepository = (*DB)(nil)

// UpsertToken stores the credential for (UserID, Platform).
//
// ON CONFLICT DO UPDATE keeps exactly one row per pair: reconnecting an
// account, or refreshing its token, overwrites the previous value. No
// history is kept.
func (db *DB) UpsertToken(ctx context.Context, token *model.SocialToken) error {
	token.UpdatedAt = db.now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO social_tokens (user_id, platform, access_token, refresh_token, token_type, expires_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, platform) DO UPDATE SET
			access_token  = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_type    = excluded.token_type,
			expires_at    = excluded.expires_at,
			updated_at    = excluded.updated_at`,
		token.UserID,
		string(token.Platform),
		token.AccessToken,
		token.RefreshToken,
		token.TokenType,
		formatTime(token.ExpiresAt),
		formatTime(token.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting %s token for user %s: %w", token.Platform, token.UserID, err)
	}
	return nil
}

// GetToken returns the stored credential, or apperror.ErrNotFound when the
// user has not connected that platform.
func (db *DB) GetToken(ctx context.Context, userID string, platform model.Platform) (*model.SocialToken, error) {
	var t model.SocialToken
	var p string

	err := db.conn.QueryRowContext(ctx,
		`SELECT user_id, platform, access_token, refresh_token, token_type, expires_at, updated_at
		 FROM social_tokens WHERE user_id = ? AND platform = ?`,
		userID, string(platform),
	).Scan(
		&t.UserID,
		&p,
		&t.AccessToken,
		&t.RefreshToken,
		&t.TokenType,
		timestamp{&t.ExpiresAt},
		timestamp{&t.UpdatedAt},
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound(string(platform)+" token", userID)
		}
		return nil, fmt.Errorf("sqlite: getting %s token for user %s: %w", platform, userID, err)
	}
	t.Platform = model.Platform(p)

	return &t, nil
}

// ListTokens returns every credential the user holds, ordered by platform.
func (db *DB) ListTokens(ctx context.Context, userID string) ([]model.SocialToken, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT user_id, platform, access_token, refresh_token, token_type, expires_at, updated_at
		 FROM social_tokens WHERE user_id = ?
		 ORDER BY platform`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing tokens for user %s: %w", userID, err)
	}
	defer rows.Close()

	var tokens []model.SocialToken
	for rows.Next() {
		var t model.SocialToken
		var p string
		if err := rows.Scan(
			&t.UserID, &p, &t.AccessToken, &t.RefreshToken, &t.TokenType,
			timestamp{&t.ExpiresAt}, timestamp{&t.UpdatedAt},
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning token row: %w", err)
		}
		t.Platform = model.Platform(p)
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating tokens: %w", err)
	}

	return tokens, nil
}

// DeleteToken disconnects a platform.
func (db *DB) DeleteToken(ctx context.Context, userID string, platform model.Platform) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM social_tokens WHERE user_id = ? AND platform = ?`,
		userID, string(platform),
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting %s token for user %s: %w", platform, userID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(string(platform)+" token", userID)
	}
	return nil
}

// ListUsersWithTokens feeds the scheduled metrics run.
func (db *DB) ListUsersWithTokens(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT DISTINCT user_id FROM social_tokens ORDER BY user_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users with tokens: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating user ids: %w", err)
	}
	return ids, nil
}
