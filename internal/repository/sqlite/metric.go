package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/xid"
	"github.com/sakif/voicepost/internal/model"
	"github.com/sakif/voicepost/internal/repository"
)

var _ repository.MetricRepository = (*DB)(nil)

// UpsertMetric records the latest counters for one remote post.
//
// The conflict target is (user_id, platform, platform_post_id). RETURNING id gives
// back the id of whichever row now holds the data: the freshly generated id
// on insert, the existing id on update. Re-ingesting the same post therefore
// never creates a second row.
func (db *DB) UpsertMetric(ctx context.Context, m *model.PostMetric) error {
	m.UpdatedAt = db.now()

	var id string
	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO post_metrics
			(id, user_id, platform, platform_post_id, post_content, impressions, likes, comments, reshares, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, platform, platform_post_id) DO UPDATE SET
			post_content = excluded.post_content,
			impressions  = excluded.impressions,
			likes        = excluded.likes,
			comments     = excluded.comments,
			reshares     = excluded.reshares,
			updated_at   = excluded.updated_at
		 RETURNING id`,
		xid.New().String(),
		m.UserID,
		string(m.Platform),
		m.PlatformPostID,
		m.PostContent,
		m.Impressions,
		m.Likes,
		m.Comments,
		m.Reshares,
		formatTime(m.UpdatedAt),
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("sqlite: upserting metric %s/%s: %w", m.Platform, m.PlatformPostID, err)
	}

	m.ID = id
	return nil
}

// UpsertCategory sets the single category of a metric row. The foreign key
// rejects a PostMetricsID that does not exist.
func (db *DB) UpsertCategory(ctx context.Context, cp *model.CategorizedPost) error {
	var id string
	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO categorized_posts (id, post_metrics_id, category)
		 VALUES (?, ?, ?)
		 ON CONFLICT (post_metrics_id) DO UPDATE SET category = excluded.category
		 RETURNING id`,
		xid.New().String(),
		cp.PostMetricsID,
		string(cp.Category),
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("sqlite: upserting category for metric %s: %w", cp.PostMetricsID, err)
	}

	cp.ID = id
	return nil
}

// ListMetrics joins each metric with its category, most engaged first.
func (db *DB) ListMetrics(ctx context.Context, userID string, filter repository.MetricFilter) ([]model.MetricWithCategory, error) {
	limit, offset := clampPage(filter.ListOptions)

	var where strings.Builder
	where.WriteString("m.user_id = ?")
	args := []any{userID}

	if filter.Platform != "" {
		where.WriteString(" AND m.platform = ?")
		args = append(args, string(filter.Platform))
	}
	if filter.Category != "" {
		where.WriteString(" AND c.category = ?")
		args = append(args, string(filter.Category))
	}
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT m.id, m.user_id, m.platform, m.platform_post_id, m.post_content,
		        m.impressions, m.likes, m.comments, m.reshares, m.updated_at,
		        COALESCE(c.category, '')
		 FROM post_metrics m
		 LEFT JOIN categorized_posts c ON c.post_metrics_id = m.id
		 WHERE `+where.String()+`
		 ORDER BY m.impressions DESC, m.id ASC
		 LIMIT ? OFFSET ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing metrics: %w", err)
	}
	defer rows.Close()

	out := make([]model.MetricWithCategory, 0, limit)
	for rows.Next() {
		var (
			mc       model.MetricWithCategory
			platform string
			category string
		)
		if err := rows.Scan(
			&mc.ID, &mc.UserID, &platform, &mc.PlatformPostID, &mc.PostContent,
			&mc.Impressions, &mc.Likes, &mc.Comments, &mc.Reshares,
			timestamp{&mc.UpdatedAt}, &category,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning metric row: %w", err)
		}
		mc.Platform = model.Platform(platform)
		mc.Category = model.Category(category)
		out = append(out, mc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating metrics: %w", err)
	}

	return out, nil
}
