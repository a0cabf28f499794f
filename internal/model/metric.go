package model

import "time"

// Category is the coarse topic assigned to an ingested post.
type Category string

const (
	CategoryBusiness Category = "business"
	CategoryCulture  Category = "culture"
	CategoryPolitics Category = "politics"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryBusiness, CategoryCulture, CategoryPolitics:
		return true
	}
	return false
}

// Engagement holds the canonical engagement counters of one post.
type Engagement struct {
	Impressions int64 `json:"impressions"`
	Likes       int64 `json:"likes"`
	Comments    int64 `json:"comments"`
	Reshares    int64 `json:"reshares"`
}

// PostMetric is the latest engagement snapshot of one published post.
//
// Identity is (Platform, PlatformPostID): the platform's own id, so edited
// or duplicate text never collapses two posts into one row.
type PostMetric struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	Platform       Platform  `json:"platform"`
	PlatformPostID string    `json:"platformPostId"`
	PostContent    string    `json:"postContent"`
	Engagement
	UpdatedAt time.Time `json:"updatedAt"`
}

// CategorizedPost annotates a PostMetric with its topic. It lives and dies
// with its parent metric row.
type CategorizedPost struct {
	ID            string   `json:"id"`
	PostMetricsID string   `json:"postMetricsId"`
	Category      Category `json:"category"`
}

// MetricWithCategory is the read model used by the analytics endpoint.
type MetricWithCategory struct {
	PostMetric
	Category Category `json:"category"`
}
