package model

import "time"

// ScheduledPost is a user-authored post awaiting automatic publication.
//
// Only the publisher mutates it after creation, and only to flip Posted to
// true (recording PlatformPostID) or to note LastError. Rows are never
// deleted automatically.
type ScheduledPost struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	Content        string    `json:"content"`
	Platform       Platform  `json:"platform"`
	ScheduledFor   time.Time `json:"scheduledFor"`
	Posted         bool      `json:"posted"`
	PlatformPostID string    `json:"platformPostId,omitempty"`
	LastError      string    `json:"lastError,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// SavedPost is a generated or hand-written variation the user kept for later.
type SavedPost struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Content     string    `json:"content"`
	Personality string    `json:"personality,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
