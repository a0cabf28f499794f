package model

import "time"

// SocialToken is the credential a user granted us for one platform.
//
// There is at most one row per (UserID, Platform); reconnecting overwrites
// it. RefreshToken and ExpiresAt are kept so the token can be renewed before
// use instead of silently going stale.
type SocialToken struct {
	UserID       string    `json:"userId"`
	Platform     Platform  `json:"platform"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	TokenType    string    `json:"tokenType"`
	ExpiresAt    time.Time `json:"expiresAt"` // zero = no known expiry
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Expired reports whether the access token is past its expiry, with a small
// leeway so a token is not used seconds before it lapses.
func (t SocialToken) Expired(now time.Time) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(30 * time.Second).Before(t.ExpiresAt)
}
