// Package social talks to the social platforms on a user's behalf.
//
// A Connector runs the OAuth2 authorization-code flow for one platform and
// persists the resulting credential. A Client publishes and reads posts with
// that credential. Both platforms authenticate every call with an OAuth2
// bearer token; there is no app-level request signing anywhere.
package social

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sakif/voicepost/internal/model"
)

// ErrInvalidState means the `state` returned to a callback was malformed,
// forged, expired, minted for a different platform, or not started in the
// browser that delivered it.
var ErrInvalidState = errors.New("social: invalid oauth state")

// ErrMissingVerifier means a PKCE flow reached its callback without the
// verifier cookie set by Initiate.
var ErrMissingVerifier = errors.New("social: missing PKCE verifier")

// TokenExchangeError is a non-success answer from a provider's token
// endpoint. Body is the provider's own error payload.
type TokenExchangeError struct {
	Platform   model.Platform
	StatusCode int
	Body       string
}

func (e *TokenExchangeError) Error() string {
	return fmt.Sprintf("%s: token exchange failed with status %d: %s", e.Platform, e.StatusCode, e.Body)
}

// APIError is a non-success answer from a platform's REST API.
type APIError struct {
	Platform   model.Platform
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Platform, e.StatusCode, e.Body)
}

// RemotePost is one of the user's posts as the platform reports it, with
// engagement counters already mapped to the canonical names.
type RemotePost struct {
	ID   string
	Text string
	model.Engagement
}

// Client is the per-platform API surface the publisher and ingester use.
type Client interface {
	Platform() model.Platform
	// Publish posts content as the token's owner and returns the platform's
	// id for the new post.
	Publish(ctx context.Context, accessToken, content string) (string, error)
	// RecentPosts returns up to 100 of the owner's most recent posts.
	RecentPosts(ctx context.Context, accessToken string) ([]RemotePost, error)
}

const (
	maxRecentPosts = 100
	maxErrorBody   = 2048
)

// api holds what both platform clients share: a base URL and a bearer-token
// JSON round trip.
type api struct {
	platform model.Platform
	baseURL  string
	client   *http.Client
}

func newAPI(platform model.Platform, baseURL string, client *http.Client) api {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return api{
		platform: platform,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   client,
	}
}

// do sends body (if any) as JSON and decodes a 2xx response into out (if
// any). It returns the response headers so callers can read ids providers
// put there instead of in the body.
func (a api) do(ctx context.Context, method, path, token string, body, out any, headers map[string]string) (http.Header, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: marshal request: %w", a.platform, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", a.platform, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: request failed: %w", a.platform, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{
			Platform:   a.platform,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("%s: decode response: %w", a.platform, err)
		}
	}
	return resp.Header, nil
}
