package social

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/oauth2"

	"github.com/sakif/voicepost/internal/model"
)

// TwitterEndpoint is X's OAuth2 endpoint. Confidential clients send their
// credentials with HTTP basic auth.
var TwitterEndpoint = oauth2.Endpoint{
	AuthURL:   "https://twitter.com/i/oauth2/authorize",
	TokenURL:  "https://api.twitter.com/2/oauth2/token",
	AuthStyle: oauth2.AuthStyleInHeader,
}

// twitterScopes include offline.access so the token response carries a
// refresh token.
var twitterScopes = []string{"tweet.read", "tweet.write", "users.read", "offline.access"}

// NewTwitterConnector returns a PKCE connector for X.
func NewTwitterConnector(clientID, clientSecret, redirectURL string, states StateCodec, tokens TokenSaver, logger *slog.Logger, opts ...ConnectorOption) *Connector {
	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       twitterScopes,
		Endpoint:     TwitterEndpoint,
	}
	return newConnector(model.PlatformTwitter, cfg, true, states, tokens, logger, opts)
}

const twitterAPIBase = "https://api.twitter.com"

// TwitterClient calls the X v2 API.
type TwitterClient struct {
	api api
}

var _ Client = (*TwitterClient)(nil)

// NewTwitterClient returns a client for baseURL, or the public API when
// baseURL is empty.
func NewTwitterClient(baseURL string, httpClient *http.Client) *TwitterClient {
	if baseURL == "" {
		baseURL = twitterAPIBase
	}
	return &TwitterClient{api: newAPI(model.PlatformTwitter, baseURL, httpClient)}
}

func (c *TwitterClient) Platform() model.Platform {
	return model.PlatformTwitter
}

type tweetCreateResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

// Publish creates a tweet.
func (c *TwitterClient) Publish(ctx context.Context, accessToken, content string) (string, error) {
	var out tweetCreateResponse
	_, err := c.api.do(ctx, http.MethodPost, "/2/tweets", accessToken,
		map[string]string{"text": content}, &out, nil)
	if err != nil {
		return "", err
	}
	if out.Data.ID == "" {
		return "", fmt.Errorf("twitter: create tweet response has no id")
	}
	return out.Data.ID, nil
}

type twitterMeResponse struct {
	Data struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"data"`
}

type twitterTimelineResponse struct {
	Data []struct {
		ID            string `json:"id"`
		Text          string `json:"text"`
		PublicMetrics struct {
			ImpressionCount int64 `json:"impression_count"`
			LikeCount       int64 `json:"like_count"`
			ReplyCount      int64 `json:"reply_count"`
			RetweetCount    int64 `json:"retweet_count"`
		} `json:"public_metrics"`
	} `json:"data"`
}

// RecentPosts resolves the token owner's id and reads their timeline with
// public metrics.
func (c *TwitterClient) RecentPosts(ctx context.Context, accessToken string) ([]RemotePost, error) {
	var me twitterMeResponse
	if _, err := c.api.do(ctx, http.MethodGet, "/2/users/me", accessToken, nil, &me, nil); err != nil {
		return nil, err
	}
	if me.Data.ID == "" {
		return nil, fmt.Errorf("twitter: users/me response has no id")
	}

	q := url.Values{}
	q.Set("max_results", strconv.Itoa(maxRecentPosts))
	q.Set("tweet.fields", "public_metrics")
	path := "/2/users/" + url.PathEscape(me.Data.ID) + "/tweets?" + q.Encode()

	var timeline twitterTimelineResponse
	if _, err := c.api.do(ctx, http.MethodGet, path, accessToken, nil, &timeline, nil); err != nil {
		return nil, err
	}

	posts := make([]RemotePost, 0, len(timeline.Data))
	for _, t := range timeline.Data {
		posts = append(posts, RemotePost{
			ID:   t.ID,
			Text: t.Text,
			Engagement: model.Engagement{
				Impressions: t.PublicMetrics.ImpressionCount,
				Likes:       t.PublicMetrics.LikeCount,
				Comments:    t.PublicMetrics.ReplyCount,
				Reshares:    t.PublicMetrics.RetweetCount,
			},
		})
	}
	return posts, nil
}
