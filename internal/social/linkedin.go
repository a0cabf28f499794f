package social

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/linkedin"

	"github.com/sakif/voicepost/internal/model"
)

var linkedInScopes = []string{"openid", "profile", "w_member_social"}

// NewLinkedInConnector returns a connector for LinkedIn. LinkedIn does not
// support PKCE for server-side apps, so Initiate returns no verifier.
func NewLinkedInConnector(clientID, clientSecret, redirectURL string, states StateCodec, tokens TokenSaver, logger *slog.Logger, opts ...ConnectorOption) *Connector {
	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       linkedInScopes,
		Endpoint:     linkedin.Endpoint,
	}
	return newConnector(model.PlatformLinkedIn, cfg, false, states, tokens, logger, opts)
}

const linkedInAPIBase = "https://api.linkedin.com"

// restli is required by the v2 UGC endpoints.
var restli = map[string]string{"X-Restli-Protocol-Version": "2.0.0"}

// LinkedInClient calls the LinkedIn v2 API.
type LinkedInClient struct {
	api api
}

var _ Client = (*LinkedInClient)(nil)

// NewLinkedInClient returns a client for baseURL, or the public API when
// baseURL is empty.
func NewLinkedInClient(baseURL string, httpClient *http.Client) *LinkedInClient {
	if baseURL == "" {
		baseURL = linkedInAPIBase
	}
	return &LinkedInClient{api: newAPI(model.PlatformLinkedIn, baseURL, httpClient)}
}

func (c *LinkedInClient) Platform() model.Platform {
	return model.PlatformLinkedIn
}

// author resolves the member URN of the token's owner via OpenID userinfo.
func (c *LinkedInClient) author(ctx context.Context, accessToken string) (string, error) {
	var info struct {
		Sub string `json:"sub"`
	}
	if _, err := c.api.do(ctx, http.MethodGet, "/v2/userinfo", accessToken, nil, &info, nil); err != nil {
		return "", err
	}
	if info.Sub == "" {
		return "", fmt.Errorf("linkedin: userinfo response has no sub")
	}
	return "urn:li:person:" + info.Sub, nil
}

type ugcShareContent struct {
	ShareCommentary struct {
		Text string `json:"text"`
	} `json:"shareCommentary"`
	ShareMediaCategory string `json:"shareMediaCategory,omitempty"`
}

type ugcPost struct {
	ID              string `json:"id,omitempty"`
	Author          string `json:"author"`
	LifecycleState  string `json:"lifecycleState"`
	SpecificContent struct {
		Share ugcShareContent `json:"com.linkedin.ugc.ShareContent"`
	} `json:"specificContent"`
	Visibility map[string]string `json:"visibility"`
}

// Publish creates a public text-only share.
func (c *LinkedInClient) Publish(ctx context.Context, accessToken, content string) (string, error) {
	author, err := c.author(ctx, accessToken)
	if err != nil {
		return "", err
	}

	post := ugcPost{
		Author:         author,
		LifecycleState: "PUBLISHED",
		Visibility:     map[string]string{"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC"},
	}
	post.SpecificContent.Share.ShareCommentary.Text = content
	post.SpecificContent.Share.ShareMediaCategory = "NONE"

	var created struct {
		ID string `json:"id"`
	}
	header, err := c.api.do(ctx, http.MethodPost, "/v2/ugcPosts", accessToken, post, &created, restli)
	if err != nil {
		return "", err
	}

	id := created.ID
	if id == "" {
		id = header.Get("X-RestLi-Id")
	}
	if id == "" {
		return "", fmt.Errorf("linkedin: create post response has no id")
	}
	return id, nil
}

type shareStatistics struct {
	Elements []struct {
		UGCPost              string `json:"ugcPost"`
		Share                string `json:"share"`
		TotalShareStatistics struct {
			ImpressionCount int64 `json:"impressionCount"`
			LikeCount       int64 `json:"likeCount"`
			CommentCount    int64 `json:"commentCount"`
			ShareCount      int64 `json:"shareCount"`
		} `json:"totalShareStatistics"`
	} `json:"elements"`
}

// RecentPosts lists the owner's latest shares and joins them with their
// share statistics. Posts without statistics report zero engagement.
func (c *LinkedInClient) RecentPosts(ctx context.Context, accessToken string) ([]RemotePost, error) {
	author, err := c.author(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	listPath := "/v2/ugcPosts?q=authors&authors=" + restliList(author) + "&count=" + strconv.Itoa(maxRecentPosts)
	var list struct {
		Elements []ugcPost `json:"elements"`
	}
	if _, err := c.api.do(ctx, http.MethodGet, listPath, accessToken, nil, &list, restli); err != nil {
		return nil, err
	}
	if len(list.Elements) == 0 {
		return []RemotePost{}, nil
	}

	ids := make([]string, 0, len(list.Elements))
	for _, p := range list.Elements {
		ids = append(ids, p.ID)
	}
	statsPath := "/v2/organizationalEntityShareStatistics?q=organizationalEntity&organizationalEntity=" +
		url.QueryEscape(author) + "&ugcPosts=" + restliList(ids...)
	var stats shareStatistics
	if _, err := c.api.do(ctx, http.MethodGet, statsPath, accessToken, nil, &stats, restli); err != nil {
		return nil, err
	}

	byPost := make(map[string]model.Engagement, len(stats.Elements))
	for _, s := range stats.Elements {
		key := s.UGCPost
		if key == "" {
			key = s.Share
		}
		byPost[key] = model.Engagement{
			Impressions: s.TotalShareStatistics.ImpressionCount,
			Likes:       s.TotalShareStatistics.LikeCount,
			Comments:    s.TotalShareStatistics.CommentCount,
			Reshares:    s.TotalShareStatistics.ShareCount,
		}
	}

	posts := make([]RemotePost, 0, len(list.Elements))
	for _, p := range list.Elements {
		posts = append(posts, RemotePost{
			ID:         p.ID,
			Text:       p.SpecificContent.Share.ShareCommentary.Text,
			Engagement: byPost[p.ID],
		})
	}
	return posts, nil
}

// restliList renders values as a Rest.li 2.0 List(...) query value, with
// each URN escaped inside the parentheses.
func restliList(values ...string) string {
	escaped := make([]string, len(values))
	for i, v := range values {
		escaped[i] = url.QueryEscape(v)
	}
	return "List(" + strings.Join(escaped, ",") + ")"
}
