package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/voicepost/internal/metrics"
	"github.com/sakif/voicepost/internal/model"
	"github.com/sakif/voicepost/internal/social"
)

var publisherNow = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func schedule(t *testing.T, repo *fakeScheduledRepo, userID string, p model.Platform, content string, at time.Time) string {
	t.Helper()
	post := &model.ScheduledPost{UserID: userID, Platform: p, Content: content, ScheduledFor: at}
	require.NoError(t, repo.CreateScheduledPost(context.Background(), post))
	return post.ID
}

func newTestPublisher(repo *fakeScheduledRepo, creds CredentialSource, m *metrics.Metrics, clients ...social.Client) *Publisher {
	p := NewPublisher(repo, creds, clients, m, discardLogger())
	p.now = func() time.Time { return publisherNow }
	return p
}

func TestPublisher_PublishesDuePostsOnly(t *testing.T) {
	repo := newFakeScheduledRepo()
	tw := &fakeClient{platform: model.PlatformTwitter}
	li := &fakeClient{platform: model.PlatformLinkedIn}

	due1 := schedule(t, repo, "u1", model.PlatformTwitter, "first", publisherNow.Add(-time.Hour))
	due2 := schedule(t, repo, "u2", model.PlatformLinkedIn, "second", publisherNow)
	future := schedule(t, repo, "u1", model.PlatformTwitter, "later", publisherNow.Add(time.Minute))

	report, err := newTestPublisher(repo, staticCreds{}, nil, tw, li).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, PublishReport{Attempted: 2, Published: 2}, report)
	assert.Equal(t, []string{"first"}, tw.published)
	assert.Equal(t, []string{"u1-twitter"}, tw.tokens, "publish must use the post owner's token")
	assert.Equal(t, []string{"second"}, li.published)

	assert.True(t, repo.posts[due1].Posted)
	assert.Equal(t, "twitter-1", repo.posts[due1].PlatformPostID)
	assert.True(t, repo.posts[due2].Posted)
	assert.False(t, repo.posts[future].Posted)
}

func TestPublisher_FailureDoesNotStopBatch(t *testing.T) {
	repo := newFakeScheduledRepo()
	tw := &fakeClient{
		platform: model.PlatformTwitter,
		publishFn: func(content string) (string, error) {
			if content == "A" {
				return "", &social.APIError{Platform: model.PlatformTwitter, StatusCode: 403, Body: "duplicate content"}
			}
			return "tweet-b", nil
		},
	}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	a := schedule(t, repo, "u1", model.PlatformTwitter, "A", publisherNow.Add(-2*time.Minute))
	b := schedule(t, repo, "u1", model.PlatformTwitter, "B", publisherNow.Add(-time.Minute))

	report, err := newTestPublisher(repo, staticCreds{}, m, tw).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, PublishReport{Attempted: 2, Published: 1, Failed: 1}, report)

	assert.False(t, repo.posts[a].Posted, "failed post must stay unposted for the next run")
	assert.Contains(t, repo.posts[a].LastError, "duplicate content")
	assert.True(t, repo.posts[b].Posted)
	assert.Equal(t, "tweet-b", repo.posts[b].PlatformPostID)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PublishAttempts.WithLabelValues("twitter", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PublishAttempts.WithLabelValues("twitter", "published")))
}

func TestPublisher_FailedPostIsRetriedNextRun(t *testing.T) {
	repo := newFakeScheduledRepo()
	fail := true
	tw := &fakeClient{
		platform: model.PlatformTwitter,
		publishFn: func(string) (string, error) {
			if fail {
				return "", errors.New("503 service unavailable")
			}
			return "tweet-1", nil
		},
	}
	id := schedule(t, repo, "u1", model.PlatformTwitter, "retry me", publisherNow.Add(-time.Minute))
	pub := newTestPublisher(repo, staticCreds{}, nil, tw)

	first, err := pub.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Failed)

	fail = false
	second, err := pub.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PublishReport{Attempted: 1, Published: 1}, second)
	assert.True(t, repo.posts[id].Posted)
	assert.Empty(t, repo.posts[id].LastError)

	third, err := pub.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, third.Attempted, "posted rows are never published twice")
}

func TestPublisher_MissingCredentialsAndClient(t *testing.T) {
	repo := newFakeScheduledRepo()
	tw := &fakeClient{platform: model.PlatformTwitter}
	creds := staticCreds{missing: map[tokenKey]bool{{"u1", model.PlatformTwitter}: true}}

	noToken := schedule(t, repo, "u1", model.PlatformTwitter, "no token", publisherNow.Add(-time.Minute))
	noClient := schedule(t, repo, "u2", model.PlatformLinkedIn, "no client", publisherNow.Add(-time.Minute))

	report, err := newTestPublisher(repo, creds, nil, tw).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, PublishReport{Attempted: 2, Failed: 2}, report)
	assert.Empty(t, tw.published)
	assert.Contains(t, repo.posts[noToken].LastError, "twitter credentials")
	assert.True(t, strings.Contains(repo.posts[noClient].LastError, "linkedin"))
}

func TestPublisher_MarkPostedFailureCountsAsFailed(t *testing.T) {
	repo := newFakeScheduledRepo()
	tw := &fakeClient{platform: model.PlatformTwitter}
	id := schedule(t, repo, "u1", model.PlatformTwitter, "hi", publisherNow.Add(-time.Minute))
	repo.markErr[id] = errors.New("database is locked")

	report, err := newTestPublisher(repo, staticCreds{}, nil, tw).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, PublishReport{Attempted: 1, Failed: 1}, report)
	assert.Len(t, tw.published, 1)
}

func TestPublisher_StopsOnCancel(t *testing.T) {
	repo := newFakeScheduledRepo()
	schedule(t, repo, "u1", model.PlatformTwitter, "hi", publisherNow.Add(-time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := newTestPublisher(repo, staticCreds{}, nil, &fakeClient{platform: model.PlatformTwitter}).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, report.Attempted)
}
