package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/voicepost/internal/apperror"
	"github.com/sakif/voicepost/internal/model"
	"github.com/sakif/voicepost/internal/social"
)

var credNow = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

func newTestCredentials(tokens *fakeTokenRepo, refreshers ...TokenRefresher) *CredentialService {
	s := NewCredentialService(tokens, discardLogger(), refreshers...)
	s.now = func() time.Time { return credNow }
	return s
}

func TestValid_FreshTokenIsReturnedAsIs(t *testing.T) {
	tokens := newFakeTokenRepo(model.SocialToken{
		UserID: "u1", Platform: model.PlatformTwitter, AccessToken: "live",
		RefreshToken: "r", ExpiresAt: credNow.Add(time.Hour),
	})
	refresher := &fakeRefresher{platform: model.PlatformTwitter}

	tok, err := newTestCredentials(tokens, refresher).Valid(context.Background(), "u1", model.PlatformTwitter)
	require.NoError(t, err)

	assert.Equal(t, "live", tok.AccessToken)
	assert.Zero(t, refresher.calls)
	assert.Zero(t, tokens.upserts)
}

func TestValid_ExpiredTokenIsRefreshedAndStored(t *testing.T) {
	tokens := newFakeTokenRepo(model.SocialToken{
		UserID: "u1", Platform: model.PlatformTwitter, AccessToken: "stale",
		RefreshToken: "keep-me", ExpiresAt: credNow.Add(10 * time.Second),
	})
	refresher := &fakeRefresher{platform: model.PlatformTwitter}

	tok, err := newTestCredentials(tokens, refresher).Valid(context.Background(), "u1", model.PlatformTwitter)
	require.NoError(t, err)

	assert.Equal(t, "refreshed", tok.AccessToken)
	assert.Equal(t, 1, refresher.calls)

	stored, err := tokens.GetToken(context.Background(), "u1", model.PlatformTwitter)
	require.NoError(t, err)
	assert.Equal(t, "refreshed", stored.AccessToken)
	assert.Equal(t, "keep-me", stored.RefreshToken, "provider may omit a new refresh token")
}

func TestValid_NoExpiryNeverRefreshes(t *testing.T) {
	tokens := newFakeTokenRepo(model.SocialToken{UserID: "u1", Platform: model.PlatformLinkedIn, AccessToken: "forever"})
	refresher := &fakeRefresher{platform: model.PlatformLinkedIn}

	tok, err := newTestCredentials(tokens, refresher).Valid(context.Background(), "u1", model.PlatformLinkedIn)
	require.NoError(t, err)
	assert.Equal(t, "forever", tok.AccessToken)
	assert.Zero(t, refresher.calls)
}

func TestValid_Errors(t *testing.T) {
	expired := model.SocialToken{
		UserID: "u1", Platform: model.PlatformLinkedIn, AccessToken: "old",
		ExpiresAt: credNow.Add(-time.Hour),
	}

	t.Run("missing token", func(t *testing.T) {
		_, err := newTestCredentials(newFakeTokenRepo()).Valid(context.Background(), "u1", model.PlatformTwitter)
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})

	t.Run("expired without refresher", func(t *testing.T) {
		_, err := newTestCredentials(newFakeTokenRepo(expired)).Valid(context.Background(), "u1", model.PlatformLinkedIn)
		assert.ErrorIs(t, err, apperror.ErrUnauthorized)
	})

	t.Run("refresh fails", func(t *testing.T) {
		tokens := newFakeTokenRepo(expired)
		boom := apperror.Upstream(errors.New("invalid_grant"), "linkedin rejected the authorization")
		refresher := &fakeRefresher{platform: model.PlatformLinkedIn, err: boom}

		_, err := newTestCredentials(tokens, refresher).Valid(context.Background(), "u1", model.PlatformLinkedIn)
		assert.ErrorIs(t, err, apperror.ErrUpstream)
		assert.Zero(t, tokens.upserts)
	})

	t.Run("store fails", func(t *testing.T) {
		tokens := newFakeTokenRepo(expired)
		tokens.upsertErr = errors.New("database is locked")
		refresher := &fakeRefresher{platform: model.PlatformLinkedIn}

		_, err := newTestCredentials(tokens, refresher).Valid(context.Background(), "u1", model.PlatformLinkedIn)
		assert.Error(t, err)
	})
}

func TestConnectedAndDisconnect(t *testing.T) {
	tokens := newFakeTokenRepo(
		model.SocialToken{UserID: "u1", Platform: model.PlatformTwitter},
		model.SocialToken{UserID: "u1", Platform: model.PlatformLinkedIn},
		model.SocialToken{UserID: "u2", Platform: model.PlatformLinkedIn},
	)
	svc := newTestCredentials(tokens)
	ctx := context.Background()

	got, err := svc.Connected(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []model.Platform{model.PlatformTwitter, model.PlatformLinkedIn}, got)

	require.NoError(t, svc.Disconnect(ctx, "u1", "Twitter"))
	got, err = svc.Connected(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []model.Platform{model.PlatformLinkedIn}, got)

	assert.ErrorIs(t, svc.Disconnect(ctx, "u1", "twitter"), apperror.ErrNotFound)
	assert.ErrorIs(t, svc.Disconnect(ctx, "u1", "friendster"), apperror.ErrValidation)

	other, err := svc.Connected(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, []model.Platform{model.PlatformLinkedIn}, other)
}

func TestConnectService(t *testing.T) {
	tw := &fakeConnector{
		fakeRefresher: fakeRefresher{platform: model.PlatformTwitter},
		callback:      social.CallbackResult{Success: true, ReturnTo: "https://evil.example/phish"},
	}
	svc := NewConnectService("/dashboard", tw)

	t.Run("begin keeps local return path", func(t *testing.T) {
		authz, err := svc.Begin("u1", "twitter", "/settings?tab=connections")
		require.NoError(t, err)
		assert.Contains(t, authz.URL, "user=u1")
		assert.Equal(t, "/settings?tab=connections", tw.initiateTo)
	})

	for _, bad := range []string{"", "https://evil.example", "//evil.example", `/\evil.example`, "relative"} {
		t.Run("begin rewrites "+bad, func(t *testing.T) {
			_, err := svc.Begin("u1", "twitter", bad)
			require.NoError(t, err)
			assert.Equal(t, "/dashboard", tw.initiateTo)
		})
	}

	t.Run("callback sanitises return path", func(t *testing.T) {
		cb := social.Callback{Code: "code", State: "state", Nonce: "n", Verifier: "verifier"}
		res, err := svc.Complete(context.Background(), "twitter", cb)
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, "/dashboard", res.ReturnTo)
		assert.Equal(t, cb, tw.got)
	})

	t.Run("unconfigured platform", func(t *testing.T) {
		_, err := svc.Begin("u1", "linkedin", "/")
		assert.ErrorIs(t, err, ErrPlatformDisabled)
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})

	t.Run("unknown platform", func(t *testing.T) {
		_, err := svc.Complete(context.Background(), "myspace", social.Callback{Code: "c", State: "s"})
		assert.ErrorIs(t, err, apperror.ErrValidation)
	})

	assert.Equal(t, []model.Platform{model.PlatformTwitter}, svc.Enabled())
}
