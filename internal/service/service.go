// Package service holds the application's use cases. Handlers and the
// trigger CLI call into it; it talks to storage through the repository
// interfaces and to the outside world through the small interfaces below,
// so every service can be tested with in-memory fakes.
package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sakif/voicepost/internal/apperror"
	"github.com/sakif/voicepost/internal/model"
	"github.com/sakif/voicepost/internal/repository"
	"github.com/sakif/voicepost/internal/social"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// TokenRefresher renews an expired platform credential.
type TokenRefresher interface {
	Platform() model.Platform
	Refresh(ctx context.Context, current *model.SocialToken) (*model.SocialToken, error)
}

// Connector is the OAuth side of one platform. *social.Connector
// implements it.
type Connector interface {
	TokenRefresher
	Initiate(userID, returnTo string) (social.Authorization, error)
	HandleCallback(ctx context.Context, cb social.Callback) (social.CallbackResult, error)
}

var _ Connector = (*social.Connector)(nil)

// CredentialSource hands out a usable access token for (user, platform).
type CredentialSource interface {
	Valid(ctx context.Context, userID string, platform model.Platform) (*model.SocialToken, error)
}

// Mailer sends one email. *email.Sender implements it.
type Mailer interface {
	Enabled() bool
	SendMail(ctx context.Context, to, subject, htmlBody, textBody string) (string, error)
}

// SpeechToText turns an audio upload into text. *llm.Transcriber
// implements it.
type SpeechToText interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
}

func listOptions(limit, offset int) repository.ListOptions {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return repository.ListOptions{Limit: limit, Offset: offset}
}

func parsePlatform(raw string) (model.Platform, error) {
	p, err := model.ParsePlatform(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		return "", apperror.ValidationFailed("platform",
			fmt.Sprintf("platform must be one of %s or %s", model.PlatformTwitter, model.PlatformLinkedIn))
	}
	return p, nil
}

func clientsByPlatform(clients []social.Client) map[model.Platform]social.Client {
	m := make(map[model.Platform]social.Client, len(clients))
	for _, c := range clients {
		m[c.Platform()] = c
	}
	return m
}
