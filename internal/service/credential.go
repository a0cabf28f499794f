package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/voicepost/internal/apperror"
	"github.com/sakif/voicepost/internal/model"
	"github.com/sakif/voicepost/internal/repository"
)

// CredentialService owns the lifecycle of stored platform tokens after the
// connect flow: renewal before use, listing and removal.
type CredentialService struct {
	tokens     repository.TokenRepository
	refreshers map[model.Platform]TokenRefresher
	now        func() time.Time
	logger     *slog.Logger
}

var _ CredentialSource = (*CredentialService)(nil)

func NewCredentialService(tokens repository.TokenRepository, logger *slog.Logger, refreshers ...TokenRefresher) *CredentialService {
	m := make(map[model.Platform]TokenRefresher, len(refreshers))
	for _, r := range refreshers {
		m[r.Platform()] = r
	}
	return &CredentialService{
		tokens:     tokens,
		refreshers: m,
		now:        time.Now,
		logger:     logger,
	}
}

// Valid returns a token that is not expired, refreshing and persisting it
// first if needed. No stored token is apperror.ErrNotFound; an expired token
// that cannot be refreshed is apperror.ErrUnauthorized.
func (s *CredentialService) Valid(ctx context.Context, userID string, platform model.Platform) (*model.SocialToken, error) {
	tok, err := s.tokens.GetToken(ctx, userID, platform)
	if err != nil {
		return nil, err
	}
	if !tok.Expired(s.now()) {
		return tok, nil
	}

	r, ok := s.refreshers[platform]
	if !ok {
		return nil, apperror.Unauthorized(fmt.Sprintf("%s access expired, please reconnect", platform))
	}
	fresh, err := r.Refresh(ctx, tok)
	if err != nil {
		s.logger.Warn("token refresh failed",
			slog.String("userID", userID),
			slog.String("platform", string(platform)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = tok.RefreshToken
	}
	if err := s.tokens.UpsertToken(ctx, fresh); err != nil {
		return nil, fmt.Errorf("storing refreshed %s token: %w", platform, err)
	}

	s.logger.Info("token refreshed",
		slog.String("userID", userID),
		slog.String("platform", string(platform)),
	)
	return fresh, nil
}

// Connected lists the platforms userID has a stored token for.
func (s *CredentialService) Connected(ctx context.Context, userID string) ([]model.Platform, error) {
	toks, err := s.tokens.ListTokens(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing tokens: %w", err)
	}
	out := make([]model.Platform, 0, len(toks))
	for _, t := range toks {
		out = append(out, t.Platform)
	}
	return out, nil
}

func (s *CredentialService) Disconnect(ctx context.Context, userID, rawPlatform string) error {
	platform, err := parsePlatform(rawPlatform)
	if err != nil {
		return err
	}
	if err := s.tokens.DeleteToken(ctx, userID, platform); err != nil {
		return err
	}

	s.logger.Info("platform disconnected",
		slog.String("userID", userID),
		slog.String("platform", string(platform)),
	)
	return nil
}
