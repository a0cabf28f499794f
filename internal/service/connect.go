package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/sakif/voicepost/internal/apperror"
	"github.com/sakif/voicepost/internal/model"
	"github.com/sakif/voicepost/internal/social"
)

// ErrPlatformDisabled means the platform is valid but has no OAuth client
// configured on this deployment.
var ErrPlatformDisabled = errors.New("platform not configured")

// ConnectService routes connect and callback requests to the right
// platform connector.
type ConnectService struct {
	connectors  map[model.Platform]Connector
	defaultPath string
}

func NewConnectService(defaultPath string, connectors ...Connector) *ConnectService {
	m := make(map[model.Platform]Connector, len(connectors))
	for _, c := range connectors {
		m[c.Platform()] = c
	}
	if defaultPath == "" {
		defaultPath = "/"
	}
	return &ConnectService{connectors: m, defaultPath: defaultPath}
}

// Begin starts the connect flow. returnTo must be a local path; anything
// else is replaced with the default landing page.
func (s *ConnectService) Begin(userID, rawPlatform, returnTo string) (social.Authorization, error) {
	c, err := s.connector(rawPlatform)
	if err != nil {
		return social.Authorization{}, err
	}
	authz, err := c.Initiate(userID, s.safeReturnPath(returnTo))
	if err != nil {
		return social.Authorization{}, fmt.Errorf("starting %s connect: %w", c.Platform(), err)
	}
	return authz, nil
}

// Complete hands the provider's callback to the platform's connector.
func (s *ConnectService) Complete(ctx context.Context, rawPlatform string, cb social.Callback) (social.CallbackResult, error) {
	c, err := s.connector(rawPlatform)
	if err != nil {
		return social.CallbackResult{}, err
	}
	res, err := c.HandleCallback(ctx, cb)
	if err != nil {
		return social.CallbackResult{}, err
	}
	res.ReturnTo = s.safeReturnPath(res.ReturnTo)
	return res, nil
}

// Enabled lists the platforms that have a connector.
func (s *ConnectService) Enabled() []model.Platform {
	out := make([]model.Platform, 0, len(s.connectors))
	for _, p := range model.Platforms {
		if _, ok := s.connectors[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

func (s *ConnectService) connector(rawPlatform string) (Connector, error) {
	p, err := parsePlatform(rawPlatform)
	if err != nil {
		return nil, err
	}
	c, ok := s.connectors[p]
	if !ok {
		return nil, apperror.Wrap(apperror.ErrNotFound, ErrPlatformDisabled,
			fmt.Sprintf("%s is not configured", p))
	}
	return c, nil
}

func (s *ConnectService) safeReturnPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.Contains(p, `\`) {
		return s.defaultPath
	}
	u, err := url.Parse(p)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return s.defaultPath
	}
	return p
}
