// Package auth issues and checks the signed tokens voicepost hands to browsers:
// the session cookie set at login and the `state` parameter carried through
// a provider's OAuth consent screen.
//
// SESSION FLOW:
//  1. User posts email + password to /auth/login
//  2. Server verifies the bcrypt hash and issues a session JWT
//  3. The JWT is stored in the HttpOnly "token" cookie
//  4. RequireAuth reads the cookie on /api/* routes and puts the userID
//     in the request context
//
// Both token kinds are HS256 JWTs signed with the same secret. They are told
// apart by their audience claim, so a leaked OAuth state can never be
// replayed as a session cookie (and vice versa).
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer          = "voicepost"
	sessionAudience = "session"

	// SessionTTL is how long a login lasts. The handler uses it for the
	// cookie MaxAge as well, so cookie and token expire together.
	SessionTTL = 24 * time.Hour
)

// TokenService signs and verifies session and OAuth-state tokens.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

// NewTokenService creates a TokenService with the given secret.
// Generate one with: openssl rand -hex 32
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret), now: time.Now}, nil
}

// Generate issues a session token for userID valid for SessionTTL.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.GenerateWithDuration(userID, SessionTTL)
}

// GenerateWithDuration issues a session token with a custom lifetime.
// Tests use a negative duration to get an already-expired token.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	now := s.now()
	c := jwt.RegisteredClaims{
		Subject:   userID,
		Audience:  jwt.ClaimStrings{sessionAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(d)),
		Issuer:    issuer,
	}
	return s.sign(c)
}

// Validate verifies a session token and returns the userID in its subject.
//
// The parser rejects anything that is not HS256 (blocks the "alg: none"
// trick), expired, issued by another app, or minted for another audience.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	var c jwt.RegisteredClaims
	if err := s.parse(tokenStr, &c, sessionAudience); err != nil {
		return "", err
	}
	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}
	return c.Subject, nil
}

func (s *TokenService) sign(c jwt.Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

func (s *TokenService) parse(tokenStr string, c jwt.Claims, audience string) error {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		c,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return fmt.Errorf("auth: token expired: %w", err)
		}
		return fmt.Errorf("auth: invalid token: %w", err)
	}
	if !token.Valid {
		return fmt.Errorf("auth: invalid token claims")
	}
	return nil
}
