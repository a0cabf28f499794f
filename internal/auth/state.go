package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

const (
	stateAudience = "oauth-state"

	// StateTTL bounds how long a user may sit on a provider's consent
	// screen before the callback is refused.
	StateTTL = 10 * time.Minute
)

// State is what voicepost needs back from the provider after consent:
// who started the flow and where to send them afterwards.
type State struct {
	UserID   string `json:"uid"`
	Platform string `json:"platform"`
	ReturnTo string `json:"return_to,omitempty"`
	Nonce    string `json:"-"`
}

type stateClaims struct {
	Platform string `json:"platform"`
	ReturnTo string `json:"return_to,omitempty"`
	jwt.RegisteredClaims
}

// IssueState signs st into an opaque string suitable for the OAuth `state`
// query parameter. st.Nonce goes in the jti claim; when empty a fresh one
// is generated so two flows started in the same second never produce the
// same value.
func (s *TokenService) IssueState(st State) (string, error) {
	if st.UserID == "" {
		return "", fmt.Errorf("auth: state requires a user id")
	}
	if st.Nonce == "" {
		st.Nonce = xid.New().String()
	}
	now := s.now()
	c := stateClaims{
		Platform: st.Platform,
		ReturnTo: st.ReturnTo,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        st.Nonce,
			Subject:   st.UserID,
			Audience:  jwt.ClaimStrings{stateAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(StateTTL)),
			Issuer:    issuer,
		},
	}
	return s.sign(c)
}

// ParseState verifies a state string produced by IssueState.
// Tampered, expired and session tokens are all rejected.
func (s *TokenService) ParseState(raw string) (State, error) {
	var c stateClaims
	if err := s.parse(raw, &c, stateAudience); err != nil {
		return State{}, err
	}
	if c.Subject == "" {
		return State{}, fmt.Errorf("auth: state has no subject")
	}
	return State{
		UserID:   c.Subject,
		Platform: c.Platform,
		ReturnTo: c.ReturnTo,
		Nonce:    c.ID,
	}, nil
}
