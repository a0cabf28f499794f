package social

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rs/xid"
	"golang.org/x/oauth2"

	"github.com/sakif/voicepost/internal/apperror"
	"github.com/sakif/voicepost/internal/auth"
	"github.com/sakif/voicepost/internal/model"
)

// StateCodec signs and verifies the OAuth `state` parameter.
// *auth.TokenService implements it.
type StateCodec interface {
	IssueState(st auth.State) (string, error)
	ParseState(raw string) (auth.State, error)
}

// TokenSaver persists a platform credential. The sqlite repository
// implements it.
type TokenSaver interface {
	UpsertToken(ctx context.Context, token *model.SocialToken) error
}

// Authorization is the result of Initiate: where to send the browser, the
// nonce that ties the callback to this browser and, for PKCE platforms, the
// verifier the callback will need.
type Authorization struct {
	URL      string
	Nonce    string
	Verifier string
}

// Callback carries what the provider sent back plus the values the
// handler kept in cookies since Initiate.
type Callback struct {
	Code     string
	State    string
	Nonce    string
	Verifier string
}

// CallbackResult is what a successful callback reports back to the browser.
type CallbackResult struct {
	Success  bool   `json:"success"`
	ReturnTo string `json:"returnTo"`
}

// Connector runs the authorization-code flow for a single platform.
type Connector struct {
	platform   model.Platform
	config     *oauth2.Config
	pkce       bool
	states     StateCodec
	tokens     TokenSaver
	httpClient *http.Client
	logger     *slog.Logger
}

// ConnectorOption customises a Connector.
type ConnectorOption func(*Connector)

// WithEndpoint overrides the provider's authorize and token URLs.
func WithEndpoint(ep oauth2.Endpoint) ConnectorOption {
	return func(c *Connector) { c.config.Endpoint = ep }
}

// WithHTTPClient sets the client used for token exchange and refresh.
func WithHTTPClient(client *http.Client) ConnectorOption {
	return func(c *Connector) { c.httpClient = client }
}

func newConnector(platform model.Platform, cfg *oauth2.Config, pkce bool, states StateCodec, tokens TokenSaver, logger *slog.Logger, opts []ConnectorOption) *Connector {
	c := &Connector{
		platform: platform,
		config:   cfg,
		pkce:     pkce,
		states:   states,
		tokens:   tokens,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Platform reports which platform this connector serves.
func (c *Connector) Platform() model.Platform {
	return c.platform
}

// Initiate builds the provider's consent URL for userID. The state embeds
// the user id, returnTo and a nonce, signed so the browser can neither read
// nor forge it. The returned Nonce, and on PKCE platforms the Verifier,
// must be kept in the starting browser (the handler puts them in HttpOnly
// cookies) and handed back to HandleCallback.
func (c *Connector) Initiate(userID, returnTo string) (Authorization, error) {
	nonce := xid.New().String()
	state, err := c.states.IssueState(auth.State{
		UserID:   userID,
		Platform: string(c.platform),
		ReturnTo: returnTo,
		Nonce:    nonce,
	})
	if err != nil {
		return Authorization{}, fmt.Errorf("%s: issuing state: %w", c.platform, err)
	}

	if !c.pkce {
		return Authorization{URL: c.config.AuthCodeURL(state), Nonce: nonce}, nil
	}

	verifier := oauth2.GenerateVerifier()
	return Authorization{
		URL:      c.config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)),
		Nonce:    nonce,
		Verifier: verifier,
	}, nil
}

// HandleCallback completes the flow: it checks state and that cb.Nonce
// matches it, exchanges the code for a token and stores the token for the
// user named in state, replacing any previous one. A failed exchange is
// not retried; the user has to start over.
func (c *Connector) HandleCallback(ctx context.Context, cb Callback) (CallbackResult, error) {
	st, err := c.states.ParseState(cb.State)
	if err != nil {
		return CallbackResult{}, apperror.Wrap(apperror.ErrValidation,
			fmt.Errorf("%w: %v", ErrInvalidState, err), "invalid or expired OAuth state")
	}
	if st.Platform != string(c.platform) {
		return CallbackResult{}, apperror.Wrap(apperror.ErrValidation,
			fmt.Errorf("%w: issued for %q", ErrInvalidState, st.Platform), "invalid or expired OAuth state")
	}
	if cb.Nonce == "" || subtle.ConstantTimeCompare([]byte(cb.Nonce), []byte(st.Nonce)) != 1 {
		return CallbackResult{}, apperror.Wrap(apperror.ErrValidation,
			fmt.Errorf("%w: not started in this browser", ErrInvalidState),
			"connection attempt was not started here, please try again")
	}
	if cb.Code == "" {
		return CallbackResult{}, apperror.ValidationFailed("code", "missing authorization code")
	}

	var opts []oauth2.AuthCodeOption
	if c.pkce {
		if cb.Verifier == "" {
			return CallbackResult{}, apperror.Wrap(apperror.ErrValidation, ErrMissingVerifier,
				"connection attempt expired, please try again")
		}
		opts = append(opts, oauth2.VerifierOption(cb.Verifier))
	}

	tok, err := c.config.Exchange(c.context(ctx), cb.Code, opts...)
	if err != nil {
		return CallbackResult{}, c.exchangeError(err)
	}

	if err := c.tokens.UpsertToken(ctx, c.toModel(st.UserID, tok)); err != nil {
		return CallbackResult{}, fmt.Errorf("%s: storing token: %w", c.platform, err)
	}

	c.logger.Info("platform connected",
		slog.String("userID", st.UserID),
		slog.String("platform", string(c.platform)),
	)
	return CallbackResult{Success: true, ReturnTo: st.ReturnTo}, nil
}

// Refresh trades the stored refresh token for a fresh access token.
// The caller is responsible for persisting the result.
func (c *Connector) Refresh(ctx context.Context, current *model.SocialToken) (*model.SocialToken, error) {
	if current.RefreshToken == "" {
		return nil, apperror.Unauthorized(fmt.Sprintf("%s access expired, please reconnect", c.platform))
	}

	// No access token means the source has to hit the token endpoint.
	src := c.config.TokenSource(c.context(ctx), &oauth2.Token{RefreshToken: current.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, c.exchangeError(err)
	}
	return c.toModel(current.UserID, tok), nil
}

func (c *Connector) context(ctx context.Context) context.Context {
	if c.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func (c *Connector) exchangeError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		texErr := &TokenExchangeError{Platform: c.platform, StatusCode: status, Body: string(re.Body)}
		return apperror.Upstream(texErr, fmt.Sprintf("%s rejected the authorization", c.platform))
	}
	return apperror.Upstream(err, fmt.Sprintf("could not reach %s", c.platform))
}

func (c *Connector) toModel(userID string, tok *oauth2.Token) *model.SocialToken {
	return &model.SocialToken{
		UserID:       userID,
		Platform:     c.platform,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.Type(),
		ExpiresAt:    tok.Expiry,
	}
}
