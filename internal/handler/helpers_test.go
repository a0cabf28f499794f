package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/voicepost/internal/auth"
	"github.com/sakif/voicepost/internal/handler"
	"github.com/sakif/voicepost/internal/llm"
	"github.com/sakif/voicepost/internal/metrics"
	"github.com/sakif/voicepost/internal/model"
	sqliteRepo "github.com/sakif/voicepost/internal/repository/sqlite"
	"github.com/sakif/voicepost/internal/service"
	"github.com/sakif/voicepost/internal/social"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

type stubProvider struct {
	reply   string
	err     error
	system  string
	lastMsg []llm.Message
}

func (p *stubProvider) Complete(_ context.Context, system string, messages []llm.Message) (string, error) {
	p.system = system
	p.lastMsg = messages
	return p.reply, p.err
}

type stubMailer struct {
	enabled bool
	to      string
	html    string
}

func (m *stubMailer) Enabled() bool { return m.enabled }

func (m *stubMailer) SendMail(_ context.Context, to, _, html, _ string) (string, error) {
	m.to = to
	m.html = html
	return "msg_1", nil
}

type stubSTT struct {
	filename string
	audio    string
	text     string
}

func (s *stubSTT) Transcribe(_ context.Context, filename string, audio io.Reader) (string, error) {
	b, err := io.ReadAll(audio)
	if err != nil {
		return "", err
	}
	s.filename = filename
	s.audio = string(b)
	return s.text, nil
}

// stubConnector stands in for the Twitter OAuth flow.
type stubConnector struct {
	gotNonce    string
	gotVerifier string
	returnTo    string
	callbackErr error
}

func (c *stubConnector) Platform() model.Platform { return model.PlatformTwitter }

func (c *stubConnector) Refresh(context.Context, *model.SocialToken) (*model.SocialToken, error) {
	return nil, errors.New("refresh not supported")
}

func (c *stubConnector) Initiate(userID, returnTo string) (social.Authorization, error) {
	return social.Authorization{
		URL:      "https://twitter.example/authorize?state=" + userID,
		Nonce:    "nonce-abc",
		Verifier: "verifier-123",
	}, nil
}

func (c *stubConnector) HandleCallback(_ context.Context, cb social.Callback) (social.CallbackResult, error) {
	c.gotNonce = cb.Nonce
	c.gotVerifier = cb.Verifier
	if c.callbackErr != nil {
		return social.CallbackResult{}, c.callbackErr
	}
	return social.CallbackResult{Success: true, ReturnTo: c.returnTo}, nil
}

// testEnv wires real services over an in-memory database.
type testEnv struct {
	db        *sqliteRepo.DB
	tokens    *auth.TokenService
	provider  *stubProvider
	mailer    *stubMailer
	stt       *stubSTT
	connector *stubConnector

	auth      *handler.AuthHandler
	connect   *handler.ConnectHandler
	saved     *handler.SavedPostHandler
	scheduled *handler.ScheduledPostHandler
	assist    *handler.AssistHandler
	jobs      *handler.JobsHandler

	authService *service.AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqliteRepo.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("handler-test-secret-0123456789")
	require.NoError(t, err)

	m := metrics.New(prometheus.NewRegistry())
	env := &testEnv{
		db:        db,
		tokens:    tokens,
		provider:  &stubProvider{},
		mailer:    &stubMailer{enabled: true},
		stt:       &stubSTT{text: "  hello from a voice note \n"},
		connector: &stubConnector{returnTo: "/drafts"},
	}

	env.authService = service.NewAuthService(db, tokens, auth.NewPasswordServiceWithCost(bcrypt.MinCost), testLogger)
	creds := service.NewCredentialService(db, testLogger, env.connector)
	connect := service.NewConnectService("/settings/connections", env.connector)
	clients := []social.Client{social.NewTwitterClient("http://127.0.0.1:1", nil)}

	env.auth = handler.NewAuthHandler(env.authService, false, testLogger)
	env.connect = handler.NewConnectHandler(connect, creds, "/settings/connections", false, testLogger)
	env.saved = handler.NewSavedPostHandler(service.NewSavedPostService(db, testLogger), testLogger)
	env.scheduled = handler.NewScheduledPostHandler(service.NewScheduleService(db, testLogger), testLogger)
	env.assist = handler.NewAssistHandler(
		service.NewVariationService(env.provider, m, testLogger),
		service.NewTranscribeService(env.stt, testLogger),
		service.NewShareService(env.mailer, testLogger),
		testLogger,
	)
	env.jobs = handler.NewJobsHandler(
		service.NewPublisher(db, creds, clients, m, testLogger),
		service.NewIngester(db, creds, clients, db, m, testLogger),
		service.NewAnalyticsService(db),
		testLogger,
	)
	return env
}

// user registers an account and returns its id.
func (e *testEnv) user(t *testing.T, email string) string {
	t.Helper()
	res, err := e.authService.Register(context.Background(), email, "correct horse battery")
	require.NoError(t, err)
	return res.User.ID
}

func asUser(req *http.Request, userID string) *http.Request {
	return req.WithContext(auth.WithUserID(req.Context(), userID))
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	var resp handler.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp
}
