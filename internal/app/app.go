// Package app builds the object graph shared by the HTTP server and the
// trigger CLI: storage, platform connectors and clients, and services.
package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sakif/voicepost/internal/auth"
	"github.com/sakif/voicepost/internal/config"
	"github.com/sakif/voicepost/internal/email"
	"github.com/sakif/voicepost/internal/llm"
	"github.com/sakif/voicepost/internal/metrics"
	sqliteRepo "github.com/sakif/voicepost/internal/repository/sqlite"
	"github.com/sakif/voicepost/internal/service"
	"github.com/sakif/voicepost/internal/social"
)

// App owns the database; Close releases it.
type App struct {
	Config  config.Config
	Logger  *slog.Logger
	DB      *sqliteRepo.DB
	Metrics *metrics.Metrics
	Tokens  *auth.TokenService

	Auth        *service.AuthService
	SavedPosts  *service.SavedPostService
	Schedule    *service.ScheduleService
	Credentials *service.CredentialService
	Connect     *service.ConnectService
	Publisher   *service.Publisher
	Ingester    *service.Ingester
	Analytics   *service.AnalyticsService
	Variations  *service.VariationService
	Transcribe  *service.TranscribeService
	Share       *service.ShareService
}

func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("app: creating database directory: %w", err)
		}
	}
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("app: opening database: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	provider, err := llm.NewProvider(llm.Config{
		Provider: cfg.LLMProvider,
		Model:    cfg.LLMModel,
		APIKey:   cfg.LLMAPIKey,
		APIURL:   cfg.LLMAPIURL,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("app: %w", err)
	}
	provider = llm.NewRetryingProvider(provider, llm.DefaultRetryConfig, logger)

	var (
		connectors []service.Connector
		refreshers []service.TokenRefresher
	)
	if cfg.TwitterEnabled() {
		c := social.NewTwitterConnector(cfg.TwitterClientID, cfg.TwitterClientSecret,
			cfg.BaseURL+"/auth/twitter/callback", tokens, db, logger)
		connectors = append(connectors, c)
		refreshers = append(refreshers, c)
	} else {
		logger.Warn("Twitter OAuth not configured, connecting Twitter is disabled")
	}
	if cfg.LinkedInEnabled() {
		c := social.NewLinkedInConnector(cfg.LinkedInClientID, cfg.LinkedInClientSecret,
			cfg.BaseURL+"/auth/linkedin/callback", tokens, db, logger)
		connectors = append(connectors, c)
		refreshers = append(refreshers, c)
	} else {
		logger.Warn("LinkedIn OAuth not configured, connecting LinkedIn is disabled")
	}

	clients := []social.Client{
		social.NewTwitterClient("", nil),
		social.NewLinkedInClient("", nil),
	}

	creds := service.NewCredentialService(db, logger, refreshers...)
	stt := llm.NewTranscriber(cfg.TranscribeAPIURL, cfg.TranscribeAPIKey, cfg.TranscribeModel)
	mailer := email.NewSender(email.Config{APIKey: cfg.ResendAPIKey, From: cfg.EmailFrom})
	if !mailer.Enabled() {
		logger.Warn("RESEND_API_KEY not set, sharing by email is disabled")
	}

	return &App{
		Config:  cfg,
		Logger:  logger,
		DB:      db,
		Metrics: m,
		Tokens:  tokens,

		Auth:        service.NewAuthService(db, tokens, auth.NewPasswordService(), logger),
		SavedPosts:  service.NewSavedPostService(db, logger),
		Schedule:    service.NewScheduleService(db, logger),
		Credentials: creds,
		Connect:     service.NewConnectService(cfg.OAuthSuccessPath, connectors...),
		Publisher:   service.NewPublisher(db, creds, clients, m, logger),
		Ingester:    service.NewIngester(db, creds, clients, db, m, logger),
		Analytics:   service.NewAnalyticsService(db),
		Variations:  service.NewVariationService(provider, m, logger),
		Transcribe:  service.NewTranscribeService(stt, logger),
		Share:       service.NewShareService(mailer, logger),
	}, nil
}

func (a *App) Close() error {
	return a.DB.Close()
}
