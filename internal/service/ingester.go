package service

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/voicepost/internal/metrics"
	"github.com/sakif/voicepost/internal/model"
	"github.com/sakif/voicepost/internal/repository"
	"github.com/sakif/voicepost/internal/social"
)

// IngestReport summarises one ingester run.
type IngestReport struct {
	Users   int `json:"users"`
	Fetched int `json:"fetched"`
	Stored  int `json:"stored"`
	Failed  int `json:"failed"`
}

func (r *IngestReport) add(o IngestReport) {
	r.Users += o.Users
	r.Fetched += o.Fetched
	r.Stored += o.Stored
	r.Failed += o.Failed
}

// Ingester pulls engagement numbers for users' recent posts and stores
// them with a topic category.
type Ingester struct {
	tokens  repository.TokenRepository
	creds   CredentialSource
	clients map[model.Platform]social.Client
	store   repository.MetricRepository
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewIngester(
	tokens repository.TokenRepository,
	creds CredentialSource,
	clients []social.Client,
	store repository.MetricRepository,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Ingester {
	return &Ingester{
		tokens:  tokens,
		creds:   creds,
		clients: clientsByPlatform(clients),
		store:   store,
		metrics: m,
		logger:  logger,
	}
}

type platformPosts struct {
	platform model.Platform
	posts    []social.RemotePost
}

// Run refreshes metrics for one user. Platforms are fetched concurrently;
// a platform that cannot be read contributes no posts. Posts are then
// stored one by one, and a post that fails to store is skipped. Running
// twice with the same remote data leaves the same rows behind.
func (in *Ingester) Run(ctx context.Context, userID string) (IngestReport, error) {
	report := IngestReport{Users: 1}

	toks, err := in.tokens.ListTokens(ctx, userID)
	if err != nil {
		return report, fmt.Errorf("ingester: listing tokens: %w", err)
	}

	// Each goroutine writes only its own slot.
	results := make([]platformPosts, len(toks))
	var g errgroup.Group
	for i, tok := range toks {
		results[i].platform = tok.Platform
		client, ok := in.clients[tok.Platform]
		if !ok {
			continue
		}
		g.Go(func() error {
			results[i].posts = in.fetch(ctx, userID, client)
			return nil
		})
	}
	// fetch logs and swallows its own errors, so every goroutine returns nil.
	_ = g.Wait()

	for _, res := range results {
		report.Fetched += len(res.posts)
		for _, rp := range res.posts {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			if err := in.storePost(ctx, userID, res.platform, rp); err != nil {
				report.Failed++
				in.metrics.IngestFailed(string(res.platform), "store")
				in.logger.Error("failed to store post metrics",
					slog.String("userID", userID),
					slog.String("platform", string(res.platform)),
					slog.String("platformPostID", rp.ID),
					slog.String("error", err.Error()),
				)
				continue
			}
			report.Stored++
			in.metrics.PostIngested(string(res.platform))
		}
	}

	in.logger.Info("metrics ingested",
		slog.String("userID", userID),
		slog.Int("fetched", report.Fetched),
		slog.Int("stored", report.Stored),
		slog.Int("failed", report.Failed),
	)
	return report, nil
}

// RunAll runs Run for every user holding at least one platform token. A
// user whose run fails is logged and skipped.
func (in *Ingester) RunAll(ctx context.Context) (IngestReport, error) {
	var total IngestReport

	users, err := in.tokens.ListUsersWithTokens(ctx)
	if err != nil {
		return total, fmt.Errorf("ingester: listing users: %w", err)
	}
	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		r, err := in.Run(ctx, userID)
		total.add(r)
		if err != nil {
			in.logger.Error("ingest run failed",
				slog.String("userID", userID),
				slog.String("error", err.Error()),
			)
		}
	}
	return total, nil
}

func (in *Ingester) fetch(ctx context.Context, userID string, client social.Client) []social.RemotePost {
	platform := client.Platform()

	tok, err := in.creds.Valid(ctx, userID, platform)
	if err != nil {
		in.metrics.IngestFailed(string(platform), "credentials")
		in.logger.Warn("skipping platform without usable credentials",
			slog.String("userID", userID),
			slog.String("platform", string(platform)),
			slog.String("error", err.Error()),
		)
		return nil
	}

	posts, err := client.RecentPosts(ctx, tok.AccessToken)
	if err != nil {
		in.metrics.IngestFailed(string(platform), "fetch")
		in.logger.Warn("failed to fetch recent posts",
			slog.String("userID", userID),
			slog.String("platform", string(platform)),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return posts
}

func (in *Ingester) storePost(ctx context.Context, userID string, platform model.Platform, rp social.RemotePost) error {
	metric := &model.PostMetric{
		UserID:         userID,
		Platform:       platform,
		PlatformPostID: rp.ID,
		PostContent:    rp.Text,
		Engagement:     rp.Engagement,
	}
	if err := in.store.UpsertMetric(ctx, metric); err != nil {
		return err
	}
	return in.store.UpsertCategory(ctx, &model.CategorizedPost{
		PostMetricsID: metric.ID,
		Category:      Categorize(rp.Text),
	})
}
