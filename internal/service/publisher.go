package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/voicepost/internal/metrics"
	"github.com/sakif/voicepost/internal/model"
	"github.com/sakif/voicepost/internal/repository"
	"github.com/sakif/voicepost/internal/social"
)

// PublishReport summarises one publisher run.
type PublishReport struct {
	Attempted int `json:"attempted"`
	Published int `json:"published"`
	Failed    int `json:"failed"`
}

// Publisher sends every due scheduled post to its platform.
type Publisher struct {
	posts   repository.ScheduledPostRepository
	creds   CredentialSource
	clients map[model.Platform]social.Client
	metrics *metrics.Metrics
	now     func() time.Time
	logger  *slog.Logger
}

func NewPublisher(
	posts repository.ScheduledPostRepository,
	creds CredentialSource,
	clients []social.Client,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Publisher {
	return &Publisher{
		posts:   posts,
		creds:   creds,
		clients: clientsByPlatform(clients),
		metrics: m,
		now:     time.Now,
		logger:  logger,
	}
}

// Run publishes due posts oldest first. A post that fails is left unposted
// with its error recorded, and the run moves on to the next one; it will be
// tried again on the next run. The returned error is non-nil only when the
// due posts could not be loaded or ctx was cancelled.
func (p *Publisher) Run(ctx context.Context) (PublishReport, error) {
	var report PublishReport

	due, err := p.posts.ListDuePosts(ctx, p.now())
	if err != nil {
		return report, fmt.Errorf("publisher: loading due posts: %w", err)
	}
	if len(due) == 0 {
		p.logger.Debug("no scheduled posts due")
		return report, nil
	}

	for i := range due {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		post := &due[i]
		report.Attempted++

		remoteID, err := p.publish(ctx, post)
		if err != nil {
			report.Failed++
			p.metrics.PublishResult(string(post.Platform), "failed")
			p.logger.Error("failed to publish scheduled post",
				slog.String("id", post.ID),
				slog.String("userID", post.UserID),
				slog.String("platform", string(post.Platform)),
				slog.String("error", err.Error()),
			)
			if rerr := p.posts.RecordPublishError(ctx, post.ID, err.Error()); rerr != nil {
				p.logger.Error("failed to record publish error",
					slog.String("id", post.ID),
					slog.String("error", rerr.Error()),
				)
			}
			continue
		}

		if err := p.posts.MarkPosted(ctx, post.ID, remoteID); err != nil {
			// The post is live but still looks due; next run will post it again.
			report.Failed++
			p.metrics.PublishResult(string(post.Platform), "unrecorded")
			p.logger.Error("published post could not be marked as posted",
				slog.String("id", post.ID),
				slog.String("platformPostID", remoteID),
				slog.String("error", err.Error()),
			)
			continue
		}

		report.Published++
		p.metrics.PublishResult(string(post.Platform), "published")
		p.logger.Info("scheduled post published",
			slog.String("id", post.ID),
			slog.String("platform", string(post.Platform)),
			slog.String("platformPostID", remoteID),
		)
	}

	p.logger.Info("publisher run finished",
		slog.Int("attempted", report.Attempted),
		slog.Int("published", report.Published),
		slog.Int("failed", report.Failed),
	)
	return report, nil
}

func (p *Publisher) publish(ctx context.Context, post *model.ScheduledPost) (string, error) {
	client, ok := p.clients[post.Platform]
	if !ok {
		return "", fmt.Errorf("no client for platform %q", post.Platform)
	}
	tok, err := p.creds.Valid(ctx, post.UserID, post.Platform)
	if err != nil {
		return "", fmt.Errorf("loading %s credentials: %w", post.Platform, err)
	}
	return client.Publish(ctx, tok.AccessToken, post.Content)
}
