package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// ErrMaxRetriesExceeded is returned once every retry of a rate-limited
// call has also been rate limited.
var ErrMaxRetriesExceeded = errors.New("llm: max retries exceeded")

// RetryConfig controls RetryingProvider. Delays double from BaseDelay up
// to MaxDelay, and each one is lengthened by a random amount of at most
// Jitter. Jitter never shortens a delay.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Jitter     time.Duration
}

// DefaultRetryConfig waits 1s, 2s, then 4s between attempts.
var DefaultRetryConfig = RetryConfig{
	MaxRetries: 3,
	BaseDelay:  time.Second,
	MaxDelay:   4 * time.Second,
	Jitter:     time.Second,
}

// RetryingProvider retries a Provider on rate limits and nothing else.
type RetryingProvider struct {
	next     Provider
	executor failsafe.Executor[string]
}

var _ Provider = (*RetryingProvider)(nil)

func NewRetryingProvider(next Provider, cfg RetryConfig, logger *slog.Logger) *RetryingProvider {
	builder := retrypolicy.NewBuilder[string]().
		HandleIf(func(_ string, err error) bool {
			var rl *RateLimitError
			return errors.As(err, &rl)
		}).
		WithMaxRetries(cfg.MaxRetries).
		ReturnLastFailure().
		OnRetry(func(e failsafe.ExecutionEvent[string]) {
			logger.Warn("llm rate limited, retrying",
				slog.Int("attempt", e.Attempts()),
				slog.Any("error", e.LastError()),
			)
		})
	if cfg.BaseDelay > 0 {
		builder = builder.WithDelayFunc(func(exec failsafe.ExecutionAttempt[string]) time.Duration {
			return cfg.delay(exec.Retries(), rand.Float64)
		})
	}

	return &RetryingProvider{
		next:     next,
		executor: failsafe.With[string](builder.Build()),
	}
}

func (p *RetryingProvider) Complete(ctx context.Context, system string, messages []Message) (string, error) {
	out, err := p.executor.WithContext(ctx).Get(func() (string, error) {
		return p.next.Complete(ctx, system, messages)
	})
	if err != nil {
		var rl *RateLimitError
		if errors.As(err, &rl) {
			return "", fmt.Errorf("%w: %w", ErrMaxRetriesExceeded, err)
		}
		return "", err
	}
	return out, nil
}

// delay is the wait before retry number retries+1: BaseDelay doubled per
// earlier retry, capped at MaxDelay, plus rnd()*Jitter.
func (c RetryConfig) delay(retries int, rnd func() float64) time.Duration {
	d := c.BaseDelay
	for i := 0; i < retries && d < c.MaxDelay; i++ {
		d *= 2
	}
	if c.MaxDelay > 0 {
		d = min(d, max(c.MaxDelay, c.BaseDelay))
	}
	if c.Jitter > 0 {
		d += time.Duration(rnd() * float64(c.Jitter))
	}
	return d
}
