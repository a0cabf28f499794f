package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/sakif/voicepost/internal/apperror"
	"github.com/sakif/voicepost/internal/llm"
	"github.com/sakif/voicepost/internal/metrics"
)

var (
	ErrEmptyInput         = errors.New("empty input")
	ErrInputTooLong       = errors.New("input too long")
	ErrNoVariationsParsed = errors.New("no variations parsed from model output")
)

const (
	// MaxInputTokens caps a request, with tokens estimated as bytes/4, so
	// anything over 8000 bytes is refused.
	MaxInputTokens = 2000
	VariationCount = 3

	DefaultPersonality = "balanced"
)

var personalityPrompts = map[string]string{
	"direct": "You are a social media writer with a direct, no-nonsense voice. " +
		"Rewrite the user's thought as short, punchy posts. Lead with the point, " +
		"cut filler words and avoid hashtags unless they add meaning.",
	"friendly": "You are a warm, approachable social media writer. Rewrite the " +
		"user's thought as conversational posts that sound like a friend talking. " +
		"Keep it light and personal.",
	"inspiring": "You are an uplifting social media writer. Rewrite the user's " +
		"thought as motivating posts that leave readers feeling encouraged. " +
		"Be sincere rather than cheesy.",
	DefaultPersonality: "You are a thoughtful social media writer. Rewrite the " +
		"user's thought as clear, professional posts with a natural tone, " +
		"suitable for both Twitter and LinkedIn.",
}

// SystemPrompt returns the prompt for personality, falling back to the
// balanced one for unknown names.
func SystemPrompt(personality string) string {
	if p, ok := personalityPrompts[strings.ToLower(strings.TrimSpace(personality))]; ok {
		return p
	}
	return personalityPrompts[DefaultPersonality]
}

func variationPrompt(text string) string {
	return fmt.Sprintf("Write %d different variations of the following for a social media post. "+
		"Number them 1. 2. and 3., one per line, with no other text.\n\n%s", VariationCount, text)
}

var numberedLine = regexp.MustCompile(`^\d+\.\s*`)

// VariationService rewrites a transcript into short social posts through
// a language model.
type VariationService struct {
	provider llm.Provider
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewVariationService(provider llm.Provider, m *metrics.Metrics, logger *slog.Logger) *VariationService {
	return &VariationService{
		provider: provider,
		metrics:  m,
		logger:   logger,
	}
}

// Generate returns up to three rewrites of text in the given personality.
func (s *VariationService) Generate(ctx context.Context, text, personality string) ([]string, error) {
	text = strings.TrimSpace(text)
	if err := checkInput(text); err != nil {
		return nil, err
	}

	label := strings.ToLower(strings.TrimSpace(personality))
	if _, ok := personalityPrompts[label]; !ok {
		label = DefaultPersonality
	}

	raw, err := s.provider.Complete(ctx, SystemPrompt(label), []llm.Message{
		{Role: "user", Content: variationPrompt(text)},
	})
	if err != nil {
		s.metrics.VariationResult(label, "upstream_error")
		return nil, s.upstreamError(err)
	}

	variations := parseVariations(raw)
	if len(variations) == 0 {
		s.metrics.VariationResult(label, "unparsed")
		s.logger.Warn("model output had no numbered lines", slog.Int("length", len(raw)))
		return nil, apperror.Upstream(ErrNoVariationsParsed, "could not read variations from the model response")
	}

	s.metrics.VariationResult(label, "ok")
	return variations, nil
}

// Complete forwards a free-form chat request with the same size guard and
// retry behaviour as Generate.
func (s *VariationService) Complete(ctx context.Context, system string, messages []llm.Message) (string, error) {
	if len(messages) == 0 {
		return "", apperror.Wrap(apperror.ErrValidation, ErrEmptyInput, "messages are required")
	}
	var all strings.Builder
	all.WriteString(system)
	for _, m := range messages {
		all.WriteString(m.Content)
	}
	if err := checkInput(strings.TrimSpace(all.String())); err != nil {
		return "", err
	}

	out, err := s.provider.Complete(ctx, system, messages)
	if err != nil {
		return "", s.upstreamError(err)
	}
	return out, nil
}

func (s *VariationService) upstreamError(err error) error {
	s.logger.Error("language model request failed", slog.String("error", err.Error()))
	if errors.Is(err, llm.ErrMaxRetriesExceeded) {
		return apperror.Upstream(err, "the writing assistant is busy, please try again in a minute")
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return apperror.Upstream(err, "the writing assistant failed to respond")
}

func checkInput(text string) error {
	if text == "" {
		return apperror.Wrap(apperror.ErrValidation, ErrEmptyInput, "text is required")
	}
	if len(text) > MaxInputTokens*4 {
		return apperror.Wrap(apperror.ErrValidation, ErrInputTooLong,
			"message is too long, please record a shorter message")
	}
	return nil
}

func parseVariations(raw string) []string {
	out := make([]string, 0, VariationCount)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if !numberedLine.MatchString(line) {
			continue
		}
		v := strings.TrimSpace(numberedLine.ReplaceAllString(line, ""))
		if v == "" {
			continue
		}
		out = append(out, v)
		if len(out) == VariationCount {
			break
		}
	}
	return out
}
