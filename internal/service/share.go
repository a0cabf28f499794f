package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/sakif/voicepost/internal/apperror"
)

var ErrEmailDisabled = errors.New("email delivery is not configured")

const shareSubject = "A post draft was shared with you"

// ShareService emails a post draft to someone.
type ShareService struct {
	mailer Mailer
	logger *slog.Logger
}

func NewShareService(mailer Mailer, logger *slog.Logger) *ShareService {
	return &ShareService{mailer: mailer, logger: logger}
}

func (s *ShareService) Email(ctx context.Context, userID, to, content string) error {
	if s.mailer == nil || !s.mailer.Enabled() {
		return apperror.Upstream(ErrEmailDisabled, "email sharing is not available")
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(to))
	if err != nil {
		return apperror.ValidationFailed("to", "recipient is not a valid email address")
	}
	content, err = validContent(content)
	if err != nil {
		return err
	}

	body := "<p>" + strings.ReplaceAll(html.EscapeString(content), "\n", "<br>") + "</p>"
	id, err := s.mailer.SendMail(ctx, addr.Address, shareSubject, body, content)
	if err != nil {
		s.logger.Error("failed to send share email",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return apperror.Upstream(fmt.Errorf("sending share email: %w", err), "could not send the email")
	}

	s.logger.Info("post shared by email",
		slog.String("userID", userID),
		slog.String("messageID", id),
	)
	return nil
}
