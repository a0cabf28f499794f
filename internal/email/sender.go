// Package email delivers outgoing mail through the Resend HTTP API.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultAPIURL = "https://api.resend.com"

type Config struct {
	APIKey string
	// From is the full sender header, e.g. "VoicePost <noreply@voicepost.app>".
	From   string
	APIURL string
}

type Sender struct {
	config Config
	client *http.Client
}

func NewSender(config Config) *Sender {
	config.APIURL = strings.TrimRight(config.APIURL, "/")
	if config.APIURL == "" {
		config.APIURL = defaultAPIURL
	}
	return &Sender{
		config: config,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Enabled reports whether an API key is configured.
func (s *Sender) Enabled() bool {
	return s.config.APIKey != ""
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text,omitempty"`
}

// SendMail sends one message and returns the provider's message id.
func (s *Sender) SendMail(ctx context.Context, to, subject, htmlBody, textBody string) (string, error) {
	payload, err := json.Marshal(sendRequest{
		From:    sanitizeHeader(s.config.From),
		To:      []string{sanitizeHeader(to)},
		Subject: sanitizeHeader(subject),
		HTML:    htmlBody,
		Text:    textBody,
	})
	if err != nil {
		return "", fmt.Errorf("email: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("email: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("email: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("email: unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("email: decode response: %w", err)
	}
	return out.ID, nil
}

// sanitizeHeader strips CR and LF so user input cannot inject headers.
func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(strings.TrimSpace(v))
}
