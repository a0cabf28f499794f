package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/sakif/voicepost/internal/apperror"
)

var ErrUnsupportedAudio = errors.New("unsupported audio format")

var audioExtensions = map[string]bool{
	".webm": true, ".mp3": true, ".mp4": true, ".m4a": true,
	".mpga": true, ".mpeg": true, ".wav": true, ".ogg": true,
}

type TranscribeService struct {
	stt    SpeechToText
	logger *slog.Logger
}

func NewTranscribeService(stt SpeechToText, logger *slog.Logger) *TranscribeService {
	return &TranscribeService{stt: stt, logger: logger}
}

// Transcribe converts one recorded voice note to text.
func (s *TranscribeService) Transcribe(ctx context.Context, userID, filename string, audio io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !audioExtensions[ext] {
		return "", apperror.Wrap(apperror.ErrValidation, ErrUnsupportedAudio,
			"audio must be webm, mp3, mp4, m4a, mpeg, wav or ogg")
	}

	text, err := s.stt.Transcribe(ctx, filepath.Base(filename), audio)
	if err != nil {
		s.logger.Error("transcription failed",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return "", apperror.Upstream(err, "could not transcribe the recording")
	}

	text = strings.TrimSpace(text)
	s.logger.Info("audio transcribed",
		slog.String("userID", userID),
		slog.Int("chars", len(text)),
	)
	return text, nil
}
