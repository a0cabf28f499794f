package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/voicepost/internal/apperror"
	"github.com/sakif/voicepost/internal/llm"
	"github.com/sakif/voicepost/internal/service"
)

// maxAudioUpload matches the transcription endpoint's own file limit.
const maxAudioUpload = 25 << 20

// AssistHandler serves the writing tools: transcription, variations and
// sharing a draft by email.
type AssistHandler struct {
	variations *service.VariationService
	transcribe *service.TranscribeService
	share      *service.ShareService
	logger     *slog.Logger
}

func NewAssistHandler(
	variations *service.VariationService,
	transcribe *service.TranscribeService,
	share *service.ShareService,
	logger *slog.Logger,
) *AssistHandler {
	return &AssistHandler{
		variations: variations,
		transcribe: transcribe,
		share:      share,
		logger:     logger,
	}
}

// generateRequest carries either {text, personality} for the variation
// generator or {systemPrompt, messages} for a raw completion.
type generateRequest struct {
	Text         string        `json:"text"`
	Personality  string        `json:"personality"`
	SystemPrompt string        `json:"systemPrompt"`
	Messages     []llm.Message `json:"messages"`
}

type generateResponse struct {
	Variations []string `json:"variations,omitempty"`
	Content    string   `json:"content,omitempty"`
}

// HandleGenerate is POST /api/generate.
func (h *AssistHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	if len(req.Messages) > 0 {
		content, err := h.variations.Complete(r.Context(), req.SystemPrompt, req.Messages)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, generateResponse{Content: content})
		return
	}

	variations, err := h.variations.Generate(r.Context(), req.Text, req.Personality)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, generateResponse{Variations: variations})
}

// HandleTranscribe is POST /api/transcribe with a multipart "audio" file.
func (h *AssistHandler) HandleTranscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAudioUpload)
	file, header, err := r.FormFile("audio")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, apperror.ValidationFailed("audio", "recording must be 25 MB or less"))
			return
		}
		writeError(w, apperror.ValidationFailed("audio", "an audio file is required"))
		return
	}
	defer file.Close()

	text, err := h.transcribe.Transcribe(r.Context(), userID, header.Filename, file)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

type shareRequest struct {
	To      string `json:"to"`
	Content string `json:"content"`
}

// HandleShareEmail is POST /api/share/email.
func (h *AssistHandler) HandleShareEmail(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req shareRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.share.Email(r.Context(), userID, req.To, req.Content); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"sent": true})
}
