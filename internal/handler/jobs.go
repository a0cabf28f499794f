package handler

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/voicepost/internal/service"
)

// JobsHandler exposes the publisher and ingester: per user through the
// analytics endpoints, and for all users through the cron trigger.
type JobsHandler struct {
	publisher *service.Publisher
	ingester  *service.Ingester
	analytics *service.AnalyticsService
	logger    *slog.Logger
}

func NewJobsHandler(
	publisher *service.Publisher,
	ingester *service.Ingester,
	analytics *service.AnalyticsService,
	logger *slog.Logger,
) *JobsHandler {
	return &JobsHandler{
		publisher: publisher,
		ingester:  ingester,
		analytics: analytics,
		logger:    logger,
	}
}

// HandleListMetrics is GET /api/metrics?platform=&category=.
func (h *JobsHandler) HandleListMetrics(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	limit, offset := pagination(r)

	metrics, err := h.analytics.List(r.Context(), userID, q.Get("platform"), q.Get("category"), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

// HandleRefreshMetrics is POST /api/metrics/refresh: ingest now for the
// caller only.
func (h *JobsHandler) HandleRefreshMetrics(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	report, err := h.ingester.Run(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleCronPublish is POST /internal/cron/publish.
func (h *JobsHandler) HandleCronPublish(w http.ResponseWriter, r *http.Request) {
	report, err := h.publisher.Run(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleCronIngest is POST /internal/cron/ingest.
func (h *JobsHandler) HandleCronIngest(w http.ResponseWriter, r *http.Request) {
	report, err := h.ingester.RunAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// RequireCronSecret guards the trigger endpoints with a shared bearer
// secret. An empty secret disables them entirely.
func RequireCronSecret(secret string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				writeJSON(w, http.StatusNotFound, ErrorResponse{
					Error:   "not_found",
					Message: "cron trigger is disabled",
				})
				return
			}
			got, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !found || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				logger.Warn("rejected cron trigger", slog.String("path", r.URL.Path))
				writeJSON(w, http.StatusUnauthorized, ErrorResponse{
					Error:   "unauthorized",
					Message: "invalid cron secret",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
