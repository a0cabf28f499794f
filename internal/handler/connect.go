package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/sakif/voicepost/internal/apperror"
	"github.com/sakif/voicepost/internal/auth"
	"github.com/sakif/voicepost/internal/model"
	"github.com/sakif/voicepost/internal/service"
	"github.com/sakif/voicepost/internal/social"
)

const (
	nonceCookiePrefix    = "oauth_state_"
	verifierCookiePrefix = "oauth_verifier_"
)

// ConnectHandler runs the platform connect flow and manages the resulting
// connections.
type ConnectHandler struct {
	connect       *service.ConnectService
	creds         *service.CredentialService
	landingPath   string
	secureCookies bool
	logger        *slog.Logger
}

func NewConnectHandler(
	connect *service.ConnectService,
	creds *service.CredentialService,
	landingPath string,
	secureCookies bool,
	logger *slog.Logger,
) *ConnectHandler {
	if landingPath == "" {
		landingPath = "/"
	}
	return &ConnectHandler{
		connect:       connect,
		creds:         creds,
		landingPath:   landingPath,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

// HandleConnect redirects the browser to the platform's consent page.
// GET /api/connect/{platform}?returnTo=/path
func (h *ConnectHandler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	platform := r.PathValue("platform")

	authz, err := h.connect.Begin(userID, platform, r.URL.Query().Get("returnTo"))
	if err != nil {
		writeError(w, err)
		return
	}

	platform = strings.ToLower(platform)
	h.setFlowCookie(w, nonceCookiePrefix+platform, authz.Nonce)
	if authz.Verifier != "" {
		h.setFlowCookie(w, verifierCookiePrefix+platform, authz.Verifier)
	}

	http.Redirect(w, r, authz.URL, http.StatusFound)
}

// HandleCallback finishes the flow.
// GET /auth/{platform}/callback?code=...&state=...
func (h *ConnectHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	platform := strings.ToLower(r.PathValue("platform"))
	q := r.URL.Query()

	// Both cookies are single use whatever the outcome.
	nonce := h.takeFlowCookie(w, r, nonceCookiePrefix+platform)
	verifier := h.takeFlowCookie(w, r, verifierCookiePrefix+platform)

	if denied := q.Get("error"); denied != "" {
		h.logger.Info("connect callback: user denied authorization",
			slog.String("platform", platform),
			slog.String("error", denied),
		)
		if wantsJSON(r) {
			writeError(w, apperror.ValidationFailed("code", "authorization was denied"))
			return
		}
		http.Redirect(w, r, h.landingPath+"?"+url.Values{
			"connect":  {"denied"},
			"platform": {platform},
		}.Encode(), http.StatusFound)
		return
	}

	result, err := h.connect.Complete(r.Context(), platform, social.Callback{
		Code:     q.Get("code"),
		State:    q.Get("state"),
		Nonce:    nonce,
		Verifier: verifier,
	})
	if err != nil {
		h.logger.Warn("connect callback failed",
			slog.String("platform", platform),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, result)
		return
	}
	http.Redirect(w, r, result.ReturnTo, http.StatusFound)
}

type connectionStatus struct {
	Platform  model.Platform `json:"platform"`
	Connected bool           `json:"connected"`
	Available bool           `json:"available"`
}

// HandleList reports, per platform, whether the user is connected and
// whether the deployment supports connecting at all.
func (h *ConnectHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	connected, err := h.creds.Connected(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	enabled := h.connect.Enabled()

	out := make([]connectionStatus, 0, len(model.Platforms))
	for _, p := range model.Platforms {
		out = append(out, connectionStatus{
			Platform:  p,
			Connected: slices.Contains(connected, p),
			Available: slices.Contains(enabled, p),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"connections": out})
}

func (h *ConnectHandler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.creds.Disconnect(r.Context(), userID, r.PathValue("platform")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// setFlowCookie stores a connect-flow value in the starting browser. The
// cookie only travels to /auth callbacks and expires with the state.
func (h *ConnectHandler) setFlowCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/auth",
		MaxAge:   int(auth.StateTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *ConnectHandler) takeFlowCookie(w http.ResponseWriter, r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return c.Value
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
