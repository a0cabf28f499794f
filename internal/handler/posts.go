package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/voicepost/internal/service"
)

type SavedPostHandler struct {
	posts  *service.SavedPostService
	logger *slog.Logger
}

func NewSavedPostHandler(posts *service.SavedPostService, logger *slog.Logger) *SavedPostHandler {
	return &SavedPostHandler{posts: posts, logger: logger}
}

type savedPostRequest struct {
	Content     string `json:"content"`
	Personality string `json:"personality"`
}

func (h *SavedPostHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r)

	posts, err := h.posts.List(r.Context(), userID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (h *SavedPostHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	post, err := h.posts.Get(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *SavedPostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req savedPostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	post, err := h.posts.Create(r.Context(), userID, req.Content, req.Personality)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

func (h *SavedPostHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req savedPostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	post, err := h.posts.Update(r.Context(), userID, r.PathValue("id"), req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *SavedPostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.posts.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type ScheduledPostHandler struct {
	schedule *service.ScheduleService
	logger   *slog.Logger
}

func NewScheduledPostHandler(schedule *service.ScheduleService, logger *slog.Logger) *ScheduledPostHandler {
	return &ScheduledPostHandler{schedule: schedule, logger: logger}
}

type scheduleRequest struct {
	Content      string `json:"content"`
	Platform     string `json:"platform"`
	ScheduledFor string `json:"scheduledFor"`
}

func (h *ScheduledPostHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r)

	posts, err := h.schedule.List(r.Context(), userID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (h *ScheduledPostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req scheduleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	post, err := h.schedule.Create(r.Context(), userID, service.ScheduleInput{
		Content:      req.Content,
		Platform:     req.Platform,
		ScheduledFor: req.ScheduledFor,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

func (h *ScheduledPostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.schedule.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
