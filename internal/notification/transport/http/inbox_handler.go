package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/labhub-io/labhub/internal/notification/app"
	"github.com/labhub-io/labhub/internal/notification/middleware"
)

// InboxHandler exposes the pull side of the inbox: listing, marking read
// and resolving actionable messages.
type InboxHandler struct {
	inbox  *app.InboxService
	logger *slog.Logger
}

// NewInboxHandler creates the inbox handler.
func NewInboxHandler(inbox *app.InboxService, logger *slog.Logger) *InboxHandler {
	return &InboxHandler{
		inbox:  inbox,
		logger: logger.With("handler", "inbox"),
	}
}

// RegisterRoutes registers inbox routes on the authenticated router group.
func (h *InboxHandler) RegisterRoutes(r chi.Router) {
	r.Get("/messages", h.List)
	r.Post("/messages/{recipientID}/read", h.MarkRead)
	r.Post("/messages/{recipientID}/resolve", h.Resolve)
}

// List returns the caller's inbox, newest first. Query params: unread=true,
// limit, offset.
func (h *InboxHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	onlyUnread := r.URL.Query().Get("unread") == "true"
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	entries, err := h.inbox.List(r.Context(), userID, onlyUnread, limit, offset)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to list inbox", "user_id", userID, "error", err)
		http.Error(w, "failed to list messages", http.StatusInternalServerError)
		return
	}

	items := make([]InboxItemResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, inboxItemFrom(e))
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": items})
}

// MarkRead marks one of the caller's messages read.
func (h *InboxHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	recipientID, err := strconv.ParseInt(chi.URLParam(r, "recipientID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid message id", http.StatusBadRequest)
		return
	}

	updated, err := h.inbox.MarkRead(r.Context(), recipientID, userID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to mark message read",
			"recipient_id", recipientID, "user_id", userID, "error", err)
		http.Error(w, "failed to mark message read", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"updated": updated})
}

// Resolve records the caller's accept/reject of an actionable message.
// A 409 means the response window already closed (the sweeper expired the
// row first) or the message was resolved before.
func (h *InboxHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	recipientID, err := strconv.ParseInt(chi.URLParam(r, "recipientID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid message id", http.StatusBadRequest)
		return
	}

	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	resolved, err := h.inbox.Resolve(r.Context(), recipientID, userID, app.ResolveAction(req.Action))
	if err != nil {
		h.logger.WarnContext(r.Context(), "Failed to resolve message",
			"recipient_id", recipientID, "user_id", userID, "error", err)
		http.Error(w, "failed to resolve message", http.StatusBadRequest)
		return
	}
	if !resolved {
		http.Error(w, "message is no longer pending", http.StatusConflict)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"resolved": true})
}
