package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/labhub-io/labhub/internal/notification/adapters/ws"
	"github.com/labhub-io/labhub/internal/notification/app"
	"github.com/labhub-io/labhub/internal/notification/domain"
	"github.com/labhub-io/labhub/internal/notification/middleware"
)

// connectionTokenHeader lets a client name its session so several tabs can
// hold connections side by side; absent, the registry generates one.
const connectionTokenHeader = "X-Connection-Token"

// PushHandler exposes the push-connection surface: the long-lived stream,
// its explicit close, and the diagnostic direct/broadcast send endpoints.
type PushHandler struct {
	registry   *app.Registry
	dispatcher *app.Dispatcher
	logger     *slog.Logger
	wsOpts     ws.Options
	upgrader   websocket.Upgrader
}

// NewPushHandler creates the push connection handler.
func NewPushHandler(registry *app.Registry, dispatcher *app.Dispatcher, wsOpts ws.Options, logger *slog.Logger) *PushHandler {
	return &PushHandler{
		registry:   registry,
		dispatcher: dispatcher,
		logger:     logger.With("handler", "push"),
		wsOpts:     wsOpts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Browsers send the app's JWT, not cookies; origin checks
			// belong to the fronting gateway.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// RegisterRoutes registers push routes on the (already authenticated)
// router group.
func (h *PushHandler) RegisterRoutes(r chi.Router) {
	r.Get("/push/connect", h.Connect)
	r.Get("/push/close", h.Close)
	r.Post("/push/send", h.Send)
	r.Post("/push/broadcast", h.Broadcast)
}

// Connect upgrades the request to a websocket, registers the connection and
// keeps it alive with heartbeats until the peer goes away.
func (h *PushHandler) Connect(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	token := r.Header.Get(connectionTokenHeader)
	if token == "" {
		token = r.URL.Query().Get("token")
	}

	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.logger.WarnContext(r.Context(), "Websocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	channel := ws.NewConn(wsConn, h.wsOpts, h.logger)
	conn := h.registry.Register(userID, token, channel)

	go channel.PingLoop()
	go channel.ReadLoop(func() {
		h.registry.Unregister(conn)
		_ = channel.Close()
	})
}

// Close tears down the caller's connection for the given token.
func (h *PushHandler) Close(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	token := r.Header.Get(connectionTokenHeader)
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		http.Error(w, "connection token required", http.StatusBadRequest)
		return
	}

	h.registry.Close(userID, token)
	respondJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

// Send pushes an ad-hoc message to one user. Diagnostic only: nothing is
// persisted, delivery is fire-and-forget.
func (h *PushHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == 0 || req.Message == "" {
		http.Error(w, "user_id and message are required", http.StatusBadRequest)
		return
	}

	h.dispatcher.EnqueueForUser(req.UserID, h.diagnosticNotification(domain.SceneUserCustomMessage, req.Title, req.Message))
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// Broadcast pushes an ad-hoc message to every connected user.
func (h *PushHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req BroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	h.dispatcher.EnqueueBroadcast(h.diagnosticNotification(domain.SceneSystemBroadcast, req.Title, req.Message))
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (h *PushHandler) diagnosticNotification(scene domain.Scene, title, message string) domain.Notification {
	body := domain.NewMessageBody(domain.MessageTypePersonal, scene, nil, title, message, nil, "", nil)
	return domain.NotificationFrom(body)
}
