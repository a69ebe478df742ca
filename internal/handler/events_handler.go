package handler

import (
	"log/slog"
	"net/http"

	"tutorhub-portal/internal/middleware"
	"tutorhub-portal/internal/model"
	"tutorhub-portal/internal/websocket"
)

// SessionHolder keeps a visitor's session alive while something other than
// HTTP requests is using it.
type SessionHolder interface {
	Hold(id string) (release func())
}

// EventsHandler streams the visitor's session and meeting events over a
// websocket. An open stream keeps the session from going idle.
type EventsHandler struct {
	hub      *websocket.Hub
	upgrader *websocket.Upgrader
	sessions SessionHolder
}

func NewEventsHandler(hub *websocket.Hub, upgrader *websocket.Upgrader, sessions SessionHolder) *EventsHandler {
	return &EventsHandler{hub: hub, upgrader: upgrader, sessions: sessions}
}

func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	_, scope, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrNotAuthenticated)
		return
	}
	release := h.sessions.Hold(scope)
	defer release()

	if err := h.upgrader.Serve(h.hub, w, r, scope); err != nil {
		slog.Debug("websocket upgrade failed", "component", "websocket", "error", err)
	}
}
