package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yourorg/circulation/internal/activity"
)

const activityWriteTimeout = 10 * time.Second

// ActivityHandler streams circulation events to staff dashboards over a
// websocket connection.
type ActivityHandler struct {
	hub            *activity.Hub
	logger         *slog.Logger
	allowedOrigins []string
}

// NewActivityHandler creates a new activity feed handler.
func NewActivityHandler(hub *activity.Hub, logger *slog.Logger, allowedOrigins []string) *ActivityHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivityHandler{hub: hub, logger: logger, allowedOrigins: allowedOrigins}
}

// upgrader is initialized per-request to use the instance's allowed origins.
func (h *ActivityHandler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Non-browser clients send no origin.
				return true
			}
			for _, allowed := range h.allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			h.logger.Warn("websocket origin rejected", slog.String("origin", origin))
			return false
		},
	}
}

// ServeHTTP handles GET /ws/activity.
func (h *ActivityHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := h.getUpgrader()
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	events, cancel := h.hub.Subscribe()
	defer cancel()

	h.logger.Debug("activity subscriber connected", slog.String("remote", r.RemoteAddr))

	// Drain client frames so ping/pong and close frames are processed.
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			ws.SetWriteDeadline(time.Now().Add(activityWriteTimeout))
			if err := ws.WriteJSON(event); err != nil {
				h.logger.Debug("activity subscriber dropped",
					slog.String("remote", r.RemoteAddr),
					slog.String("reason", err.Error()),
				)
				return
			}
		}
	}
}
