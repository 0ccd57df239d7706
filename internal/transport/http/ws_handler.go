package http

import (
	"log/slog"
	"net/http"

	gorillaws "github.com/gorilla/websocket"

	"sitepulse/internal/config"
	apierrors "sitepulse/internal/errors"
	"sitepulse/internal/middleware"
	"sitepulse/internal/websocket"
)

// WSHandler upgrades authenticated requests to WebSocket connections
// on the event hub.
type WSHandler struct {
	hub      *websocket.Hub
	upgrader gorillaws.Upgrader
	timing   websocket.Timing
	logger   *slog.Logger
}

// NewWSHandler creates the WebSocket upgrade handler. allowedOrigins
// follows the CORS configuration; an empty list allows same-origin only.
func NewWSHandler(hub *websocket.Hub, allowedOrigins []string, wsCfg config.WebSocketConfig, logger *slog.Logger) *WSHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	allowAll := false
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	readBuf, writeBuf := wsCfg.ReadBufferSize, wsCfg.WriteBufferSize
	if readBuf <= 0 {
		readBuf = 1024
	}
	if writeBuf <= 0 {
		writeBuf = 1024
	}

	return &WSHandler{
		hub: hub,
		timing: websocket.Timing{
			PingPeriod: wsCfg.PingPeriod,
			PongWait:   wsCfg.PongWait,
		},
		logger: logger.With(slog.String("component", "ws_handler")),
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  readBuf,
			WriteBufferSize: writeBuf,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || allowAll {
					return true
				}
				return allowed[origin]
			},
		},
	}
}

// ServeHTTP handles GET /ws. Runs behind the authentication middleware.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.CurrentUser(r.Context())
	if !ok {
		http.Error(w, apierrors.ErrUnauthorized.Message, http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.logger.WarnContext(r.Context(), "websocket upgrade failed",
			slog.String("username", user.Username),
			slog.String("error", err.Error()))
		return
	}

	h.logger.InfoContext(r.Context(), "websocket connected",
		slog.String("username", user.Username),
		slog.String("remote_addr", r.RemoteAddr))
	websocket.ServeWS(h.hub, conn, user.Username, h.timing, h.logger)
}
