package ws

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

// Handler upgrades HTTP requests to game connections
type Handler struct {
	dispatcher *Dispatcher
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

// NewHandler creates a new websocket Handler
func NewHandler(dispatcher *Dispatcher, logger *slog.Logger) *Handler {
	return &Handler{
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
}

// ServeHTTP upgrades the request and serves the connection until it closes
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	client := NewClient(conn, h.logger)
	player := h.dispatcher.Open(client)
	h.logger.Info("websocket connected",
		slog.String("conn_id", string(player.ID)),
		slog.String("remote_addr", r.RemoteAddr),
	)

	ctx := r.Context()
	client.Run(func(data []byte) {
		h.dispatcher.Handle(ctx, player, data)
	})

	h.dispatcher.Disconnect(player)
	h.logger.Info("websocket disconnected", slog.String("conn_id", string(player.ID)))
}
