package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/geoduel/internal/api/handler"
	apimiddleware "github.com/mcoot/geoduel/internal/api/middleware"
	"github.com/mcoot/geoduel/internal/api/response"
	"github.com/mcoot/geoduel/internal/middleware"
	"github.com/mcoot/geoduel/internal/services/game"
	"github.com/mcoot/geoduel/internal/services/matchmaking"
	"github.com/mcoot/geoduel/internal/services/registry"
	"github.com/mcoot/geoduel/internal/transport/ws"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger         *slog.Logger
	Registry       *registry.Registry
	Queue          *matchmaking.Queue
	GameController *game.Controller
	Dispatcher     *ws.Dispatcher
}

// NewRouter creates a new router serving the game socket and the API
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	statsHandler := handler.NewStatsHandler(cfg.Registry, cfg.Queue, cfg.GameController, cfg.Dispatcher)
	wsHandler := ws.NewHandler(cfg.Dispatcher, cfg.Logger)

	loggingMiddleware := middleware.Logging(cfg.Logger)

	// Game socket
	socket := r.PathPrefix("/wg").Subrouter()
	socket.Use(middleware.Recovery(cfg.Logger, middleware.DefaultPanicHandler))
	socket.Use(loggingMiddleware)
	socket.Handle("", wsHandler).Methods(http.MethodGet)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(apimiddleware.Recovery(cfg.Logger))
	api.Use(loggingMiddleware)

	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	api.HandleFunc("/stats", statsHandler.Stats).Methods(http.MethodGet)
	api.HandleFunc("/sessions", statsHandler.Sessions).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{code}", statsHandler.Session).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{Status: "ok"})
}
