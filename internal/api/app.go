package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/jcleary/chatwire/internal/config"
	"github.com/jcleary/chatwire/internal/server"
	"github.com/jcleary/chatwire/internal/stats"
	"github.com/jcleary/chatwire/internal/store"
)

// ChatApp is the read-only HTTP surface plus the websocket upgrade
// endpoint.
type ChatApp struct {
	log            *log.Logger
	db             store.Store
	mux            *http.Server
	cs             *server.ChatServer
	stats          *stats.StatsUpdater
	allowedOrigins []string
}

func NewChatApp(mux *http.ServeMux, logger *log.Logger, cs *server.ChatServer, db store.Store, su *stats.StatsUpdater, cfg *config.Config) *ChatApp {
	s := &ChatApp{
		log:            logger,
		db:             db,
		cs:             cs,
		stats:          su,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("GET /health", s.health)
	mux.HandleFunc("GET /api/messages", s.getMessages)
	mux.HandleFunc("GET /api/search", s.searchMessages)
	mux.HandleFunc("GET /api/users", s.getUsers)
	mux.HandleFunc("GET /api/rooms", s.getRooms)
	mux.HandleFunc("GET /ws", s.serveWs)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
	)(mux)

	h = handlers.LoggingHandler(logger.Writer(), h)
	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *ChatApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *ChatApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
