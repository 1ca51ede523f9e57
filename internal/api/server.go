package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/pkom79/email-metrics-cloud-sub006/internal/config"
)

// Server wraps the HTTP server for the query surface.
type Server struct {
	server *http.Server
}

// NewServer builds the server from config and a ready handler set.
func NewServer(cfg config.ServerConfig, h *Handlers) *Server {
	router := SetupRoutes(h, cfg.AllowedOrigins)
	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      router,
			ReadTimeout:  120 * time.Second, // uploads can be large
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  90 * time.Second,
		},
	}
}

// Start begins serving and blocks until the server stops.
func (s *Server) Start() error {
	log.Printf("[Server] listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("[Server] shutting down...")
	return s.server.Shutdown(ctx)
}
