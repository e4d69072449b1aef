package server

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hongminglow/portal-gateway/internal/config"
	"github.com/hongminglow/portal-gateway/internal/guard"
	"github.com/hongminglow/portal-gateway/internal/http/handlers"
	"github.com/hongminglow/portal-gateway/internal/middleware"
	"github.com/hongminglow/portal-gateway/internal/portal"
)

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
}

// New wires up middleware, routes, and returns a ready server.
func New(cfg config.Config, client *portal.Client, logger *zap.Logger) *Server {
	return &Server{inner: &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           Handler(cfg, client, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}}
}

// Handler builds the routed handler chain. Every route except the login
// endpoint and the health probe sits behind the guard.
func Handler(cfg config.Config, client *portal.Client, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()
	handlers.NewHealthHandler(time.Now(), client.Deployment().Name).Register(mux)
	handlers.NewAuthHandler(client, logger).Register(mux)
	handlers.NewBroadcastHandler(client, logger).Register(mux)
	handlers.NewServiceHandler(client, logger).Register(mux)

	gate := guard.New(client)
	return middleware.CORS(cfg.CORSOrigins, middleware.Logging(logger, gate.Middleware(mux)))
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
