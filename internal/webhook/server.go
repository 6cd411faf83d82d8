package webhook

import (
	"context"
	"fmt"
	"net/http"

	"github.com/chatdigest/chatdigest/internal/config"
)

// Server is the HTTP front of the service: the webhook endpoint plus a
// liveness probe.
type Server struct {
	httpServer *http.Server
}

// NewServer mounts the handler and builds the middleware chain.
func NewServer(cfg config.ServerConfig, path string, h *Handler) *Server {
	mux := http.NewServeMux()
	mux.Handle("POST "+path, h)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"ok"}`)
	})

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      panicRecovery(requestLogging(mux)),
			ReadTimeout:  cfg.ReadTimeout.Std(),
			WriteTimeout: cfg.WriteTimeout.Std(),
		},
	}
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
