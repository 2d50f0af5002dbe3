// Package api exposes the HTTP surface: the streaming conversation endpoint,
// the content-change webhook, and health probes.
package api

import (
	"log/slog"
	"net/http"

	"github.com/ragline/ragline/internal/chat"
	"github.com/ragline/ragline/internal/security"
)

// ServerConfig contains the dependencies for creating the API server.
type ServerConfig struct {
	Logger       *slog.Logger
	Orchestrator *chat.Orchestrator // Required
	Publisher    TaskPublisher      // Required
	AllowList    *security.AllowList
	CORSOrigins  []string
}

// Server is the HTTP server over the conversation and webhook endpoints.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates the server with all routes and middleware configured.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	allow := cfg.AllowList
	if allow == nil {
		allow = security.NewAllowList(nil)
	}

	ch := &conversationHandler{orchestrator: cfg.Orchestrator, logger: logger}
	wh := &webhookHandler{pub: cfg.Publisher, allow: allow, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /conversation", ch.converse)
	mux.HandleFunc("POST /update-embedding", wh.updateEmbedding)

	// Middleware stack (outermost first):
	//   Recovery -> RequestID -> Logging -> CORS -> Routes
	// RequestID must be before Logging so request_id is available in log
	// attributes. CORS must be inside Logging so preflight is logged.
	var handler http.Handler = mux
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health(logger))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// health is a liveness probe for container orchestrators.
func health(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, logger)
	}
}
