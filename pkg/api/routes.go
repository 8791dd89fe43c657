package api

import (
	"log/slog"
	"net/http"

	"github.com/chicogong/slidegraph/pkg/auth"
)

// RouterConfig contains router configuration options.
type RouterConfig struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string

	// Auth protects everything but /health and the transition catalogue.
	// Nil leaves the API open.
	Auth *auth.AuthMiddleware

	Logger *slog.Logger
}

// NewRouter creates the HTTP handler for s using Go 1.22 method patterns.
func NewRouter(s *Server, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = s.logger
	}
	if cfg.AllowedOrigins == nil {
		cfg.AllowedOrigins = []string{"*"}
	}

	protect := func(h http.HandlerFunc, roles ...string) http.Handler {
		var handler http.Handler = h
		if cfg.Auth == nil {
			return handler
		}
		if len(roles) > 0 {
			handler = auth.RequireRole(roles...)(handler)
		}
		return cfg.Auth.Handler(handler)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.Health)
	mux.HandleFunc("GET /api/v1/transitions", s.Transitions)

	mux.Handle("POST /api/v1/compile", protect(s.Compile))
	mux.Handle("POST /api/v1/renders", protect(s.CreateRender, auth.RoleRenderer))
	mux.Handle("GET /api/v1/renders", protect(s.ListRenders))
	mux.Handle("GET /api/v1/renders/{id}", protect(s.GetRender))
	mux.Handle("DELETE /api/v1/renders/{id}", protect(s.CancelRender, auth.RoleRenderer))

	chain := ChainMiddleware(
		RequestIDMiddleware,
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)
	return chain(mux)
}
