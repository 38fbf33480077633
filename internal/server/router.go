package server

import (
	"log/slog"
	"net/http"
)

// RouterDependencies collects handler dependencies.
type RouterDependencies struct {
	Health           HealthService
	API              *APIHandlers
	AllowedOrigins   []string
	AllowCredentials bool
}

// NewRouter wires the HTTP routes exposed to the chat-transport adapter.
//
// Middleware runs outermost first: CORS, request logging, panic recovery.
func NewRouter(logger *slog.Logger, deps RouterDependencies) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /healthz", healthHandler(logger, deps.Health))
	if deps.API != nil {
		deps.API.register(mux)
	}

	var handler http.Handler = recoverPanics(logger, mux)
	handler = logRequests(logger, handler)
	if len(deps.AllowedOrigins) > 0 {
		handler = newCORSPolicy(deps.AllowedOrigins, deps.AllowCredentials).wrap(handler)
	}
	return handler
}
