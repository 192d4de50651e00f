package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter builds the HTTP routing table
func NewRouter(handler *Handler, corsAllowedOrigins ...string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(corsAllowedOrigins) > 0 {
		r.Use(corsMiddleware(corsAllowedOrigins))
	}

	r.Get("/health", handler.Health)
	r.Get("/ws", handler.HandleWebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(120 * time.Second))
		r.Get("/flights", handler.GetFlights)
		r.Get("/flights/{id}", handler.GetFlight)
		r.Get("/flights/{id}/positions", handler.GetFlightPositions)
		r.Get("/analysis", handler.GetAnalysis)
		r.Post("/analysis/run", handler.RunAnalysis)
		r.Get("/stats/daily", handler.GetDailyStats)
	})

	return r
}

// corsMiddleware answers preflight requests and sets the allow-origin
// header for the configured origins. "*" allows every origin.
func corsMiddleware(allowed []string) func(http.Handler) http.Handler {
	allowAll := false
	allowedSet := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			allowAll = true
		}
		allowedSet[origin] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowAll || allowedSet[origin]) {
				if allowAll {
					w.Header().Set("Access-Control-Allow-Origin", "*")
				} else {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Vary", "Origin")
				}
			}
			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
