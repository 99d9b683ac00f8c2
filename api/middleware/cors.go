package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

const localFrontend = "http://localhost:5173"

// CORS allows the configured frontend origin plus the local dev server.
func CORS(frontendURL string) func(http.Handler) http.Handler {
	origins := []string{localFrontend}
	if trimmed := strings.TrimRight(strings.TrimSpace(frontendURL), "/"); trimmed != "" && trimmed != localFrontend {
		origins = append(origins, trimmed)
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
