package middleware

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sangkips/quotation-api/internal/config"
)

var (
	defaultCORSOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}
	defaultCORSMethods = []string{
		http.MethodGet, http.MethodPost, http.MethodPut,
		http.MethodDelete, http.MethodOptions,
	}
	defaultCORSHeaders = []string{"Accept", "Authorization", "Content-Type", "Origin", "X-Request-ID"}
)

// CORSMiddleware lets the quotation frontend call the API from another origin.
// Browsers only expose listed response headers to scripts, so the download
// filename and the idempotent replay marker are always exposed.
func CORSMiddleware(cfg *config.CORSConfig) gin.HandlerFunc {
	return cors.New(corsConfig(cfg))
}

func corsConfig(cfg *config.CORSConfig) cors.Config {
	// clients must be able to send a key even when headers are configured
	headers := withHeader(orDefault(cfg.AllowedHeaders, defaultCORSHeaders), IdempotencyKeyHeader)

	return cors.Config{
		AllowOrigins:  orDefault(cfg.AllowedOrigins, defaultCORSOrigins),
		AllowMethods:  orDefault(cfg.AllowedMethods, defaultCORSMethods),
		AllowHeaders:  headers,
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Disposition",
			"X-Request-ID",
			IdempotencyReplayedHeader,
		},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
}

func orDefault(values, fallback []string) []string {
	if len(values) == 0 {
		return slices.Clone(fallback)
	}
	return values
}

func withHeader(headers []string, name string) []string {
	if slices.Contains(headers, name) {
		return headers
	}
	return append(slices.Clone(headers), name)
}
