// Package server exposes the auction engine over a JSON HTTP API.
package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Clock supplies the engine's timestamps. Injected so tests can drive the
// auction through its lifecycle deterministically.
type Clock func() int64

// NewRouter creates a chi router with all routes registered. limiter may be
// nil to disable rate limiting.
func NewRouter(h *Handler, logger zerolog.Logger, limiter *rate.Limiter) chi.Router {
	r := chi.NewRouter()

	r.Use(requestLogging(logger))
	r.Use(contentTypeJSON)
	if limiter != nil {
		r.Use(rateLimit(limiter))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/v1/auction/start", h.StartAuction)
	r.Get("/v1/auction", h.GetAuction)
	r.Get("/v1/levels", h.GetLevels)

	r.Post("/v1/bids", h.PlaceBid)
	r.Post("/v1/bids/withdraw", h.WithdrawBid)
	r.Get("/v1/bids/{bid_id}", h.GetBid)

	r.Post("/v1/settle", h.Settle)
	r.Post("/v1/claims", h.Claim)
	r.Post("/v1/migrate", h.Migrate)
	r.Post("/v1/incentives/recover", h.Recover)
	r.Post("/v1/incentives/sweep", h.Sweep)

	return r
}

// requestLogging logs each request's method, path, status, and duration.
func requestLogging(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.status).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// contentTypeJSON rejects mutating requests without a JSON content type
// before the handler runs.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct == "" || !strings.HasPrefix(ct, "application/json") {
				WriteError(w, http.StatusBadRequest, "invalid_request",
					"Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimit applies a shared token bucket across all requests.
func rateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				WriteError(w, http.StatusTooManyRequests, "rate_limited",
					"too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
