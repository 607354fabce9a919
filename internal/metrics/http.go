package metrics

import (
	"net/http"

	"codeberg.org/mutker/powerwatch/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

func newHandler(gatherer prometheus.Gatherer) http.Handler {
	metricsLimiter := rate.NewLimiter(defaultRateLimit, defaultRateBurst)
	healthLimiter := rate.NewLimiter(defaultRateLimit, defaultRateBurst)

	mux := http.NewServeMux()
	mux.Handle("/metrics", rateLimitMiddleware(metricsLimiter,
		promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}).ServeHTTP))
	mux.HandleFunc("/health", rateLimitMiddleware(healthLimiter, healthHandler))

	return mux
}

// rateLimitMiddleware wraps an HTTP handler with rate limiting
func rateLimitMiddleware(limiter *rate.Limiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			logger.Warn().
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Msg("Rate limit exceeded")
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		logger.Error().Err(err).Msg("Failed to write health check response")
	}
}
