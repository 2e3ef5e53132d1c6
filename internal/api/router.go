package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// requestTimeout leaves room for a forced fetch with retries
const requestTimeout = 90 * time.Second

// NewRouter mounts the API routes; ws, when non-nil, is served on /ws outside the request timeout
func NewRouter(h *Handler, allowedOrigins []string, ws http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(h.log))
	r.Use(chimiddleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	if ws != nil {
		r.Handle("/ws", ws)
	}

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(requestTimeout))

		r.Get("/health", h.HealthCheck)

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/sports", h.ListSports)

			r.Route("/sports/{sport}", func(r chi.Router) {
				r.Get("/events", h.GetEvents)
				r.Get("/analysis", h.GetAnalysis)
				r.Get("/recommendations", h.GetRecommendations)
				r.Get("/arbitrage", h.GetArbitrage)
				r.Get("/schedule", h.GetSchedule)
				r.Post("/update", h.TriggerUpdate)
			})

			r.Get("/usage", h.GetUsage)
			r.Get("/usage/history", h.GetUsageHistory)
		})
	})

	return r
}

// requestLogger logs one line per request with its status and latency
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("latency", time.Since(start)),
				zap.String("request_id", chimiddleware.GetReqID(r.Context())),
			)
		})
	}
}
