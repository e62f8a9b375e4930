package rest

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions
//
//	Metrics: 是否掛上 /metrics
type RouterOptions struct {
	Metrics bool
}

// NewRouter 組裝 HTTP 路由
func NewRouter(h *Handler, hub *Hub, log *slog.Logger, opts RouterOptions) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(log))
	router.Use(middleware.Recoverer)

	router.Get("/", h.Welcome())
	router.Get("/health", h.Health())
	router.Post("/add", h.Add())
	router.Post("/spend", h.Spend())
	router.Get("/balance", h.Balance())
	router.Get("/transactions", h.Transactions())
	if hub != nil {
		router.Get("/events", hub.HandleConnection)
	}
	if opts.Metrics {
		router.Handle("/metrics", promhttp.Handler())
	}
	return router
}

// requestLogger 每個請求結束後記一筆 log
func requestLogger(log *slog.Logger) func(next http.Handler) http.Handler {
	log = log.With(slog.String("component", "middleware/logger"))
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			entry := log.With(
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			start := time.Now()
			defer func() {
				entry.Info("request completed",
					slog.Int("status", ww.Status()),
					slog.Int("bytes", ww.BytesWritten()),
					slog.String("duration", time.Since(start).String()),
				)
			}()
			next.ServeHTTP(ww, r)
		}
		return http.HandlerFunc(fn)
	}
}
