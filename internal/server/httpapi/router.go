// Package httpapi exposes the security ledger over HTTP/JSON.
package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/secledger/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const requestTimeout = 30 * time.Second

// NewRouter builds the HTTP routes. metricsHandler may be nil, in which case
// /metrics is not mounted.
func NewRouter(svc securitySvc, logger logging.Logger, metricsHandler http.Handler) http.Handler {
	h := &handler{security: svc, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/security", func(r chi.Router) {
		r.Post("/buddy/request", h.requestBuddy)
		r.Post("/buddy/respond", h.respondToBuddy)
		r.Post("/2fa/assertion", h.checkAssertion)

		r.Route("/{username}", func(r chi.Router) {
			r.Get("/", h.getSecurity)
			r.Post("/devices", h.registerDevice)
			r.Post("/faceid", h.enrollFaceID)
			r.Delete("/faceid", h.removeFaceID)
			r.Post("/2fa/setup", h.setupTwoFactor)
			r.Post("/2fa/verify", h.verifyAndEnable)
			r.Post("/2fa/disable", h.disableTwoFactor)
			r.Post("/2fa/login", h.loginVerify)
		})
	})

	return r
}

// requestLogger logs one line per request through the project logger.
func requestLogger(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info(r.Context(), "http request",
					"request_id", middleware.GetReqID(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
