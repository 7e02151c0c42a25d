package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"voice-command-service/internal/app"
	"voice-command-service/internal/catalog"
	"voice-command-service/internal/observability/logging"
	"voice-command-service/internal/service/session"
)

// Engine is the session the HTTP API controls.
type Engine interface {
	Start() session.RecognitionState
	Stop() session.RecognitionState
	State() session.RecognitionState
	Catalog() *catalog.Catalog
}

// CommandsResponse is the body of GET /v1/commands.
type CommandsResponse struct {
	Commands   []catalog.Definition `json:"commands"`
	Categories []string             `json:"categories"`
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(application *app.Application) http.Handler {
	return newRouter(application.Session, application.Hub, application.Ready)
}

func newRouter(engine Engine, bridge http.Handler, ready func() bool) http.Handler {
	r := chi.NewRouter()
	logger := logging.WithComponent("http")

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if ready != nil && !ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Get("/state", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, engine.State())
		})
		r.Get("/commands", func(w http.ResponseWriter, _ *http.Request) {
			cat := engine.Catalog()
			writeJSON(w, http.StatusOK, CommandsResponse{
				Commands:   cat.Definitions(),
				Categories: cat.Categories(),
			})
		})
		r.Post("/session/start", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, engine.Start())
		})
		r.Post("/session/stop", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, engine.Stop())
		})
		if bridge != nil {
			r.Get("/ws", bridge.ServeHTTP)
		}
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// requestLogger logs each request with zerolog.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			logger.Debug().
				Str("requestId", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("HTTP request")
		})
	}
}
