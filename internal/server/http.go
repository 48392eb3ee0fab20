package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/quiz-import/internal/auth"
	"github.com/gokatarajesh/quiz-import/internal/config"
	"github.com/gokatarajesh/quiz-import/internal/logging"
	"github.com/gokatarajesh/quiz-import/internal/quizimport"
)

// WSUpgrader handles WebSocket upgrades for import progress streams.
var WSUpgrader = websocket.Upgrader{
	// TODO: restrict to the LMS frontend origins once they are configurable.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Pinger is implemented by the table stores.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers groups the feature handlers mounted on the API mux.
type Handlers struct {
	Import   *quizimport.HTTPHandler
	Progress http.Handler
	Media    http.Handler
	Tokens   auth.TokenValidator
}

// NewHTTPServer wires health, metrics and the quiz import routes.
// redis may be nil when the preview cache is disabled.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, db Pinger, redis *redis.Client, h Handlers) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/ping", func(w http.ResponseWriter, r *http.Request) {
		if err := pingDependencies(r.Context(), db, redis); err != nil {
			l := logging.FromContext(r.Context())
			l.Error().Err(err).Msg("dependency ping failed")
			http.Error(w, "upstream error", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pong":true}`))
	})

	authn := auth.Middleware(h.Tokens, logger)
	if h.Import != nil {
		mux.Handle("POST /v1/quizzes/import", authn(auth.RequireQuizManager(http.HandlerFunc(h.Import.HandleImport))))
		mux.Handle("GET /v1/quizzes/{id}", authn(auth.RequireQuizManager(http.HandlerFunc(h.Import.HandleGetQuiz))))
	}
	if h.Progress != nil {
		mux.Handle("GET /ws/imports/{importID}", authn(auth.RequireQuizManager(h.Progress)))
	}
	if prefix := strings.TrimSuffix(cfg.Storage.PublicBaseURL, "/") + "/"; h.Media != nil && strings.HasPrefix(prefix, "/") && prefix != "/" {
		mux.Handle("GET "+prefix, http.StripPrefix(prefix, h.Media))
	}

	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           logging.Middleware(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func pingDependencies(ctx context.Context, db Pinger, redis *redis.Client) error {
	if db != nil {
		if err := db.Ping(ctx); err != nil {
			return err
		}
	}
	if redis != nil {
		if err := redis.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	return nil
}
