package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chainkit/forkdb/internal/api/websocket"
	"github.com/chainkit/forkdb/internal/forkdb"
)

// Server exposes the fork database's query operations over HTTP. It is a
// read-only observation surface: every handler takes the shared mutex only
// around its Database calls and never holds it across a network round
// trip. The database itself stays unsynchronized, exactly as
// §5 specifies — Server is where the caller-serializes-access requirement
// is actually discharged for the handful of goroutines (HTTP handlers,
// ingestion) that share one *forkdb.Database.
type Server struct {
	db     *forkdb.Database
	mu     *sync.Mutex
	config *Config
	hub    *websocket.Hub
}

// NewServer creates a new API server instance. mu must be the same mutex
// the rest of the process (ingestion coordinators) locks around calls into
// db; passing a fresh mutex here would not actually serialize anything.
func NewServer(db *forkdb.Database, mu *sync.Mutex, config *Config) *Server {
	return &Server{db: db, mu: mu, config: config}
}

// NewServerWithHub creates a new API server instance with a WebSocket hub
// for streaming head-advance and orphan-staged events.
func NewServerWithHub(db *forkdb.Database, mu *sync.Mutex, config *Config, hub *websocket.Hub) *Server {
	return &Server{db: db, mu: mu, config: config, hub: hub}
}

// StartHub starts the WebSocket hub if present.
func (s *Server) StartHub(ctx context.Context) {
	if s.hub != nil {
		go s.hub.Run(ctx)
	}
}

// Router configures and returns the HTTP router with all middleware and
// routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.loggingMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.metricsMiddleware)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/head", s.handleHead)
		r.Get("/blocks/{id}", s.handleFetchBlock)
		r.Get("/blocks/by-number/{num}", s.handleFetchBlockByNumber)
		r.Get("/known/{id}", s.handleIsKnownBlock)
		r.Get("/branch", s.handleFetchBranch)

		if s.hub != nil {
			wsConfig := websocket.LoadConfig()
			r.Get("/stream", websocket.HandleWebSocket(s.hub, wsConfig))
		}
	})

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
