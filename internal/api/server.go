package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/lookout/internal/pipeline"
	"github.com/MikeSquared-Agency/lookout/internal/retention"
	"github.com/MikeSquared-Agency/lookout/internal/store"
	"github.com/MikeSquared-Agency/lookout/internal/timeline"
)

// RunLister reads the persisted run log. store.Store satisfies it.
type RunLister interface {
	ListRecentRuns(ctx context.Context, limit int) ([]store.RunRow, error)
}

// Sweeper runs a retention cycle on demand. retention.Sweeper satisfies it.
type Sweeper interface {
	SweepOnce(ctx context.Context) retention.Report
}

type Server struct {
	router     *chi.Mux
	port       int
	apiToken   string
	orch       *pipeline.Orchestrator
	timeline   *timeline.Store
	outputsDir string
	runs       RunLister
	sweeper    Sweeper
	logger     *slog.Logger
	http       *http.Server
}

func NewServer(port int, apiToken string, orch *pipeline.Orchestrator, tl *timeline.Store, outputsDir string, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:     router,
		port:       port,
		apiToken:   apiToken,
		orch:       orch,
		timeline:   tl,
		outputsDir: outputsDir,
		logger:     logger,
	}
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/lookout/status", s.status)

	router.Post("/process_frame", s.processFrame)
	router.Post("/process_audio", s.processAudio)
	router.Post("/process", s.processPair)
	router.Get("/static/outputs/{name}", s.serveOutput)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.Get("/runs", s.listRuns)
		r.Post("/sweep", s.sweep)
	})

	return s
}

// SetRunLister enables GET /api/v1/runs.
func (s *Server) SetRunLister(l RunLister) { s.runs = l }

// SetSweeper enables POST /api/v1/sweep.
func (s *Server) SetSweeper(sw Sweeper) { s.sweeper = sw }

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Start() error {
	s.logger.Info("API server starting", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":  "lookout",
		"status":   "ok",
		"sessions": s.timeline.Stats(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
