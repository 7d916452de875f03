package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"donorwall/config"
	"donorwall/scraper"
	"donorwall/storage"
)

// CycleRunner runs a scrape cycle on demand.
type CycleRunner interface {
	RunCycle(ctx context.Context) (*scraper.CycleResult, error)
}

// Triggerer queues a cycle without waiting for it.
type Triggerer interface {
	Trigger()
}

// Server exposes the donor table and the run journal over HTTP.
type Server struct {
	store   storage.DonorStore
	runner  CycleRunner
	trigger Triggerer
	wall    config.WallConfig
	logger  zerolog.Logger
	srv     *http.Server
}

func NewServer(addr string, store storage.DonorStore, runner CycleRunner, logger zerolog.Logger) *Server {
	s := &Server{
		store:  store,
		runner: runner,
		wall:   config.DefaultWall(),
		logger: logger.With().Str("component", "api").Logger(),
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// SetTrigger enables POST /scrape-donors?async=1.
func (s *Server) SetTrigger(t Triggerer) {
	s.trigger = t
}

// SetWall sets the donor wall display settings.
func (s *Server) SetWall(w config.WallConfig) {
	s.wall = w
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, requestLogger(s.logger))

	r.Get("/healthz", s.health)
	r.Get("/api/donors", s.listDonors)
	r.Get("/api/runs/latest", s.latestRun)
	r.Post("/scrape-donors", s.scrapeDonors)

	r.Get("/donor-wall", s.donorWall)
	r.Get("/donor-wall-display", s.donorWallDisplay)
	r.Get("/donor-wall-styles.css", s.donorWallStyles)

	return r
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.srv.Addr).Msg("API listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
