// Package server exposes the bot's health and solve-watcher state over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/duca-club/acucys-ctf/internal/config"
	"github.com/duca-club/acucys-ctf/internal/constants"
	"github.com/duca-club/acucys-ctf/internal/ctfd"
	"github.com/duca-club/acucys-ctf/internal/logger"
	"github.com/duca-club/acucys-ctf/internal/middleware"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// StatusSource is what the status endpoint reports on; *ctfd.Client
// satisfies it.
type StatusSource interface {
	BaseURL() string
	SolveWatchStatus() ctfd.SolveWatchStatus
	TeamCacheAge() (time.Duration, bool)
	IdentityCacheSize() int
}

type StatusResponse struct {
	Event             string                `json:"event"`
	APIBaseURL        string                `json:"api_base_url"`
	SolveWatch        ctfd.SolveWatchStatus `json:"solve_watch"`
	TeamCacheAgeSecs  *float64              `json:"team_cache_age_seconds"`
	IdentityCacheSize int                   `json:"identity_cache_size"`
	StartedAt         time.Time             `json:"started_at"`
	UptimeSeconds     float64               `json:"uptime_seconds"`
}

type StatusServer struct {
	source  StatusSource
	event   string
	started time.Time
	now     func() time.Time
	srv     *http.Server
	logger  zerolog.Logger
}

func NewStatusServer(source StatusSource, cfg *config.Config, log zerolog.Logger) *StatusServer {
	s := &StatusServer{
		source:  source,
		event:   cfg.EventName,
		started: time.Now(),
		now:     time.Now,
		logger:  logger.Component(log, "status"),
	}
	s.srv = &http.Server{
		Addr:              net.JoinHostPort("", cfg.StatusPort),
		Handler:           s.Handler(),
		ReadHeaderTimeout: constants.StatusReadHeaderTimeout,
	}
	return s
}

// Handler serves /healthz and /status behind request-id logging and CORS.
func (s *StatusServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /status", s.handleStatus)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return middleware.RequestID(s.logger, "/healthz")(c.Handler(mux))
}

func (s *StatusServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Event:             s.event,
		APIBaseURL:        s.source.BaseURL(),
		SolveWatch:        s.source.SolveWatchStatus(),
		IdentityCacheSize: s.source.IdentityCacheSize(),
		StartedAt:         s.started.UTC(),
		UptimeSeconds:     s.now().Sub(s.started).Seconds(),
	}
	if age, ok := s.source.TeamCacheAge(); ok {
		secs := age.Seconds()
		resp.TeamCacheAgeSecs = &secs
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("failed to write status response")
	}
}

// Start listens in the background. A listen failure after startup is logged.
func (s *StatusServer) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("status server starting")
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("status server failed")
		}
	}()
	return nil
}

func (s *StatusServer) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, constants.ShutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info().Msg("status server stopped")
	return nil
}
