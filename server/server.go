package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/habedi/dogs/db"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	httpSrv *http.Server
}

func New(addr string, handler http.Handler, readTimeout, writeTimeout time.Duration) *Server {
	return &Server{httpSrv: &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpSrv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	log.Info().Str("addr", ln.Addr().String()).Msg("HTTP server listening")

	serveErr := make(chan error, 1)
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown requested")
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP shutdown incomplete")
		return err
	}
	log.Info().Msg("HTTP server stopped")
	return nil
}

// Sweepable is an in-memory cache with an explicit eviction pass.
type Sweepable interface {
	Sweep() int
}

// RunSweeper removes expired sessions and cache entries every interval until
// ctx is cancelled. A non-positive interval disables it.
func RunSweeper(ctx context.Context, sessions db.SessionRepository, interval time.Duration, caches ...Sweepable) {
	if interval <= 0 {
		log.Debug().Msg("Periodic session sweep disabled")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			Sweep(ctx, sessions, caches...)
		}
	}
}

// Sweep runs one eviction pass and returns the number of sessions removed.
func Sweep(ctx context.Context, sessions db.SessionRepository, caches ...Sweepable) int64 {
	removed, err := sessions.CleanupExpiredTokens(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Session sweep failed")
	}
	evicted := 0
	for _, c := range caches {
		evicted += c.Sweep()
	}
	if evicted > 0 {
		log.Debug().Int("evicted", evicted).Msg("Cache entries swept")
	}
	return removed
}
