// Package server exposes persisted research runs over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/alphalab-research/alphalab/models"
)

const (
	readTimeout     = 10 * time.Second
	writeTimeout    = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Server serves stored research runs from a RunStore.
type Server struct {
	store  models.RunStore
	logger zerolog.Logger
}

// New wires the API over a run store.
func New(store models.RunStore, logger zerolog.Logger) *Server {
	return &Server{
		store:  store,
		logger: logger.With().Str("component", "server").Logger(),
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	api.GET("/runs", s.listRuns)
	api.GET("/runs/:id", s.getRun)
	api.GET("/runs/:id/signals", s.getSignals)
	api.GET("/runs/:id/backtests", s.getBacktests)

	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("Serving research runs")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		err := <-errCh
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) listRuns(c *gin.Context) {
	runs, err := s.store.ListRuns(c.Request.Context())
	if err != nil {
		s.fail(c, "listing runs", err)
		return
	}
	if runs == nil {
		runs = []models.RunSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) getRun(c *gin.Context) {
	report, ok := s.loadReport(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, report)
}

// getSignals returns only the ranked metrics of a run, for clients that do
// not want the full report payload.
func (s *Server) getSignals(c *gin.Context) {
	report, ok := s.loadReport(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"run_id":  report.RunID,
		"signals": report.Signals,
	})
}

func (s *Server) getBacktests(c *gin.Context) {
	report, ok := s.loadReport(c)
	if !ok {
		return
	}

	backtests, err := s.store.GetBacktests(c.Request.Context(), report.RunID)
	if err != nil {
		s.fail(c, "loading backtests", err)
		return
	}
	if backtests == nil {
		backtests = []models.BacktestResults{}
	}
	c.JSON(http.StatusOK, gin.H{
		"run_id":    report.RunID,
		"backtests": backtests,
	})
}

// loadReport resolves the :id parameter, replying 404 when the run does not
// exist and 500 on store failure. The second return is false when a response
// was already written.
func (s *Server) loadReport(c *gin.Context) (*models.SignalReport, bool) {
	runID := c.Param("id")
	report, err := s.store.GetReport(c.Request.Context(), runID)
	if err != nil {
		s.fail(c, "loading run", err)
		return nil, false
	}
	if report == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found", "run_id": runID})
		return nil, false
	}
	return report, true
}

func (s *Server) fail(c *gin.Context, action string, err error) {
	s.logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": action + " failed"})
}

// requestLog emits one line per request at debug level.
func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("Request")
	}
}
