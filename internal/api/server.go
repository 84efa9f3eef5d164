// Package api exposes the backtester over HTTP: JSON endpoints for single,
// batch, and portfolio runs, a websocket progress stream for batches, and
// plain health and metrics endpoints.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dcagrid/backtester/internal/batch"
	"github.com/dcagrid/backtester/internal/config"
	"github.com/dcagrid/backtester/internal/logger"
	"github.com/dcagrid/backtester/internal/provider"
	"github.com/dcagrid/backtester/internal/telemetry"
)

// Server wires the HTTP surface to the engines.
type Server struct {
	cfg          *config.Config
	prices       provider.PriceProvider
	betas        provider.BetaProvider
	orchestrator *batch.Orchestrator
	log          *logger.Logger
	router       *gin.Engine
}

// NewServer builds the router. The beta provider may be nil; beta-adjusted
// allocation then degrades to neutral betas.
func NewServer(cfg *config.Config, prices provider.PriceProvider, betas provider.BetaProvider) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:          cfg,
		prices:       prices,
		betas:        betas,
		orchestrator: batch.NewOrchestrator(prices),
		log:          logger.Component("api"),
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	router.GET("/metrics", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/plain; version=0.0.4", []byte(telemetry.Render()))
	})

	group := router.Group("/api/backtest")
	group.POST("/dca", s.handleDCA)
	group.POST("/short-dca", s.handleShortDCA)
	group.POST("/batch", s.handleBatch)
	group.POST("/portfolio", s.handlePortfolio)
	group.GET("/batch/stream", s.handleBatchStream)

	s.router = router
	return s
}

// Handler returns the router for mounting or testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is canceled, then drains in-flight requests within
// the configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", srv.Addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
