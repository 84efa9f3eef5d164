package api

import (
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dcagrid/backtester/internal/backtest"
	"github.com/dcagrid/backtester/internal/telemetry"
)

// respondOK writes the {success, data} envelope.
func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// respondError writes the {success, error} envelope. Validation failures map
// to 400, unknown symbols to 404, everything else to 500.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var verr *backtest.ValidationError
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
	case errors.Is(err, os.ErrNotExist):
		status = http.StatusNotFound
	}
	c.JSON(status, gin.H{"success": false, "error": err.Error()})
}

func (s *Server) handleDCA(c *gin.Context) {
	s.runSingle(c, backtest.ModeDCA)
}

func (s *Server) handleShortDCA(c *gin.Context) {
	s.runSingle(c, backtest.ModeShortDCA)
}

func (s *Server) runSingle(c *gin.Context, mode backtest.Mode) {
	var req backtestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, &backtest.ValidationError{Field: "body", Message: err.Error()})
		return
	}

	start, end, err := req.dateRange()
	if err != nil {
		respondError(c, err)
		return
	}

	bars, err := s.prices.DailyBars(c.Request.Context(), req.Symbol)
	if err != nil {
		respondError(c, err)
		return
	}
	bars = filterBars(bars, start, end)

	params := req.toParams(mode)
	telemetry.RecordRunStarted(string(mode))

	began := time.Now()
	result, err := backtest.Run(params, bars)
	if err != nil {
		telemetry.RecordRunFailed(string(mode))
		respondError(c, err)
		return
	}
	result.Symbol = req.Symbol
	telemetry.RecordRunCompleted(string(mode), time.Since(began))
	s.recordWarnings(req.Symbol, result)

	payload := gin.H{"result": result}
	if req.IncludeComparison {
		comparison, err := s.comparison(mode, params, bars)
		if err == nil {
			payload["comparison"] = comparison
		} else {
			s.log.Symbol(req.Symbol).WithError(err).Warn("comparison run failed")
		}
	}
	respondOK(c, payload)
}

// comparison runs the hold strategy matching the mode on the same bars.
func (s *Server) comparison(mode backtest.Mode, params backtest.Params, bars []backtest.PriceBar) (*backtest.Result, error) {
	if mode == backtest.ModeShortDCA {
		return backtest.ShortAndHold(params.InitialCapital, bars, params.RiskFreeRate)
	}
	return backtest.BuyAndHold(params.InitialCapital, bars, params.RiskFreeRate)
}

func (s *Server) recordWarnings(symbol string, result *backtest.Result) {
	gaps, covers := 0, 0
	for _, warning := range result.Warnings {
		switch warning.Kind {
		case backtest.WarnDataGap:
			gaps++
		case backtest.WarnForcedCover:
			covers++
		}
	}
	telemetry.RecordDataGaps(symbol, gaps)
	telemetry.RecordForcedCovers(symbol, covers)
}

func (s *Server) handleBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, &backtest.ValidationError{Field: "body", Message: err.Error()})
		return
	}

	items, err := req.items()
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := s.orchestrator.Run(c.Request.Context(), items, s.batchOptions(nil))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, batchPayload(result))
}

func (s *Server) handlePortfolio(c *gin.Context) {
	var req portfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, &backtest.ValidationError{Field: "body", Message: err.Error()})
		return
	}

	result, err := s.orchestrator.RunPortfolio(c.Request.Context(), s.betas, req.toBatchRequest())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}
