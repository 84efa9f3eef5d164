package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcagrid/backtester/internal/backtest"
	"github.com/dcagrid/backtester/internal/config"
)

// stubPrices serves fixed bar series by symbol.
type stubPrices struct {
	bars map[string][]backtest.PriceBar
}

func (p *stubPrices) DailyBars(_ context.Context, symbol string) ([]backtest.PriceBar, error) {
	bars, ok := p.bars[symbol]
	if !ok {
		return nil, fmt.Errorf("no price history for %s: %w", symbol, os.ErrNotExist)
	}
	return bars, nil
}

func testSeries(prices ...float64) []backtest.PriceBar {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]backtest.PriceBar, len(prices))
	for i, price := range prices {
		d := decimal.NewFromFloat(price)
		bars[i] = backtest.PriceBar{Date: start.AddDate(0, 0, i), Close: d, AdjClose: d}
	}
	return bars
}

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Batch.Workers = 2
	prices := &stubPrices{bars: map[string][]backtest.PriceBar{
		"AAPL": testSeries(100, 95, 90, 100, 110),
		"TSLA": testSeries(100, 110, 121, 110),
	}}
	return NewServer(cfg, prices, nil)
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(rec, req)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	return rec, decoded
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	testServer(t).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	testServer(t).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "backtester_runs_started_total")
}

func TestDCAEndpoint(t *testing.T) {
	rec, body := postJSON(t, testServer(t).Handler(), "/api/backtest/dca", map[string]any{
		"symbol":            "AAPL",
		"includeComparison": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["success"])

	data := body["data"].(map[string]any)
	result := data["result"].(map[string]any)
	assert.Equal(t, "AAPL", result["symbol"])
	assert.Equal(t, "dca", result["mode"])
	assert.NotEmpty(t, result["transactions"])
	assert.NotEmpty(t, result["dailyEquityCurve"])

	comparison := data["comparison"].(map[string]any)
	assert.Equal(t, "buy-hold", comparison["mode"])
}

func TestShortDCAEndpoint(t *testing.T) {
	rec, body := postJSON(t, testServer(t).Handler(), "/api/backtest/short-dca", map[string]any{
		"symbol": "TSLA",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["success"])

	result := body["data"].(map[string]any)["result"].(map[string]any)
	assert.Equal(t, "short-dca", result["mode"])
}

func TestDCARejectsMissingSymbol(t *testing.T) {
	rec, body := postJSON(t, testServer(t).Handler(), "/api/backtest/dca", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["error"])
}

func TestDCARejectsInvalidParameters(t *testing.T) {
	rec, body := postJSON(t, testServer(t).Handler(), "/api/backtest/dca", map[string]any{
		"symbol":      "AAPL",
		"gridSpacing": 1.5,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"].(string), "gridInterval")
}

func TestDCAUnknownSymbol(t *testing.T) {
	rec, body := postJSON(t, testServer(t).Handler(), "/api/backtest/dca", map[string]any{
		"symbol": "NOPE",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, body["success"])
}

func TestDCADateWindow(t *testing.T) {
	// The window keeps a single bar, below the two-bar minimum.
	rec, body := postJSON(t, testServer(t).Handler(), "/api/backtest/dca", map[string]any{
		"symbol":    "AAPL",
		"startDate": "2024-01-02",
		"endDate":   "2024-01-02",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"].(string), "bars")
}

func TestBatchEndpoint(t *testing.T) {
	rec, body := postJSON(t, testServer(t).Handler(), "/api/backtest/batch", map[string]any{
		"symbol": "AAPL",
		"parameterGrid": map[string]any{
			"gridSpacing":  []float64{0.05, 0.10},
			"profitTarget": []float64{0.03, 0.05},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["success"])

	data := body["data"].(map[string]any)
	assert.Len(t, data["results"].([]any), 4)
	assert.EqualValues(t, 4, data["completed"])
	assert.NotNil(t, data["best"])
}

func TestBatchRejectsEmptyGrid(t *testing.T) {
	rec, _ := postJSON(t, testServer(t).Handler(), "/api/backtest/batch", map[string]any{
		"symbol":        "AAPL",
		"parameterGrid": map[string]any{"gridSpacing": []float64{}, "profitTarget": []float64{}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPortfolioEndpoint(t *testing.T) {
	rec, body := postJSON(t, testServer(t).Handler(), "/api/backtest/portfolio", map[string]any{
		"stocks": []map[string]any{
			{"symbol": "AAPL", "allocation": 0.6},
			{"symbol": "TSLA", "allocation": 0.4},
		},
		"initialCapital": 20000,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["success"])

	data := body["data"].(map[string]any)
	assert.Len(t, data["stockResults"].([]any), 2)
	assert.NotEmpty(t, data["dailyEquityCurve"])
}

func TestPortfolioRejectsBadAllocations(t *testing.T) {
	rec, _ := postJSON(t, testServer(t).Handler(), "/api/backtest/portfolio", map[string]any{
		"stocks": []map[string]any{
			{"symbol": "AAPL", "allocation": 0.6},
		},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatchStream(t *testing.T) {
	srv := httptest.NewServer(testServer(t).Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/backtest/batch/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{
		"symbol": "AAPL",
		"parameterGrid": map[string]any{
			"gridSpacing":  []float64{0.05, 0.10},
			"profitTarget": []float64{0.05},
		},
	}))

	progress := 0
	for {
		var msg map[string]any
		require.NoError(t, conn.ReadJSON(&msg))

		switch msg["type"] {
		case "progress":
			progress++
		case "complete":
			data := msg["data"].(map[string]any)
			assert.Len(t, data["results"].([]any), 2)
			assert.Equal(t, 2, progress, "one progress frame per combination")
			return
		default:
			t.Fatalf("unexpected frame: %v", msg)
		}
	}
}

func TestBatchStreamRejectsMalformedRequest(t *testing.T) {
	srv := httptest.NewServer(testServer(t).Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/backtest/batch/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{}")))

	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg["type"])
}
