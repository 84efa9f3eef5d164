package api

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/dcagrid/backtester/internal/batch"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The stream carries no credentials and runs behind the app's own
	// origin handling.
	CheckOrigin: func(*http.Request) bool { return true },
}

// streamMessage is one websocket frame on the batch stream.
type streamMessage struct {
	Type      string `json:"type"` // "progress" | "complete" | "error"
	Completed int    `json:"completed,omitempty"`
	Total     int    `json:"total,omitempty"`
	Item      any    `json:"item,omitempty"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
}

// handleBatchStream upgrades to a websocket, reads one batch request frame,
// and pushes a progress message per finished combination followed by the
// ranked result.
func (s *Server) handleBatchStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var req batchRequest
	if err := conn.ReadJSON(&req); err != nil {
		_ = conn.WriteJSON(streamMessage{Type: "error", Error: "malformed batch request: " + err.Error()})
		return
	}
	if req.Symbol == "" {
		_ = conn.WriteJSON(streamMessage{Type: "error", Error: "symbol is required"})
		return
	}

	items, err := req.items()
	if err != nil {
		_ = conn.WriteJSON(streamMessage{Type: "error", Error: err.Error()})
		return
	}

	// Progress callbacks arrive from worker goroutines; writes to the
	// connection must not interleave.
	var writeMu sync.Mutex
	onProgress := func(completed, total int, item batch.ItemResult) {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.WriteJSON(streamMessage{
			Type:      "progress",
			Completed: completed,
			Total:     total,
			Item:      itemPayload(item),
		})
	}

	result, err := s.orchestrator.Run(c.Request.Context(), items, s.batchOptions(onProgress))
	writeMu.Lock()
	defer writeMu.Unlock()
	if err != nil {
		_ = conn.WriteJSON(streamMessage{Type: "error", Error: err.Error()})
		return
	}
	_ = conn.WriteJSON(streamMessage{Type: "complete", Data: batchPayload(result)})
}

func (s *Server) batchOptions(onProgress func(int, int, batch.ItemResult)) batch.Options {
	return batch.Options{
		Workers:    s.cfg.Batch.Workers,
		Budget:     s.cfg.Batch.Budget,
		OnProgress: onProgress,
	}
}

// itemPayload flattens one batch item for JSON transport.
func itemPayload(item batch.ItemResult) gin.H {
	out := gin.H{
		"symbol": item.Item.Symbol,
		"parameters": gin.H{
			"gridSpacing":  item.Item.Params.GridInterval,
			"profitTarget": item.Item.Params.ProfitRequirement,
		},
		"duration": item.Duration.String(),
	}
	if item.Err != nil {
		out["error"] = item.Err.Error()
		return out
	}
	out["totalReturn"] = item.Result.Summary.TotalReturn
	out["maxDrawdown"] = item.Result.Summary.MaxDrawdown
	out["sharpeRatio"] = item.Result.Summary.SharpeRatio
	out["numTrades"] = item.Result.Summary.NumTrades
	return out
}

// batchPayload shapes a finished batch: ranked results plus the winner.
func batchPayload(result *batch.Result) gin.H {
	ranked := make([]gin.H, 0, len(result.Items))
	for _, item := range result.Items {
		ranked = append(ranked, itemPayload(item))
	}
	payload := gin.H{
		"runId":     result.RunID,
		"results":   ranked,
		"completed": result.Completed,
		"failed":    result.Failed,
		"elapsed":   result.Elapsed.String(),
	}
	if best := result.Best(); best != nil {
		payload["best"] = itemPayload(*best)
	}
	return payload
}
