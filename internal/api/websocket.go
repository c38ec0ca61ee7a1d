package api

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"backsim/internal/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The REST API is already open to all origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsSink streams per-bar snapshots to one WebSocket connection. The engine
// awaits each Emit, so frames always arrive in bar order.
type wsSink struct {
	conn *websocket.Conn
}

func (s *wsSink) Emit(_ context.Context, snap domain.Snapshot) error {
	return s.conn.WriteJSON(wsEnvelope{Type: "update", Data: snap})
}

// handleBacktestWS upgrades the connection and serves backtest runs over it.
// Each client message is a BacktestRequest; the run streams back as a start
// envelope, one update per bar, and a final complete envelope. Run failures
// are reported as error envelopes and keep the connection open for the next
// request.
func (s *Server) handleBacktestWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	for {
		var req BacktestRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("websocket read failed", "err", err)
			}
			return
		}
		s.runStreaming(r.Context(), conn, &req)
	}
}

func (s *Server) runStreaming(ctx context.Context, conn *websocket.Conn, req *BacktestRequest) {
	sendError := func(err error) {
		if werr := conn.WriteJSON(wsEnvelope{Type: "error", Data: wsError{Message: err.Error()}}); werr != nil {
			s.log.Warn("websocket write failed", "err", werr)
		}
	}

	run, err := s.prepareRunPaced(ctx, req, true)
	if err != nil {
		sendError(err)
		return
	}

	start := wsEnvelope{Type: "start", Data: wsStart{
		TotalBars: len(run.bars),
		Symbol:    req.Symbol,
		Strategy:  req.Strategy,
	}}
	if err := conn.WriteJSON(start); err != nil {
		s.log.Warn("websocket write failed", "err", err)
		return
	}

	run.engine.SetSink(&wsSink{conn: conn})
	summary, err := run.engine.Run(ctx, run.bars, run.strategy)
	if err != nil {
		sendError(err)
		return
	}

	if err := conn.WriteJSON(wsEnvelope{Type: "complete", Data: summary}); err != nil {
		s.log.Warn("websocket write failed", "err", err)
	}
}
