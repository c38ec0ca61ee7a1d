package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"backsim/internal/domain"
	"backsim/internal/engine"
)

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, StrategiesResponse{Strategies: s.registry.List()})
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := s.bars.Symbols(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list symbols")
		return
	}
	writeJSON(w, SymbolsResponse{Symbols: symbols})
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	run, err := s.prepareRun(r.Context(), &req)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	summary, err := run.engine.Run(r.Context(), run.bars, run.strategy)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, BacktestResponse{
		Status:     "completed",
		Summary:    summary,
		DataPoints: len(run.bars),
	})
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	if s.translator == nil {
		writeError(w, http.StatusServiceUnavailable, "translation not configured")
		return
	}

	var req TranslateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	source := req.SourceLanguage
	if source == "" || source == "auto" {
		source = s.translator.DetectLanguage(req.Code)
	}
	target := req.TargetLanguage
	if target == "" {
		target = "python"
	}

	translated, err := s.translator.Translate(r.Context(), req.Code, source, target)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, TranslateResponse{
		TranslatedCode: translated,
		SourceLanguage: source,
		TargetLanguage: target,
	})
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	if s.translator == nil {
		writeError(w, http.StatusServiceUnavailable, "translation not configured")
		return
	}

	var req TranslateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	writeJSON(w, DetectResponse{Language: s.translator.DetectLanguage(req.Code)})
}

// ---------------------------------------------------------------------------
// Run preparation shared by the REST and WebSocket paths
// ---------------------------------------------------------------------------

// badRequestError marks validation failures so statusFor can map them to 400.
type badRequestError struct{ msg string }

func (e *badRequestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &badRequestError{msg: fmt.Sprintf(format, args...)}
}

func statusFor(err error) int {
	if _, ok := err.(*badRequestError); ok {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// preparedRun bundles everything needed to execute one backtest.
type preparedRun struct {
	engine   *engine.Engine
	bars     []domain.Bar
	strategy engine.Strategy
}

// prepareRun validates the request, fetches bars, and instantiates the
// strategy and engine. Request fields left at zero take the configured
// defaults.
func (s *Server) prepareRun(ctx context.Context, req *BacktestRequest) (*preparedRun, error) {
	return s.prepareRunPaced(ctx, req, false)
}

// prepareRunPaced is prepareRun with control over the visualization delay
// between bars; the WebSocket path paces, the REST path does not.
func (s *Server) prepareRunPaced(ctx context.Context, req *BacktestRequest, paced bool) (*preparedRun, error) {
	if req.Symbol == "" {
		return nil, badRequest("symbol is required")
	}
	if req.Strategy == "" {
		return nil, badRequest("strategy is required")
	}

	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return nil, badRequest("invalid start_date %q", req.StartDate)
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		return nil, badRequest("invalid end_date %q", req.EndDate)
	}
	if end.Before(start) {
		return nil, badRequest("end_date before start_date")
	}

	if _, ok := s.registry.Get(req.Strategy); !ok {
		return nil, badRequest("unknown strategy %q", req.Strategy)
	}

	bars, err := s.bars.GetBars(ctx, req.Symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("loading bars: %w", err)
	}

	strat, err := s.registry.New(req.Strategy, req.Symbol, req.StrategyParams)
	if err != nil {
		return nil, badRequest("%v", err)
	}

	cfg := engine.Config{
		InitialCapital: req.InitialCapital,
		Commission:     req.Commission,
		SnapshotTrades: s.cfg.Backtest.SnapshotTrades,
	}
	if cfg.InitialCapital <= 0 {
		cfg.InitialCapital = s.cfg.Backtest.InitialCapital
	}
	if cfg.Commission == 0 {
		cfg.Commission = s.cfg.Backtest.Commission
	}
	if paced {
		cfg.BarDelay = time.Duration(s.cfg.Backtest.BarDelayMS) * time.Millisecond
	}

	return &preparedRun{
		engine:   engine.New(cfg, s.log),
		bars:     bars,
		strategy: strat,
	}, nil
}
