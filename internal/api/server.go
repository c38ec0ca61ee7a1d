// Package api provides the HTTP and WebSocket server for the backsim
// platform, exposing strategy, symbol, backtest, and translation endpoints.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"backsim/internal/config"
	"backsim/internal/domain"
	"backsim/internal/strategy"
)

// BarSource supplies historical bars and the symbol universe. It is
// implemented by data.Manager.
type BarSource interface {
	GetBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)
	Symbols(ctx context.Context) ([]string, error)
}

// Translator converts strategy source code between scripting languages. A nil
// Translator disables the translation endpoints.
type Translator interface {
	Translate(ctx context.Context, code, sourceLang, targetLang string) (string, error)
	DetectLanguage(code string) string
}

// Server is the main API server.
type Server struct {
	cfg        *config.Config
	log        *slog.Logger
	bars       BarSource
	registry   *strategy.Registry
	translator Translator

	httpServer *http.Server
}

// NewServer creates a Server wired to the given data source and strategy
// registry. translator may be nil.
func NewServer(cfg *config.Config, bars BarSource, registry *strategy.Registry, translator Translator, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		cfg:        cfg,
		log:        log.With("component", "api"),
		bars:       bars,
		registry:   registry,
		translator: translator,
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/strategies", s.handleStrategies)
	mux.HandleFunc("GET /api/symbols", s.handleSymbols)
	mux.HandleFunc("POST /api/backtest", s.handleBacktest)
	mux.HandleFunc("POST /api/translate/strategy", s.handleTranslate)
	mux.HandleFunc("POST /api/translate/detect", s.handleDetect)
	mux.HandleFunc("GET /ws/backtest", s.handleBacktestWS)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

// ListenAndServe starts the HTTP listener and blocks until the server stops.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	s.log.Info("listening", "addr", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown performs a graceful shutdown of the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
