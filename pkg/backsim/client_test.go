package backsim

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newFakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/strategies", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"strategies": []map[string]any{
				{
					"name":        "ma_crossover",
					"description": "Moving average crossover",
					"parameters": map[string]any{
						"fast_period": map[string]any{"type": "int", "default": 10, "min": 2, "max": 100},
					},
				},
			},
		})
	})
	mux.HandleFunc("GET /api/symbols", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"symbols": []string{"AAPL", "MSFT"}})
	})
	mux.HandleFunc("POST /api/backtest", func(w http.ResponseWriter, r *http.Request) {
		var req BacktestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Symbol == "" {
			http.Error(w, "symbol is required", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(BacktestResult{
			Status:     "completed",
			Summary:    Summary{TotalReturn: 0.05, FinalEquity: 105000, TotalTrades: 2},
			DataPoints: 30,
		})
	})
	return httptest.NewServer(mux)
}

func TestClientStrategies(t *testing.T) {
	ts := newFakeServer(t)
	defer ts.Close()

	c := NewClient(ts.URL)
	strategies, err := c.Strategies(context.Background())
	if err != nil {
		t.Fatalf("Strategies: %v", err)
	}
	if len(strategies) != 1 || strategies[0].Name != "ma_crossover" {
		t.Errorf("unexpected strategies: %+v", strategies)
	}
	spec, ok := strategies[0].Parameters["fast_period"]
	if !ok || spec.Default != 10 {
		t.Errorf("unexpected fast_period spec: %+v", spec)
	}
}

func TestClientSymbols(t *testing.T) {
	ts := newFakeServer(t)
	defer ts.Close()

	c := NewClient(ts.URL)
	symbols, err := c.Symbols(context.Background())
	if err != nil {
		t.Fatalf("Symbols: %v", err)
	}
	if len(symbols) != 2 || symbols[0] != "AAPL" {
		t.Errorf("unexpected symbols: %v", symbols)
	}
}

func TestClientBacktest(t *testing.T) {
	ts := newFakeServer(t)
	defer ts.Close()

	c := NewClient(ts.URL)
	result, err := c.Backtest(context.Background(), BacktestRequest{
		Symbol:    "AAPL",
		Strategy:  "ma_crossover",
		StartDate: "2024-01-01",
		EndDate:   "2024-03-01",
	})
	if err != nil {
		t.Fatalf("Backtest: %v", err)
	}
	if result.Status != "completed" || result.DataPoints != 30 {
		t.Errorf("unexpected result: %+v", result)
	}
	if result.Summary.FinalEquity != 105000 {
		t.Errorf("FinalEquity = %v, want 105000", result.Summary.FinalEquity)
	}
}

func TestClientBacktestServerError(t *testing.T) {
	ts := newFakeServer(t)
	defer ts.Close()

	c := NewClient(ts.URL)
	_, err := c.Backtest(context.Background(), BacktestRequest{Strategy: "ma_crossover"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Backtest error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", apiErr.StatusCode)
	}
}

func TestClientTrimsTrailingSlash(t *testing.T) {
	ts := newFakeServer(t)
	defer ts.Close()

	c := NewClient(ts.URL + "/")
	if _, err := c.Symbols(context.Background()); err != nil {
		t.Fatalf("Symbols with trailing slash: %v", err)
	}
}
