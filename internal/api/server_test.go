package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"backsim/internal/config"
	"backsim/internal/domain"
	"backsim/internal/strategy"
	"backsim/internal/strategy/builtins"
)

// fakeBars serves a deterministic daily series for AAPL.
type fakeBars struct {
	days int
}

func (f *fakeBars) GetBars(_ context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	if symbol != "AAPL" {
		return nil, fmt.Errorf("no data for symbol %s", symbol)
	}
	bars := make([]domain.Bar, 0, f.days)
	for i := 0; i < f.days; i++ {
		c := 100.0 + float64(i%10)
		bars = append(bars, domain.Bar{
			Symbol:    symbol,
			Timestamp: start.Add(time.Duration(i) * 24 * time.Hour),
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    1000,
		})
	}
	return bars, nil
}

func (f *fakeBars) Symbols(_ context.Context) ([]string, error) {
	return []string{"AAPL", "MSFT"}, nil
}

// fakeTranslator echoes the code with a marker instead of calling an LLM.
type fakeTranslator struct{}

func (fakeTranslator) Translate(_ context.Context, code, sourceLang, targetLang string) (string, error) {
	return "# translated from " + sourceLang + "\n" + code, nil
}

func (fakeTranslator) DetectLanguage(code string) string {
	if strings.Contains(code, "strategy(") {
		return "pine"
	}
	return "python"
}

func newTestServer(t *testing.T, translator Translator) *Server {
	t.Helper()
	registry := strategy.NewRegistry()
	builtins.RegisterAll(registry)
	return NewServer(config.Default(), &fakeBars{days: 30}, registry, translator, nil)
}

func TestStrategiesEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/strategies", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp StrategiesResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Strategies) != 3 {
		t.Fatalf("got %d strategies, want 3", len(resp.Strategies))
	}
	if resp.Strategies[0].Name != "bollinger" {
		t.Errorf("strategies not sorted: first is %q", resp.Strategies[0].Name)
	}
	ma := resp.Strategies[1]
	if ma.Name != "ma_crossover" || ma.Parameters["fast_period"].Default != 10 {
		t.Errorf("ma_crossover metadata wrong: %+v", ma)
	}
}

func TestSymbolsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/symbols", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp SymbolsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Symbols) != 2 || resp.Symbols[0] != "AAPL" {
		t.Errorf("symbols = %v, want [AAPL MSFT]", resp.Symbols)
	}
}

func postJSON(t *testing.T, srv *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshaling request: %v", err)
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestBacktestEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := postJSON(t, srv, "/api/backtest", BacktestRequest{
		Symbol:    "AAPL",
		Strategy:  "ma_crossover",
		StartDate: "2024-01-02",
		EndDate:   "2024-03-01",
		StrategyParams: map[string]float64{
			"fast_period": 2,
			"slow_period": 5,
		},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	var resp BacktestResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Status != "completed" {
		t.Errorf("status = %q, want completed", resp.Status)
	}
	if resp.DataPoints != 30 {
		t.Errorf("data_points = %d, want 30", resp.DataPoints)
	}
	if resp.Summary.FinalEquity <= 0 {
		t.Errorf("final equity = %v, want > 0", resp.Summary.FinalEquity)
	}
	if len(resp.Summary.EquityCurve) != 30 {
		t.Errorf("equity curve has %d samples, want 30", len(resp.Summary.EquityCurve))
	}
}

func TestBacktestValidation(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name string
		req  BacktestRequest
		want int
	}{
		{
			name: "missing symbol",
			req:  BacktestRequest{Strategy: "rsi", StartDate: "2024-01-02", EndDate: "2024-02-01"},
			want: http.StatusBadRequest,
		},
		{
			name: "unknown strategy",
			req:  BacktestRequest{Symbol: "AAPL", Strategy: "nope", StartDate: "2024-01-02", EndDate: "2024-02-01"},
			want: http.StatusBadRequest,
		},
		{
			name: "bad date",
			req:  BacktestRequest{Symbol: "AAPL", Strategy: "rsi", StartDate: "yesterday", EndDate: "2024-02-01"},
			want: http.StatusBadRequest,
		},
		{
			name: "end before start",
			req:  BacktestRequest{Symbol: "AAPL", Strategy: "rsi", StartDate: "2024-02-01", EndDate: "2024-01-02"},
			want: http.StatusBadRequest,
		},
		{
			name: "param out of range",
			req: BacktestRequest{
				Symbol: "AAPL", Strategy: "rsi", StartDate: "2024-01-02", EndDate: "2024-02-01",
				StrategyParams: map[string]float64{"period": 300},
			},
			want: http.StatusBadRequest,
		},
		{
			name: "inverted ma periods",
			req: BacktestRequest{
				Symbol: "AAPL", Strategy: "ma_crossover", StartDate: "2024-01-02", EndDate: "2024-02-01",
				StrategyParams: map[string]float64{"fast_period": 10, "slow_period": 3},
			},
			want: http.StatusBadRequest,
		},
		{
			name: "unknown symbol",
			req:  BacktestRequest{Symbol: "NOPE", Strategy: "rsi", StartDate: "2024-01-02", EndDate: "2024-02-01"},
			want: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, srv, "/api/backtest", tt.req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestTranslateEndpoints(t *testing.T) {
	srv := newTestServer(t, fakeTranslator{})

	rec := postJSON(t, srv, "/api/translate/detect", TranslateRequest{Code: `strategy("demo")`})
	if rec.Code != http.StatusOK {
		t.Fatalf("detect status = %d, want 200", rec.Code)
	}
	var det DetectResponse
	if err := json.NewDecoder(rec.Body).Decode(&det); err != nil {
		t.Fatalf("decoding detect response: %v", err)
	}
	if det.Language != "pine" {
		t.Errorf("detected language = %q, want pine", det.Language)
	}

	rec = postJSON(t, srv, "/api/translate/strategy", TranslateRequest{Code: `strategy("demo")`})
	if rec.Code != http.StatusOK {
		t.Fatalf("translate status = %d, want 200", rec.Code)
	}
	var tr TranslateResponse
	if err := json.NewDecoder(rec.Body).Decode(&tr); err != nil {
		t.Fatalf("decoding translate response: %v", err)
	}
	if tr.SourceLanguage != "pine" || tr.TargetLanguage != "python" {
		t.Errorf("languages = %q -> %q, want pine -> python", tr.SourceLanguage, tr.TargetLanguage)
	}
	if !strings.Contains(tr.TranslatedCode, "translated from pine") {
		t.Errorf("translated code missing marker: %q", tr.TranslatedCode)
	}

	// Empty code is rejected.
	rec = postJSON(t, srv, "/api/translate/strategy", TranslateRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty code status = %d, want 400", rec.Code)
	}
}

func TestTranslateUnconfigured(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := postJSON(t, srv, "/api/translate/strategy", TranslateRequest{Code: "x = 1"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("OPTIONS", "/api/backtest", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS allow-origin header")
	}
}

func TestWebSocketBacktestStream(t *testing.T) {
	srv := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/backtest"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing websocket: %v", err)
	}
	defer conn.Close()

	req := BacktestRequest{
		Symbol:    "AAPL",
		Strategy:  "rsi",
		StartDate: "2024-01-02",
		EndDate:   "2024-03-01",
	}
	if err := conn.WriteJSON(req); err != nil {
		t.Fatalf("sending request: %v", err)
	}

	type frame struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}

	var first frame
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("reading start frame: %v", err)
	}
	if first.Type != "start" {
		t.Fatalf("first frame type = %q, want start", first.Type)
	}
	var start wsStart
	if err := json.Unmarshal(first.Data, &start); err != nil {
		t.Fatalf("decoding start payload: %v", err)
	}
	if start.TotalBars != 30 || start.Symbol != "AAPL" {
		t.Errorf("start payload = %+v, want 30 bars for AAPL", start)
	}

	updates := 0
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("reading frame after %d updates: %v", updates, err)
		}
		switch f.Type {
		case "update":
			updates++
			var snap domain.Snapshot
			if err := json.Unmarshal(f.Data, &snap); err != nil {
				t.Fatalf("decoding update payload: %v", err)
			}
			if snap.Equity <= 0 {
				t.Fatalf("update %d has non-positive equity", updates)
			}
		case "complete":
			if updates != 30 {
				t.Errorf("got %d updates before complete, want 30", updates)
			}
			var summary domain.Summary
			if err := json.Unmarshal(f.Data, &summary); err != nil {
				t.Fatalf("decoding complete payload: %v", err)
			}
			if summary.FinalEquity <= 0 {
				t.Error("complete frame has non-positive final equity")
			}
			return
		default:
			t.Fatalf("unexpected frame type %q", f.Type)
		}
	}
}

func TestWebSocketBadRequestKeepsConnection(t *testing.T) {
	srv := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/backtest"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing websocket: %v", err)
	}
	defer conn.Close()

	// Unknown strategy: expect a single error frame, then the connection
	// still serves the next request.
	if err := conn.WriteJSON(BacktestRequest{
		Symbol: "AAPL", Strategy: "nope",
		StartDate: "2024-01-02", EndDate: "2024-02-01",
	}); err != nil {
		t.Fatalf("sending request: %v", err)
	}

	type frame struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("reading error frame: %v", err)
	}
	if f.Type != "error" {
		t.Fatalf("frame type = %q, want error", f.Type)
	}

	if err := conn.WriteJSON(BacktestRequest{
		Symbol: "AAPL", Strategy: "rsi",
		StartDate: "2024-01-02", EndDate: "2024-02-01",
	}); err != nil {
		t.Fatalf("sending second request: %v", err)
	}
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("reading frame after error: %v", err)
	}
	if f.Type != "start" {
		t.Errorf("frame type after error = %q, want start", f.Type)
	}
}
