// Package backsim provides a Go client for the backsim-server REST API.
package backsim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ParamSpec describes one tunable strategy parameter.
type ParamSpec struct {
	Type    string  `json:"type"`
	Default float64 `json:"default"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// StrategyInfo is a catalog entry returned by Strategies.
type StrategyInfo struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Parameters  map[string]ParamSpec `json:"parameters"`
}

// BacktestRequest describes a backtest run.
type BacktestRequest struct {
	Symbol         string             `json:"symbol"`
	Strategy       string             `json:"strategy"`
	StartDate      string             `json:"start_date"`
	EndDate        string             `json:"end_date"`
	InitialCapital float64            `json:"initial_capital,omitempty"`
	Commission     float64            `json:"commission,omitempty"`
	StrategyParams map[string]float64 `json:"strategy_params,omitempty"`
}

// EquitySample is one point of the returned equity curve.
type EquitySample struct {
	Timestamp time.Time `json:"timestamp"`
	Equity    float64   `json:"equity"`
	Cash      float64   `json:"cash"`
	Drawdown  float64   `json:"drawdown"`
}

// Trade is one execution from the run.
type Trade struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	Qty        float64   `json:"quantity"`
	Price      float64   `json:"price"`
	Timestamp  time.Time `json:"timestamp"`
	OrderID    string    `json:"order_id"`
	Commission float64   `json:"commission"`
}

// Summary holds the performance statistics of a completed run.
type Summary struct {
	TotalReturn   float64        `json:"total_return"`
	AnnualReturn  float64        `json:"annual_return"`
	Volatility    float64        `json:"volatility"`
	SharpeRatio   float64        `json:"sharpe_ratio"`
	MaxDrawdown   float64        `json:"max_drawdown"`
	TotalTrades   int            `json:"total_trades"`
	WinningTrades int            `json:"winning_trades"`
	WinRate       float64        `json:"win_rate"`
	FinalEquity   float64        `json:"final_equity"`
	PeakEquity    float64        `json:"peak_equity"`
	EquityCurve   []EquitySample `json:"equity_curve"`
	Trades        []Trade        `json:"trades"`
}

// BacktestResult is the response of a completed backtest.
type BacktestResult struct {
	Status     string  `json:"status"`
	Summary    Summary `json:"summary"`
	DataPoints int     `json:"data_points"`
}

// APIError is returned when the server responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Client talks to a backsim-server instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL, e.g.
// "http://localhost:8000". Backtests can run for minutes on large date
// ranges, so the underlying HTTP client carries a generous timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// Strategies lists the strategies registered on the server.
func (c *Client) Strategies(ctx context.Context) ([]StrategyInfo, error) {
	var out struct {
		Strategies []StrategyInfo `json:"strategies"`
	}
	if err := c.get(ctx, "/api/strategies", &out); err != nil {
		return nil, err
	}
	return out.Strategies, nil
}

// Symbols lists the symbols available for backtesting.
func (c *Client) Symbols(ctx context.Context) ([]string, error) {
	var out struct {
		Symbols []string `json:"symbols"`
	}
	if err := c.get(ctx, "/api/symbols", &out); err != nil {
		return nil, err
	}
	return out.Symbols, nil
}

// Backtest runs a backtest synchronously and returns its result.
func (c *Client) Backtest(ctx context.Context, req BacktestRequest) (*BacktestResult, error) {
	var out BacktestResult
	if err := c.post(ctx, "/api/backtest", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
