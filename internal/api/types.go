package api

import (
	"backsim/internal/domain"
	"backsim/internal/strategy"
)

// BacktestRequest is the body of POST /api/backtest and of WebSocket run
// requests.
type BacktestRequest struct {
	Symbol         string             `json:"symbol"`
	Strategy       string             `json:"strategy"`
	StartDate      string             `json:"start_date"`
	EndDate        string             `json:"end_date"`
	InitialCapital float64            `json:"initial_capital"`
	Commission     float64            `json:"commission"`
	StrategyParams map[string]float64 `json:"strategy_params"`
}

// BacktestResponse is the body of a completed POST /api/backtest.
type BacktestResponse struct {
	Status     string         `json:"status"`
	Summary    domain.Summary `json:"summary"`
	DataPoints int            `json:"data_points"`
}

// StrategiesResponse lists the registered strategies with their parameter
// metadata.
type StrategiesResponse struct {
	Strategies []strategy.Info `json:"strategies"`
}

// SymbolsResponse lists the available symbol universe.
type SymbolsResponse struct {
	Symbols []string `json:"symbols"`
}

// TranslateRequest is the body of POST /api/translate/strategy and
// POST /api/translate/detect.
type TranslateRequest struct {
	Code           string `json:"code"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
}

// TranslateResponse is the body of a successful translation.
type TranslateResponse struct {
	TranslatedCode string `json:"translated_code"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
}

// DetectResponse reports the detected source language.
type DetectResponse struct {
	Language string `json:"language"`
}

// wsEnvelope is the wire frame for every WebSocket message.
type wsEnvelope struct {
	Type string `json:"type"` // start, update, complete, error
	Data any    `json:"data"`
}

// wsStart is the payload of the "start" envelope.
type wsStart struct {
	TotalBars int    `json:"total_bars"`
	Symbol    string `json:"symbol"`
	Strategy  string `json:"strategy"`
}

// wsError is the payload of the "error" envelope.
type wsError struct {
	Message string `json:"message"`
}
