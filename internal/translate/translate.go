// Package translate converts trading strategy source between scripting
// languages using an OpenRouter-compatible chat-completions API.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const systemPrompt = `You are an expert trading strategy translator. Convert trading strategies between Pine Script, MQL4/MQL5, and Python for a bar-driven backtesting engine.

REQUIREMENTS:
1. Implement the EXACT same trading logic as the source code.
2. Preserve all entry/exit conditions, stop-loss, take-profit, and position sizing rules.
3. Handle all technical indicators used by the source (EMA, SMA, RSI, Bollinger Bands, etc.).
4. Return ONLY the translated code, no explanations or markdown.`

// Service translates strategy code via an LLM endpoint.
type Service struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	log     *slog.Logger
}

// NewService creates a Service. baseURL should point at an
// OpenRouter-compatible API root, e.g. "https://openrouter.ai/api/v1".
func NewService(apiKey, baseURL, model string, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log.With("component", "translate"),
	}
}

// DetectLanguage guesses the source language of strategy code. It recognizes
// Pine Script, MQL, and Python, with a Pine bias for short ambiguous
// snippets.
func (s *Service) DetectLanguage(code string) string {
	return DetectLanguage(code)
}

// DetectLanguage guesses the source language of strategy code.
func DetectLanguage(code string) string {
	lo := strings.ToLower(strings.TrimSpace(code))

	// Strong signals first.
	for _, marker := range []string{"study(", "indicator(", "strategy(", "//@version", "ta."} {
		if strings.Contains(lo, marker) {
			return "pine"
		}
	}
	for _, marker := range []string{"#property copyright", "#property link", "#property version", "ordersend", "mql4", "mql5"} {
		if strings.Contains(lo, marker) {
			return "mql"
		}
	}
	for _, marker := range []string{"import pandas", "import numpy", "def __call__"} {
		if strings.Contains(lo, marker) {
			return "python"
		}
	}

	for _, marker := range []string{"def ", "class ", "import "} {
		if strings.Contains(lo, marker) {
			return "python"
		}
	}

	return "pine"
}

// chat-completions wire types, trimmed to the fields we use.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Translate converts code from sourceLang to targetLang. The model's output
// is stripped of any markdown code fences before being returned.
func (s *Service) Translate(ctx context.Context, code, sourceLang, targetLang string) (string, error) {
	if s.apiKey == "" {
		return "", fmt.Errorf("translation API key not configured")
	}

	userPrompt := fmt.Sprintf("Translate this %s code to %s:\n\n%s\n\nReturn ONLY the %s code, no explanations.",
		strings.ToUpper(sourceLang), targetLang, code, targetLang)

	body, err := json.Marshal(chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		// Low temperature for consistent translation.
		Temperature: 0.1,
		MaxTokens:   2000,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling translation API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("translation API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding translation response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("translation API returned no choices")
	}

	out := extractCode(parsed.Choices[0].Message.Content)
	if out == "" {
		return "", fmt.Errorf("translation API returned empty code")
	}
	s.log.Info("translated strategy", "source", sourceLang, "target", targetLang, "bytes", len(out))
	return out, nil
}

// extractCode strips a surrounding markdown code fence, if any, keeping the
// fenced body. Content without fences is returned trimmed.
func extractCode(content string) string {
	content = strings.TrimSpace(content)

	idx := strings.Index(content, "```")
	if idx < 0 {
		return content
	}

	rest := content[idx+3:]
	// Drop the language tag on the opening fence line.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		firstLine := strings.TrimSpace(rest[:nl])
		if firstLine != "" && !strings.ContainsAny(firstLine, " \t") {
			rest = rest[nl+1:]
		}
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}
