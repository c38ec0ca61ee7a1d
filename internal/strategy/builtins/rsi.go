package builtins

import (
	"context"
	"fmt"

	"backsim/internal/domain"
	"backsim/internal/engine"
	"backsim/internal/strategy"
)

// Compile-time interface check.
var _ engine.Strategy = (*RSI)(nil)

var rsiInfo = strategy.Info{
	Name:        "rsi",
	Description: "Buys when RSI recovers above the oversold level, sells when it falls back below the overbought level.",
	Parameters: map[string]strategy.ParamSpec{
		"period":     {Type: "int", Default: 14, Min: 2, Max: 100},
		"oversold":   {Type: "float", Default: 30, Min: 0, Max: 50},
		"overbought": {Type: "float", Default: 70, Min: 50, Max: 100},
	},
	Validate: func(p strategy.Params) error {
		oversold, overbought := p.Get("oversold", 30), p.Get("overbought", 70)
		if oversold >= overbought {
			return fmt.Errorf("oversold (%v) must be less than overbought (%v)", oversold, overbought)
		}
		return nil
	},
}

// RSI trades mean reversion on the relative strength index: long entry when
// RSI crosses up through the oversold level, exit when RSI crosses down
// through the overbought level.
type RSI struct {
	symbol     string
	period     int
	oversold   float64
	overbought float64

	closes []float64
}

// NewRSI builds an RSI strategy for symbol.
func NewRSI(symbol string, params strategy.Params) engine.Strategy {
	return &RSI{
		symbol:     symbol,
		period:     int(params.Get("period", 14)),
		oversold:   params.Get("oversold", 30),
		overbought: params.Get("overbought", 70),
	}
}

// Name returns "rsi".
func (s *RSI) Name() string { return "rsi" }

// rsiOf computes the simple-average RSI over the trailing period of closes.
// It needs period+1 closes for period deltas; callers guard the length.
func rsiOf(closes []float64, period int) float64 {
	window := closes[len(closes)-period-1:]
	var gain, loss float64
	for i := 1; i < len(window); i++ {
		d := window[i] - window[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// OnBar appends the bar close and trades on RSI level crossings once
// period+1 closes have accumulated.
func (s *RSI) OnBar(_ context.Context, h *engine.Handle, bar domain.Bar) error {
	s.closes = append(s.closes, bar.Close)
	n := len(s.closes)
	if n < s.period+1 {
		return nil
	}

	current := rsiOf(s.closes, s.period)
	prev := current
	if n > s.period+1 {
		prev = rsiOf(s.closes[:n-1], s.period)
	}

	crossedAboveOversold := prev <= s.oversold && current > s.oversold
	crossedBelowOverbought := prev >= s.overbought && current < s.overbought

	pos := h.Position(s.symbol)
	switch {
	case crossedAboveOversold && pos.Qty == 0:
		if qty := entryQty(h, bar.Close); qty > 0 {
			if _, err := h.PlaceOrder(marketOrder(s.symbol, domain.OrderSideBuy, qty)); err != nil {
				return err
			}
		}
	case crossedBelowOverbought && pos.Qty > 0:
		if _, err := h.PlaceOrder(marketOrder(s.symbol, domain.OrderSideSell, pos.Qty)); err != nil {
			return err
		}
	}
	return nil
}
