package builtins

import (
	"context"
	"math"

	"backsim/internal/domain"
	"backsim/internal/engine"
	"backsim/internal/strategy"
)

// Compile-time interface check.
var _ engine.Strategy = (*Bollinger)(nil)

var bollingerInfo = strategy.Info{
	Name:        "bollinger",
	Description: "Buys when the bar touches the lower Bollinger band, sells when it touches the upper band.",
	Parameters: map[string]strategy.ParamSpec{
		"period":  {Type: "int", Default: 20, Min: 5, Max: 100},
		"std_dev": {Type: "float", Default: 2, Min: 0.5, Max: 4},
	},
}

// Bollinger trades band touches: long entry when the bar's low reaches the
// lower band, exit when the bar's high reaches the upper band.
type Bollinger struct {
	symbol string
	period int
	width  float64

	closes []float64
}

// NewBollinger builds a Bollinger band strategy for symbol.
func NewBollinger(symbol string, params strategy.Params) engine.Strategy {
	return &Bollinger{
		symbol: symbol,
		period: int(params.Get("period", 20)),
		width:  params.Get("std_dev", 2),
	}
}

// Name returns "bollinger".
func (s *Bollinger) Name() string { return "bollinger" }

// bands returns the upper and lower bands over the trailing period of closes,
// using the population standard deviation of the window.
func (s *Bollinger) bands() (upper, lower float64) {
	window := s.closes[len(s.closes)-s.period:]
	m := mean(window)
	var ss float64
	for _, v := range window {
		d := v - m
		ss += d * d
	}
	std := math.Sqrt(ss / float64(len(window)))
	return m + s.width*std, m - s.width*std
}

// OnBar appends the bar close and trades on band touches once a full period
// of closes has accumulated.
func (s *Bollinger) OnBar(_ context.Context, h *engine.Handle, bar domain.Bar) error {
	s.closes = append(s.closes, bar.Close)
	if len(s.closes) < s.period {
		return nil
	}

	upper, lower := s.bands()

	pos := h.Position(s.symbol)
	switch {
	case bar.Low <= lower && pos.Qty == 0:
		if qty := entryQty(h, bar.Close); qty > 0 {
			if _, err := h.PlaceOrder(marketOrder(s.symbol, domain.OrderSideBuy, qty)); err != nil {
				return err
			}
		}
	case bar.High >= upper && pos.Qty > 0:
		if _, err := h.PlaceOrder(marketOrder(s.symbol, domain.OrderSideSell, pos.Qty)); err != nil {
			return err
		}
	}
	return nil
}
