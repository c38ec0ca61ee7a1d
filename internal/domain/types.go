// Package domain defines the core types shared across the backsim platform:
// bars, orders, trades, positions, and the outputs of a backtest run.
package domain

import "time"

// OrderSide is the direction of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType is the execution rule an order follows.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
	OrderTypeStop   OrderType = "stop"
)

// OrderStatus is the lifecycle state of an order. Cancelled orders are
// removed from the open set rather than given a status of their own.
type OrderStatus string

const (
	OrderStatusOpen   OrderStatus = "open"
	OrderStatusFilled OrderStatus = "filled"
)

// Bar is one OHLCV observation for a fixed time interval. Bars are immutable
// once produced; a valid bar satisfies low <= {open, close} <= high.
type Bar struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// Order is a strategy's request to trade. It is created by PlaceOrder and
// mutated only by the order book when it fills.
type Order struct {
	ID          string      `json:"id"`
	Symbol      string      `json:"symbol"`
	Side        OrderSide   `json:"side"`
	Type        OrderType   `json:"type"`
	Qty         float64     `json:"quantity"`
	LimitPrice  float64     `json:"limit_price,omitempty"`
	StopPrice   float64     `json:"stop_price,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	Status      OrderStatus `json:"status"`
	FilledPrice float64     `json:"filled_price,omitempty"`
	FilledQty   float64     `json:"filled_quantity,omitempty"`
}

// Trade records a single execution. Exactly one Trade is created per filled
// order and it is immutable thereafter.
type Trade struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Side       OrderSide `json:"side"`
	Qty        float64   `json:"quantity"`
	Price      float64   `json:"price"`
	Timestamp  time.Time `json:"timestamp"`
	OrderID    string    `json:"order_id"`
	Commission float64   `json:"commission"`
}

// Position is the net holding for one symbol. Qty is signed: positive long,
// negative short, zero flat. AvgPrice is the cost basis of the open quantity
// and is meaningless when Qty is zero.
type Position struct {
	Symbol        string  `json:"symbol"`
	Qty           float64 `json:"quantity"`
	AvgPrice      float64 `json:"avg_price"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	RealizedPnL   float64 `json:"realized_pnl"`
}

// EquitySample is one point of the equity curve, appended once per bar.
type EquitySample struct {
	Timestamp time.Time `json:"timestamp"`
	Equity    float64   `json:"equity"`
	Cash      float64   `json:"cash"`
	Drawdown  float64   `json:"drawdown"`
}

// Snapshot is the per-bar state emitted to a snapshot sink for live
// consumers. RecentTrades is bounded so the payload size stays constant.
type Snapshot struct {
	Bar          Bar        `json:"bar"`
	Equity       float64    `json:"equity"`
	Cash         float64    `json:"cash"`
	Positions    []Position `json:"positions"`
	OpenOrders   []Order    `json:"orders"`
	RecentTrades []Trade    `json:"trades"`
}

// Summary holds the performance statistics of a completed run together with
// the full equity curve and trade list for downstream inspection. It is
// well-formed even for degenerate inputs (zero bars, zero trades).
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
