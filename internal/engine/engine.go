// Package engine implements the event-driven backtest core: order matching,
// the position/cash ledger, equity and drawdown tracking, and the per-bar
// simulation driver.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"backsim/internal/domain"
)

// State is the lifecycle state of the simulation driver.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateComplete State = "complete"
)

// Order placement misuse is reported to the caller of PlaceOrder and never
// aborts a run.
var (
	ErrQuantity   = errors.New("order quantity must be positive")
	ErrLimitPrice = errors.New("limit order requires a positive limit price")
	ErrStopPrice  = errors.New("stop order requires a positive stop price")
	ErrNotRunning = errors.New("engine is not running")
)

// Strategy receives the engine handle and the current bar once per bar, and
// may place or cancel orders through the handle. A returned error (or panic)
// is logged and the run continues with engine state unchanged by the failed
// call.
type Strategy interface {
	Name() string
	OnBar(ctx context.Context, h *Handle, bar domain.Bar) error
}

// SnapshotSink receives per-bar state for live consumers. Emit is awaited to
// completion before the driver advances to the next bar, so snapshot order
// always matches bar order; a slow sink delays but never reorders the run.
type SnapshotSink interface {
	Emit(ctx context.Context, snap domain.Snapshot) error
}

// Config holds the run parameters of an engine instance.
type Config struct {
	InitialCapital float64
	Commission     float64 // proportional fee on notional, e.g. 0.001

	// BarDelay is an optional pacing delay between bars, used for live
	// visualization. It has no effect on results, only wall-clock cadence.
	BarDelay time.Duration

	// SnapshotTrades bounds the trade tail included in each snapshot so the
	// payload size stays constant. Defaults to 10.
	SnapshotTrades int
}

// Engine drives a backtest over an ordered bar sequence. A single instance
// supports repeated runs: every run starts from a clean ledger, book, and
// tracker. An Engine is not safe for concurrent use; concurrent backtests
// need independent instances.
type Engine struct {
	cfg  Config
	log  *slog.Logger
	sink SnapshotSink

	book    *Book
	ledger  *Ledger
	tracker *Tracker

	state      State
	currentBar domain.Bar
	hasBar     bool
}

// New creates an Engine with the given configuration.
func New(cfg Config, log *slog.Logger) *Engine {
	if cfg.SnapshotTrades <= 0 {
		cfg.SnapshotTrades = 10
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		cfg:     cfg,
		log:     log.With("component", "engine"),
		book:    NewBook(),
		ledger:  NewLedger(cfg.InitialCapital, cfg.Commission),
		tracker: NewTracker(cfg.InitialCapital),
		state:   StateIdle,
	}
}

// SetSink attaches a snapshot sink. A nil sink disables per-bar emission,
// which is the normal mode for batch runs.
func (e *Engine) SetSink(s SnapshotSink) {
	e.sink = s
}

// State returns the driver's lifecycle state.
func (e *Engine) State() State {
	return e.state
}

// Run executes the backtest over bars in order. It validates the feed
// contract up front, resets all run state, and then for each bar: matches
// open orders, invokes the strategy, samples equity, and emits a snapshot if
// a sink is attached. Cancellation is checked once per bar boundary.
func (e *Engine) Run(ctx context.Context, bars []domain.Bar, strat Strategy) (domain.Summary, error) {
	if err := validateFeed(bars); err != nil {
		return domain.Summary{}, err
	}

	e.book.Reset()
	e.ledger.Reset(e.cfg.InitialCapital)
	e.tracker.Reset(e.cfg.InitialCapital)
	e.hasBar = false
	e.state = StateRunning

	handle := &Handle{engine: e}

	for i := range bars {
		if err := ctx.Err(); err != nil {
			e.state = StateIdle
			return domain.Summary{}, err
		}

		bar := bars[i]
		e.currentBar = bar
		e.hasBar = true

		for _, fill := range e.book.Match(bar) {
			trade := e.ledger.ApplyFill(fill.Order, fill.Price, bar.Timestamp)
			e.log.Debug("order filled",
				"order", fill.Order.ID,
				"side", trade.Side,
				"qty", trade.Qty,
				"price", trade.Price,
			)
		}

		if strat != nil {
			if err := e.step(ctx, strat, handle, bar); err != nil {
				e.log.Error("strategy step failed",
					"strategy", strat.Name(),
					"bar", bar.Timestamp,
					"error", err,
				)
			}
		}

		e.ledger.Mark(bar)
		e.tracker.Sample(bar.Timestamp, e.ledger.Equity(), e.ledger.Cash())

		if e.sink != nil {
			if err := e.sink.Emit(ctx, e.snapshot(bar)); err != nil {
				e.state = StateIdle
				return domain.Summary{}, fmt.Errorf("emitting snapshot: %w", err)
			}
		}

		if e.cfg.BarDelay > 0 {
			select {
			case <-ctx.Done():
				e.state = StateIdle
				return domain.Summary{}, ctx.Err()
			case <-time.After(e.cfg.BarDelay):
			}
		}
	}

	e.state = StateComplete
	return e.Summary(), nil
}

// step invokes the strategy callback, converting a panic into an error so
// one flawed invocation cannot abort an otherwise valid backtest.
func (e *Engine) step(ctx context.Context, strat Strategy, h *Handle, bar domain.Bar) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy panic: %v", r)
		}
	}()
	return strat.OnBar(ctx, h, bar)
}

// Summary computes the performance summary from the current run state. It is
// well-formed even when no bars were processed.
func (e *Engine) Summary() domain.Summary {
	total, winning := e.ledger.Counts()
	return summarize(
		e.cfg.InitialCapital,
		e.tracker.Curve(),
		e.ledger.Trades(),
		total, winning,
		e.tracker.Peak(),
		e.tracker.MaxDrawdown(),
	)
}

func (e *Engine) snapshot(bar domain.Bar) domain.Snapshot {
	return domain.Snapshot{
		Bar:          bar,
		Equity:       e.ledger.Equity(),
		Cash:         e.ledger.Cash(),
		Positions:    e.ledger.Positions(),
		OpenOrders:   e.book.Open(),
		RecentTrades: e.ledger.RecentTrades(e.cfg.SnapshotTrades),
	}
}

// validateFeed enforces the bar-feed contract: strictly increasing
// timestamps and low <= {open, close} <= high on every bar. A violation is
// fatal for the run.
func validateFeed(bars []domain.Bar) error {
	for i := range bars {
		b := bars[i]
		if b.Timestamp.IsZero() {
			return fmt.Errorf("bar %d: missing timestamp", i)
		}
		if i > 0 && !b.Timestamp.After(bars[i-1].Timestamp) {
			return fmt.Errorf("bar %d: timestamp %s not after previous %s",
				i, b.Timestamp, bars[i-1].Timestamp)
		}
		if b.Low > b.Open || b.Low > b.Close || b.High < b.Open || b.High < b.Close {
			return fmt.Errorf("bar %d: OHLC out of range (o=%v h=%v l=%v c=%v)",
				i, b.Open, b.High, b.Low, b.Close)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Strategy handle
// ---------------------------------------------------------------------------

// OrderRequest describes an order a strategy wants to place.
type OrderRequest struct {
	Symbol     string
	Side       domain.OrderSide
	Type       domain.OrderType
	Qty        float64
	LimitPrice float64
	StopPrice  float64
}

// Handle is the narrow view of the engine exposed to strategies. It offers
// only accessor and command operations, never the engine's internal
// collections, so a buggy strategy cannot corrupt ledger invariants except
// through the documented order-placement path.
type Handle struct {
	engine *Engine
}

// PlaceOrder submits a new order into the book and returns its ID. Misuse
// (non-positive quantity, missing limit/stop price) is reported as an error
// to the caller and never aborts the run.
func (h *Handle) PlaceOrder(req OrderRequest) (string, error) {
	e := h.engine
	if e.state != StateRunning {
		return "", ErrNotRunning
	}
	if req.Qty <= 0 {
		return "", ErrQuantity
	}
	if req.Type == domain.OrderTypeLimit && req.LimitPrice <= 0 {
		return "", ErrLimitPrice
	}
	if req.Type == domain.OrderTypeStop && req.StopPrice <= 0 {
		return "", ErrStopPrice
	}

	createdAt := time.Now()
	if e.hasBar {
		createdAt = e.currentBar.Timestamp
	}

	order := &domain.Order{
		ID:         uuid.NewString(),
		Symbol:     req.Symbol,
		Side:       req.Side,
		Type:       req.Type,
		Qty:        req.Qty,
		LimitPrice: req.LimitPrice,
		StopPrice:  req.StopPrice,
		CreatedAt:  createdAt,
		Status:     domain.OrderStatusOpen,
	}
	e.book.Add(order)
	return order.ID, nil
}

// CancelOrder removes a still-open order from the book. It returns false for
// unknown or already-filled IDs, with no side effects on cash or positions.
func (h *Handle) CancelOrder(id string) bool {
	return h.engine.book.Cancel(id)
}

// Position returns a copy of the current position for symbol, zero-quantity
// if no trade has touched the symbol yet.
func (h *Handle) Position(symbol string) domain.Position {
	return h.engine.ledger.Position(symbol)
}

// Equity returns the current mark-to-market equity.
func (h *Handle) Equity() float64 {
	return h.engine.ledger.Equity()
}

// Cash returns the current cash balance.
func (h *Handle) Cash() float64 {
	return h.engine.ledger.Cash()
}
