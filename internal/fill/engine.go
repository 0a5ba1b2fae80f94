// Package fill implements paper-trading execution: simulated fills with
// slippage and fees, and trigger evaluation for limit and stop orders.
package fill

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"execution-core/internal/events"
	"execution-core/internal/model"
	"execution-core/internal/order"
	"execution-core/internal/position"
	"execution-core/internal/risk"
	"execution-core/pkg/db"
)

// conditionalFeePercent is the flat fee applied to limit/stop fills.
const conditionalFeePercent = 0.1

// Options tune a simulated market fill. Percent values: 0.1 means 0.1%.
type Options struct {
	SlippagePercent float64
	FeePercent      float64
}

// DefaultOptions matches production paper-trading defaults.
var DefaultOptions = Options{SlippagePercent: 0.1, FeePercent: 0.1}

// Engine simulates fills against supplied prices and folds them into the
// position ledger. Callers serialize calls per user; the engine itself does
// no locking across the fill/ledger sequence.
type Engine struct {
	registry *order.Registry
	ledger   *position.Ledger
	gate     *risk.Gate
	store    *db.Database
	bus      *events.Bus
	defaults Options
}

// NewEngine creates a fill engine. store and bus may be nil. A nil defaults
// uses DefaultOptions; a zero-valued Options means no slippage and no fee.
func NewEngine(registry *order.Registry, ledger *position.Ledger, gate *risk.Gate, store *db.Database, bus *events.Bus, defaults *Options) *Engine {
	effective := DefaultOptions
	if defaults != nil {
		effective = *defaults
	}
	return &Engine{
		registry: registry,
		ledger:   ledger,
		gate:     gate,
		store:    store,
		bus:      bus,
		defaults: effective,
	}
}

// ExecutePaperOrder fills a pending order at the current price adjusted for
// slippage: buys fill above, sells below. opts nil uses the engine defaults.
func (e *Engine) ExecutePaperOrder(ctx context.Context, orderID string, currentPrice float64, opts *Options) (model.Order, error) {
	if currentPrice <= 0 {
		return model.Order{}, fmt.Errorf("current price must be greater than zero: %w", model.ErrValidation)
	}
	o, err := e.registry.Get(orderID)
	if err != nil {
		return model.Order{}, err
	}
	if o.Mode != model.ModePaper {
		return model.Order{}, fmt.Errorf("order %s is a %s order, only paper orders are simulated: %w", orderID, o.Mode, model.ErrValidation)
	}
	if o.IsTerminal() {
		return model.Order{}, fmt.Errorf("order %s is %s, not pending: %w", orderID, o.Status, model.ErrStateConflict)
	}

	effective := e.defaults
	if opts != nil {
		effective = *opts
	}

	slip := effective.SlippagePercent / 100
	var filledPrice float64
	if o.Side == model.SideBuy {
		filledPrice = currentPrice * (1 + slip)
	} else {
		filledPrice = currentPrice * (1 - slip)
	}
	fee := o.Quantity * filledPrice * effective.FeePercent / 100

	return e.fill(ctx, o, filledPrice, fee)
}

// CheckLimitOrder evaluates a pending limit order against the current price.
// A buy fills when price reaches the limit from above, a sell from below; the
// fill is at the limit price with no slippage. Orders that do not trigger,
// are not pending paper limit orders, or are routed live come back unchanged.
func (e *Engine) CheckLimitOrder(ctx context.Context, orderID string, currentPrice float64) (model.Order, error) {
	o, err := e.registry.Get(orderID)
	if err != nil {
		return model.Order{}, err
	}
	if o.Type != model.TypeLimit || o.Mode != model.ModePaper || o.IsTerminal() {
		return o, nil
	}

	triggered := (o.Side == model.SideBuy && currentPrice <= o.Price) ||
		(o.Side == model.SideSell && currentPrice >= o.Price)
	if !triggered {
		return o, nil
	}

	fee := o.Quantity * o.Price * conditionalFeePercent / 100
	return e.fill(ctx, o, o.Price, fee)
}

// CheckStopOrder evaluates a pending stop_loss/take_profit order against the
// current price. Triggers fill at the current price.
func (e *Engine) CheckStopOrder(ctx context.Context, orderID string, currentPrice float64) (model.Order, error) {
	o, err := e.registry.Get(orderID)
	if err != nil {
		return model.Order{}, err
	}
	if (o.Type != model.TypeStopLoss && o.Type != model.TypeTakeProfit) || o.Mode != model.ModePaper || o.IsTerminal() {
		return o, nil
	}

	var triggered bool
	switch o.Type {
	case model.TypeStopLoss:
		// Sell stop protects a long: triggers as price falls to the stop.
		// Buy stop protects a short: triggers as price rises to it.
		triggered = (o.Side == model.SideSell && currentPrice <= o.StopPrice) ||
			(o.Side == model.SideBuy && currentPrice >= o.StopPrice)
	case model.TypeTakeProfit:
		triggered = (o.Side == model.SideSell && currentPrice >= o.StopPrice) ||
			(o.Side == model.SideBuy && currentPrice <= o.StopPrice)
	}
	if !triggered {
		return o, nil
	}

	fee := o.Quantity * currentPrice * conditionalFeePercent / 100
	return e.fill(ctx, o, currentPrice, fee)
}

// fill finalizes the order, records the trade, applies the ledger update, and
// feeds realized PnL into the risk metrics.
func (e *Engine) fill(ctx context.Context, o model.Order, filledPrice, fee float64) (model.Order, error) {
	filled, err := e.registry.MarkFilled(ctx, o.ID, filledPrice, fee, time.Now())
	if err != nil {
		return model.Order{}, err
	}

	if e.store != nil {
		if err := e.store.CreateTrade(ctx, uuid.NewString(), filled); err != nil {
			log.Printf("[FILL] store trade for %s failed: %v", filled.ID, err)
		}
	}

	result, err := e.ledger.Apply(ctx, filled)
	if err != nil {
		return model.Order{}, fmt.Errorf("apply fill %s to ledger: %w", filled.ID, err)
	}

	if result.Closed != nil && e.gate != nil {
		// Net the fee into the realized result so the daily-loss budget sees
		// the full cost of the round trip.
		e.gate.RecordFill(filled.UserID, result.Realized-fee)
	}

	log.Printf("[FILL] %s %s %s qty=%.8f price=%.4f fee=%.4f",
		filled.Mode, filled.Side, filled.Symbol, filled.Quantity, filledPrice, fee)

	if e.bus != nil {
		e.bus.Publish(events.EventOrderFilled, filled)
		if result.Closed != nil {
			e.bus.Publish(events.EventPositionChange, *result.Closed)
		}
		if result.Position.ID != "" {
			e.bus.Publish(events.EventPositionChange, result.Position)
		}
	}
	return filled, nil
}
