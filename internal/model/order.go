package model

import (
	"fmt"
	"strings"
	"time"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderType enumerates supported order types.
type OrderType string

const (
	TypeMarket     OrderType = "market"
	TypeLimit      OrderType = "limit"
	TypeStopLoss   OrderType = "stop_loss"
	TypeTakeProfit OrderType = "take_profit"
)

// OrderStatus enumerates order lifecycle states. Pending is the only
// non-terminal state.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusFilled    OrderStatus = "filled"
	StatusCancelled OrderStatus = "cancelled"
	StatusRejected  OrderStatus = "rejected"
	StatusExpired   OrderStatus = "expired"
)

// TradeMode distinguishes simulated from live orders.
type TradeMode string

const (
	ModePaper TradeMode = "paper"
	ModeLive  TradeMode = "live"
)

// Order represents a trade intent accepted by the engine.
type Order struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	StrategyID  string      `json:"strategy_id,omitempty"`
	Symbol      string      `json:"symbol"`
	Side        Side        `json:"side"`
	Type        OrderType   `json:"type"`
	Quantity    float64     `json:"quantity"`
	Price       float64     `json:"price,omitempty"`
	StopPrice   float64     `json:"stop_price,omitempty"`
	Status      OrderStatus `json:"status"`
	Mode        TradeMode   `json:"mode"`
	ExchangeID  string      `json:"exchange_id,omitempty"`
	FilledPrice float64     `json:"filled_price,omitempty"`
	FilledAt    *time.Time  `json:"filled_at,omitempty"`
	Fee         float64     `json:"fee,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// IsTerminal reports whether the order left the pending state.
func (o *Order) IsTerminal() bool {
	return o.Status != StatusPending
}

// SignedQuantity returns quantity with buy positive and sell negative.
func (o *Order) SignedQuantity() float64 {
	if o.Side == SideSell {
		return -o.Quantity
	}
	return o.Quantity
}

// OrderRequest carries order-creation parameters through the risk gate and the
// approval workflow.
type OrderRequest struct {
	UserID     string    `json:"user_id"`
	StrategyID string    `json:"strategy_id,omitempty"`
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Type       OrderType `json:"type"`
	Quantity   float64   `json:"quantity"`
	Price      float64   `json:"price,omitempty"`
	StopPrice  float64   `json:"stop_price,omitempty"`
	Mode       TradeMode `json:"mode"`
	ExchangeID string    `json:"exchange_id,omitempty"`
}

// SignedQuantity returns quantity with buy positive and sell negative.
func (r OrderRequest) SignedQuantity() float64 {
	if r.Side == SideSell {
		return -r.Quantity
	}
	return r.Quantity
}

// Validate checks the structural shape of the request: positive quantity,
// base/quote symbol, side/type/mode enums, and the price fields each order
// type requires.
func (r OrderRequest) Validate() error {
	if r.UserID == "" {
		return fmt.Errorf("user id is required: %w", ErrValidation)
	}
	if r.Quantity <= 0 {
		return fmt.Errorf("quantity must be greater than zero: %w", ErrValidation)
	}
	if !strings.Contains(r.Symbol, "/") {
		return fmt.Errorf("symbol %q must be in BASE/QUOTE format: %w", r.Symbol, ErrValidation)
	}
	switch r.Side {
	case SideBuy, SideSell:
	default:
		return fmt.Errorf("invalid side %q: %w", r.Side, ErrValidation)
	}
	switch r.Mode {
	case ModePaper, ModeLive:
	default:
		return fmt.Errorf("invalid mode %q: %w", r.Mode, ErrValidation)
	}
	switch r.Type {
	case TypeMarket:
	case TypeLimit:
		if r.Price <= 0 {
			return fmt.Errorf("limit orders require a price: %w", ErrValidation)
		}
	case TypeStopLoss, TypeTakeProfit:
		if r.StopPrice <= 0 {
			return fmt.Errorf("%s orders require a stop price: %w", r.Type, ErrValidation)
		}
	default:
		return fmt.Errorf("invalid order type %q: %w", r.Type, ErrValidation)
	}
	return nil
}
