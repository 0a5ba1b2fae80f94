package model

import "time"

// PositionSide is the direction of an open position.
type PositionSide string

const (
	PositionLong  PositionSide = "long"
	PositionShort PositionSide = "short"
)

// Position tracks a user's holding in a symbol. At most one open position
// exists per (user, symbol); ClosedAt unset means open. EntryPrice is the
// quantity-weighted average of same-direction fills.
type Position struct {
	ID          string       `json:"id"`
	UserID      string       `json:"user_id"`
	StrategyID  string       `json:"strategy_id,omitempty"`
	Symbol      string       `json:"symbol"`
	Side        PositionSide `json:"side"`
	Quantity    float64      `json:"quantity"`
	EntryPrice  float64      `json:"entry_price"`
	RealizedPnl float64      `json:"realized_pnl,omitempty"`
	OpenedAt    time.Time    `json:"opened_at"`
	ClosedAt    *time.Time   `json:"closed_at,omitempty"`
}

// IsOpen reports whether the position has not been closed.
func (p *Position) IsOpen() bool {
	return p.ClosedAt == nil
}

// SignedQuantity returns quantity with long positive and short negative.
func (p *Position) SignedQuantity() float64 {
	if p.Side == PositionShort {
		return -p.Quantity
	}
	return p.Quantity
}
