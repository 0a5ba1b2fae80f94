package model

import "time"

// StrategyStatus enumerates strategy lifecycle states relevant to gating.
type StrategyStatus string

const (
	StrategyActive   StrategyStatus = "active"
	StrategyPaused   StrategyStatus = "paused"
	StrategyStopped  StrategyStatus = "stopped"
	StrategyArchived StrategyStatus = "archived"
)

// ExecutionMode controls whether a strategy's live orders are placed directly
// or staged for manual approval.
type ExecutionMode string

const (
	ExecutionAuto   ExecutionMode = "auto"
	ExecutionManual ExecutionMode = "manual"
)

// Strategy is the slice of strategy state the engine needs for gating.
// Config is the strategy's raw configuration blob; only known keys are read.
type Strategy struct {
	ID            string         `json:"id"`
	UserID        string         `json:"user_id"`
	Status        StrategyStatus `json:"status"`
	ExecutionMode ExecutionMode  `json:"execution_mode"`
	Config        map[string]any `json:"config,omitempty"`
}

// MaxPositionSize reads the optional position-size cap from the strategy
// config blob. The second return is false when the strategy defines none.
func (s *Strategy) MaxPositionSize() (float64, bool) {
	if s == nil || s.Config == nil {
		return 0, false
	}
	switch v := s.Config["maxPositionSize"].(type) {
	case float64:
		return v, v > 0
	case int:
		return float64(v), v > 0
	case int64:
		return float64(v), v > 0
	}
	return 0, false
}

// User is the slice of user state the engine needs: identity and tier.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Tier      string    `json:"tier"`
	CreatedAt time.Time `json:"created_at"`
}

// TierFeatures is the entitlement set resolved for a user tier. A value of -1
// means unlimited.
type TierFeatures struct {
	LiveTradingEnabled bool    `yaml:"live_trading_enabled" json:"live_trading_enabled"`
	MaxOpenOrders      int     `yaml:"max_open_orders" json:"max_open_orders"`
	MaxDailyLoss       float64 `yaml:"max_daily_loss" json:"max_daily_loss"`
}

// ExchangeConnection records a user's link to an external exchange. The gate
// only checks existence of an active connection.
type ExchangeConnection struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	ExchangeType string    `json:"exchange_type"`
	Name         string    `json:"name"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// BacktestMetrics is the performance summary of a completed backtest.
type BacktestMetrics struct {
	TotalReturn float64 `json:"total_return"`
	MaxDrawdown float64 `json:"max_drawdown"`
}

// BacktestResult is one entry of a strategy's backtest history, most recent
// last.
type BacktestResult struct {
	ID         string           `json:"id"`
	StrategyID string           `json:"strategy_id"`
	Status     string           `json:"status"`
	Metrics    *BacktestMetrics `json:"metrics,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

// BacktestCompleted is the status value counted by the backtest gate.
const BacktestCompleted = "completed"

// PortfolioPosition is one valued leg of a portfolio snapshot.
type PortfolioPosition struct {
	Symbol               string       `json:"symbol"`
	Side                 PositionSide `json:"side"`
	Quantity             float64      `json:"quantity"`
	EntryPrice           float64      `json:"entry_price"`
	CurrentPrice         float64      `json:"current_price"`
	CurrentValue         float64      `json:"current_value"`
	Cost                 float64      `json:"cost"`
	UnrealizedPnl        float64      `json:"unrealized_pnl"`
	UnrealizedPnlPercent float64      `json:"unrealized_pnl_percent"`
}

// PortfolioSummary is a valuation snapshot over a user's open positions.
type PortfolioSummary struct {
	Positions       []PortfolioPosition `json:"positions"`
	TotalValue      float64             `json:"total_value"`
	TotalCost       float64             `json:"total_cost"`
	TotalPnl        float64             `json:"total_pnl"`
	TotalPnlPercent float64             `json:"total_pnl_percent"`
}
