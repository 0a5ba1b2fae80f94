package risk

import (
	"context"

	"execution-core/internal/model"
)

// Collaborators consumed by the gate. All are injected; the gate never reaches
// into ambient process state.

// UserStore resolves users for the existence and tier checks.
type UserStore interface {
	FindUserByID(ctx context.Context, id string) (*model.User, error)
}

// ConfigService resolves entitlement features by user tier.
type ConfigService interface {
	TierFeatures(tier string) (model.TierFeatures, error)
}

// StrategyService resolves strategy state for gating.
type StrategyService interface {
	GetStrategy(ctx context.Context, id string) (*model.Strategy, error)
}

// ExchangeConnectionStore lists a user's exchange connections. The gate only
// checks that at least one exists.
type ExchangeConnectionStore interface {
	FindConnectionsByUserID(ctx context.Context, userID string) ([]model.ExchangeConnection, error)
}

// BacktestService returns a strategy's backtest history, most recent last.
type BacktestService interface {
	BacktestHistory(ctx context.Context, strategyID string) ([]model.BacktestResult, error)
}

// OrderCounter exposes the registry's pending-order count for the open-order
// budget.
type OrderCounter interface {
	CountPending(userID string) int
}

// PositionReader exposes the ledger's open position for the position-size
// budget.
type PositionReader interface {
	OpenPosition(userID, symbol string) (model.Position, bool)
}
