// Package engine fronts the execution core with a single service interface.
// The API layer only interacts with the core through this interface.
package engine

import (
	"context"

	"execution-core/internal/fill"
	"execution-core/internal/model"
	"execution-core/internal/risk"
)

// Service defines the operations the execution core exposes.
type Service interface {
	// Orders
	CreateOrder(ctx context.Context, req model.OrderRequest) (model.Order, error)
	GetOrder(ctx context.Context, userID, orderID string) (model.Order, error)
	ListOrders(ctx context.Context, userID string, limit int) ([]model.Order, error)
	CancelOrder(ctx context.Context, userID, orderID string) (model.Order, error)
	ExpireOrder(ctx context.Context, userID, orderID string) (model.Order, error)
	CancelAllOrders(ctx context.Context, userID, symbol string) (int, error)
	ModifyOrder(ctx context.Context, userID, orderID string, patch OrderPatch) (model.Order, error)

	// Paper execution
	ExecutePaperOrder(ctx context.Context, userID, orderID string, price float64, opts *fill.Options) (model.Order, error)
	CheckLimitOrder(ctx context.Context, userID, orderID string, price float64) (model.Order, error)
	CheckStopOrder(ctx context.Context, userID, orderID string, price float64) (model.Order, error)
	ApplyPriceTick(ctx context.Context, symbol string, price float64) ([]model.Order, error)

	// Positions & portfolio
	GetOpenPositions(ctx context.Context, userID string) ([]model.Position, error)
	GetClosedPositions(ctx context.Context, userID string) ([]model.Position, error)
	GetPortfolioSummary(ctx context.Context, userID string, prices map[string]float64) (model.PortfolioSummary, error)

	// Approval workflow
	CreateApprovalRequest(ctx context.Context, req model.OrderRequest) (model.ApprovalRequest, error)
	ListApprovalRequests(ctx context.Context, userID string) ([]model.ApprovalRequest, error)
	ApproveLiveOrder(ctx context.Context, userID, requestID string) (model.ApprovalRequest, model.Order, error)
	RejectLiveOrder(ctx context.Context, userID, requestID string) (model.ApprovalRequest, error)

	// System
	Status(ctx context.Context) SystemStatus
	UserRiskMetrics(ctx context.Context, userID string) risk.Metrics
}

// OrderPatch mirrors the registry's modifiable fields at the service boundary.
type OrderPatch struct {
	Price     *float64 `json:"price,omitempty"`
	Quantity  *float64 `json:"quantity,omitempty"`
	StopPrice *float64 `json:"stop_price,omitempty"`
}

// SystemStatus describes runtime state exposed to operators.
type SystemStatus struct {
	KillSwitch bool   `json:"kill_switch"`
	Version    string `json:"version"`
}
