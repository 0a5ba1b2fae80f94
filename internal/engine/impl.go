package engine

import (
	"context"
	"fmt"
	"log"

	"execution-core/internal/approval"
	"execution-core/internal/events"
	"execution-core/internal/fill"
	"execution-core/internal/model"
	"execution-core/internal/order"
	"execution-core/internal/portfolio"
	"execution-core/internal/position"
	"execution-core/internal/risk"
)

// Version reported in system status.
const Version = "1.0.0"

type engineImpl struct {
	registry  *order.Registry
	ledger    *position.Ledger
	gate      *risk.Gate
	filler    *fill.Engine
	approvals *approval.Workflow
	folio     *portfolio.Aggregator
	bus       *events.Bus
	locks     *userLocks
}

// New wires the core components behind the Service interface.
func New(registry *order.Registry, ledger *position.Ledger, gate *risk.Gate, filler *fill.Engine, approvals *approval.Workflow, folio *portfolio.Aggregator, bus *events.Bus) Service {
	return &engineImpl{
		registry:  registry,
		ledger:    ledger,
		gate:      gate,
		filler:    filler,
		approvals: approvals,
		folio:     folio,
		bus:       bus,
		locks:     newUserLocks(),
	}
}

func (e *engineImpl) CreateOrder(ctx context.Context, req model.OrderRequest) (model.Order, error) {
	unlock := e.locks.lock(req.UserID)
	defer unlock()

	if err := e.gate.Validate(ctx, req); err != nil {
		return model.Order{}, err
	}

	o, err := e.registry.Insert(ctx, req)
	if err != nil {
		return model.Order{}, err
	}
	log.Printf("[ENGINE] order %s created: %s %s %s qty=%.8f mode=%s",
		o.ID, o.Type, o.Side, o.Symbol, o.Quantity, o.Mode)
	if e.bus != nil {
		e.bus.Publish(events.EventOrderCreated, o)
	}
	return o, nil
}

// owned loads an order and hides it from other users.
func (e *engineImpl) owned(userID, orderID string) (model.Order, error) {
	o, err := e.registry.Get(orderID)
	if err != nil {
		return model.Order{}, err
	}
	if o.UserID != userID {
		return model.Order{}, fmt.Errorf("order %s: %w", orderID, model.ErrNotFound)
	}
	return o, nil
}

func (e *engineImpl) GetOrder(ctx context.Context, userID, orderID string) (model.Order, error) {
	return e.owned(userID, orderID)
}

func (e *engineImpl) ListOrders(ctx context.Context, userID string, limit int) ([]model.Order, error) {
	return e.registry.ListByUser(userID, limit), nil
}

func (e *engineImpl) CancelOrder(ctx context.Context, userID, orderID string) (model.Order, error) {
	unlock := e.locks.lock(userID)
	defer unlock()

	if _, err := e.owned(userID, orderID); err != nil {
		return model.Order{}, err
	}
	o, err := e.registry.Cancel(ctx, orderID)
	if err != nil {
		return model.Order{}, err
	}
	if e.bus != nil {
		e.bus.Publish(events.EventOrderCancelled, o)
	}
	return o, nil
}

func (e *engineImpl) ExpireOrder(ctx context.Context, userID, orderID string) (model.Order, error) {
	unlock := e.locks.lock(userID)
	defer unlock()

	if _, err := e.owned(userID, orderID); err != nil {
		return model.Order{}, err
	}
	o, err := e.registry.Expire(ctx, orderID)
	if err != nil {
		return model.Order{}, err
	}
	if e.bus != nil {
		e.bus.Publish(events.EventOrderExpired, o)
	}
	return o, nil
}

func (e *engineImpl) CancelAllOrders(ctx context.Context, userID, symbol string) (int, error) {
	unlock := e.locks.lock(userID)
	defer unlock()

	cancelled, err := e.registry.CancelAll(ctx, userID, symbol)
	if err != nil {
		return 0, err
	}
	if e.bus != nil {
		for _, o := range cancelled {
			e.bus.Publish(events.EventOrderCancelled, o)
		}
	}
	return len(cancelled), nil
}

func (e *engineImpl) ModifyOrder(ctx context.Context, userID, orderID string, patch OrderPatch) (model.Order, error) {
	unlock := e.locks.lock(userID)
	defer unlock()

	if _, err := e.owned(userID, orderID); err != nil {
		return model.Order{}, err
	}
	return e.registry.Modify(ctx, orderID, order.ModifyPatch{
		Price:     patch.Price,
		Quantity:  patch.Quantity,
		StopPrice: patch.StopPrice,
	})
}

func (e *engineImpl) ExecutePaperOrder(ctx context.Context, userID, orderID string, price float64, opts *fill.Options) (model.Order, error) {
	unlock := e.locks.lock(userID)
	defer unlock()

	if _, err := e.owned(userID, orderID); err != nil {
		return model.Order{}, err
	}
	return e.filler.ExecutePaperOrder(ctx, orderID, price, opts)
}

func (e *engineImpl) CheckLimitOrder(ctx context.Context, userID, orderID string, price float64) (model.Order, error) {
	unlock := e.locks.lock(userID)
	defer unlock()

	if _, err := e.owned(userID, orderID); err != nil {
		return model.Order{}, err
	}
	return e.filler.CheckLimitOrder(ctx, orderID, price)
}

func (e *engineImpl) CheckStopOrder(ctx context.Context, userID, orderID string, price float64) (model.Order, error) {
	unlock := e.locks.lock(userID)
	defer unlock()

	if _, err := e.owned(userID, orderID); err != nil {
		return model.Order{}, err
	}
	return e.filler.CheckStopOrder(ctx, orderID, price)
}

// ApplyPriceTick evaluates every pending paper conditional order on the symbol
// against the new price and returns the orders that filled. Live orders are
// routed to the exchange and never simulated here.
func (e *engineImpl) ApplyPriceTick(ctx context.Context, symbol string, price float64) ([]model.Order, error) {
	if price <= 0 {
		return nil, fmt.Errorf("price must be greater than zero: %w", model.ErrValidation)
	}
	if e.bus != nil {
		e.bus.Publish(events.EventPriceTick, map[string]any{"symbol": symbol, "price": price})
	}

	var filled []model.Order
	for _, o := range e.registry.PendingConditional(symbol) {
		if o.Mode != model.ModePaper {
			continue
		}
		unlock := e.locks.lock(o.UserID)

		var (
			result model.Order
			err    error
		)
		if o.Type == model.TypeLimit {
			result, err = e.filler.CheckLimitOrder(ctx, o.ID, price)
		} else {
			result, err = e.filler.CheckStopOrder(ctx, o.ID, price)
		}
		unlock()

		if err != nil {
			log.Printf("[ENGINE] tick check %s failed: %v", o.ID, err)
			continue
		}
		if result.Status == model.StatusFilled {
			filled = append(filled, result)
		}
	}
	return filled, nil
}

func (e *engineImpl) GetOpenPositions(ctx context.Context, userID string) ([]model.Position, error) {
	return e.ledger.Open(userID), nil
}

func (e *engineImpl) GetClosedPositions(ctx context.Context, userID string) ([]model.Position, error) {
	return e.ledger.Closed(userID), nil
}

func (e *engineImpl) GetPortfolioSummary(ctx context.Context, userID string, prices map[string]float64) (model.PortfolioSummary, error) {
	return e.folio.Summary(userID, prices), nil
}

func (e *engineImpl) CreateApprovalRequest(ctx context.Context, req model.OrderRequest) (model.ApprovalRequest, error) {
	return e.approvals.CreateRequest(ctx, req)
}

func (e *engineImpl) ListApprovalRequests(ctx context.Context, userID string) ([]model.ApprovalRequest, error) {
	return e.approvals.ListByUser(userID), nil
}

func (e *engineImpl) ApproveLiveOrder(ctx context.Context, userID, requestID string) (model.ApprovalRequest, model.Order, error) {
	unlock := e.locks.lock(userID)
	defer unlock()

	return e.approvals.Approve(ctx, userID, requestID)
}

func (e *engineImpl) RejectLiveOrder(ctx context.Context, userID, requestID string) (model.ApprovalRequest, error) {
	return e.approvals.Reject(ctx, userID, requestID)
}

func (e *engineImpl) Status(ctx context.Context) SystemStatus {
	return SystemStatus{
		KillSwitch: e.gate.KillSwitch(),
		Version:    Version,
	}
}

func (e *engineImpl) UserRiskMetrics(ctx context.Context, userID string) risk.Metrics {
	return e.gate.UserMetrics(userID)
}
