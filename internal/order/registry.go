// Package order implements the order registry: the in-memory store of order
// entities and the owner of the order state machine.
package order

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"execution-core/internal/model"
	"execution-core/pkg/db"
)

// Registry stores orders keyed by id with secondary indices by user and by
// strategy. The in-memory map is authoritative; every mutation is written
// through to the database when one is attached.
type Registry struct {
	mu         sync.RWMutex
	orders     map[string]*model.Order
	byUser     map[string][]string
	byStrategy map[string][]string
	store      *db.Database
}

// NewRegistry creates an order registry. store may be nil for a purely
// in-memory registry (tests).
func NewRegistry(store *db.Database) *Registry {
	return &Registry{
		orders:     make(map[string]*model.Order),
		byUser:     make(map[string][]string),
		byStrategy: make(map[string][]string),
		store:      store,
	}
}

// Insert materializes a validated request as a pending order. Risk gating is
// the caller's responsibility; Insert only assigns identity and stores.
func (r *Registry) Insert(ctx context.Context, req model.OrderRequest) (model.Order, error) {
	now := time.Now()
	o := &model.Order{
		ID:         uuid.NewString(),
		UserID:     req.UserID,
		StrategyID: req.StrategyID,
		Symbol:     req.Symbol,
		Side:       req.Side,
		Type:       req.Type,
		Quantity:   req.Quantity,
		Price:      req.Price,
		StopPrice:  req.StopPrice,
		Status:     model.StatusPending,
		Mode:       req.Mode,
		ExchangeID: req.ExchangeID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	r.mu.Lock()
	r.orders[o.ID] = o
	r.byUser[o.UserID] = append(r.byUser[o.UserID], o.ID)
	if o.StrategyID != "" {
		r.byStrategy[o.StrategyID] = append(r.byStrategy[o.StrategyID], o.ID)
	}
	snapshot := *o
	r.mu.Unlock()

	r.persist(ctx, snapshot)
	return snapshot, nil
}

// Get returns a copy of the order with id.
func (r *Registry) Get(id string) (model.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return model.Order{}, fmt.Errorf("order %s: %w", id, model.ErrNotFound)
	}
	return *o, nil
}

// Cancel transitions a pending order to cancelled.
func (r *Registry) Cancel(ctx context.Context, id string) (model.Order, error) {
	return r.transition(ctx, id, model.StatusCancelled)
}

// Expire transitions a pending order to expired.
func (r *Registry) Expire(ctx context.Context, id string) (model.Order, error) {
	return r.transition(ctx, id, model.StatusExpired)
}

// Reject transitions a pending order to rejected.
func (r *Registry) Reject(ctx context.Context, id string) (model.Order, error) {
	return r.transition(ctx, id, model.StatusRejected)
}

func (r *Registry) transition(ctx context.Context, id string, to model.OrderStatus) (model.Order, error) {
	r.mu.Lock()
	o, ok := r.orders[id]
	if !ok {
		r.mu.Unlock()
		return model.Order{}, fmt.Errorf("order %s: %w", id, model.ErrNotFound)
	}
	if o.IsTerminal() {
		r.mu.Unlock()
		return model.Order{}, fmt.Errorf("order %s is %s, not pending: %w", id, o.Status, model.ErrStateConflict)
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	snapshot := *o
	r.mu.Unlock()

	r.persist(ctx, snapshot)
	return snapshot, nil
}

// MarkFilled finalizes a pending order with its fill attributes.
func (r *Registry) MarkFilled(ctx context.Context, id string, filledPrice, fee float64, at time.Time) (model.Order, error) {
	r.mu.Lock()
	o, ok := r.orders[id]
	if !ok {
		r.mu.Unlock()
		return model.Order{}, fmt.Errorf("order %s: %w", id, model.ErrNotFound)
	}
	if o.IsTerminal() {
		r.mu.Unlock()
		return model.Order{}, fmt.Errorf("order %s is %s, not pending: %w", id, o.Status, model.ErrStateConflict)
	}
	o.Status = model.StatusFilled
	o.FilledPrice = filledPrice
	o.FilledAt = &at
	o.Fee = fee
	o.UpdatedAt = at
	snapshot := *o
	r.mu.Unlock()

	r.persist(ctx, snapshot)
	return snapshot, nil
}

// ModifyPatch carries the mutable fields of a pending order. Nil means leave
// unchanged.
type ModifyPatch struct {
	Price     *float64
	Quantity  *float64
	StopPrice *float64
}

// Modify updates price, quantity, or stop price on a pending order.
func (r *Registry) Modify(ctx context.Context, id string, patch ModifyPatch) (model.Order, error) {
	if patch.Quantity != nil && *patch.Quantity <= 0 {
		return model.Order{}, fmt.Errorf("quantity must be greater than zero: %w", model.ErrValidation)
	}

	r.mu.Lock()
	o, ok := r.orders[id]
	if !ok {
		r.mu.Unlock()
		return model.Order{}, fmt.Errorf("order %s: %w", id, model.ErrNotFound)
	}
	if o.IsTerminal() {
		r.mu.Unlock()
		return model.Order{}, fmt.Errorf("order %s is %s, not pending: %w", id, o.Status, model.ErrStateConflict)
	}
	if patch.Price != nil {
		o.Price = *patch.Price
	}
	if patch.Quantity != nil {
		o.Quantity = *patch.Quantity
	}
	if patch.StopPrice != nil {
		o.StopPrice = *patch.StopPrice
	}
	o.UpdatedAt = time.Now()
	snapshot := *o
	r.mu.Unlock()

	r.persist(ctx, snapshot)
	return snapshot, nil
}

// CancelAll cancels every pending order of a user, optionally narrowed to one
// symbol. It returns the cancelled orders; none found is a successful no-op.
func (r *Registry) CancelAll(ctx context.Context, userID, symbol string) ([]model.Order, error) {
	r.mu.Lock()
	var cancelled []model.Order
	now := time.Now()
	for _, id := range r.byUser[userID] {
		o := r.orders[id]
		if o.IsTerminal() {
			continue
		}
		if symbol != "" && o.Symbol != symbol {
			continue
		}
		o.Status = model.StatusCancelled
		o.UpdatedAt = now
		cancelled = append(cancelled, *o)
	}
	r.mu.Unlock()

	for _, o := range cancelled {
		r.persist(ctx, o)
	}
	return cancelled, nil
}

// CountPending returns the number of a user's pending orders.
func (r *Registry) CountPending(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, id := range r.byUser[userID] {
		if !r.orders[id].IsTerminal() {
			n++
		}
	}
	return n
}

// ListByUser returns a user's orders, newest first, capped at limit.
func (r *Registry) ListByUser(userID string, limit int) []model.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byUser[userID]
	out := make([]model.Order, 0, len(ids))
	for _, id := range ids {
		out = append(out, *r.orders[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ListByStrategy returns the orders created by a strategy.
func (r *Registry) ListByStrategy(strategyID string) []model.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byStrategy[strategyID]
	out := make([]model.Order, 0, len(ids))
	for _, id := range ids {
		out = append(out, *r.orders[id])
	}
	return out
}

// PendingConditional returns pending limit/stop orders on a symbol, for
// evaluation against a price tick.
func (r *Registry) PendingConditional(symbol string) []model.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Order
	for _, o := range r.orders {
		if o.Symbol != symbol || o.IsTerminal() {
			continue
		}
		switch o.Type {
		case model.TypeLimit, model.TypeStopLoss, model.TypeTakeProfit:
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// persist writes the order through to the database. Memory stays
// authoritative; a write failure is logged and not surfaced.
func (r *Registry) persist(ctx context.Context, o model.Order) {
	if r.store == nil {
		return
	}
	if err := r.store.UpsertOrder(ctx, o); err != nil {
		log.Printf("[ORDER] persist %s failed: %v", o.ID, err)
	}
}
