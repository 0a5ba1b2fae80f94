// Package approval stages live orders from manual-execution strategies until
// an operator approves or rejects them.
package approval

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"execution-core/internal/events"
	"execution-core/internal/model"
	"execution-core/internal/order"
	"execution-core/internal/risk"
	"execution-core/pkg/db"
)

// Workflow stores approval requests and materializes orders on approval.
type Workflow struct {
	// decideMu serializes approve/reject decisions so a request cannot be
	// decided twice while the gate re-check is in flight.
	decideMu sync.Mutex
	mu       sync.RWMutex
	requests map[string]*model.ApprovalRequest
	byUser   map[string][]string
	gate     *risk.Gate
	registry *order.Registry
	store    *db.Database
	bus      *events.Bus
}

// NewWorkflow creates an approval workflow. store and bus may be nil.
func NewWorkflow(gate *risk.Gate, registry *order.Registry, store *db.Database, bus *events.Bus) *Workflow {
	return &Workflow{
		requests: make(map[string]*model.ApprovalRequest),
		byUser:   make(map[string][]string),
		gate:     gate,
		registry: registry,
		store:    store,
		bus:      bus,
	}
}

// CreateRequest stages a live order for later approval. Only the structural
// shape is validated here; the full risk chain runs at approval time.
func (w *Workflow) CreateRequest(ctx context.Context, req model.OrderRequest) (model.ApprovalRequest, error) {
	if err := req.Validate(); err != nil {
		return model.ApprovalRequest{}, err
	}
	if req.Mode != model.ModeLive {
		return model.ApprovalRequest{}, fmt.Errorf("only live orders are staged for approval: %w", model.ErrValidation)
	}

	a := &model.ApprovalRequest{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		Request:   req,
		Status:    model.ApprovalPending,
		CreatedAt: time.Now(),
	}

	w.mu.Lock()
	w.requests[a.ID] = a
	w.byUser[a.UserID] = append(w.byUser[a.UserID], a.ID)
	snapshot := *a
	w.mu.Unlock()

	w.persist(ctx, snapshot)
	log.Printf("[APPROVAL] staged %s %s %s qty=%.8f for user %s",
		snapshot.ID, req.Side, req.Symbol, req.Quantity, req.UserID)
	if w.bus != nil {
		w.bus.Publish(events.EventApprovalCreated, snapshot)
	}
	return snapshot, nil
}

// Approve re-runs the risk gate for a staged request and, if it still passes,
// materializes the order. On gate failure the request stays pending and the
// error propagates. Only the staging user may approve.
func (w *Workflow) Approve(ctx context.Context, userID, requestID string) (model.ApprovalRequest, model.Order, error) {
	w.decideMu.Lock()
	defer w.decideMu.Unlock()

	w.mu.RLock()
	a, ok := w.requests[requestID]
	if !ok || a.UserID != userID {
		w.mu.RUnlock()
		return model.ApprovalRequest{}, model.Order{}, fmt.Errorf("approval request %s: %w", requestID, model.ErrNotFound)
	}
	if a.Status != model.ApprovalPending {
		w.mu.RUnlock()
		return model.ApprovalRequest{}, model.Order{}, fmt.Errorf("approval request %s already %s: %w",
			requestID, a.Status, model.ErrStateConflict)
	}
	req := a.Request
	w.mu.RUnlock()

	// Conditions may have drifted since staging; the whole chain runs again.
	if err := w.gate.ValidateApproved(ctx, req); err != nil {
		return model.ApprovalRequest{}, model.Order{}, err
	}

	o, err := w.registry.Insert(ctx, req)
	if err != nil {
		return model.ApprovalRequest{}, model.Order{}, err
	}

	now := time.Now()
	w.mu.Lock()
	a.Status = model.ApprovalApproved
	a.OrderID = o.ID
	a.DecidedAt = &now
	snapshot := *a
	w.mu.Unlock()

	w.persist(ctx, snapshot)
	log.Printf("[APPROVAL] %s approved, order %s created", snapshot.ID, o.ID)
	if w.bus != nil {
		w.bus.Publish(events.EventApprovalDecided, snapshot)
		w.bus.Publish(events.EventOrderCreated, o)
	}
	return snapshot, o, nil
}

// Reject marks a pending request rejected. No order is created. Only the
// staging user may reject.
func (w *Workflow) Reject(ctx context.Context, userID, requestID string) (model.ApprovalRequest, error) {
	w.decideMu.Lock()
	defer w.decideMu.Unlock()

	w.mu.Lock()
	a, ok := w.requests[requestID]
	if !ok || a.UserID != userID {
		w.mu.Unlock()
		return model.ApprovalRequest{}, fmt.Errorf("approval request %s: %w", requestID, model.ErrNotFound)
	}
	if a.Status != model.ApprovalPending {
		w.mu.Unlock()
		return model.ApprovalRequest{}, fmt.Errorf("approval request %s already %s: %w",
			requestID, a.Status, model.ErrStateConflict)
	}
	now := time.Now()
	a.Status = model.ApprovalRejected
	a.DecidedAt = &now
	snapshot := *a
	w.mu.Unlock()

	w.persist(ctx, snapshot)
	log.Printf("[APPROVAL] %s rejected", snapshot.ID)
	if w.bus != nil {
		w.bus.Publish(events.EventApprovalDecided, snapshot)
	}
	return snapshot, nil
}

// Get returns the request with id, scoped to its owner.
func (w *Workflow) Get(userID, requestID string) (model.ApprovalRequest, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	a, ok := w.requests[requestID]
	if !ok || a.UserID != userID {
		return model.ApprovalRequest{}, fmt.Errorf("approval request %s: %w", requestID, model.ErrNotFound)
	}
	return *a, nil
}

// ListByUser returns a user's approval requests, newest first.
func (w *Workflow) ListByUser(userID string) []model.ApprovalRequest {
	w.mu.RLock()
	defer w.mu.RUnlock()
	ids := w.byUser[userID]
	out := make([]model.ApprovalRequest, 0, len(ids))
	for _, id := range ids {
		out = append(out, *w.requests[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (w *Workflow) persist(ctx context.Context, a model.ApprovalRequest) {
	if w.store == nil {
		return
	}
	if err := w.store.UpsertApproval(ctx, a); err != nil {
		log.Printf("[APPROVAL] persist %s failed: %v", a.ID, err)
	}
}
