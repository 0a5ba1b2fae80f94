// Package position implements the position ledger: per-user, per-symbol open
// and closed positions with weighted-average cost basis.
package position

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"execution-core/internal/model"
	"execution-core/pkg/db"
)

// Ledger owns the merge/reduce/close/flip algorithm and realized-PnL
// attribution. At most one open position exists per (user, symbol).
//
// Apply is a read-modify-write on the (user, symbol) key; callers must
// serialize fills per user. The internal lock only protects map integrity.
type Ledger struct {
	mu     sync.RWMutex
	open   map[string]*model.Position   // user|symbol -> open position
	closed map[string][]*model.Position // user -> closed positions, oldest first
	store  *db.Database
}

// NewLedger creates a position ledger. store may be nil for a purely
// in-memory ledger (tests).
func NewLedger(store *db.Database) *Ledger {
	return &Ledger{
		open:   make(map[string]*model.Position),
		closed: make(map[string][]*model.Position),
		store:  store,
	}
}

func key(userID, symbol string) string {
	return userID + "|" + symbol
}

// ApplyResult reports the ledger effect of one fill. Realized is non-zero only
// when an existing position was fully closed (including the close leg of a
// flip).
type ApplyResult struct {
	Position model.Position  // the open position after the fill, zero-valued if none remains
	Closed   *model.Position // the position closed by this fill, if any
	Realized float64
}

// Apply folds a filled order into the ledger.
func (l *Ledger) Apply(ctx context.Context, o model.Order) (ApplyResult, error) {
	if o.Status != model.StatusFilled {
		return ApplyResult{}, fmt.Errorf("order %s is %s, not filled: %w", o.ID, o.Status, model.ErrStateConflict)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	k := key(o.UserID, o.Symbol)
	existing := l.open[k]

	// No open position: open one in the order's direction.
	if existing == nil {
		pos := l.openPosition(o, o.Quantity)
		l.persist(ctx, *pos)
		return ApplyResult{Position: *pos}, nil
	}

	sameDirection := (o.Side == model.SideBuy && existing.Side == model.PositionLong) ||
		(o.Side == model.SideSell && existing.Side == model.PositionShort)

	// Same-direction add: cost-weighted average entry.
	if sameDirection {
		total := existing.EntryPrice*existing.Quantity + o.FilledPrice*o.Quantity
		existing.Quantity += o.Quantity
		existing.EntryPrice = total / existing.Quantity
		l.persist(ctx, *existing)
		return ApplyResult{Position: *existing}, nil
	}

	// Opposite direction, partial close: reduce quantity, entry unchanged.
	// Realized PnL attribution for partial closes is left to trade history.
	if o.Quantity < existing.Quantity {
		existing.Quantity -= o.Quantity
		l.persist(ctx, *existing)
		return ApplyResult{Position: *existing}, nil
	}

	// Full close (or over-close): realize PnL over the whole position.
	var realized float64
	if existing.Side == model.PositionLong {
		realized = (o.FilledPrice - existing.EntryPrice) * existing.Quantity
	} else {
		realized = (existing.EntryPrice - o.FilledPrice) * existing.Quantity
	}
	now := time.Now()
	existing.RealizedPnl = realized
	existing.ClosedAt = &now
	delete(l.open, k)
	l.closed[o.UserID] = append(l.closed[o.UserID], existing)
	l.persist(ctx, *existing)

	result := ApplyResult{Closed: existing, Realized: realized}

	// Flip: remainder opens a new position on the opposite side.
	if remainder := o.Quantity - existing.Quantity; remainder > 0 {
		pos := l.openPosition(o, remainder)
		l.persist(ctx, *pos)
		result.Position = *pos
	}
	return result, nil
}

// openPosition creates and indexes a new open position. Caller holds l.mu.
func (l *Ledger) openPosition(o model.Order, qty float64) *model.Position {
	side := model.PositionLong
	if o.Side == model.SideSell {
		side = model.PositionShort
	}
	pos := &model.Position{
		ID:         uuid.NewString(),
		UserID:     o.UserID,
		StrategyID: o.StrategyID,
		Symbol:     o.Symbol,
		Side:       side,
		Quantity:   qty,
		EntryPrice: o.FilledPrice,
		OpenedAt:   time.Now(),
	}
	l.open[key(o.UserID, o.Symbol)] = pos
	return pos
}

// OpenPosition returns the user's open position for a symbol, if any.
func (l *Ledger) OpenPosition(userID, symbol string) (model.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pos, ok := l.open[key(userID, symbol)]
	if !ok {
		return model.Position{}, false
	}
	return *pos, true
}

// Open returns all of the user's open positions.
func (l *Ledger) Open(userID string) []model.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []model.Position
	for _, pos := range l.open {
		if pos.UserID == userID {
			out = append(out, *pos)
		}
	}
	return out
}

// Closed returns all of the user's closed positions, oldest first.
func (l *Ledger) Closed(userID string) []model.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	closed := l.closed[userID]
	out := make([]model.Position, 0, len(closed))
	for _, pos := range closed {
		out = append(out, *pos)
	}
	return out
}

// UnrealizedPnl values the user's open position in a symbol against a current
// price. No open position yields 0.
func (l *Ledger) UnrealizedPnl(userID, symbol string, currentPrice float64) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pos, ok := l.open[key(userID, symbol)]
	if !ok {
		return 0
	}
	if pos.Side == model.PositionLong {
		return (currentPrice - pos.EntryPrice) * pos.Quantity
	}
	return (pos.EntryPrice - currentPrice) * pos.Quantity
}

// persist writes the position through to the database. Memory stays
// authoritative; a write failure is logged and not surfaced.
func (l *Ledger) persist(ctx context.Context, p model.Position) {
	if l.store == nil {
		return
	}
	if err := l.store.UpsertPosition(ctx, p); err != nil {
		log.Printf("[POSITION] persist %s failed: %v", p.ID, err)
	}
}
