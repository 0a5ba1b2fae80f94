package position

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"execution-core/internal/model"
)

func filledOrder(userID, symbol string, side model.Side, qty, price float64) model.Order {
	now := time.Now()
	return model.Order{
		ID:          "order-" + symbol + "-" + string(side),
		UserID:      userID,
		Symbol:      symbol,
		Side:        side,
		Type:        model.TypeMarket,
		Quantity:    qty,
		Status:      model.StatusFilled,
		Mode:        model.ModePaper,
		FilledPrice: price,
		FilledAt:    &now,
	}
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestApplyOpensPosition(t *testing.T) {
	l := NewLedger(nil)
	ctx := context.Background()

	res, err := l.Apply(ctx, filledOrder("u1", "BTC/USDT", model.SideBuy, 1.0, 50000))
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if res.Closed != nil {
		t.Fatalf("expected no closed position, got %+v", res.Closed)
	}
	if res.Position.Side != model.PositionLong {
		t.Errorf("expected long position, got %s", res.Position.Side)
	}
	if !approxEqual(res.Position.Quantity, 1.0) || !approxEqual(res.Position.EntryPrice, 50000) {
		t.Errorf("unexpected position: qty=%v entry=%v", res.Position.Quantity, res.Position.EntryPrice)
	}

	pos, ok := l.OpenPosition("u1", "BTC/USDT")
	if !ok {
		t.Fatal("expected open position")
	}
	if pos.ID != res.Position.ID {
		t.Errorf("position ID mismatch: %s != %s", pos.ID, res.Position.ID)
	}
}

func TestApplySellOpensShort(t *testing.T) {
	l := NewLedger(nil)

	res, err := l.Apply(context.Background(), filledOrder("u1", "ETH/USDT", model.SideSell, 2.0, 3000))
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if res.Position.Side != model.PositionShort {
		t.Errorf("expected short position, got %s", res.Position.Side)
	}
}

func TestApplyWeightedAverageAdd(t *testing.T) {
	l := NewLedger(nil)
	ctx := context.Background()

	if _, err := l.Apply(ctx, filledOrder("u1", "BTC/USDT", model.SideBuy, 0.5, 50000)); err != nil {
		t.Fatalf("first Apply failed: %v", err)
	}
	res, err := l.Apply(ctx, filledOrder("u1", "BTC/USDT", model.SideBuy, 0.5, 52000))
	if err != nil {
		t.Fatalf("second Apply failed: %v", err)
	}

	if !approxEqual(res.Position.Quantity, 1.0) {
		t.Errorf("expected quantity 1.0, got %v", res.Position.Quantity)
	}
	if !approxEqual(res.Position.EntryPrice, 51000) {
		t.Errorf("expected weighted entry 51000, got %v", res.Position.EntryPrice)
	}
	if res.Closed != nil || res.Realized != 0 {
		t.Errorf("add must not realize PnL: %+v", res)
	}
}

func TestApplyPartialClose(t *testing.T) {
	l := NewLedger(nil)
	ctx := context.Background()

	if _, err := l.Apply(ctx, filledOrder("u1", "BTC/USDT", model.SideBuy, 2.0, 50000)); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	res, err := l.Apply(ctx, filledOrder("u1", "BTC/USDT", model.SideSell, 0.5, 55000))
	if err != nil {
		t.Fatalf("partial close failed: %v", err)
	}

	if res.Closed != nil {
		t.Fatalf("partial close must not close the position: %+v", res.Closed)
	}
	if !approxEqual(res.Position.Quantity, 1.5) {
		t.Errorf("expected remaining quantity 1.5, got %v", res.Position.Quantity)
	}
	if !approxEqual(res.Position.EntryPrice, 50000) {
		t.Errorf("entry price must not change on partial close, got %v", res.Position.EntryPrice)
	}
	if res.Realized != 0 {
		t.Errorf("partial close must not realize PnL, got %v", res.Realized)
	}
}

func TestApplyFullCloseLong(t *testing.T) {
	l := NewLedger(nil)
	ctx := context.Background()

	if _, err := l.Apply(ctx, filledOrder("u1", "BTC/USDT", model.SideBuy, 1.0, 50000)); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	res, err := l.Apply(ctx, filledOrder("u1", "BTC/USDT", model.SideSell, 1.0, 55000))
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if res.Closed == nil {
		t.Fatal("expected closed position")
	}
	if !approxEqual(res.Realized, 5000) {
		t.Errorf("expected realized PnL 5000, got %v", res.Realized)
	}
	if res.Closed.ClosedAt == nil {
		t.Error("expected ClosedAt to be set")
	}
	if _, ok := l.OpenPosition("u1", "BTC/USDT"); ok {
		t.Error("position should no longer be open")
	}
	closed := l.Closed("u1")
	if len(closed) != 1 {
		t.Fatalf("expected 1 closed position, got %d", len(closed))
	}
	if !approxEqual(closed[0].RealizedPnl, 5000) {
		t.Errorf("closed position PnL = %v, want 5000", closed[0].RealizedPnl)
	}
}

func TestApplyFullCloseShort(t *testing.T) {
	l := NewLedger(nil)
	ctx := context.Background()

	if _, err := l.Apply(ctx, filledOrder("u1", "ETH/USDT", model.SideSell, 2.0, 3000)); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	res, err := l.Apply(ctx, filledOrder("u1", "ETH/USDT", model.SideBuy, 2.0, 2800))
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if res.Closed == nil {
		t.Fatal("expected closed position")
	}
	if !approxEqual(res.Realized, 400) {
		t.Errorf("expected realized PnL 400, got %v", res.Realized)
	}
}

func TestApplyFlip(t *testing.T) {
	l := NewLedger(nil)
	ctx := context.Background()

	if _, err := l.Apply(ctx, filledOrder("u1", "BTC/USDT", model.SideBuy, 1.0, 50000)); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	res, err := l.Apply(ctx, filledOrder("u1", "BTC/USDT", model.SideSell, 1.5, 52000))
	if err != nil {
		t.Fatalf("flip failed: %v", err)
	}

	if res.Closed == nil {
		t.Fatal("expected the long to be closed")
	}
	if !approxEqual(res.Realized, 2000) {
		t.Errorf("expected realized PnL 2000, got %v", res.Realized)
	}
	if res.Position.Side != model.PositionShort {
		t.Errorf("flip remainder should be short, got %s", res.Position.Side)
	}
	if !approxEqual(res.Position.Quantity, 0.5) {
		t.Errorf("flip remainder quantity = %v, want 0.5", res.Position.Quantity)
	}
	if !approxEqual(res.Position.EntryPrice, 52000) {
		t.Errorf("flip remainder entry = %v, want fill price 52000", res.Position.EntryPrice)
	}
}

func TestApplyRejectsUnfilledOrder(t *testing.T) {
	l := NewLedger(nil)

	o := filledOrder("u1", "BTC/USDT", model.SideBuy, 1.0, 50000)
	o.Status = model.StatusPending

	if _, err := l.Apply(context.Background(), o); !errors.Is(err, model.ErrStateConflict) {
		t.Fatalf("expected ErrStateConflict, got %v", err)
	}
}

func TestSymbolsIsolated(t *testing.T) {
	l := NewLedger(nil)
	ctx := context.Background()

	if _, err := l.Apply(ctx, filledOrder("u1", "BTC/USDT", model.SideBuy, 1.0, 50000)); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if _, err := l.Apply(ctx, filledOrder("u1", "ETH/USDT", model.SideBuy, 2.0, 3000)); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	open := l.Open("u1")
	if len(open) != 2 {
		t.Fatalf("expected 2 open positions, got %d", len(open))
	}
}

func TestUnrealizedPnl(t *testing.T) {
	l := NewLedger(nil)
	ctx := context.Background()

	if _, err := l.Apply(ctx, filledOrder("u1", "BTC/USDT", model.SideBuy, 2.0, 50000)); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if pnl := l.UnrealizedPnl("u1", "BTC/USDT", 51000); !approxEqual(pnl, 2000) {
		t.Errorf("long unrealized = %v, want 2000", pnl)
	}
	if pnl := l.UnrealizedPnl("u1", "XRP/USDT", 1); pnl != 0 {
		t.Errorf("no position should yield 0, got %v", pnl)
	}

	if _, err := l.Apply(ctx, filledOrder("u2", "ETH/USDT", model.SideSell, 1.0, 3000)); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if pnl := l.UnrealizedPnl("u2", "ETH/USDT", 2900); !approxEqual(pnl, 100) {
		t.Errorf("short unrealized = %v, want 100", pnl)
	}
}
