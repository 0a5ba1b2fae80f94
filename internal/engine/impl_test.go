package engine

import (
	"context"
	"errors"
	"testing"

	"execution-core/internal/approval"
	"execution-core/internal/events"
	"execution-core/internal/fill"
	"execution-core/internal/model"
	"execution-core/internal/order"
	"execution-core/internal/portfolio"
	"execution-core/internal/position"
	"execution-core/internal/risk"
)

type stubUsers struct{}

func (stubUsers) FindUserByID(_ context.Context, id string) (*model.User, error) {
	return &model.User{ID: id, Tier: "pro"}, nil
}

type stubTiers struct{}

func (stubTiers) TierFeatures(string) (model.TierFeatures, error) {
	return model.TierFeatures{LiveTradingEnabled: true, MaxOpenOrders: 10, MaxDailyLoss: 1000}, nil
}

type stubStrategies struct{}

func (stubStrategies) GetStrategy(_ context.Context, id string) (*model.Strategy, error) {
	return nil, model.ErrNotFound
}

type stubConnections struct{}

func (stubConnections) FindConnectionsByUserID(context.Context, string) ([]model.ExchangeConnection, error) {
	return nil, nil
}

type stubBacktests struct{}

func (stubBacktests) BacktestHistory(context.Context, string) ([]model.BacktestResult, error) {
	return nil, nil
}

func newService(t *testing.T) Service {
	t.Helper()
	svc, _ := newServiceWithRegistry(t)
	return svc
}

func newServiceWithRegistry(t *testing.T) (Service, *order.Registry) {
	t.Helper()
	registry := order.NewRegistry(nil)
	ledger := position.NewLedger(nil)
	bus := events.NewBus()
	gate := risk.NewGate(risk.Config{MaxDrawdownPct: 30}, risk.Deps{
		Users:       stubUsers{},
		Tiers:       stubTiers{},
		Strategies:  stubStrategies{},
		Backtests:   stubBacktests{},
		Connections: stubConnections{},
		Orders:      registry,
		Positions:   ledger,
	})
	filler := fill.NewEngine(registry, ledger, gate, nil, bus, nil)
	approvals := approval.NewWorkflow(gate, registry, nil, bus)
	folio := portfolio.NewAggregator(ledger)
	return New(registry, ledger, gate, filler, approvals, folio, bus), registry
}

func paperRequest(userID, symbol string, side model.Side) model.OrderRequest {
	return model.OrderRequest{
		UserID:   userID,
		Symbol:   symbol,
		Side:     side,
		Type:     model.TypeMarket,
		Quantity: 1.0,
		Mode:     model.ModePaper,
	}
}

func TestCreateAndGetOrder(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, paperRequest("u1", "BTC/USDT", model.SideBuy))
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if o.Status != model.StatusPending {
		t.Errorf("status = %s, want pending", o.Status)
	}

	got, err := svc.GetOrder(ctx, "u1", o.ID)
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	if got.ID != o.ID {
		t.Errorf("GetOrder returned %s, want %s", got.ID, o.ID)
	}
}

func TestCreateOrderRunsGate(t *testing.T) {
	svc := newService(t)

	req := paperRequest("u1", "BTCUSDT", model.SideBuy) // missing the pair separator
	if _, err := svc.CreateOrder(context.Background(), req); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestOwnershipHidesForeignOrders(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, paperRequest("u1", "BTC/USDT", model.SideBuy))
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	if _, err := svc.GetOrder(ctx, "u2", o.ID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetOrder foreign: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.CancelOrder(ctx, "u2", o.ID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("CancelOrder foreign: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.ExecutePaperOrder(ctx, "u2", o.ID, 50000, nil); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("ExecutePaperOrder foreign: expected ErrNotFound, got %v", err)
	}
}

func TestPaperRoundTrip(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	buy, err := svc.CreateOrder(ctx, paperRequest("u1", "BTC/USDT", model.SideBuy))
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if _, err := svc.ExecutePaperOrder(ctx, "u1", buy.ID, 50000, &fill.Options{SlippagePercent: 0, FeePercent: 0}); err != nil {
		t.Fatalf("ExecutePaperOrder failed: %v", err)
	}

	open, err := svc.GetOpenPositions(ctx, "u1")
	if err != nil {
		t.Fatalf("GetOpenPositions failed: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("expected 1 open position, got %d", len(open))
	}

	sell, err := svc.CreateOrder(ctx, paperRequest("u1", "BTC/USDT", model.SideSell))
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if _, err := svc.ExecutePaperOrder(ctx, "u1", sell.ID, 55000, &fill.Options{SlippagePercent: 0, FeePercent: 0}); err != nil {
		t.Fatalf("ExecutePaperOrder failed: %v", err)
	}

	closed, err := svc.GetClosedPositions(ctx, "u1")
	if err != nil {
		t.Fatalf("GetClosedPositions failed: %v", err)
	}
	if len(closed) != 1 {
		t.Fatalf("expected 1 closed position, got %d", len(closed))
	}
	if closed[0].RealizedPnl != 5000 {
		t.Errorf("RealizedPnl = %v, want 5000", closed[0].RealizedPnl)
	}

	m := svc.UserRiskMetrics(ctx, "u1")
	if m.DailyTrades != 1 || m.DailyPnl != 5000 {
		t.Errorf("unexpected metrics: %+v", m)
	}
}

func TestApplyPriceTickFillsConditionals(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	limitReq := paperRequest("u1", "BTC/USDT", model.SideBuy)
	limitReq.Type = model.TypeLimit
	limitReq.Price = 48000
	limitOrder, err := svc.CreateOrder(ctx, limitReq)
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	stopReq := paperRequest("u2", "BTC/USDT", model.SideSell)
	stopReq.Type = model.TypeStopLoss
	stopReq.StopPrice = 47000
	if _, err := svc.CreateOrder(ctx, stopReq); err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	// A tick above both triggers fills nothing.
	filled, err := svc.ApplyPriceTick(ctx, "BTC/USDT", 49000)
	if err != nil {
		t.Fatalf("ApplyPriceTick failed: %v", err)
	}
	if len(filled) != 0 {
		t.Fatalf("expected no fills at 49000, got %d", len(filled))
	}

	// A tick through both triggers fills the limit at its price and the stop
	// at the tick price.
	filled, err = svc.ApplyPriceTick(ctx, "BTC/USDT", 46500)
	if err != nil {
		t.Fatalf("ApplyPriceTick failed: %v", err)
	}
	if len(filled) != 2 {
		t.Fatalf("expected 2 fills at 46500, got %d", len(filled))
	}
	for _, o := range filled {
		if o.ID == limitOrder.ID && o.FilledPrice != 48000 {
			t.Errorf("limit filled at %v, want 48000", o.FilledPrice)
		}
	}

	if _, err := svc.ApplyPriceTick(ctx, "BTC/USDT", 0); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("zero price: expected ErrValidation, got %v", err)
	}
}

func TestApplyPriceTickSkipsLiveOrders(t *testing.T) {
	svc, registry := newServiceWithRegistry(t)
	ctx := context.Background()

	req := paperRequest("u1", "BTC/USDT", model.SideBuy)
	req.Type = model.TypeLimit
	req.Price = 48000
	req.Mode = model.ModeLive
	staged, err := registry.Insert(ctx, req)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// The tick goes through the limit, but live orders fill on the exchange,
	// not in the simulator.
	filled, err := svc.ApplyPriceTick(ctx, "BTC/USDT", 47000)
	if err != nil {
		t.Fatalf("ApplyPriceTick failed: %v", err)
	}
	if len(filled) != 0 {
		t.Fatalf("expected no fills, got %d", len(filled))
	}

	got, err := svc.GetOrder(ctx, "u1", staged.ID)
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	if got.Status != model.StatusPending || got.FilledPrice != 0 || got.Fee != 0 {
		t.Fatalf("live order must survive the tick untouched, got %+v", got)
	}
}

func TestCancelAllOrdersCount(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.CreateOrder(ctx, paperRequest("u1", "BTC/USDT", model.SideBuy)); err != nil {
			t.Fatalf("CreateOrder failed: %v", err)
		}
	}

	n, err := svc.CancelAllOrders(ctx, "u1", "")
	if err != nil {
		t.Fatalf("CancelAllOrders failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("cancelled %d, want 3", n)
	}

	orders, err := svc.ListOrders(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("ListOrders failed: %v", err)
	}
	for _, o := range orders {
		if o.Status != model.StatusCancelled {
			t.Errorf("order %s status = %s, want cancelled", o.ID, o.Status)
		}
	}
}

func TestExpireOrder(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, paperRequest("u1", "BTC/USDT", model.SideBuy))
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	expired, err := svc.ExpireOrder(ctx, "u1", o.ID)
	if err != nil {
		t.Fatalf("ExpireOrder failed: %v", err)
	}
	if expired.Status != model.StatusExpired {
		t.Errorf("status = %s, want expired", expired.Status)
	}
	if _, err := svc.ExpireOrder(ctx, "u1", o.ID); !errors.Is(err, model.ErrStateConflict) {
		t.Fatalf("double expire: expected ErrStateConflict, got %v", err)
	}
}

func TestModifyOrderThroughService(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	req := paperRequest("u1", "BTC/USDT", model.SideBuy)
	req.Type = model.TypeLimit
	req.Price = 48000
	o, err := svc.CreateOrder(ctx, req)
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	newPrice := 47000.0
	got, err := svc.ModifyOrder(ctx, "u1", o.ID, OrderPatch{Price: &newPrice})
	if err != nil {
		t.Fatalf("ModifyOrder failed: %v", err)
	}
	if got.Price != 47000 {
		t.Errorf("price = %v, want 47000", got.Price)
	}
}

func TestStatusReportsKillSwitch(t *testing.T) {
	svc := newService(t)

	status := svc.Status(context.Background())
	if status.KillSwitch {
		t.Error("kill switch should be off by default")
	}
	if status.Version == "" {
		t.Error("version missing")
	}
}
