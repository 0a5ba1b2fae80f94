package model

import (
	"errors"
	"testing"
)

func validRequest() OrderRequest {
	return OrderRequest{
		UserID:   "u1",
		Symbol:   "BTC/USDT",
		Side:     SideBuy,
		Type:     TypeMarket,
		Quantity: 1.0,
		Mode:     ModePaper,
	}
}

func TestOrderRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*OrderRequest)
		wantErr bool
	}{
		{"valid market", func(r *OrderRequest) {}, false},
		{"missing user", func(r *OrderRequest) { r.UserID = "" }, true},
		{"zero quantity", func(r *OrderRequest) { r.Quantity = 0 }, true},
		{"negative quantity", func(r *OrderRequest) { r.Quantity = -1 }, true},
		{"symbol without separator", func(r *OrderRequest) { r.Symbol = "BTCUSDT" }, true},
		{"bad side", func(r *OrderRequest) { r.Side = "hold" }, true},
		{"bad mode", func(r *OrderRequest) { r.Mode = "dry-run" }, true},
		{"bad type", func(r *OrderRequest) { r.Type = "trailing" }, true},
		{"limit without price", func(r *OrderRequest) { r.Type = TypeLimit }, true},
		{"limit with price", func(r *OrderRequest) { r.Type = TypeLimit; r.Price = 50000 }, false},
		{"stop loss without stop price", func(r *OrderRequest) { r.Type = TypeStopLoss }, true},
		{"stop loss with stop price", func(r *OrderRequest) { r.Type = TypeStopLoss; r.StopPrice = 45000 }, false},
		{"take profit without stop price", func(r *OrderRequest) { r.Type = TypeTakeProfit }, true},
		{"take profit with stop price", func(r *OrderRequest) { r.Type = TypeTakeProfit; r.StopPrice = 60000 }, false},
		{"live market", func(r *OrderRequest) { r.Mode = ModeLive }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			err := req.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("expected ErrValidation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	for _, status := range []OrderStatus{StatusFilled, StatusCancelled, StatusRejected, StatusExpired} {
		o := Order{Status: status}
		if !o.IsTerminal() {
			t.Errorf("%s should be terminal", status)
		}
	}
	o := Order{Status: StatusPending}
	if o.IsTerminal() {
		t.Error("pending should not be terminal")
	}
}

func TestSignedQuantity(t *testing.T) {
	buy := OrderRequest{Side: SideBuy, Quantity: 2.5}
	if buy.SignedQuantity() != 2.5 {
		t.Errorf("buy signed quantity = %v", buy.SignedQuantity())
	}
	sell := OrderRequest{Side: SideSell, Quantity: 2.5}
	if sell.SignedQuantity() != -2.5 {
		t.Errorf("sell signed quantity = %v", sell.SignedQuantity())
	}
}
