// Package portfolio derives valuation snapshots from the position ledger and
// externally supplied current prices.
package portfolio

import (
	"sort"

	"execution-core/internal/model"
	"execution-core/internal/position"
)

// Aggregator values a user's open positions.
type Aggregator struct {
	ledger *position.Ledger
}

// NewAggregator creates a portfolio aggregator over a ledger.
func NewAggregator(ledger *position.Ledger) *Aggregator {
	return &Aggregator{ledger: ledger}
}

// Summary values every open position against currentPrices. A symbol with no
// supplied price is valued at its entry price, contributing zero PnL.
func (a *Aggregator) Summary(userID string, currentPrices map[string]float64) model.PortfolioSummary {
	open := a.ledger.Open(userID)
	sort.Slice(open, func(i, j int) bool { return open[i].Symbol < open[j].Symbol })

	summary := model.PortfolioSummary{Positions: make([]model.PortfolioPosition, 0, len(open))}
	for _, pos := range open {
		price, ok := currentPrices[pos.Symbol]
		if !ok || price <= 0 {
			price = pos.EntryPrice
		}

		cost := pos.EntryPrice * pos.Quantity
		value := price * pos.Quantity
		var pnl float64
		if pos.Side == model.PositionLong {
			pnl = (price - pos.EntryPrice) * pos.Quantity
		} else {
			pnl = (pos.EntryPrice - price) * pos.Quantity
		}
		var pnlPercent float64
		if cost != 0 {
			pnlPercent = pnl / cost * 100
		}

		summary.Positions = append(summary.Positions, model.PortfolioPosition{
			Symbol:               pos.Symbol,
			Side:                 pos.Side,
			Quantity:             pos.Quantity,
			EntryPrice:           pos.EntryPrice,
			CurrentPrice:         price,
			CurrentValue:         value,
			Cost:                 cost,
			UnrealizedPnl:        pnl,
			UnrealizedPnlPercent: pnlPercent,
		})
		summary.TotalValue += value
		summary.TotalCost += cost
	}

	summary.TotalPnl = summary.TotalValue - summary.TotalCost
	if summary.TotalCost != 0 {
		summary.TotalPnlPercent = summary.TotalPnl / summary.TotalCost * 100
	}
	return summary
}
