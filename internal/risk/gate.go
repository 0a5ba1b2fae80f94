// Package risk implements the pre-trade decision chain evaluated before any
// order is created, including the ordered live-eligibility checks.
package risk

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"execution-core/internal/model"
)

// Config carries the gate's own knobs. The kill switch is threaded in at
// construction instead of being read from the environment per call.
type Config struct {
	KillSwitch bool

	// Backtest gate thresholds: most recent completed backtest must have
	// TotalReturn >= MinTotalReturn and MaxDrawdown <= MaxDrawdownPct.
	MinTotalReturn float64
	MaxDrawdownPct float64
}

// Deps bundles the injected collaborators.
type Deps struct {
	Users       UserStore
	Tiers       ConfigService
	Strategies  StrategyService
	Backtests   BacktestService
	Connections ExchangeConnectionStore
	Orders      OrderCounter
	Positions   PositionReader
}

// Gate evaluates order requests against the risk chain. Checks run in a fixed
// order and the first failure decides the error; no check has side effects.
type Gate struct {
	mu      sync.RWMutex
	cfg     Config
	deps    Deps
	metrics *metricsBook
}

// NewGate creates a risk gate.
func NewGate(cfg Config, deps Deps) *Gate {
	return &Gate{cfg: cfg, deps: deps, metrics: newMetricsBook()}
}

// SetKillSwitch flips the global live-trading kill switch.
func (g *Gate) SetKillSwitch(on bool) {
	g.mu.Lock()
	g.cfg.KillSwitch = on
	g.mu.Unlock()
}

// KillSwitch reports whether the kill switch is engaged.
func (g *Gate) KillSwitch() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cfg.KillSwitch
}

// RecordFill feeds a realized trade result into the user's daily metrics.
// Losses count against the tier's daily-loss budget.
func (g *Gate) RecordFill(userID string, realizedPnl float64) {
	g.metrics.record(userID, realizedPnl)
}

// UserMetrics returns the user's daily metrics snapshot.
func (g *Gate) UserMetrics(userID string) Metrics {
	return g.metrics.snapshot(userID)
}

// ResetDaily clears all per-user daily metrics.
func (g *Gate) ResetDaily() {
	g.metrics.resetDaily()
}

// Validate runs the full chain for a direct order creation.
func (g *Gate) Validate(ctx context.Context, req model.OrderRequest) error {
	return g.validate(ctx, req, false)
}

// ValidateApproved re-runs the full chain for a staged live order at approval
// time. The manual execution-mode block is skipped: approval is the manual
// path.
func (g *Gate) ValidateApproved(ctx context.Context, req model.OrderRequest) error {
	return g.validate(ctx, req, true)
}

func (g *Gate) validate(ctx context.Context, req model.OrderRequest, viaApproval bool) error {
	// 1. Structural validation.
	if err := req.Validate(); err != nil {
		return err
	}

	// 2. User existence.
	user, err := g.deps.Users.FindUserByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return fmt.Errorf("user %s: %w", req.UserID, model.ErrNotFound)
		}
		return fmt.Errorf("look up user %s: %w", req.UserID, err)
	}

	// 3. Tier budgets.
	tier, err := g.deps.Tiers.TierFeatures(user.Tier)
	if err != nil {
		return fmt.Errorf("resolve tier %q: %w", user.Tier, err)
	}
	if tier.MaxDailyLoss >= 0 {
		if loss := g.metrics.dailyLoss(req.UserID); loss >= tier.MaxDailyLoss {
			return fmt.Errorf("daily loss budget exhausted (%.2f/%.2f): %w",
				loss, tier.MaxDailyLoss, model.ErrEntitlement)
		}
	}
	if tier.MaxOpenOrders >= 0 {
		if open := g.deps.Orders.CountPending(req.UserID); open >= tier.MaxOpenOrders {
			return fmt.Errorf("max open orders reached (%d/%d): %w",
				open, tier.MaxOpenOrders, model.ErrEntitlement)
		}
	}

	// 4. Position-size budget from the owning strategy's config.
	var strategy *model.Strategy
	if req.StrategyID != "" {
		strategy, err = g.deps.Strategies.GetStrategy(ctx, req.StrategyID)
		if err != nil && !errors.Is(err, model.ErrNotFound) {
			return fmt.Errorf("look up strategy %s: %w", req.StrategyID, err)
		}
	}
	if maxSize, ok := strategy.MaxPositionSize(); ok {
		signed := req.SignedQuantity()
		if pos, open := g.deps.Positions.OpenPosition(req.UserID, req.Symbol); open {
			signed += pos.SignedQuantity()
		}
		if math.Abs(signed) > maxSize {
			return fmt.Errorf("position size %.8f exceeds strategy cap %.8f: %w",
				math.Abs(signed), maxSize, model.ErrEntitlement)
		}
	}

	if req.Mode != model.ModeLive {
		return nil
	}
	return g.validateLive(ctx, req, strategy, tier, viaApproval)
}

// validateLive runs the live-eligibility chain in its fixed order: kill switch,
// strategy active, execution mode, tier entitlement, exchange connectivity,
// backtest gate.
func (g *Gate) validateLive(ctx context.Context, req model.OrderRequest, strategy *model.Strategy, tier model.TierFeatures, viaApproval bool) error {
	if g.KillSwitch() {
		return fmt.Errorf("live trading disabled by kill switch: %w", model.ErrComplianceGate)
	}

	if strategy == nil || (strategy.UserID != "" && strategy.UserID != req.UserID) {
		return fmt.Errorf("strategy %s not found for user: %w", req.StrategyID, model.ErrComplianceGate)
	}
	if strategy.Status != model.StrategyActive {
		return fmt.Errorf("strategy %s is %s, not active: %w", strategy.ID, strategy.Status, model.ErrComplianceGate)
	}

	if !viaApproval && strategy.ExecutionMode != model.ExecutionAuto {
		return fmt.Errorf("strategy %s requires manual approval for live orders: %w",
			strategy.ID, model.ErrComplianceGate)
	}

	if !tier.LiveTradingEnabled {
		return fmt.Errorf("live trading not enabled for tier: %w", model.ErrEntitlement)
	}

	conns, err := g.deps.Connections.FindConnectionsByUserID(ctx, req.UserID)
	if err != nil {
		return fmt.Errorf("list exchange connections: %w", err)
	}
	if len(conns) == 0 {
		return fmt.Errorf("no exchange connection configured: %w", model.ErrComplianceGate)
	}

	return g.checkBacktestGate(ctx, strategy.ID)
}

// checkBacktestGate requires the strategy's most recent completed backtest to
// meet the performance thresholds.
func (g *Gate) checkBacktestGate(ctx context.Context, strategyID string) error {
	history, err := g.deps.Backtests.BacktestHistory(ctx, strategyID)
	if err != nil {
		return fmt.Errorf("load backtest history: %w", err)
	}

	var latest *model.BacktestResult
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Status == model.BacktestCompleted {
			latest = &history[i]
			break
		}
	}
	if latest == nil {
		return fmt.Errorf("no completed backtest for strategy %s: %w", strategyID, model.ErrComplianceGate)
	}
	if latest.Metrics == nil {
		return fmt.Errorf("backtest %s has no metrics: %w", latest.ID, model.ErrComplianceGate)
	}

	g.mu.RLock()
	minReturn, maxDrawdown := g.cfg.MinTotalReturn, g.cfg.MaxDrawdownPct
	g.mu.RUnlock()

	if latest.Metrics.TotalReturn < minReturn {
		return fmt.Errorf("backtest total return %.2f below %.2f: %w",
			latest.Metrics.TotalReturn, minReturn, model.ErrComplianceGate)
	}
	if latest.Metrics.MaxDrawdown > maxDrawdown {
		return fmt.Errorf("backtest max drawdown %.2f above %.2f: %w",
			latest.Metrics.MaxDrawdown, maxDrawdown, model.ErrComplianceGate)
	}
	return nil
}
