package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"execution-core/internal/model"
)

// ErrNotFound is returned when a queried row does not exist. It wraps the
// model sentinel so callers can classify it with errors.Is.
var ErrNotFound = fmt.Errorf("record not found: %w", model.ErrNotFound)

// CreateUser inserts a new user row.
func (d *Database) CreateUser(ctx context.Context, id, email, passwordHash, tier string) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, tier) VALUES (?, ?, ?, ?)
	`, id, email, passwordHash, tier)
	return err
}

// GetUserByEmail returns the user with email, or (nil, nil) when absent.
func (d *Database) GetUserByEmail(ctx context.Context, email string) (*model.User, string, error) {
	var (
		u    model.User
		hash string
	)
	err := d.DB.QueryRowContext(ctx, `
		SELECT id, email, password_hash, tier, created_at FROM users WHERE email = ?
	`, email).Scan(&u.ID, &u.Email, &hash, &u.Tier, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	return &u, hash, nil
}

// FindUserByID returns the user with id.
func (d *Database) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := d.DB.QueryRowContext(ctx, `
		SELECT id, email, tier, created_at FROM users WHERE id = ?
	`, id).Scan(&u.ID, &u.Email, &u.Tier, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpsertOrder writes an order row, replacing any previous state.
func (d *Database) UpsertOrder(ctx context.Context, o model.Order) error {
	var filledAt any
	if o.FilledAt != nil {
		filledAt = *o.FilledAt
	}
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO orders (
			id, user_id, strategy_id, symbol, side, type, qty, price, stop_price,
			status, mode, exchange_id, filled_price, filled_at, fee, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			qty = excluded.qty,
			price = excluded.price,
			stop_price = excluded.stop_price,
			status = excluded.status,
			filled_price = excluded.filled_price,
			filled_at = excluded.filled_at,
			fee = excluded.fee,
			updated_at = excluded.updated_at
	`,
		o.ID, o.UserID, o.StrategyID, o.Symbol, string(o.Side), string(o.Type),
		o.Quantity, o.Price, o.StopPrice, string(o.Status), string(o.Mode),
		o.ExchangeID, o.FilledPrice, filledAt, o.Fee, o.CreatedAt, o.UpdatedAt,
	)
	return err
}

// CreateTrade inserts a fill record.
func (d *Database) CreateTrade(ctx context.Context, id string, o model.Order) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO trades (id, order_id, user_id, symbol, side, price, qty, fee)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, o.ID, o.UserID, o.Symbol, string(o.Side), o.FilledPrice, o.Quantity, o.Fee)
	return err
}

// UpsertPosition writes a position row, replacing any previous state.
func (d *Database) UpsertPosition(ctx context.Context, p model.Position) error {
	var closedAt any
	if p.ClosedAt != nil {
		closedAt = *p.ClosedAt
	}
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO positions (
			id, user_id, strategy_id, symbol, side, qty, entry_price,
			realized_pnl, opened_at, closed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			qty = excluded.qty,
			entry_price = excluded.entry_price,
			realized_pnl = excluded.realized_pnl,
			closed_at = excluded.closed_at
	`,
		p.ID, p.UserID, p.StrategyID, p.Symbol, string(p.Side),
		p.Quantity, p.EntryPrice, p.RealizedPnl, p.OpenedAt, closedAt,
	)
	return err
}

// UpsertApproval writes an approval-request row, replacing any previous state.
func (d *Database) UpsertApproval(ctx context.Context, a model.ApprovalRequest) error {
	params, err := json.Marshal(a.Request)
	if err != nil {
		return fmt.Errorf("marshal approval params: %w", err)
	}
	var decidedAt any
	if a.DecidedAt != nil {
		decidedAt = *a.DecidedAt
	}
	_, err = d.DB.ExecContext(ctx, `
		INSERT INTO approvals (id, user_id, params, status, order_id, created_at, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			order_id = excluded.order_id,
			decided_at = excluded.decided_at
	`, a.ID, a.UserID, string(params), string(a.Status), a.OrderID, a.CreatedAt, decidedAt)
	return err
}

// CreateConnection inserts an exchange connection row.
func (d *Database) CreateConnection(ctx context.Context, c model.ExchangeConnection) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO connections (id, user_id, exchange_type, name, is_active)
		VALUES (?, ?, ?, ?, ?)
	`, c.ID, c.UserID, c.ExchangeType, c.Name, c.IsActive)
	return err
}

// FindConnectionsByUserID returns the user's active exchange connections.
func (d *Database) FindConnectionsByUserID(ctx context.Context, userID string) ([]model.ExchangeConnection, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, user_id, exchange_type, name, is_active, created_at
		FROM connections
		WHERE user_id = ? AND is_active = 1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conns []model.ExchangeConnection
	for rows.Next() {
		var c model.ExchangeConnection
		if err := rows.Scan(&c.ID, &c.UserID, &c.ExchangeType, &c.Name, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, err
		}
		conns = append(conns, c)
	}
	return conns, rows.Err()
}

// UpsertStrategy writes a strategy row used by the gating lookups.
func (d *Database) UpsertStrategy(ctx context.Context, s model.Strategy) error {
	cfg, err := json.Marshal(s.Config)
	if err != nil {
		return fmt.Errorf("marshal strategy config: %w", err)
	}
	_, err = d.DB.ExecContext(ctx, `
		INSERT INTO strategies (id, user_id, status, execution_mode, config, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			execution_mode = excluded.execution_mode,
			config = excluded.config,
			updated_at = CURRENT_TIMESTAMP
	`, s.ID, s.UserID, string(s.Status), string(s.ExecutionMode), string(cfg))
	return err
}

// GetStrategy returns the strategy with id.
func (d *Database) GetStrategy(ctx context.Context, id string) (*model.Strategy, error) {
	var (
		s   model.Strategy
		cfg sql.NullString
	)
	var status, mode string
	err := d.DB.QueryRowContext(ctx, `
		SELECT id, user_id, status, execution_mode, config FROM strategies WHERE id = ?
	`, id).Scan(&s.ID, &s.UserID, &status, &mode, &cfg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.Status = model.StrategyStatus(status)
	s.ExecutionMode = model.ExecutionMode(mode)
	if cfg.Valid && cfg.String != "" {
		if err := json.Unmarshal([]byte(cfg.String), &s.Config); err != nil {
			return nil, fmt.Errorf("parse strategy config: %w", err)
		}
	}
	return &s, nil
}

// CreateBacktest inserts a backtest result for a strategy.
func (d *Database) CreateBacktest(ctx context.Context, r model.BacktestResult) error {
	var totalReturn, maxDrawdown any
	if r.Metrics != nil {
		totalReturn = r.Metrics.TotalReturn
		maxDrawdown = r.Metrics.MaxDrawdown
	}
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO backtests (id, strategy_id, status, total_return, max_drawdown, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, r.StrategyID, r.Status, totalReturn, maxDrawdown, created)
	return err
}

// BacktestHistory returns a strategy's backtest results, most recent last.
func (d *Database) BacktestHistory(ctx context.Context, strategyID string) ([]model.BacktestResult, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, strategy_id, status, total_return, max_drawdown, created_at
		FROM backtests
		WHERE strategy_id = ?
		ORDER BY created_at ASC
	`, strategyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.BacktestResult
	for rows.Next() {
		var (
			r                        model.BacktestResult
			totalReturn, maxDrawdown sql.NullFloat64
		)
		if err := rows.Scan(&r.ID, &r.StrategyID, &r.Status, &totalReturn, &maxDrawdown, &r.CreatedAt); err != nil {
			return nil, err
		}
		if totalReturn.Valid || maxDrawdown.Valid {
			r.Metrics = &model.BacktestMetrics{
				TotalReturn: totalReturn.Float64,
				MaxDrawdown: maxDrawdown.Float64,
			}
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
