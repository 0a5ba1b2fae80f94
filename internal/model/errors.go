package model

import "errors"

// Error kinds for the engine. Callers classify failures with errors.Is so the
// API boundary can map them to HTTP statuses without matching message text.
var (
	// ErrValidation marks malformed order parameters (bad quantity, symbol,
	// missing price fields).
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks lookups of unknown orders, users, or approval requests.
	ErrNotFound = errors.New("not found")

	// ErrStateConflict marks operations against an order that already left the
	// pending state.
	ErrStateConflict = errors.New("state conflict")

	// ErrEntitlement marks tier budget or feature violations (daily loss,
	// open-order cap, position-size cap, live trading not enabled).
	ErrEntitlement = errors.New("entitlement denied")

	// ErrComplianceGate marks live-eligibility rejections (kill switch,
	// inactive strategy, manual execution mode, missing exchange connection,
	// failed backtest gate).
	ErrComplianceGate = errors.New("compliance gate rejected")
)
