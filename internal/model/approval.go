package model

import "time"

// ApprovalStatus enumerates approval request states.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// ApprovalRequest stages a live order for a manual-execution strategy until an
// operator approves or rejects it. Approval materializes exactly one order.
type ApprovalRequest struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Request   OrderRequest   `json:"request"`
	Status    ApprovalStatus `json:"status"`
	OrderID   string         `json:"order_id,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	DecidedAt *time.Time     `json:"decided_at,omitempty"`
}
