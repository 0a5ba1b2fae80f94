package events

// Event enumerates high-level topics inside the execution core.
type Event string

const (
	EventPriceTick       Event = "price.tick"
	EventOrderCreated    Event = "order.created"
	EventOrderFilled     Event = "order.filled"
	EventOrderCancelled  Event = "order.cancelled"
	EventOrderExpired    Event = "order.expired"
	EventPositionChange  Event = "position.change"
	EventApprovalCreated Event = "approval.created"
	EventApprovalDecided Event = "approval.decided"
)
