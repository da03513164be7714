package domain

import "time"

// EventType names the settlement events published after commit.
type EventType string

const (
	EventPaymentSettled     EventType = "payment.settled"
	EventPaymentFailed      EventType = "payment.failed"
	EventPurchaseCompleted  EventType = "purchase.completed"
	EventWithdrawalApproved EventType = "withdrawal.approved"
	EventWithdrawalRejected EventType = "withdrawal.rejected"
)

// Event is a committed money movement announced to downstream consumers
// (payout worker, notifications). Delivery is best effort.
type Event struct {
	Type         EventType     `json:"type"`
	OccurredAt   time.Time     `json:"occurred_at"`
	UserID       UserID        `json:"user_id"`
	WalletID     WalletID      `json:"wallet_id,omitempty"`
	Amount       int64         `json:"amount"`
	OrderCode    *OrderCode    `json:"order_code,omitempty"`
	WithdrawalID *WithdrawalID `json:"withdrawal_id,omitempty"`
	ItemID       *ItemID       `json:"item_id,omitempty"`
	ItemKind     ItemKind      `json:"item_kind,omitempty"`
	Bank         *BankDetails  `json:"bank,omitempty"`
}

// RoutingKey is the broker routing key for the event.
func (e Event) RoutingKey() string {
	return "wallet." + string(e.Type)
}
