package domain

import (
	"strings"
	"time"
)

// PaymentStatus is the lifecycle state of a PaymentOrder.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending: {PaymentStatusPaid, PaymentStatusFailed},
}

// IsTerminal returns true for PAID and FAILED.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusPaid || s == PaymentStatusFailed
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	return allowed(paymentTransitions, s, next)
}

// LedgerStatus maps the order status onto the linked DEPOSIT row.
func (s PaymentStatus) LedgerStatus() TransactionStatus {
	switch s {
	case PaymentStatusPaid:
		return TransactionStatusPaid
	case PaymentStatusFailed:
		return TransactionStatusFailed
	default:
		return TransactionStatusPending
	}
}

// ParseGatewayStatus maps a gateway-reported status onto PaymentStatus.
// Cancelled and expired links settle as FAILED. Unknown values return false.
func ParseGatewayStatus(raw string) (PaymentStatus, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PAID", "SUCCESS":
		return PaymentStatusPaid, true
	case "FAILED", "CANCELLED", "CANCELED", "EXPIRED":
		return PaymentStatusFailed, true
	case "PENDING", "PROCESSING":
		return PaymentStatusPending, true
	}
	return "", false
}

// PaymentOrder is a request to the external gateway to collect money.
type PaymentOrder struct {
	ID          PaymentOrderID `json:"id"`
	UserID      UserID         `json:"user_id"`
	OrderCode   OrderCode      `json:"order_code"`
	Amount      int64          `json:"amount"`
	Description string         `json:"description"`
	Status      PaymentStatus  `json:"status"`
	PaymentURL  string         `json:"payment_url"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// WebhookEvent is the decoded gateway notification.
type WebhookEvent struct {
	OrderCode OrderRef `json:"orderCode"`
	Status    string   `json:"status"`
	Amount    int64    `json:"amount"`
	Checksum  string   `json:"checksum"`
}

// WebhookOutcome tells the caller how an authenticated webhook was handled.
type WebhookOutcome string

const (
	WebhookSettled        WebhookOutcome = "settled"
	WebhookFailed         WebhookOutcome = "failed"
	WebhookDuplicate      WebhookOutcome = "duplicate"
	WebhookUnknownOrder   WebhookOutcome = "unknown_order"
	WebhookAmountMismatch WebhookOutcome = "amount_mismatch"
	WebhookIgnored        WebhookOutcome = "ignored"
)

// WebhookResult is returned for every authenticated webhook.
// Reference echoes the raw order code when it does not name a stored order.
type WebhookResult struct {
	Outcome   WebhookOutcome `json:"outcome"`
	OrderCode OrderCode      `json:"order_code"`
	Reference OrderRef       `json:"reference,omitempty"`
	Status    PaymentStatus  `json:"status,omitempty"`
}
