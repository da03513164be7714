package domain

import "time"

// WithdrawalStatus is the lifecycle state of a WithdrawalRequest.
type WithdrawalStatus string

const (
	WithdrawalStatusPending  WithdrawalStatus = "PENDING"
	WithdrawalStatusApproved WithdrawalStatus = "APPROVED"
	WithdrawalStatusRejected WithdrawalStatus = "REJECTED"
)

var withdrawalTransitions = map[WithdrawalStatus][]WithdrawalStatus{
	WithdrawalStatusPending: {WithdrawalStatusApproved, WithdrawalStatusRejected},
}

// IsTerminal returns true for APPROVED and REJECTED.
func (s WithdrawalStatus) IsTerminal() bool {
	return s == WithdrawalStatusApproved || s == WithdrawalStatusRejected
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s WithdrawalStatus) CanTransitionTo(next WithdrawalStatus) bool {
	return allowed(withdrawalTransitions, s, next)
}

// LedgerStatus maps the request status onto the held WITHDRAWAL row.
func (s WithdrawalStatus) LedgerStatus() TransactionStatus {
	switch s {
	case WithdrawalStatusApproved:
		return TransactionStatusPaid
	case WithdrawalStatusRejected:
		return TransactionStatusFailed
	default:
		return TransactionStatusPending
	}
}

// BankDetails identifies the payout destination.
// AccountNumber holds ciphertext once persisted.
type BankDetails struct {
	BankName      string `json:"bank_name"`
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
}

// WithdrawalRequest is a hold on wallet funds awaiting an admin decision.
type WithdrawalRequest struct {
	ID            WithdrawalID     `json:"id"`
	WalletID      WalletID         `json:"wallet_id"`
	UserID        UserID           `json:"user_id"`
	TransactionID TransactionID    `json:"transaction_id"`
	Amount        int64            `json:"amount"`
	Status        WithdrawalStatus `json:"status"`
	Bank          BankDetails      `json:"bank"`
	ReviewedBy    *UserID          `json:"reviewed_by,omitempty"`
	RejectReason  *string          `json:"reject_reason,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// WithdrawalFilter narrows withdrawal listings.
type WithdrawalFilter struct {
	UserID *UserID
	Status *WithdrawalStatus
	Page   int
	Size   int
}
