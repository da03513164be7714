package domain

import (
	"fmt"
	"time"
)

// TransactionType represents the kind of money movement.
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal TransactionType = "WITHDRAWAL"
	TransactionTypePayment    TransactionType = "PAYMENT"
	TransactionTypeSale       TransactionType = "SALE"
	TransactionTypeCommission TransactionType = "COMMISSION"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeWithdrawal, TransactionTypePayment,
		TransactionTypeSale, TransactionTypeCommission:
		return true
	}
	return false
}

// Inflow reports whether the type adds money to a wallet.
func (t TransactionType) Inflow() bool {
	return t == TransactionTypeDeposit || t == TransactionTypeSale || t == TransactionTypeCommission
}

// SignedAmount applies the type's direction to a positive magnitude.
func (t TransactionType) SignedAmount(magnitude int64) int64 {
	if t.Inflow() {
		return magnitude
	}
	return -magnitude
}

// TransactionStatus represents the lifecycle state of a ledger row.
type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "PENDING"
	TransactionStatusPaid    TransactionStatus = "PAID"
	TransactionStatusFailed  TransactionStatus = "FAILED"
)

var transactionTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionStatusPending: {TransactionStatusPaid, TransactionStatusFailed},
}

// Valid reports whether s is a known transaction status.
func (s TransactionStatus) Valid() bool {
	return s == TransactionStatusPending || s == TransactionStatusPaid || s == TransactionStatusFailed
}

// IsTerminal returns true for PAID and FAILED.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusPaid || s == TransactionStatusFailed
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	return allowed(transactionTransitions, s, next)
}

// Transaction is one signed monetary movement against a wallet.
type Transaction struct {
	ID          TransactionID     `json:"id"`
	WalletID    WalletID          `json:"wallet_id"`
	Amount      int64             `json:"amount"`
	Type        TransactionType   `json:"type"`
	Status      TransactionStatus `json:"status"`
	OrderCode   *OrderCode        `json:"order_code,omitempty"`
	ReferenceID *string           `json:"reference_id,omitempty"`
	Description string            `json:"description"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// IsTerminal returns true if the transaction is in a final state.
func (t *Transaction) IsTerminal() bool {
	return t.Status.IsTerminal()
}

// Validate checks type, status and the sign of the amount.
func (t *Transaction) Validate() error {
	if !t.Type.Valid() {
		return fmt.Errorf("unknown transaction type %q", t.Type)
	}
	if !t.Status.Valid() {
		return fmt.Errorf("unknown transaction status %q", t.Status)
	}
	if t.Amount == 0 {
		return fmt.Errorf("transaction amount must not be zero")
	}
	if t.Type.Inflow() != (t.Amount > 0) {
		return fmt.Errorf("amount %d has the wrong sign for %s", t.Amount, t.Type)
	}
	return nil
}

// TransactionFilter narrows ledger queries. Zero values mean "no filter".
type TransactionFilter struct {
	WalletID *WalletID
	Type     *TransactionType
	Status   *TransactionStatus
	From     *time.Time
	To       *time.Time
	Page     int
	Size     int
}

// Offset returns the row offset for the filter's page.
func (f TransactionFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Size
}

// Page is one page of a paginated query.
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
}

// TotalPages returns the number of pages for the result set.
func (p Page[T]) TotalPages() int {
	if p.Size <= 0 {
		return 0
	}
	return int((p.Total + int64(p.Size) - 1) / int64(p.Size))
}

func allowed[S comparable](table map[S][]S, from, to S) bool {
	for _, next := range table[from] {
		if next == to {
			return true
		}
	}
	return false
}

// LedgerEntry describes a row to append. Amount is the positive magnitude;
// the type decides the stored sign.
type LedgerEntry struct {
	WalletID    WalletID
	Amount      int64
	Type        TransactionType
	Status      TransactionStatus
	OrderCode   *OrderCode
	ReferenceID *string
	Description string
}
