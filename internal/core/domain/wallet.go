package domain

import (
	"time"
)

// Wallet is a user's balance in minor currency units.
// Version increases by one on every balance change and is the
// optimistic concurrency token for ApplyDelta.
type Wallet struct {
	ID        WalletID  `json:"id"`
	OwnerID   UserID    `json:"owner_id"`
	Balance   int64     `json:"balance"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanCover reports whether the wallet can absorb a debit of amount.
func (w *Wallet) CanCover(amount int64) bool {
	return amount >= 0 && w.Balance >= amount
}

// NewWallet returns an empty wallet for owner.
func NewWallet(owner UserID, now time.Time) *Wallet {
	return &Wallet{
		ID:        NewWalletID(),
		OwnerID:   owner,
		Balance:   0,
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// BalanceChange is the result of a successful ApplyDelta.
type BalanceChange struct {
	WalletID   WalletID
	Delta      int64
	NewBalance int64
	NewVersion int64
}

// Reconciliation compares a wallet balance with the sums recorded in the ledger.
type Reconciliation struct {
	WalletID   WalletID `json:"wallet_id"`
	Balance    int64    `json:"balance"`
	PaidSum    int64    `json:"paid_sum"`
	HeldSum    int64    `json:"held_sum"`
	Consistent bool     `json:"consistent"`
}
