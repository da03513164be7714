package service

import (
	"context"
	"testing"
	"time"

	"artmarket-wallet/internal/adapter/storage/memory"
	"artmarket-wallet/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// harness wires the real services over an in-memory store.
type harness struct {
	store   *memory.Store
	atomic  *Atomic
	wallets *WalletServiceImpl
	ledger  *LedgerServiceImpl
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.NewStore()
	atomic := NewAtomic(store, AtomicOptions{
		MaxAttempts:    5,
		AttemptTimeout: 5 * time.Second,
		Backoff:        time.Millisecond,
	}, nil, zerolog.Nop())
	return &harness{
		store:   store,
		atomic:  atomic,
		wallets: NewWalletService(store.Wallets(), store.Transactions(), atomic, zerolog.Nop()),
		ledger:  NewLedgerService(store.Transactions(), store.Wallets(), zerolog.Nop()),
	}
}

func (h *harness) purchaseService(rate string, platform domain.UserID) *PurchaseServiceImpl {
	return NewPurchaseService(
		h.store.Catalog(), h.store.Purchases(), h.wallets, h.ledger, h.atomic,
		nil, NewCommission(decimal.RequireFromString(rate)), platform, nil, zerolog.Nop(),
	)
}

func (h *harness) withdrawalService(t *testing.T, limits WithdrawalLimits) *WithdrawalServiceImpl {
	t.Helper()
	enc, err := NewAESEncryptionService(testAESKey)
	require.NoError(t, err)
	return NewWithdrawalService(
		h.store.Withdrawals(), h.store.Transactions(), h.wallets, h.ledger, h.atomic,
		enc, nil, limits, nil, zerolog.Nop(),
	)
}

// fund credits owner through a settled deposit so the ledger stays balanced.
func (h *harness) fund(t *testing.T, owner domain.UserID, amount int64) *domain.Wallet {
	t.Helper()
	ctx := context.Background()
	err := h.atomic.Run(ctx, "test.fund", func(ctx context.Context, tx pgx.Tx) error {
		w, err := h.wallets.Ensure(ctx, tx, owner)
		if err != nil {
			return err
		}
		if _, err := h.wallets.Apply(ctx, tx, w.ID, amount); err != nil {
			return err
		}
		_, err = h.ledger.Record(ctx, tx, domain.LedgerEntry{
			WalletID:    w.ID,
			Amount:      amount,
			Type:        domain.TransactionTypeDeposit,
			Status:      domain.TransactionStatusPaid,
			Description: "test funding",
		})
		return err
	})
	require.NoError(t, err)
	return h.wallet(t, owner)
}

func (h *harness) wallet(t *testing.T, owner domain.UserID) *domain.Wallet {
	t.Helper()
	w, err := h.store.Wallets().GetByOwner(context.Background(), owner)
	require.NoError(t, err)
	require.NotNil(t, w, "wallet for %s", owner)
	return w
}

func (h *harness) balance(t *testing.T, owner domain.UserID) int64 {
	t.Helper()
	w, err := h.store.Wallets().GetByOwner(context.Background(), owner)
	require.NoError(t, err)
	if w == nil {
		return 0
	}
	return w.Balance
}

// assertConsistent checks balance == paid + held for every owner.
func (h *harness) assertConsistent(t *testing.T, owners ...domain.UserID) {
	t.Helper()
	for _, owner := range owners {
		rec, err := h.wallets.Reconcile(context.Background(), owner)
		require.NoError(t, err)
		assert.True(t, rec.Consistent, "ledger out of balance for %s: %+v", owner, rec)
	}
}

func (h *harness) rows(t *testing.T, owner domain.UserID) []domain.Transaction {
	t.Helper()
	page, err := h.ledger.History(context.Background(), owner, domain.TransactionFilter{Page: 1, Size: 100})
	require.NoError(t, err)
	return page.Items
}
