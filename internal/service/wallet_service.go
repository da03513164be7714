package service

import (
	"context"
	"errors"
	"fmt"

	"artmarket-wallet/internal/core/domain"
	"artmarket-wallet/internal/core/ports"
	"artmarket-wallet/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// WalletServiceImpl implements ports.WalletService and ports.WalletWriter.
type WalletServiceImpl struct {
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	atomic     ports.AtomicRunner
	log        zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	atomic ports.AtomicRunner,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		walletRepo: walletRepo,
		txRepo:     txRepo,
		atomic:     atomic,
		log:        log,
	}
}

// GetOrCreateWallet returns the owner's wallet, creating an empty one on first use.
func (s *WalletServiceImpl) GetOrCreateWallet(ctx context.Context, owner domain.UserID) (*domain.Wallet, error) {
	if owner == "" {
		return nil, apperror.Validation("owner id is required")
	}

	w, err := s.walletRepo.GetByOwner(ctx, owner)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if w != nil {
		return w, nil
	}

	err = s.atomic.Run(ctx, "wallet.create", func(ctx context.Context, tx pgx.Tx) error {
		created, err := s.walletRepo.GetOrCreate(ctx, tx, owner)
		if err != nil {
			return fmt.Errorf("get or create wallet: %w", err)
		}
		w = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("owner_id", string(owner)).Str("wallet_id", string(w.ID)).Msg("wallet ready")
	return w, nil
}

// Reconcile recomputes the ledger sums for the owner's wallet. The balance
// and the sums come from one snapshot.
func (s *WalletServiceImpl) Reconcile(ctx context.Context, owner domain.UserID) (*domain.Reconciliation, error) {
	w, err := s.GetOrCreateWallet(ctx, owner)
	if err != nil {
		return nil, err
	}

	rec, err := s.txRepo.Sums(ctx, w.ID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if rec == nil {
		return nil, apperror.ErrNotFound("Wallet")
	}

	rec.Consistent = rec.Balance == rec.PaidSum+rec.HeldSum
	if !rec.Consistent {
		s.log.Error().
			Str("wallet_id", string(rec.WalletID)).
			Int64("balance", rec.Balance).
			Int64("paid_sum", rec.PaidSum).
			Int64("held_sum", rec.HeldSum).
			Msg("wallet balance does not match ledger")
	}
	return rec, nil
}

// Ensure returns the owner's wallet inside the caller's atomic unit.
func (s *WalletServiceImpl) Ensure(ctx context.Context, tx pgx.Tx, owner domain.UserID) (*domain.Wallet, error) {
	w, err := s.walletRepo.GetOrCreate(ctx, tx, owner)
	if err != nil {
		return nil, fmt.Errorf("ensure wallet %s: %w", owner, err)
	}
	return w, nil
}

// Apply reads the wallet version and applies delta against it.
// A concurrent writer surfaces as domain.ErrVersionConflict for the runner to retry.
func (s *WalletServiceImpl) Apply(ctx context.Context, tx pgx.Tx, walletID domain.WalletID, delta int64) (*domain.BalanceChange, error) {
	w, err := s.walletRepo.GetByIDTx(ctx, tx, walletID)
	if err != nil {
		return nil, fmt.Errorf("read wallet %s: %w", walletID, err)
	}
	if w == nil {
		return nil, apperror.ErrNotFound("Wallet")
	}
	change, err := s.walletRepo.ApplyDelta(ctx, tx, walletID, delta, w.Version)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) {
			return nil, apperror.ErrInsufficientFunds()
		}
		return nil, err
	}
	return change, nil
}
