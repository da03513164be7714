package memory

import (
	"context"

	"artmarket-wallet/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	s *Store
}

func (r *WalletRepo) GetByOwner(_ context.Context, owner domain.UserID) (*domain.Wallet, error) {
	return r.s.view().walletByOwner(owner), nil
}

func (r *WalletRepo) GetByID(_ context.Context, id domain.WalletID) (*domain.Wallet, error) {
	return r.s.view().wallet(id), nil
}

func (r *WalletRepo) GetByIDTx(_ context.Context, tx pgx.Tx, id domain.WalletID) (*domain.Wallet, error) {
	var w *domain.Wallet
	err := r.s.read(tx, func() { w = r.s.wallet(id) })
	return w, err
}

func (r *WalletRepo) GetOrCreate(_ context.Context, tx pgx.Tx, owner domain.UserID) (*domain.Wallet, error) {
	var out *domain.Wallet
	err := r.s.write(tx, func() (func(), error) {
		if w := r.s.walletByOwner(owner); w != nil {
			out = w
			return nil, nil
		}
		w := domain.NewWallet(owner, r.s.now())
		r.s.wallets[w.ID] = w
		r.s.walletsByOwner[owner] = w.ID
		cp := *w
		out = &cp
		return func() {
			delete(r.s.wallets, w.ID)
			delete(r.s.walletsByOwner, owner)
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *WalletRepo) ApplyDelta(_ context.Context, tx pgx.Tx, id domain.WalletID, delta int64, expectedVersion int64) (*domain.BalanceChange, error) {
	var change *domain.BalanceChange
	err := r.s.write(tx, func() (func(), error) {
		w, ok := r.s.wallets[id]
		if !ok {
			return nil, domain.ErrVersionConflict
		}
		if w.Version != expectedVersion {
			return nil, domain.ErrVersionConflict
		}
		if w.Balance+delta < 0 {
			return nil, domain.ErrInsufficientFunds
		}
		prev := *w
		w.Balance += delta
		w.Version++
		w.UpdatedAt = r.s.now()
		change = &domain.BalanceChange{
			WalletID:   id,
			Delta:      delta,
			NewBalance: w.Balance,
			NewVersion: w.Version,
		}
		return func() { *w = prev }, nil
	})
	if err != nil {
		return nil, err
	}
	return change, nil
}

func (t *tables) walletByOwner(owner domain.UserID) *domain.Wallet {
	id, ok := t.walletsByOwner[owner]
	if !ok {
		return nil
	}
	return t.wallet(id)
}

func (t *tables) wallet(id domain.WalletID) *domain.Wallet {
	w, ok := t.wallets[id]
	if !ok {
		return nil
	}
	cp := *w
	return &cp
}
