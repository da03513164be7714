package memory

import (
	"context"

	"artmarket-wallet/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// WithdrawalRepo implements ports.WithdrawalRepository.
type WithdrawalRepo struct {
	s *Store
}

func (r *WithdrawalRepo) Create(_ context.Context, tx pgx.Tx, w *domain.WithdrawalRequest) error {
	return r.s.write(tx, func() (func(), error) {
		if _, exists := r.s.withdrawals[w.ID]; exists {
			return nil, domain.ErrDuplicate
		}
		cp := *w
		r.s.withdrawals[w.ID] = &cp
		r.s.withdrawalOrder = append(r.s.withdrawalOrder, w.ID)
		return func() {
			delete(r.s.withdrawals, w.ID)
			r.s.withdrawalOrder = r.s.withdrawalOrder[:len(r.s.withdrawalOrder)-1]
		}, nil
	})
}

func (r *WithdrawalRepo) GetByID(_ context.Context, id domain.WithdrawalID) (*domain.WithdrawalRequest, error) {
	return r.s.view().withdrawal(id), nil
}

func (r *WithdrawalRepo) GetByIDTx(_ context.Context, tx pgx.Tx, id domain.WithdrawalID) (*domain.WithdrawalRequest, error) {
	var w *domain.WithdrawalRequest
	err := r.s.read(tx, func() { w = r.s.withdrawal(id) })
	return w, err
}

func (r *WithdrawalRepo) CompareAndSetStatus(_ context.Context, tx pgx.Tx, id domain.WithdrawalID, from, to domain.WithdrawalStatus, reviewer domain.UserID, reason *string) error {
	return r.s.write(tx, func() (func(), error) {
		w, ok := r.s.withdrawals[id]
		if !ok || w.Status != from {
			return nil, domain.ErrStatusMismatch
		}
		prev := *w
		w.Status = to
		w.ReviewedBy = &reviewer
		w.RejectReason = reason
		w.UpdatedAt = r.s.now()
		return func() { *w = prev }, nil
	})
}

func (r *WithdrawalRepo) List(_ context.Context, f domain.WithdrawalFilter) ([]domain.WithdrawalRequest, int64, error) {
	t := r.s.view()
	var matched []domain.WithdrawalRequest
	for i := len(t.withdrawalOrder) - 1; i >= 0; i-- {
		w := t.withdrawals[t.withdrawalOrder[i]]
		if f.UserID != nil && w.UserID != *f.UserID {
			continue
		}
		if f.Status != nil && w.Status != *f.Status {
			continue
		}
		matched = append(matched, *w)
	}
	return paginate(matched, f.Page, f.Size), int64(len(matched)), nil
}

func (t *tables) withdrawal(id domain.WithdrawalID) *domain.WithdrawalRequest {
	w, ok := t.withdrawals[id]
	if !ok {
		return nil
	}
	cp := *w
	return &cp
}
