package memory

import (
	"context"
	"sort"
	"time"

	"artmarket-wallet/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	s *Store
}

func (r *TransactionRepo) Create(_ context.Context, tx pgx.Tx, t *domain.Transaction) error {
	return r.s.write(tx, func() (func(), error) {
		if _, exists := r.s.txns[t.ID]; exists {
			return nil, domain.ErrDuplicate
		}
		cp := *t
		r.s.txns[t.ID] = &cp
		r.s.txnOrder = append(r.s.txnOrder, t.ID)
		return func() {
			delete(r.s.txns, t.ID)
			r.s.txnOrder = r.s.txnOrder[:len(r.s.txnOrder)-1]
		}, nil
	})
}

func (r *TransactionRepo) GetByID(_ context.Context, id domain.TransactionID) (*domain.Transaction, error) {
	return r.s.view().txn(id), nil
}

func (r *TransactionRepo) GetByIDTx(_ context.Context, tx pgx.Tx, id domain.TransactionID) (*domain.Transaction, error) {
	var t *domain.Transaction
	err := r.s.read(tx, func() { t = r.s.txn(id) })
	return t, err
}

func (r *TransactionRepo) GetByOrderCodeTx(_ context.Context, tx pgx.Tx, code domain.OrderCode) (*domain.Transaction, error) {
	var out *domain.Transaction
	err := r.s.read(tx, func() {
		for _, id := range r.s.txnOrder {
			t := r.s.txns[id]
			if t.Type == domain.TransactionTypeDeposit && t.OrderCode != nil && *t.OrderCode == code {
				out = r.s.txn(id)
				return
			}
		}
	})
	return out, err
}

func (r *TransactionRepo) UpdateStatus(_ context.Context, tx pgx.Tx, id domain.TransactionID, from, to domain.TransactionStatus) error {
	return r.s.write(tx, func() (func(), error) {
		t, ok := r.s.txns[id]
		if !ok || t.Status != from {
			return nil, domain.ErrStatusMismatch
		}
		prev := *t
		t.Status = to
		t.UpdatedAt = r.s.now()
		return func() { *t = prev }, nil
	})
}

func (r *TransactionRepo) List(_ context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	matched := r.s.view().matchTxns(filter)
	// newest first
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return paginate(matched, filter.Page, filter.Size), nil
}

func (r *TransactionRepo) Count(_ context.Context, filter domain.TransactionFilter) (int64, error) {
	return int64(len(r.s.view().matchTxns(filter))), nil
}

func (r *TransactionRepo) Aggregate(_ context.Context, q domain.StatisticsQuery) ([]domain.StatsBucket, error) {
	from, to := q.From, q.To
	filter := domain.TransactionFilter{
		WalletID: &q.WalletID,
		Type:     q.Type,
		Status:   q.Status,
		From:     &from,
		To:       &to,
	}
	byPeriod := make(map[string]*domain.StatsBucket)
	for _, t := range r.s.view().matchTxns(filter) {
		label := q.GroupBy.Label(t.CreatedAt)
		b, ok := byPeriod[label]
		if !ok {
			b = &domain.StatsBucket{Period: label}
			byPeriod[label] = b
		}
		if t.Type.Inflow() {
			b.Inflow += t.Amount
		} else {
			b.Outflow += -t.Amount
		}
		b.Transactions++
	}
	out := make([]domain.StatsBucket, 0, len(byPeriod))
	for _, b := range byPeriod {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out, nil
}

func (r *TransactionRepo) Sums(_ context.Context, walletID domain.WalletID) (*domain.Reconciliation, error) {
	tb := r.s.view()
	w := tb.wallet(walletID)
	if w == nil {
		return nil, nil
	}
	rec := &domain.Reconciliation{WalletID: walletID, Balance: w.Balance}
	for _, t := range tb.txns {
		if t.WalletID != walletID {
			continue
		}
		switch {
		case t.Status == domain.TransactionStatusPaid:
			rec.PaidSum += t.Amount
		case t.Status == domain.TransactionStatusPending && t.Type == domain.TransactionTypeWithdrawal:
			rec.HeldSum += t.Amount
		}
	}
	return rec, nil
}

func (r *TransactionRepo) WithdrawnSince(_ context.Context, tx pgx.Tx, walletID domain.WalletID, since time.Time) (int64, error) {
	var total int64
	err := r.s.read(tx, func() {
		for _, t := range r.s.txns {
			if t.WalletID != walletID || t.Type != domain.TransactionTypeWithdrawal {
				continue
			}
			if t.Status == domain.TransactionStatusFailed || t.CreatedAt.Before(since) {
				continue
			}
			total += -t.Amount
		}
	})
	return total, err
}

func (tb *tables) matchTxns(f domain.TransactionFilter) []domain.Transaction {
	var out []domain.Transaction
	for _, id := range tb.txnOrder {
		t := tb.txns[id]
		if f.WalletID != nil && t.WalletID != *f.WalletID {
			continue
		}
		if f.Type != nil && t.Type != *f.Type {
			continue
		}
		if f.Status != nil && t.Status != *f.Status {
			continue
		}
		if f.From != nil && t.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && t.CreatedAt.After(*f.To) {
			continue
		}
		out = append(out, *t)
	}
	return out
}

func (tb *tables) txn(id domain.TransactionID) *domain.Transaction {
	t, ok := tb.txns[id]
	if !ok {
		return nil
	}
	cp := *t
	return &cp
}
