package memory

import (
	"context"

	"artmarket-wallet/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// PaymentOrderRepo implements ports.PaymentOrderRepository.
type PaymentOrderRepo struct {
	s *Store
}

func (r *PaymentOrderRepo) Create(_ context.Context, tx pgx.Tx, o *domain.PaymentOrder) error {
	return r.s.write(tx, func() (func(), error) {
		if _, exists := r.s.orders[o.OrderCode]; exists {
			return nil, domain.ErrDuplicate
		}
		cp := *o
		r.s.orders[o.OrderCode] = &cp
		r.s.orderOrder = append(r.s.orderOrder, o.OrderCode)
		return func() {
			delete(r.s.orders, o.OrderCode)
			r.s.orderOrder = r.s.orderOrder[:len(r.s.orderOrder)-1]
		}, nil
	})
}

func (r *PaymentOrderRepo) GetByOrderCode(_ context.Context, code domain.OrderCode) (*domain.PaymentOrder, error) {
	return r.s.view().order(code), nil
}

func (r *PaymentOrderRepo) GetByOrderCodeTx(_ context.Context, tx pgx.Tx, code domain.OrderCode) (*domain.PaymentOrder, error) {
	var o *domain.PaymentOrder
	err := r.s.read(tx, func() { o = r.s.order(code) })
	return o, err
}

func (r *PaymentOrderRepo) CompareAndSetStatus(_ context.Context, tx pgx.Tx, code domain.OrderCode, from, to domain.PaymentStatus) error {
	return r.s.write(tx, func() (func(), error) {
		o, ok := r.s.orders[code]
		if !ok || o.Status != from {
			return nil, domain.ErrStatusMismatch
		}
		prev := *o
		o.Status = to
		o.UpdatedAt = r.s.now()
		return func() { *o = prev }, nil
	})
}

func (r *PaymentOrderRepo) ListByUser(_ context.Context, user domain.UserID, page, size int) ([]domain.PaymentOrder, int64, error) {
	t := r.s.view()
	var matched []domain.PaymentOrder
	for i := len(t.orderOrder) - 1; i >= 0; i-- {
		o := t.orders[t.orderOrder[i]]
		if o.UserID == user {
			matched = append(matched, *o)
		}
	}
	return paginate(matched, page, size), int64(len(matched)), nil
}

func (t *tables) order(code domain.OrderCode) *domain.PaymentOrder {
	o, ok := t.orders[code]
	if !ok {
		return nil
	}
	cp := *o
	return &cp
}
