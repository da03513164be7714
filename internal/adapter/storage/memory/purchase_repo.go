package memory

import (
	"context"
	"fmt"
	"slices"

	"artmarket-wallet/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// PurchaseRepo implements ports.PurchaseRepository.
type PurchaseRepo struct {
	s *Store
}

func (r *PurchaseRepo) Exists(_ context.Context, buyer domain.UserID, item domain.ItemID, kind domain.ItemKind) (bool, error) {
	_, ok := r.s.view().purchases[purchaseKey{buyer, item, kind}]
	return ok, nil
}

func (r *PurchaseRepo) Insert(_ context.Context, tx pgx.Tx, rec *domain.PurchaseRecord) error {
	key := purchaseKey{rec.BuyerID, rec.ItemID, rec.Kind}
	return r.s.write(tx, func() (func(), error) {
		if _, exists := r.s.purchases[key]; exists {
			return nil, domain.ErrDuplicate
		}
		cp := *rec
		r.s.purchases[key] = &cp
		return func() { delete(r.s.purchases, key) }, nil
	})
}

// CatalogRepo implements ports.CatalogRepository over the seeded projection.
type CatalogRepo struct {
	s *Store
}

func (r *CatalogRepo) GetArtwork(_ context.Context, id domain.ItemID) (*domain.Artwork, error) {
	return r.s.view().artwork(id), nil
}

func (r *CatalogRepo) GetArtworkTx(_ context.Context, tx pgx.Tx, id domain.ItemID) (*domain.Artwork, error) {
	var a *domain.Artwork
	err := r.s.read(tx, func() { a = r.s.artwork(id) })
	return a, err
}

func (r *CatalogRepo) AddArtworkBuyer(_ context.Context, tx pgx.Tx, id domain.ItemID, buyer domain.UserID) error {
	return r.s.write(tx, func() (func(), error) {
		a, ok := r.s.artworks[id]
		if !ok {
			return nil, nil
		}
		if slices.Contains(a.Buyers, buyer) {
			return nil, nil
		}
		a.Buyers = append(a.Buyers, buyer)
		return func() { a.Buyers = a.Buyers[:len(a.Buyers)-1] }, nil
	})
}

func (r *CatalogRepo) GetExhibition(_ context.Context, id domain.ItemID) (*domain.Exhibition, error) {
	return r.s.view().exhibition(id), nil
}

func (r *CatalogRepo) GetExhibitionTx(_ context.Context, tx pgx.Tx, id domain.ItemID) (*domain.Exhibition, error) {
	var e *domain.Exhibition
	err := r.s.read(tx, func() { e = r.s.exhibition(id) })
	return e, err
}

func (r *CatalogRepo) IsRegistered(_ context.Context, exhibition domain.ItemID, user domain.UserID) (bool, error) {
	_, ok := r.s.view().registrations[exhibition][user]
	return ok, nil
}

func (r *CatalogRepo) Register(_ context.Context, tx pgx.Tx, exhibition domain.ItemID, user domain.UserID) error {
	return r.s.write(tx, func() (func(), error) {
		e, ok := r.s.exhibitions[exhibition]
		if !ok {
			return nil, fmt.Errorf("exhibition %s not found", exhibition)
		}
		regs := r.s.registrations[exhibition]
		if _, dup := regs[user]; dup {
			return nil, domain.ErrDuplicate
		}
		if e.Ticket != nil && e.Ticket.Capacity > 0 && e.Registered >= e.Ticket.Capacity {
			return nil, domain.ErrCapacityReached
		}
		regs[user] = struct{}{}
		e.Registered++
		return func() {
			delete(regs, user)
			e.Registered--
		}, nil
	})
}

func (t *tables) artwork(id domain.ItemID) *domain.Artwork {
	a, ok := t.artworks[id]
	if !ok {
		return nil
	}
	cp := *a
	cp.Buyers = append([]domain.UserID(nil), a.Buyers...)
	return &cp
}

func (t *tables) exhibition(id domain.ItemID) *domain.Exhibition {
	e, ok := t.exhibitions[id]
	if !ok {
		return nil
	}
	cp := *e
	if e.Ticket != nil {
		t := *e.Ticket
		cp.Ticket = &t
	}
	return &cp
}
