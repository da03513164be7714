// Package memory is an in-process implementation of the storage ports.
// It backs the test suites and the "memory" database driver.
package memory

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"artmarket-wallet/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

var errForeignTx = errors.New("memory: transaction was not started by this store")

type purchaseKey struct {
	buyer domain.UserID
	item  domain.ItemID
	kind  domain.ItemKind
}

// tables is one version of every map the store keeps.
type tables struct {
	wallets        map[domain.WalletID]*domain.Wallet
	walletsByOwner map[domain.UserID]domain.WalletID

	txns     map[domain.TransactionID]*domain.Transaction
	txnOrder []domain.TransactionID

	orders     map[domain.OrderCode]*domain.PaymentOrder
	orderOrder []domain.OrderCode

	withdrawals     map[domain.WithdrawalID]*domain.WithdrawalRequest
	withdrawalOrder []domain.WithdrawalID

	purchases map[purchaseKey]*domain.PurchaseRecord

	artworks      map[domain.ItemID]*domain.Artwork
	exhibitions   map[domain.ItemID]*domain.Exhibition
	registrations map[domain.ItemID]map[domain.UserID]struct{}
}

func newTables() *tables {
	return &tables{
		wallets:        make(map[domain.WalletID]*domain.Wallet),
		walletsByOwner: make(map[domain.UserID]domain.WalletID),
		txns:           make(map[domain.TransactionID]*domain.Transaction),
		orders:         make(map[domain.OrderCode]*domain.PaymentOrder),
		withdrawals:    make(map[domain.WithdrawalID]*domain.WithdrawalRequest),
		purchases:      make(map[purchaseKey]*domain.PurchaseRecord),
		artworks:       make(map[domain.ItemID]*domain.Artwork),
		exhibitions:    make(map[domain.ItemID]*domain.Exhibition),
		registrations:  make(map[domain.ItemID]map[domain.UserID]struct{}),
	}
}

// clone deep-copies every row so later in-place writes cannot reach the copy.
func (t *tables) clone() *tables {
	c := newTables()
	for id, w := range t.wallets {
		cp := *w
		c.wallets[id] = &cp
	}
	maps.Copy(c.walletsByOwner, t.walletsByOwner)
	for id, tx := range t.txns {
		cp := *tx
		c.txns[id] = &cp
	}
	c.txnOrder = slices.Clone(t.txnOrder)
	for code, o := range t.orders {
		cp := *o
		c.orders[code] = &cp
	}
	c.orderOrder = slices.Clone(t.orderOrder)
	for id, w := range t.withdrawals {
		cp := *w
		c.withdrawals[id] = &cp
	}
	c.withdrawalOrder = slices.Clone(t.withdrawalOrder)
	for k, p := range t.purchases {
		cp := *p
		c.purchases[k] = &cp
	}
	for id, a := range t.artworks {
		cp := *a
		cp.Buyers = slices.Clone(a.Buyers)
		c.artworks[id] = &cp
	}
	for id, e := range t.exhibitions {
		cp := *e
		if e.Ticket != nil {
			tc := *e.Ticket
			cp.Ticket = &tc
		}
		c.exhibitions[id] = &cp
	}
	for id, regs := range t.registrations {
		c.registrations[id] = maps.Clone(regs)
	}
	return c
}

// Store keeps two versions of the tables. Write transactions are serialized:
// Begin acquires the store until Commit or Rollback and writes go to the live
// tables. Commit publishes a copy of the live tables as the committed version,
// which is all that reads outside a transaction ever see. Every commit copies
// the whole dataset, so the store suits tests and small development data.
type Store struct {
	*tables

	sem       chan struct{}
	mu        sync.RWMutex
	now       func() time.Time
	committed *tables
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		tables:    newTables(),
		sem:       make(chan struct{}, 1),
		now:       time.Now,
		committed: newTables(),
	}
}

// view returns the committed tables. The returned version is never mutated.
func (s *Store) view() *tables {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.committed
}

// publish makes the live tables the committed version. Callers hold sem.
func (s *Store) publish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed = s.tables.clone()
}

// SetClock overrides the time source used for timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Begin starts a write transaction. It blocks while another transaction is open.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	select {
	case s.sem <- struct{}{}:
		return &memTx{store: s}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Name implements ports.HealthChecker.
func (s *Store) Name() string { return "memory" }

// Ping implements ports.HealthChecker.
func (s *Store) Ping(context.Context) error { return nil }

// memTx embeds pgx.Tx to satisfy the interface; only Commit and Rollback are used.
type memTx struct {
	pgx.Tx
	store *Store
	undo  []func()
	done  bool
}

func (t *memTx) Commit(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	if len(t.undo) > 0 {
		t.store.publish()
	}
	t.undo = nil
	<-t.store.sem
	return nil
}

func (t *memTx) Rollback(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.store.mu.Lock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.store.mu.Unlock()
	t.undo = nil
	<-t.store.sem
	return nil
}

// write runs fn under the data lock and registers its undo step.
func (s *Store) write(tx pgx.Tx, fn func() (undo func(), err error)) error {
	mt, ok := tx.(*memTx)
	if !ok || mt.store != s {
		return errForeignTx
	}
	if mt.done {
		return pgx.ErrTxClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	undo, err := fn()
	if err != nil {
		return err
	}
	if undo != nil {
		mt.undo = append(mt.undo, undo)
	}
	return nil
}

// read runs fn under the read lock after checking tx belongs to the store.
func (s *Store) read(tx pgx.Tx, fn func()) error {
	mt, ok := tx.(*memTx)
	if !ok || mt.store != s {
		return errForeignTx
	}
	if mt.done {
		return pgx.ErrTxClosed
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn()
	return nil
}

// --- catalog seeding ---

// seed applies fn to the live tables outside any transaction and publishes
// the result. It waits for an open transaction to finish.
func (s *Store) seed(fn func()) {
	s.sem <- struct{}{}
	defer func() { <-s.sem }()
	s.mu.Lock()
	fn()
	s.mu.Unlock()
	s.publish()
}

// PutArtwork inserts or replaces a catalog artwork.
func (s *Store) PutArtwork(a domain.Artwork) {
	a.Buyers = slices.Clone(a.Buyers)
	s.seed(func() { s.artworks[a.ID] = &a })
}

// PutExhibition inserts or replaces a catalog exhibition.
func (s *Store) PutExhibition(e domain.Exhibition) {
	if e.Ticket != nil {
		t := *e.Ticket
		e.Ticket = &t
	}
	s.seed(func() {
		s.exhibitions[e.ID] = &e
		if _, ok := s.registrations[e.ID]; !ok {
			s.registrations[e.ID] = make(map[domain.UserID]struct{})
		}
	})
}

// --- repositories ---

// Wallets returns the wallet repository view of the store.
func (s *Store) Wallets() *WalletRepo { return &WalletRepo{s: s} }

// Transactions returns the ledger repository view of the store.
func (s *Store) Transactions() *TransactionRepo { return &TransactionRepo{s: s} }

// PaymentOrders returns the payment order repository view of the store.
func (s *Store) PaymentOrders() *PaymentOrderRepo { return &PaymentOrderRepo{s: s} }

// Withdrawals returns the withdrawal repository view of the store.
func (s *Store) Withdrawals() *WithdrawalRepo { return &WithdrawalRepo{s: s} }

// Purchases returns the purchase repository view of the store.
func (s *Store) Purchases() *PurchaseRepo { return &PurchaseRepo{s: s} }

// Catalog returns the catalog repository view of the store.
func (s *Store) Catalog() *CatalogRepo { return &CatalogRepo{s: s} }

func paginate[T any](items []T, page, size int) []T {
	if size <= 0 {
		return items
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * size
	if start >= len(items) {
		return []T{}
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
