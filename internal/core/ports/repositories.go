package ports

import (
	"context"
	"time"

	"artmarket-wallet/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx run inside the caller's atomic unit.
type WalletRepository interface {
	GetByOwner(ctx context.Context, owner domain.UserID) (*domain.Wallet, error)
	GetByID(ctx context.Context, id domain.WalletID) (*domain.Wallet, error)
	// GetOrCreate returns the owner's wallet, inserting an empty one if none exists.
	GetOrCreate(ctx context.Context, tx pgx.Tx, owner domain.UserID) (*domain.Wallet, error)
	GetByIDTx(ctx context.Context, tx pgx.Tx, id domain.WalletID) (*domain.Wallet, error)
	// ApplyDelta adds delta to the balance if the stored version equals expectedVersion.
	// Returns domain.ErrVersionConflict or domain.ErrInsufficientFunds.
	ApplyDelta(ctx context.Context, tx pgx.Tx, id domain.WalletID, delta int64, expectedVersion int64) (*domain.BalanceChange, error)
}

// TransactionRepository defines persistence operations for ledger rows.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error
	GetByID(ctx context.Context, id domain.TransactionID) (*domain.Transaction, error)
	GetByIDTx(ctx context.Context, tx pgx.Tx, id domain.TransactionID) (*domain.Transaction, error)
	// GetByOrderCodeTx returns the DEPOSIT row linked to a payment order.
	GetByOrderCodeTx(ctx context.Context, tx pgx.Tx, code domain.OrderCode) (*domain.Transaction, error)
	// UpdateStatus moves a row from one status to another.
	// Returns domain.ErrStatusMismatch when the row is not in status from.
	UpdateStatus(ctx context.Context, tx pgx.Tx, id domain.TransactionID, from, to domain.TransactionStatus) error
	List(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error)
	Count(ctx context.Context, filter domain.TransactionFilter) (int64, error)
	Aggregate(ctx context.Context, q domain.StatisticsQuery) ([]domain.StatsBucket, error)
	// Sums reads the wallet balance, the PAID total and the PENDING hold total
	// from one snapshot. Consistent is left for the caller. Returns nil when
	// the wallet does not exist.
	Sums(ctx context.Context, walletID domain.WalletID) (*domain.Reconciliation, error)
	// WithdrawnSince sums PENDING and PAID withdrawals created at or after since, as a positive number.
	WithdrawnSince(ctx context.Context, tx pgx.Tx, walletID domain.WalletID, since time.Time) (int64, error)
}

// PaymentOrderRepository defines persistence operations for payment orders.
type PaymentOrderRepository interface {
	// Create returns domain.ErrDuplicate when the order code is taken.
	Create(ctx context.Context, tx pgx.Tx, o *domain.PaymentOrder) error
	GetByOrderCode(ctx context.Context, code domain.OrderCode) (*domain.PaymentOrder, error)
	GetByOrderCodeTx(ctx context.Context, tx pgx.Tx, code domain.OrderCode) (*domain.PaymentOrder, error)
	// CompareAndSetStatus returns domain.ErrStatusMismatch when the order is not in status from.
	CompareAndSetStatus(ctx context.Context, tx pgx.Tx, code domain.OrderCode, from, to domain.PaymentStatus) error
	ListByUser(ctx context.Context, user domain.UserID, page, size int) ([]domain.PaymentOrder, int64, error)
}

// WithdrawalRepository defines persistence operations for withdrawal requests.
type WithdrawalRepository interface {
	Create(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalRequest) error
	GetByID(ctx context.Context, id domain.WithdrawalID) (*domain.WithdrawalRequest, error)
	GetByIDTx(ctx context.Context, tx pgx.Tx, id domain.WithdrawalID) (*domain.WithdrawalRequest, error)
	// CompareAndSetStatus returns domain.ErrStatusMismatch when the request is not in status from.
	CompareAndSetStatus(ctx context.Context, tx pgx.Tx, id domain.WithdrawalID, from, to domain.WithdrawalStatus, reviewer domain.UserID, reason *string) error
	List(ctx context.Context, filter domain.WithdrawalFilter) ([]domain.WithdrawalRequest, int64, error)
}

// PurchaseRepository defines persistence for settled purchases.
type PurchaseRepository interface {
	Exists(ctx context.Context, buyer domain.UserID, item domain.ItemID, kind domain.ItemKind) (bool, error)
	// Insert returns domain.ErrDuplicate when the record already exists.
	Insert(ctx context.Context, tx pgx.Tx, rec *domain.PurchaseRecord) error
}

// CatalogRepository is the engine's view of sellable items.
type CatalogRepository interface {
	GetArtwork(ctx context.Context, id domain.ItemID) (*domain.Artwork, error)
	GetArtworkTx(ctx context.Context, tx pgx.Tx, id domain.ItemID) (*domain.Artwork, error)
	AddArtworkBuyer(ctx context.Context, tx pgx.Tx, id domain.ItemID, buyer domain.UserID) error
	GetExhibition(ctx context.Context, id domain.ItemID) (*domain.Exhibition, error)
	GetExhibitionTx(ctx context.Context, tx pgx.Tx, id domain.ItemID) (*domain.Exhibition, error)
	IsRegistered(ctx context.Context, exhibition domain.ItemID, user domain.UserID) (bool, error)
	// Register adds user to the exhibition. Returns domain.ErrDuplicate when already
	// registered and domain.ErrCapacityReached when the exhibition is full.
	Register(ctx context.Context, tx pgx.Tx, exhibition domain.ItemID, user domain.UserID) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
