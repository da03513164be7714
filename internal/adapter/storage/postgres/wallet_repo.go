package postgres

import (
	"context"
	"errors"
	"fmt"

	"artmarket-wallet/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const walletColumns = `id, owner_id, balance, version, created_at, updated_at`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// GetByOwner fetches the wallet of a user (non-locking read).
func (r *WalletRepo) GetByOwner(ctx context.Context, owner domain.UserID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE owner_id = $1`
	w, err := scanWallet(r.pool.QueryRow(ctx, query, owner))
	if err != nil {
		return nil, fmt.Errorf("get wallet by owner: %w", err)
	}
	return w, nil
}

// GetByID fetches a wallet by id (non-locking read).
func (r *WalletRepo) GetByID(ctx context.Context, id domain.WalletID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`
	w, err := scanWallet(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get wallet by id: %w", err)
	}
	return w, nil
}

// GetOrCreate inserts an empty wallet unless the owner already has one, then
// reads the surviving row. Concurrent creators converge on the unique owner_id.
func (r *WalletRepo) GetOrCreate(ctx context.Context, tx pgx.Tx, owner domain.UserID) (*domain.Wallet, error) {
	insert := `INSERT INTO wallets (id, owner_id, balance, version, created_at, updated_at)
		VALUES ($1, $2, 0, 0, NOW(), NOW())
		ON CONFLICT (owner_id) DO NOTHING`
	if _, err := tx.Exec(ctx, insert, domain.NewWalletID(), owner); err != nil {
		return nil, fmt.Errorf("insert wallet: %w", err)
	}

	query := `SELECT ` + walletColumns + ` FROM wallets WHERE owner_id = $1`
	w, err := scanWallet(tx.QueryRow(ctx, query, owner))
	if err != nil {
		return nil, fmt.Errorf("get wallet after insert: %w", err)
	}
	if w == nil {
		return nil, fmt.Errorf("wallet for %s vanished after insert", owner)
	}
	return w, nil
}

// GetByIDTx locks and reads a wallet inside the caller's transaction.
// Writers on the same wallet queue on the row lock until the holder commits,
// so the version read here is still current when ApplyDelta runs.
func (r *WalletRepo) GetByIDTx(ctx context.Context, tx pgx.Tx, id domain.WalletID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1 FOR UPDATE`
	w, err := scanWallet(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get wallet in tx: %w", err)
	}
	return w, nil
}

// ApplyDelta moves the balance by delta when the row still carries
// expectedVersion and the result stays non-negative. When the guarded update
// matches nothing, a follow-up read tells a stale version from an overdraft.
func (r *WalletRepo) ApplyDelta(ctx context.Context, tx pgx.Tx, id domain.WalletID, delta int64, expectedVersion int64) (*domain.BalanceChange, error) {
	query := `UPDATE wallets SET balance = balance + $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3 AND balance + $1 >= 0
		RETURNING balance, version`

	change := &domain.BalanceChange{WalletID: id, Delta: delta}
	err := tx.QueryRow(ctx, query, delta, id, expectedVersion).Scan(&change.NewBalance, &change.NewVersion)
	if err == nil {
		return change, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("apply wallet delta: %w", err)
	}

	var balance, version int64
	err = tx.QueryRow(ctx, `SELECT balance, version FROM wallets WHERE id = $1`, id).Scan(&balance, &version)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("wallet %s not found: %w", id, domain.ErrVersionConflict)
	case err != nil:
		return nil, fmt.Errorf("read wallet after rejected delta: %w", err)
	case version != expectedVersion:
		return nil, domain.ErrVersionConflict
	default:
		return nil, domain.ErrInsufficientFunds
	}
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(&w.ID, &w.OwnerID, &w.Balance, &w.Version, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return w, nil
}
