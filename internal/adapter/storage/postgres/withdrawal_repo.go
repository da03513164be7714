package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"artmarket-wallet/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const withdrawalColumns = `id, wallet_id, user_id, transaction_id, amount, status,
	bank_name, account_name, account_number_enc, reviewed_by, reject_reason, created_at, updated_at`

// WithdrawalRepo implements ports.WithdrawalRepository.
// Bank.AccountNumber is stored exactly as given; callers encrypt it first.
type WithdrawalRepo struct {
	pool Pool
}

// NewWithdrawalRepo creates a new WithdrawalRepo.
func NewWithdrawalRepo(pool Pool) *WithdrawalRepo {
	return &WithdrawalRepo{pool: pool}
}

// Create inserts a withdrawal request within a database transaction.
func (r *WithdrawalRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalRequest) error {
	query := `INSERT INTO withdrawal_requests (` + withdrawalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := tx.Exec(ctx, query,
		w.ID, w.WalletID, w.UserID, w.TransactionID, w.Amount, w.Status,
		w.Bank.BankName, w.Bank.AccountName, w.Bank.AccountNumber,
		w.ReviewedBy, w.RejectReason, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert withdrawal request: %w", err)
	}
	return nil
}

// GetByID fetches a request without locking.
func (r *WithdrawalRepo) GetByID(ctx context.Context, id domain.WithdrawalID) (*domain.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE id = $1`
	w, err := scanWithdrawal(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get withdrawal request: %w", err)
	}
	return w, nil
}

// GetByIDTx locks and fetches a request inside the caller's transaction.
func (r *WithdrawalRepo) GetByIDTx(ctx context.Context, tx pgx.Tx, id domain.WithdrawalID) (*domain.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE id = $1 FOR UPDATE`
	w, err := scanWithdrawal(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get withdrawal request in tx: %w", err)
	}
	return w, nil
}

// CompareAndSetStatus records an admin decision if the request is still in status from.
func (r *WithdrawalRepo) CompareAndSetStatus(ctx context.Context, tx pgx.Tx, id domain.WithdrawalID, from, to domain.WithdrawalStatus, reviewer domain.UserID, reason *string) error {
	query := `UPDATE withdrawal_requests
		SET status = $1, reviewed_by = $2, reject_reason = $3, updated_at = NOW()
		WHERE id = $4 AND status = $5`
	tag, err := tx.Exec(ctx, query, to, reviewer, reason, id, from)
	if err != nil {
		return fmt.Errorf("update withdrawal status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStatusMismatch
	}
	return nil
}

// List returns one page of requests, newest first, with the total count.
func (r *WithdrawalRepo) List(ctx context.Context, f domain.WithdrawalFilter) ([]domain.WithdrawalRequest, int64, error) {
	var (
		conditions []string
		args       []any
	)
	if f.UserID != nil {
		args = append(args, *f.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.Status != nil {
		args = append(args, *f.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM withdrawal_requests "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count withdrawal requests: %w", err)
	}

	offset := 0
	if f.Page > 1 {
		offset = (f.Page - 1) * f.Size
	}
	query := fmt.Sprintf(`SELECT %s FROM withdrawal_requests %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		withdrawalColumns, where, len(args)+1, len(args)+2)
	args = append(args, f.Size, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list withdrawal requests: %w", err)
	}
	defer rows.Close()

	items := make([]domain.WithdrawalRequest, 0, f.Size)
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan withdrawal row: %w", err)
		}
		items = append(items, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate withdrawal rows: %w", err)
	}
	return items, total, nil
}

func scanWithdrawal(row pgx.Row) (*domain.WithdrawalRequest, error) {
	w := &domain.WithdrawalRequest{}
	err := row.Scan(
		&w.ID, &w.WalletID, &w.UserID, &w.TransactionID, &w.Amount, &w.Status,
		&w.Bank.BankName, &w.Bank.AccountName, &w.Bank.AccountNumber,
		&w.ReviewedBy, &w.RejectReason, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return w, nil
}
