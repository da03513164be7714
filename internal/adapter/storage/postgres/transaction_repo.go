package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"artmarket-wallet/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const transactionColumns = `id, wallet_id, amount, type, status, order_code, reference_id, description, created_at, updated_at`

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create appends a ledger row within a database transaction.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := tx.Exec(ctx, query,
		t.ID, t.WalletID, t.Amount, t.Type, t.Status,
		t.OrderCode, t.ReferenceID, t.Description, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByID fetches a ledger row by id.
func (r *TransactionRepo) GetByID(ctx context.Context, id domain.TransactionID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	t, err := scanTransaction(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get transaction by id: %w", err)
	}
	return t, nil
}

// GetByIDTx locks and fetches a ledger row inside the caller's transaction.
func (r *TransactionRepo) GetByIDTx(ctx context.Context, tx pgx.Tx, id domain.TransactionID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`
	t, err := scanTransaction(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get transaction in tx: %w", err)
	}
	return t, nil
}

// GetByOrderCodeTx returns the DEPOSIT row linked to a payment order.
func (r *TransactionRepo) GetByOrderCodeTx(ctx context.Context, tx pgx.Tx, code domain.OrderCode) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE order_code = $1 AND type = 'DEPOSIT' FOR UPDATE`
	t, err := scanTransaction(tx.QueryRow(ctx, query, code))
	if err != nil {
		return nil, fmt.Errorf("get deposit by order code: %w", err)
	}
	return t, nil
}

// UpdateStatus moves a row from one status to another.
func (r *TransactionRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id domain.TransactionID, from, to domain.TransactionStatus) error {
	query := `UPDATE transactions SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`
	tag, err := tx.Exec(ctx, query, to, id, from)
	if err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStatusMismatch
	}
	return nil
}

// List returns one page of ledger rows, newest first.
func (r *TransactionRepo) List(ctx context.Context, f domain.TransactionFilter) ([]domain.Transaction, error) {
	where, args := transactionWhere(f)
	argIdx := len(args) + 1

	query := fmt.Sprintf(`SELECT %s FROM transactions %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		transactionColumns, where, argIdx, argIdx+1)
	args = append(args, f.Size, f.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txns := make([]domain.Transaction, 0, f.Size)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, nil
}

// Count returns the number of rows matching the filter.
func (r *TransactionRepo) Count(ctx context.Context, f domain.TransactionFilter) (int64, error) {
	where, args := transactionWhere(f)
	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM transactions "+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return total, nil
}

// Aggregate buckets a wallet's rows by q.GroupBy. Buckets come back in
// chronological order; empty periods are omitted.
func (r *TransactionRepo) Aggregate(ctx context.Context, q domain.StatisticsQuery) ([]domain.StatsBucket, error) {
	conditions := []string{"wallet_id = $2", "created_at >= $3", "created_at <= $4"}
	args := []any{string(q.GroupBy), q.WalletID, q.From, q.To}
	if q.Type != nil {
		args = append(args, *q.Type)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	if q.Status != nil {
		args = append(args, *q.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT
		date_trunc($1, created_at AT TIME ZONE 'UTC') AS period,
		COALESCE(SUM(amount) FILTER (WHERE amount > 0), 0) AS inflow,
		COALESCE(-SUM(amount) FILTER (WHERE amount < 0), 0) AS outflow,
		COUNT(*) AS transactions
		FROM transactions WHERE ` + strings.Join(conditions, " AND ") + `
		GROUP BY period ORDER BY period`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregate transactions: %w", err)
	}
	defer rows.Close()

	buckets := make([]domain.StatsBucket, 0)
	for rows.Next() {
		var (
			period time.Time
			b      domain.StatsBucket
		)
		if err := rows.Scan(&period, &b.Inflow, &b.Outflow, &b.Transactions); err != nil {
			return nil, fmt.Errorf("scan stats bucket: %w", err)
		}
		b.Period = q.GroupBy.Label(period)
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats buckets: %w", err)
	}
	return buckets, nil
}

// Sums returns the wallet balance with its PAID total and PENDING withdrawal
// hold. A single statement sees a single snapshot, so a settlement that
// commits meanwhile is either fully counted or not at all.
func (r *TransactionRepo) Sums(ctx context.Context, walletID domain.WalletID) (*domain.Reconciliation, error) {
	query := `SELECT w.balance,
		COALESCE(SUM(t.amount) FILTER (WHERE t.status = 'PAID'), 0) AS paid,
		COALESCE(SUM(t.amount) FILTER (WHERE t.status = 'PENDING' AND t.type = 'WITHDRAWAL'), 0) AS held
		FROM wallets w LEFT JOIN transactions t ON t.wallet_id = w.id
		WHERE w.id = $1
		GROUP BY w.balance`

	rec := &domain.Reconciliation{WalletID: walletID}
	err := r.pool.QueryRow(ctx, query, walletID).Scan(&rec.Balance, &rec.PaidSum, &rec.HeldSum)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("sum transactions: %w", err)
	}
	return rec, nil
}

// WithdrawnSince sums live withdrawals created at or after since.
func (r *TransactionRepo) WithdrawnSince(ctx context.Context, tx pgx.Tx, walletID domain.WalletID, since time.Time) (int64, error) {
	query := `SELECT COALESCE(-SUM(amount), 0) FROM transactions
		WHERE wallet_id = $1 AND type = 'WITHDRAWAL' AND status IN ('PENDING', 'PAID') AND created_at >= $2`

	var total int64
	if err := tx.QueryRow(ctx, query, walletID, since).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum withdrawals: %w", err)
	}
	return total, nil
}

func transactionWhere(f domain.TransactionFilter) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if f.WalletID != nil {
		add("wallet_id = $%d", *f.WalletID)
	}
	if f.Type != nil {
		add("type = $%d", *f.Type)
	}
	if f.Status != nil {
		add("status = $%d", *f.Status)
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at <= $%d", *f.To)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	err := row.Scan(
		&t.ID, &t.WalletID, &t.Amount, &t.Type, &t.Status,
		&t.OrderCode, &t.ReferenceID, &t.Description, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}
