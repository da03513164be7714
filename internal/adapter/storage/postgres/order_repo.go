package postgres

import (
	"context"
	"errors"
	"fmt"

	"artmarket-wallet/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const orderColumns = `id, user_id, order_code, amount, description, status, payment_url, created_at, updated_at`

// PaymentOrderRepo implements ports.PaymentOrderRepository.
type PaymentOrderRepo struct {
	pool Pool
}

// NewPaymentOrderRepo creates a new PaymentOrderRepo.
func NewPaymentOrderRepo(pool Pool) *PaymentOrderRepo {
	return &PaymentOrderRepo{pool: pool}
}

// Create inserts a payment order. A taken order code yields domain.ErrDuplicate.
func (r *PaymentOrderRepo) Create(ctx context.Context, tx pgx.Tx, o *domain.PaymentOrder) error {
	query := `INSERT INTO payment_orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := tx.Exec(ctx, query,
		o.ID, o.UserID, o.OrderCode, o.Amount, o.Description,
		o.Status, o.PaymentURL, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert payment order: %w", err)
	}
	return nil
}

// GetByOrderCode fetches an order without locking.
func (r *PaymentOrderRepo) GetByOrderCode(ctx context.Context, code domain.OrderCode) (*domain.PaymentOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM payment_orders WHERE order_code = $1`
	o, err := scanOrder(r.pool.QueryRow(ctx, query, code))
	if err != nil {
		return nil, fmt.Errorf("get payment order: %w", err)
	}
	return o, nil
}

// GetByOrderCodeTx locks and fetches an order inside the caller's transaction.
func (r *PaymentOrderRepo) GetByOrderCodeTx(ctx context.Context, tx pgx.Tx, code domain.OrderCode) (*domain.PaymentOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM payment_orders WHERE order_code = $1 FOR UPDATE`
	o, err := scanOrder(tx.QueryRow(ctx, query, code))
	if err != nil {
		return nil, fmt.Errorf("get payment order in tx: %w", err)
	}
	return o, nil
}

// CompareAndSetStatus moves the order from one status to another. Exactly one
// concurrent caller can win; the rest get domain.ErrStatusMismatch.
func (r *PaymentOrderRepo) CompareAndSetStatus(ctx context.Context, tx pgx.Tx, code domain.OrderCode, from, to domain.PaymentStatus) error {
	query := `UPDATE payment_orders SET status = $1, updated_at = NOW() WHERE order_code = $2 AND status = $3`
	tag, err := tx.Exec(ctx, query, to, code, from)
	if err != nil {
		return fmt.Errorf("update payment order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStatusMismatch
	}
	return nil
}

// ListByUser returns a user's orders, newest first, with the total count.
func (r *PaymentOrderRepo) ListByUser(ctx context.Context, user domain.UserID, page, size int) ([]domain.PaymentOrder, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM payment_orders WHERE user_id = $1`, user).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count payment orders: %w", err)
	}

	query := `SELECT ` + orderColumns + ` FROM payment_orders WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, user, size, (page-1)*size)
	if err != nil {
		return nil, 0, fmt.Errorf("list payment orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.PaymentOrder, 0, size)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan payment order row: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate payment order rows: %w", err)
	}
	return orders, total, nil
}

func scanOrder(row pgx.Row) (*domain.PaymentOrder, error) {
	o := &domain.PaymentOrder{}
	err := row.Scan(
		&o.ID, &o.UserID, &o.OrderCode, &o.Amount, &o.Description,
		&o.Status, &o.PaymentURL, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return o, nil
}
