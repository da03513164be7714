package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"artmarket-wallet/internal/core/domain"
	"artmarket-wallet/internal/core/ports"
	"artmarket-wallet/pkg/apperror"
	"artmarket-wallet/pkg/metrics"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

// Postgres error codes that are safe to retry with a fresh read.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// AtomicOptions bounds each atomic unit.
type AtomicOptions struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	Backoff        time.Duration
}

// Atomic runs units of work in a database transaction, one transaction per
// attempt. Version conflicts are retried; anything else aborts.
type Atomic struct {
	transactor ports.DBTransactor
	opts       AtomicOptions
	metrics    *metrics.Settlement
	log        zerolog.Logger
}

// NewAtomic creates a new Atomic runner.
func NewAtomic(transactor ports.DBTransactor, opts AtomicOptions, m *metrics.Settlement, log zerolog.Logger) *Atomic {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Atomic{transactor: transactor, opts: opts, metrics: m, log: log}
}

// Run executes fn until it commits, fails with a non-retryable error, or
// runs out of attempts. Exhaustion and attempt timeouts surface as Busy.
func (a *Atomic) Run(ctx context.Context, operation string, fn func(ctx context.Context, tx pgx.Tx) error) error {
	start := time.Now()
	attempt := 0

	backoff := retry.WithMaxRetries(uint64(a.opts.MaxAttempts-1), retry.NewConstant(a.opts.Backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			a.metrics.IncRetry(operation)
			a.log.Debug().Str("operation", operation).Int("attempt", attempt).Msg("retrying after version conflict")
		}
		err := a.attempt(ctx, fn)
		if retryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})

	err = a.classify(ctx, operation, attempt, err)
	a.metrics.ObserveOperation(operation, outcome(err), time.Since(start))
	return err
}

func (a *Atomic) attempt(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	if a.opts.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.AttemptTimeout)
		defer cancel()
	}

	dbTx, err := a.transactor.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := fn(ctx, dbTx); err != nil {
		return err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// classify maps the final error onto the error kinds callers see.
func (a *Atomic) classify(ctx context.Context, operation string, attempts int, err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if retryable(err) {
		a.log.Warn().Str("operation", operation).Int("attempts", attempts).Msg("gave up after repeated version conflicts")
		return apperror.ErrBusy(err)
	}
	// The attempt deadline fired while the caller is still waiting.
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		a.log.Warn().Str("operation", operation).Dur("timeout", a.opts.AttemptTimeout).Msg("atomic unit timed out")
		return apperror.ErrBusy(err)
	}
	if errors.Is(err, domain.ErrInsufficientFunds) {
		return apperror.ErrInsufficientFunds()
	}
	return apperror.InternalError(fmt.Errorf("%s: %w", operation, err))
}

func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrVersionConflict) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}
	return false
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "error"
}
