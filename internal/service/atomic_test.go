package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"artmarket-wallet/internal/core/domain"
	"artmarket-wallet/internal/core/ports/mocks"
	"artmarket-wallet/pkg/apperror"
	"artmarket-wallet/pkg/metrics"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// mockTx implements pgx.Tx for testing
type mockTx struct {
	pgx.Tx
	commits   int
	rollbacks int
}

func (m *mockTx) Rollback(_ context.Context) error {
	m.rollbacks++
	return nil
}

func (m *mockTx) Commit(_ context.Context) error {
	m.commits++
	return nil
}

func setupAtomic(t *testing.T, opts AtomicOptions) (*Atomic, *mocks.MockDBTransactor) {
	ctrl := gomock.NewController(t)
	transactor := mocks.NewMockDBTransactor(ctrl)
	return NewAtomic(transactor, opts, nil, zerolog.Nop()), transactor
}

func TestAtomic_CommitsOnSuccess(t *testing.T) {
	a, transactor := setupAtomic(t, AtomicOptions{MaxAttempts: 3, Backoff: time.Millisecond})
	tx := &mockTx{}
	transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)

	calls := 0
	err := a.Run(context.Background(), "test.ok", func(ctx context.Context, got pgx.Tx) error {
		calls++
		assert.Same(t, tx, got)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, tx.commits)
}

func TestAtomic_RetriesVersionConflict(t *testing.T) {
	a, transactor := setupAtomic(t, AtomicOptions{MaxAttempts: 3, Backoff: time.Millisecond})
	first, second := &mockTx{}, &mockTx{}
	gomock.InOrder(
		transactor.EXPECT().Begin(gomock.Any()).Return(first, nil),
		transactor.EXPECT().Begin(gomock.Any()).Return(second, nil),
	)

	calls := 0
	err := a.Run(context.Background(), "test.retry", func(ctx context.Context, tx pgx.Tx) error {
		calls++
		if calls == 1 {
			return domain.ErrVersionConflict
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, first.commits)
	assert.Equal(t, 1, first.rollbacks)
	assert.Equal(t, 1, second.commits)
}

func TestAtomic_RetriesSerializationFailure(t *testing.T) {
	a, transactor := setupAtomic(t, AtomicOptions{MaxAttempts: 2, Backoff: time.Millisecond})
	transactor.EXPECT().Begin(gomock.Any()).Return(&mockTx{}, nil).Times(2)

	calls := 0
	err := a.Run(context.Background(), "test.serialization", func(ctx context.Context, tx pgx.Tx) error {
		calls++
		if calls == 1 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestAtomic_ExhaustedRetriesAreBusy(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewSettlement(reg)
	ctrl := gomock.NewController(t)
	transactor := mocks.NewMockDBTransactor(ctrl)
	a := NewAtomic(transactor, AtomicOptions{MaxAttempts: 3, Backoff: time.Millisecond}, m, zerolog.Nop())

	transactor.EXPECT().Begin(gomock.Any()).Return(&mockTx{}, nil).Times(3)

	calls := 0
	err := a.Run(context.Background(), "test.busy", func(ctx context.Context, tx pgx.Tx) error {
		calls++
		return domain.ErrVersionConflict
	})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeBusy))
	assert.ErrorIs(t, err, domain.ErrVersionConflict)
	assert.Equal(t, 3, calls)

	n, err := testutil.GatherAndCount(reg, "wallet_version_conflict_retries_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAtomic_AppErrorIsNotRetried(t *testing.T) {
	a, transactor := setupAtomic(t, AtomicOptions{MaxAttempts: 3, Backoff: time.Millisecond})
	tx := &mockTx{}
	transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil).Times(1)

	err := a.Run(context.Background(), "test.app", func(ctx context.Context, tx pgx.Tx) error {
		return apperror.ErrDuplicatePurchase()
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicatePurchase))
	assert.Equal(t, 0, tx.commits)
	assert.Equal(t, 1, tx.rollbacks)
}

func TestAtomic_InsufficientFunds(t *testing.T) {
	a, transactor := setupAtomic(t, AtomicOptions{MaxAttempts: 3, Backoff: time.Millisecond})
	transactor.EXPECT().Begin(gomock.Any()).Return(&mockTx{}, nil).Times(1)

	err := a.Run(context.Background(), "test.funds", func(ctx context.Context, tx pgx.Tx) error {
		return domain.ErrInsufficientFunds
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientFunds))
}

func TestAtomic_BeginFailureIsInternal(t *testing.T) {
	a, transactor := setupAtomic(t, AtomicOptions{MaxAttempts: 3, Backoff: time.Millisecond})
	transactor.EXPECT().Begin(gomock.Any()).Return(nil, errors.New("connection refused"))

	err := a.Run(context.Background(), "test.begin", func(ctx context.Context, tx pgx.Tx) error {
		t.Fatal("fn must not run without a transaction")
		return nil
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeInternal))
}

func TestAtomic_AttemptTimeoutIsBusy(t *testing.T) {
	a, transactor := setupAtomic(t, AtomicOptions{
		MaxAttempts:    1,
		AttemptTimeout: 20 * time.Millisecond,
	})
	transactor.EXPECT().Begin(gomock.Any()).Return(&mockTx{}, nil)

	err := a.Run(context.Background(), "test.timeout", func(ctx context.Context, tx pgx.Tx) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeBusy))
}

func TestAtomic_CallerCancellationIsNotBusy(t *testing.T) {
	a, transactor := setupAtomic(t, AtomicOptions{MaxAttempts: 3, Backoff: time.Millisecond})
	transactor.EXPECT().Begin(gomock.Any()).Return(&mockTx{}, nil).AnyTimes()

	ctx, cancel := context.WithCancel(context.Background())
	err := a.Run(ctx, "test.cancel", func(ctx context.Context, tx pgx.Tx) error {
		cancel()
		return ctx.Err()
	})
	require.Error(t, err)
	assert.False(t, apperror.HasCode(err, apperror.CodeBusy))
}
