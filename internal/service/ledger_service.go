package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"artmarket-wallet/internal/core/domain"
	"artmarket-wallet/internal/core/ports"
	"artmarket-wallet/pkg/apperror"
	"artmarket-wallet/pkg/pagination"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const defaultStatisticsRange = 30 * 24 * time.Hour

// LedgerServiceImpl implements ports.LedgerService and ports.LedgerWriter.
type LedgerServiceImpl struct {
	txRepo     ports.TransactionRepository
	walletRepo ports.WalletRepository
	now        func() time.Time
	log        zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	txRepo ports.TransactionRepository,
	walletRepo ports.WalletRepository,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		txRepo:     txRepo,
		walletRepo: walletRepo,
		now:        time.Now,
		log:        log,
	}
}

// Record appends a ledger row. The stored amount carries the sign of the entry type.
func (s *LedgerServiceImpl) Record(ctx context.Context, tx pgx.Tx, entry domain.LedgerEntry) (*domain.Transaction, error) {
	if entry.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	status := entry.Status
	if status == "" {
		status = domain.TransactionStatusPending
	}

	now := s.now()
	t := &domain.Transaction{
		ID:          domain.NewTransactionID(),
		WalletID:    entry.WalletID,
		Amount:      entry.Type.SignedAmount(entry.Amount),
		Type:        entry.Type,
		Status:      status,
		OrderCode:   entry.OrderCode,
		ReferenceID: entry.ReferenceID,
		Description: entry.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := t.Validate(); err != nil {
		return nil, apperror.Validation(err.Error())
	}

	if err := s.txRepo.Create(ctx, tx, t); err != nil {
		return nil, fmt.Errorf("record %s: %w", t.Type, err)
	}
	return t, nil
}

// Transition moves a row from one status to another. A row already in the
// target status is returned unchanged.
func (s *LedgerServiceImpl) Transition(ctx context.Context, tx pgx.Tx, id domain.TransactionID, from, to domain.TransactionStatus) (*domain.Transaction, error) {
	t, err := s.txRepo.GetByIDTx(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("read transaction %s: %w", id, err)
	}
	if t == nil {
		return nil, apperror.ErrNotFound("Transaction")
	}
	if t.Status == to {
		return t, nil
	}
	if t.Status != from || !from.CanTransitionTo(to) {
		return nil, apperror.ErrStateConflict("Transaction")
	}

	if err := s.txRepo.UpdateStatus(ctx, tx, id, from, to); err != nil {
		if errors.Is(err, domain.ErrStatusMismatch) {
			return nil, apperror.ErrStateConflict("Transaction")
		}
		return nil, fmt.Errorf("transition transaction %s: %w", id, err)
	}
	t.Status = to
	t.UpdatedAt = s.now()
	return t, nil
}

// History returns one page of the owner's ledger, newest first.
func (s *LedgerServiceImpl) History(ctx context.Context, owner domain.UserID, filter domain.TransactionFilter) (*domain.Page[domain.Transaction], error) {
	w, err := s.walletRepo.GetByOwner(ctx, owner)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	filter.Page, filter.Size = pagination.Normalize(filter.Page, filter.Size)
	if w == nil {
		return &domain.Page[domain.Transaction]{Items: []domain.Transaction{}, Page: filter.Page, Size: filter.Size}, nil
	}
	filter.WalletID = &w.ID
	return s.page(ctx, filter)
}

// AllTransactions returns one page of every wallet's ledger.
func (s *LedgerServiceImpl) AllTransactions(ctx context.Context, filter domain.TransactionFilter) (*domain.Page[domain.Transaction], error) {
	filter.Page, filter.Size = pagination.Normalize(filter.Page, filter.Size)
	return s.page(ctx, filter)
}

func (s *LedgerServiceImpl) page(ctx context.Context, filter domain.TransactionFilter) (*domain.Page[domain.Transaction], error) {
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, apperror.Validation("from must not be after to")
	}

	var (
		items []domain.Transaction
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = s.txRepo.List(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.txRepo.Count(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if items == nil {
		items = []domain.Transaction{}
	}

	return &domain.Page[domain.Transaction]{
		Items: items,
		Total: total,
		Page:  filter.Page,
		Size:  filter.Size,
	}, nil
}

// Statistics buckets the owner's ledger by day, week or month.
func (s *LedgerServiceImpl) Statistics(ctx context.Context, owner domain.UserID, params ports.StatisticsParams) (*domain.WalletStatistics, error) {
	groupBy := params.GroupBy
	if groupBy == "" {
		groupBy = domain.GroupByDay
	}
	if !groupBy.Valid() {
		return nil, apperror.Validation("group_by must be day, week or month")
	}

	to := s.now()
	if params.To != nil {
		to = *params.To
	}
	from := to.Add(-defaultStatisticsRange)
	if params.From != nil {
		from = *params.From
	}
	if from.After(to) {
		return nil, apperror.Validation("from must not be after to")
	}

	stats := &domain.WalletStatistics{
		GroupBy:    groupBy,
		From:       from,
		To:         to,
		TimeSeries: []domain.StatsBucket{},
	}

	w, err := s.walletRepo.GetByOwner(ctx, owner)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if w == nil {
		return stats, nil
	}
	stats.CurrentBalance = w.Balance

	buckets, err := s.txRepo.Aggregate(ctx, domain.StatisticsQuery{
		WalletID: w.ID,
		GroupBy:  groupBy,
		From:     from,
		To:       to,
		Type:     params.Type,
		Status:   params.Status,
	})
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if len(buckets) > 0 {
		stats.TimeSeries = buckets
	}
	stats.Summary = domain.Summarize(stats.TimeSeries)
	stats.Trends = domain.ComputeTrends(stats.TimeSeries)
	return stats, nil
}
