package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"artmarket-wallet/internal/core/domain"
	"artmarket-wallet/internal/core/ports"
	"artmarket-wallet/pkg/apperror"
	"artmarket-wallet/pkg/metrics"
	"artmarket-wallet/pkg/pagination"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// WithdrawalLimits bounds withdrawal requests. DailyLimit 0 means unlimited.
type WithdrawalLimits struct {
	MinAmount  int64
	DailyLimit int64
}

// WithdrawalServiceImpl implements ports.WithdrawalService.
type WithdrawalServiceImpl struct {
	withdrawalRepo ports.WithdrawalRepository
	txRepo         ports.TransactionRepository
	wallets        ports.WalletWriter
	ledger         ports.LedgerWriter
	atomic         ports.AtomicRunner
	encSvc         ports.EncryptionService
	publisher      ports.EventPublisher
	limits         WithdrawalLimits
	metrics        *metrics.Settlement
	now            func() time.Time
	log            zerolog.Logger
}

// NewWithdrawalService creates a new WithdrawalServiceImpl.
func NewWithdrawalService(
	withdrawalRepo ports.WithdrawalRepository,
	txRepo ports.TransactionRepository,
	wallets ports.WalletWriter,
	ledger ports.LedgerWriter,
	atomic ports.AtomicRunner,
	encSvc ports.EncryptionService,
	publisher ports.EventPublisher,
	limits WithdrawalLimits,
	m *metrics.Settlement,
	log zerolog.Logger,
) *WithdrawalServiceImpl {
	return &WithdrawalServiceImpl{
		withdrawalRepo: withdrawalRepo,
		txRepo:         txRepo,
		wallets:        wallets,
		ledger:         ledger,
		atomic:         atomic,
		encSvc:         encSvc,
		publisher:      publisher,
		limits:         limits,
		metrics:        m,
		now:            time.Now,
		log:            log,
	}
}

// RequestWithdrawal holds amount on the user's wallet until an admin decides.
func (s *WithdrawalServiceImpl) RequestWithdrawal(ctx context.Context, user domain.UserID, amount int64, bank domain.BankDetails) (*domain.WithdrawalRequest, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if amount < s.limits.MinAmount {
		return nil, apperror.Validation(fmt.Sprintf("minimum withdrawal amount is %d", s.limits.MinAmount))
	}
	bank.BankName = strings.TrimSpace(bank.BankName)
	bank.AccountName = strings.TrimSpace(bank.AccountName)
	bank.AccountNumber = strings.TrimSpace(bank.AccountNumber)
	if bank.BankName == "" || bank.AccountName == "" || bank.AccountNumber == "" {
		return nil, apperror.Validation("bank name, account name and account number are required")
	}

	encrypted, err := s.encSvc.Encrypt(bank.AccountNumber)
	if err != nil {
		return nil, apperror.ErrEncryptionFailure(err)
	}

	// The daily limit resets at midnight UTC whatever the server's zone.
	now := s.now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var req *domain.WithdrawalRequest
	err = s.atomic.Run(ctx, "withdrawal.request", func(ctx context.Context, tx pgx.Tx) error {
		w, err := s.wallets.Ensure(ctx, tx, user)
		if err != nil {
			return err
		}

		if s.limits.DailyLimit > 0 {
			today, err := s.txRepo.WithdrawnSince(ctx, tx, w.ID, startOfDay)
			if err != nil {
				return fmt.Errorf("sum today's withdrawals: %w", err)
			}
			if today+amount > s.limits.DailyLimit {
				return apperror.ErrWithdrawalLimitExceeded()
			}
		}

		if _, err := s.wallets.Apply(ctx, tx, w.ID, -amount); err != nil {
			return err
		}

		id := domain.NewWithdrawalID()
		ref := string(id)
		row, err := s.ledger.Record(ctx, tx, domain.LedgerEntry{
			WalletID:    w.ID,
			Amount:      amount,
			Type:        domain.TransactionTypeWithdrawal,
			Status:      domain.TransactionStatusPending,
			ReferenceID: &ref,
			Description: "Withdrawal to " + bank.BankName,
		})
		if err != nil {
			return err
		}

		req = &domain.WithdrawalRequest{
			ID:            id,
			WalletID:      w.ID,
			UserID:        user,
			TransactionID: row.ID,
			Amount:        amount,
			Status:        domain.WithdrawalStatusPending,
			Bank: domain.BankDetails{
				BankName:      bank.BankName,
				AccountName:   bank.AccountName,
				AccountNumber: encrypted,
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.withdrawalRepo.Create(ctx, tx, req); err != nil {
			return fmt.Errorf("create withdrawal request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("withdrawal_id", string(req.ID)).
		Str("user_id", string(user)).
		Int64("amount", amount).
		Msg("withdrawal requested")

	out := *req
	out.Bank.AccountNumber = MaskAccountNumber(bank.AccountNumber)
	return &out, nil
}

// Approve finalises the hold and emits a payout event.
func (s *WithdrawalServiceImpl) Approve(ctx context.Context, id domain.WithdrawalID, admin domain.UserID) (*domain.WithdrawalRequest, error) {
	req, err := s.decide(ctx, id, admin, domain.WithdrawalStatusApproved, nil)
	if err != nil {
		return nil, err
	}

	s.metrics.AddMoved(string(domain.TransactionTypeWithdrawal), req.Amount)

	// The event carries only the masked number. The payout worker resolves
	// the full account through the withdrawal id.
	out := s.masked(req)
	bank := out.Bank
	wid := req.ID
	publishAfterCommit(ctx, s.publisher, &domain.Event{
		Type:         domain.EventWithdrawalApproved,
		OccurredAt:   req.UpdatedAt,
		UserID:       req.UserID,
		WalletID:     req.WalletID,
		Amount:       req.Amount,
		WithdrawalID: &wid,
		Bank:         &bank,
	}, s.log)

	return out, nil
}

// Reject releases the hold back to the wallet.
func (s *WithdrawalServiceImpl) Reject(ctx context.Context, id domain.WithdrawalID, admin domain.UserID, reason string) (*domain.WithdrawalRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.Validation("reject reason is required")
	}

	req, err := s.decide(ctx, id, admin, domain.WithdrawalStatusRejected, &reason)
	if err != nil {
		return nil, err
	}

	wid := req.ID
	publishAfterCommit(ctx, s.publisher, &domain.Event{
		Type:         domain.EventWithdrawalRejected,
		OccurredAt:   req.UpdatedAt,
		UserID:       req.UserID,
		WalletID:     req.WalletID,
		Amount:       req.Amount,
		WithdrawalID: &wid,
	}, s.log)

	return s.masked(req), nil
}

// decide moves a PENDING request to a terminal status with its ledger row.
func (s *WithdrawalServiceImpl) decide(ctx context.Context, id domain.WithdrawalID, admin domain.UserID, to domain.WithdrawalStatus, reason *string) (*domain.WithdrawalRequest, error) {
	var req *domain.WithdrawalRequest
	err := s.atomic.Run(ctx, "withdrawal."+strings.ToLower(string(to)), func(ctx context.Context, tx pgx.Tx) error {
		current, err := s.withdrawalRepo.GetByIDTx(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("read withdrawal: %w", err)
		}
		if current == nil {
			return apperror.ErrNotFound("Withdrawal request")
		}
		if !current.Status.CanTransitionTo(to) {
			return apperror.ErrStateConflict("Withdrawal request")
		}

		err = s.withdrawalRepo.CompareAndSetStatus(ctx, tx, id, domain.WithdrawalStatusPending, to, admin, reason)
		if errors.Is(err, domain.ErrStatusMismatch) {
			return apperror.ErrStateConflict("Withdrawal request")
		}
		if err != nil {
			return fmt.Errorf("update withdrawal status: %w", err)
		}

		if _, err := s.ledger.Transition(ctx, tx, current.TransactionID, domain.TransactionStatusPending, to.LedgerStatus()); err != nil {
			return err
		}
		if to == domain.WithdrawalStatusRejected {
			if _, err := s.wallets.Apply(ctx, tx, current.WalletID, current.Amount); err != nil {
				return err
			}
		}

		current.Status = to
		current.ReviewedBy = &admin
		current.RejectReason = reason
		current.UpdatedAt = s.now()
		req = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("withdrawal_id", string(id)).
		Str("admin_id", string(admin)).
		Str("status", string(to)).
		Int64("amount", req.Amount).
		Msg("withdrawal decided")
	return req, nil
}

// ListMine returns one page of the user's withdrawal requests.
func (s *WithdrawalServiceImpl) ListMine(ctx context.Context, user domain.UserID, page, size int) (*domain.Page[domain.WithdrawalRequest], error) {
	return s.list(ctx, domain.WithdrawalFilter{UserID: &user, Page: page, Size: size})
}

// ListAll returns one page of every withdrawal request, optionally by status.
func (s *WithdrawalServiceImpl) ListAll(ctx context.Context, status *domain.WithdrawalStatus, page, size int) (*domain.Page[domain.WithdrawalRequest], error) {
	return s.list(ctx, domain.WithdrawalFilter{Status: status, Page: page, Size: size})
}

func (s *WithdrawalServiceImpl) list(ctx context.Context, filter domain.WithdrawalFilter) (*domain.Page[domain.WithdrawalRequest], error) {
	filter.Page, filter.Size = pagination.Normalize(filter.Page, filter.Size)
	items, total, err := s.withdrawalRepo.List(ctx, filter)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	out := make([]domain.WithdrawalRequest, 0, len(items))
	for i := range items {
		out = append(out, *s.masked(&items[i]))
	}
	return &domain.Page[domain.WithdrawalRequest]{Items: out, Total: total, Page: filter.Page, Size: filter.Size}, nil
}

// masked returns a copy whose account number shows only the last digits.
func (s *WithdrawalServiceImpl) masked(req *domain.WithdrawalRequest) *domain.WithdrawalRequest {
	out := *req
	number, err := s.encSvc.Decrypt(req.Bank.AccountNumber)
	if err != nil {
		out.Bank.AccountNumber = ""
		return &out
	}
	out.Bank.AccountNumber = MaskAccountNumber(number)
	return &out
}
