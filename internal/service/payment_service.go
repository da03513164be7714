package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"artmarket-wallet/internal/core/domain"
	"artmarket-wallet/internal/core/ports"
	"artmarket-wallet/pkg/apperror"
	"artmarket-wallet/pkg/metrics"
	"artmarket-wallet/pkg/pagination"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultDepositDescription = "Wallet deposit"

// PaymentOptions configures the payment service.
type PaymentOptions struct {
	ChecksumKey   string
	ReturnURL     string
	CancelURL     string
	OrderCacheTTL time.Duration
}

// PaymentServiceImpl implements ports.PaymentService. It creates gateway
// orders and reconciles their outcome into the ledger exactly once.
type PaymentServiceImpl struct {
	orderRepo ports.PaymentOrderRepository
	txRepo    ports.TransactionRepository
	wallets   ports.WalletWriter
	ledger    ports.LedgerWriter
	atomic    ports.AtomicRunner
	gateway   ports.PaymentGateway
	signer    ports.SignatureService
	cache     ports.OrderStatusCache
	publisher ports.EventPublisher
	metrics   *metrics.Settlement
	tracer    trace.Tracer
	opts      PaymentOptions
	nextCode  func() domain.OrderCode
	log       zerolog.Logger
}

// NewPaymentService creates a new PaymentServiceImpl. cache and publisher may be nil.
func NewPaymentService(
	orderRepo ports.PaymentOrderRepository,
	txRepo ports.TransactionRepository,
	wallets ports.WalletWriter,
	ledger ports.LedgerWriter,
	atomic ports.AtomicRunner,
	gateway ports.PaymentGateway,
	signer ports.SignatureService,
	cache ports.OrderStatusCache,
	publisher ports.EventPublisher,
	m *metrics.Settlement,
	opts PaymentOptions,
	log zerolog.Logger,
) *PaymentServiceImpl {
	return &PaymentServiceImpl{
		orderRepo: orderRepo,
		txRepo:    txRepo,
		wallets:   wallets,
		ledger:    ledger,
		atomic:    atomic,
		gateway:   gateway,
		signer:    signer,
		cache:     cache,
		publisher: publisher,
		metrics:   m,
		tracer:    otel.Tracer("artmarket-wallet/payment"),
		opts:      opts,
		nextCode:  timeBasedOrderCode,
		log:       log,
	}
}

// timeBasedOrderCode returns milliseconds since epoch followed by three random
// digits. The result stays below 2^53 so JavaScript gateways keep it exact.
func timeBasedOrderCode() domain.OrderCode {
	return domain.OrderCode(time.Now().UnixMilli()*1000 + rand.Int63n(1000))
}

// CreateOrder asks the gateway for a payment link and records the pending deposit.
func (s *PaymentServiceImpl) CreateOrder(ctx context.Context, user domain.UserID, amount int64, description string) (*domain.PaymentOrder, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	description = strings.TrimSpace(description)
	if description == "" {
		description = defaultDepositDescription
	}

	ctx, span := s.tracer.Start(ctx, "payment.create_order")
	defer span.End()

	code := s.nextCode()
	span.SetAttributes(
		attribute.String("payment.user_id", string(user)),
		attribute.Int64("payment.amount", amount),
		attribute.String("payment.order_code", code.String()),
	)

	link, err := s.gateway.CreatePaymentLink(ctx, ports.GatewayOrderRequest{
		OrderCode:   code,
		Amount:      amount,
		Description: description,
		ReturnURL:   s.opts.ReturnURL,
		CancelURL:   s.opts.CancelURL,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway rejected payment link")
		return nil, apperror.ErrGateway(err)
	}

	now := time.Now()
	order := &domain.PaymentOrder{
		ID:          domain.NewPaymentOrderID(),
		UserID:      user,
		OrderCode:   code,
		Amount:      amount,
		Description: description,
		Status:      domain.PaymentStatusPending,
		PaymentURL:  link.CheckoutURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.atomic.Run(ctx, "payment.create_order", func(ctx context.Context, tx pgx.Tx) error {
		w, err := s.wallets.Ensure(ctx, tx, user)
		if err != nil {
			return err
		}
		if err := s.orderRepo.Create(ctx, tx, order); err != nil {
			return fmt.Errorf("create payment order: %w", err)
		}
		ref := string(order.ID)
		_, err = s.ledger.Record(ctx, tx, domain.LedgerEntry{
			WalletID:    w.ID,
			Amount:      amount,
			Type:        domain.TransactionTypeDeposit,
			Status:      domain.TransactionStatusPending,
			OrderCode:   &code,
			ReferenceID: &ref,
			Description: description,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persisting payment order failed")
		s.log.Error().Err(err).Str("order_code", code.String()).Msg("gateway link created but order was not persisted")
		return nil, err
	}

	s.log.Info().
		Str("order_code", code.String()).
		Str("user_id", string(user)).
		Int64("amount", amount).
		Msg("payment order created")
	return order, nil
}

// Verify polls the gateway for an order the user owns and settles it when the
// gateway reports a terminal status. The gateway's status is authoritative.
func (s *PaymentServiceImpl) Verify(ctx context.Context, user domain.UserID, code domain.OrderCode, reportedStatus string) (*domain.PaymentOrder, error) {
	order, err := s.orderRepo.GetByOrderCode(ctx, code)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if order == nil || order.UserID != user {
		return nil, apperror.ErrNotFound("Payment order")
	}
	if order.Status.IsTerminal() {
		return order, nil
	}

	info, err := s.gateway.GetPaymentInfo(ctx, code)
	if err != nil {
		return nil, apperror.ErrGateway(err)
	}
	status, ok := domain.ParseGatewayStatus(info.Status)
	if !ok {
		s.log.Warn().Str("order_code", code.String()).Str("gateway_status", info.Status).Msg("unrecognised gateway status")
		return order, nil
	}
	if reported, ok := domain.ParseGatewayStatus(reportedStatus); ok && reported != status {
		s.log.Warn().
			Str("order_code", code.String()).
			Str("reported_status", reportedStatus).
			Str("gateway_status", string(status)).
			Msg("client-reported status disagrees with gateway")
	}
	if status == domain.PaymentStatusPending {
		return order, nil
	}

	amount := info.Amount
	if amount == 0 {
		amount = order.Amount
	}
	if _, err := s.settle(ctx, code, status, amount); err != nil {
		return nil, err
	}

	updated, err := s.orderRepo.GetByOrderCode(ctx, code)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	return updated, nil
}

// HandleWebhook authenticates a gateway notification and settles the order it names.
// Every authenticated delivery is acknowledged with a WebhookResult.
func (s *PaymentServiceImpl) HandleWebhook(ctx context.Context, rawPayload []byte, signature string) (*domain.WebhookResult, error) {
	var event domain.WebhookEvent
	if err := json.Unmarshal(rawPayload, &event); err != nil {
		s.metrics.IncWebhook("malformed")
		return nil, apperror.Validation("malformed webhook payload")
	}

	if signature == "" {
		signature = event.Checksum
	}
	canonical := s.signer.CanonicalString(map[string]string{
		"amount":    strconv.FormatInt(event.Amount, 10),
		"orderCode": string(event.OrderCode),
		"status":    event.Status,
	})
	if signature == "" || !s.signer.Verify(s.opts.ChecksumKey, canonical, signature) {
		s.metrics.IncWebhook("invalid_signature")
		s.log.Warn().Str("order_code", string(event.OrderCode)).Msg("webhook signature mismatch")
		return nil, apperror.ErrInvalidSignature()
	}

	result, err := s.reconcile(ctx, event)
	if err != nil {
		s.metrics.IncWebhook("error")
		return nil, err
	}
	s.metrics.IncWebhook(string(result.Outcome))
	return result, nil
}

func (s *PaymentServiceImpl) reconcile(ctx context.Context, event domain.WebhookEvent) (*domain.WebhookResult, error) {
	code, ok := event.OrderCode.OrderCode()
	if !ok {
		// No order is ever created with a non-numeric code.
		s.log.Warn().Str("order_ref", string(event.OrderCode)).Str("status", event.Status).Msg("webhook for an order code this service never issued")
		return &domain.WebhookResult{Outcome: domain.WebhookUnknownOrder, Reference: event.OrderCode}, nil
	}

	status, ok := domain.ParseGatewayStatus(event.Status)
	if !ok || status == domain.PaymentStatusPending {
		s.log.Info().Str("order_code", code.String()).Str("status", event.Status).Msg("webhook carries no terminal status")
		return &domain.WebhookResult{Outcome: domain.WebhookIgnored, OrderCode: code}, nil
	}

	if s.cache != nil {
		cached, hit, err := s.cache.Get(ctx, code)
		if err != nil {
			s.log.Warn().Err(err).Str("order_code", code.String()).Msg("order cache lookup failed, falling through to DB")
		}
		if hit {
			return &domain.WebhookResult{Outcome: domain.WebhookDuplicate, OrderCode: code, Status: cached}, nil
		}
	}

	return s.settle(ctx, code, status, event.Amount)
}

// settle is the single path that moves an order out of PENDING. The order
// status compare-and-set decides which concurrent delivery wins.
func (s *PaymentServiceImpl) settle(ctx context.Context, code domain.OrderCode, target domain.PaymentStatus, amount int64) (*domain.WebhookResult, error) {
	ctx, span := s.tracer.Start(ctx, "payment.settle")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.order_code", code.String()),
		attribute.String("payment.target_status", string(target)),
		attribute.Int64("payment.amount", amount),
	)

	var (
		result *domain.WebhookResult
		event  *domain.Event
	)
	err := s.atomic.Run(ctx, "payment.settle", func(ctx context.Context, tx pgx.Tx) error {
		result, event = nil, nil

		order, err := s.orderRepo.GetByOrderCodeTx(ctx, tx, code)
		if err != nil {
			return fmt.Errorf("read payment order: %w", err)
		}
		if order == nil {
			result = &domain.WebhookResult{Outcome: domain.WebhookUnknownOrder, OrderCode: code}
			return nil
		}
		if order.Status.IsTerminal() {
			result = &domain.WebhookResult{Outcome: domain.WebhookDuplicate, OrderCode: code, Status: order.Status}
			return nil
		}
		if target == domain.PaymentStatusPaid && amount != order.Amount {
			result = &domain.WebhookResult{Outcome: domain.WebhookAmountMismatch, OrderCode: code, Status: order.Status}
			return nil
		}

		err = s.orderRepo.CompareAndSetStatus(ctx, tx, code, domain.PaymentStatusPending, target)
		if errors.Is(err, domain.ErrStatusMismatch) {
			result = &domain.WebhookResult{Outcome: domain.WebhookDuplicate, OrderCode: code}
			return nil
		}
		if err != nil {
			return fmt.Errorf("update payment order status: %w", err)
		}

		row, err := s.txRepo.GetByOrderCodeTx(ctx, tx, code)
		if err != nil {
			return fmt.Errorf("read deposit row: %w", err)
		}

		now := time.Now()
		if target == domain.PaymentStatusPaid {
			w, err := s.wallets.Ensure(ctx, tx, order.UserID)
			if err != nil {
				return err
			}
			if _, err := s.wallets.Apply(ctx, tx, w.ID, order.Amount); err != nil {
				return err
			}
			if row != nil {
				if _, err := s.ledger.Transition(ctx, tx, row.ID, domain.TransactionStatusPending, domain.TransactionStatusPaid); err != nil {
					return err
				}
			} else {
				ref := string(order.ID)
				if _, err := s.ledger.Record(ctx, tx, domain.LedgerEntry{
					WalletID:    w.ID,
					Amount:      order.Amount,
					Type:        domain.TransactionTypeDeposit,
					Status:      domain.TransactionStatusPaid,
					OrderCode:   &code,
					ReferenceID: &ref,
					Description: order.Description,
				}); err != nil {
					return err
				}
			}
			result = &domain.WebhookResult{Outcome: domain.WebhookSettled, OrderCode: code, Status: target}
			event = &domain.Event{
				Type: domain.EventPaymentSettled, OccurredAt: now,
				UserID: order.UserID, WalletID: w.ID, Amount: order.Amount, OrderCode: &code,
			}
			return nil
		}

		if row != nil {
			if _, err := s.ledger.Transition(ctx, tx, row.ID, domain.TransactionStatusPending, domain.TransactionStatusFailed); err != nil {
				return err
			}
		}
		result = &domain.WebhookResult{Outcome: domain.WebhookFailed, OrderCode: code, Status: target}
		event = &domain.Event{
			Type: domain.EventPaymentFailed, OccurredAt: now,
			UserID: order.UserID, Amount: order.Amount, OrderCode: &code,
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "settlement failed")
		s.log.Error().Err(err).Str("order_code", code.String()).Msg("settlement failed")
		return nil, err
	}

	span.SetAttributes(attribute.String("payment.outcome", string(result.Outcome)))
	logEvt := s.log.Info()
	switch result.Outcome {
	case domain.WebhookAmountMismatch:
		logEvt = s.log.Error()
	case domain.WebhookUnknownOrder:
		logEvt = s.log.Warn()
	}
	logEvt.Str("order_code", code.String()).
		Str("outcome", string(result.Outcome)).
		Int64("amount", amount).
		Msg("payment reconciled")

	if result.Outcome == domain.WebhookSettled {
		s.metrics.AddMoved(string(domain.TransactionTypeDeposit), amount)
	}
	if result.Status.IsTerminal() {
		s.rememberTerminal(ctx, code, result.Status)
	}
	publishAfterCommit(ctx, s.publisher, event, s.log)
	return result, nil
}

func (s *PaymentServiceImpl) rememberTerminal(ctx context.Context, code domain.OrderCode, status domain.PaymentStatus) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, code, status, s.opts.OrderCacheTTL); err != nil {
		s.log.Warn().Err(err).Str("order_code", code.String()).Msg("failed to cache terminal order status")
	}
}

// ListOrders returns one page of the user's payment orders, newest first.
func (s *PaymentServiceImpl) ListOrders(ctx context.Context, user domain.UserID, page, size int) (*domain.Page[domain.PaymentOrder], error) {
	page, size = pagination.Normalize(page, size)
	orders, total, err := s.orderRepo.ListByUser(ctx, user, page, size)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if orders == nil {
		orders = []domain.PaymentOrder{}
	}
	return &domain.Page[domain.PaymentOrder]{Items: orders, Total: total, Page: page, Size: size}, nil
}
