package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"artmarket-wallet/internal/core/domain"
	"artmarket-wallet/internal/core/ports"
	"artmarket-wallet/internal/core/ports/mocks"
	"artmarket-wallet/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testChecksumKey = "checksum-secret"

type paymentTestDeps struct {
	*harness
	svc       *PaymentServiceImpl
	gateway   *mocks.MockPaymentGateway
	cache     *mocks.MockOrderStatusCache
	publisher *mocks.MockEventPublisher
	signer    *HMACSignatureService
	ctrl      *gomock.Controller
}

type paymentSetup struct {
	noCache     bool
	noPublisher bool
}

func setupPaymentService(t *testing.T, opt paymentSetup) *paymentTestDeps {
	ctrl := gomock.NewController(t)
	d := &paymentTestDeps{
		harness:   newHarness(t),
		gateway:   mocks.NewMockPaymentGateway(ctrl),
		cache:     mocks.NewMockOrderStatusCache(ctrl),
		publisher: mocks.NewMockEventPublisher(ctrl),
		signer:    NewHMACSignatureService(),
		ctrl:      ctrl,
	}

	var cache ports.OrderStatusCache = d.cache
	if opt.noCache {
		cache = nil
	}
	var publisher ports.EventPublisher = d.publisher
	if opt.noPublisher {
		publisher = nil
	}

	d.svc = NewPaymentService(
		d.store.PaymentOrders(), d.store.Transactions(), d.wallets, d.ledger, d.atomic,
		d.gateway, d.signer, cache, publisher, nil,
		PaymentOptions{
			ChecksumKey:   testChecksumKey,
			ReturnURL:     "https://artmarket.test/wallet/return",
			CancelURL:     "https://artmarket.test/wallet/cancel",
			OrderCacheTTL: time.Hour,
		},
		zerolog.Nop(),
	)
	return d
}

// createOrder places a PENDING order with a fixed code.
func (d *paymentTestDeps) createOrder(t *testing.T, user domain.UserID, code domain.OrderCode, amount int64) *domain.PaymentOrder {
	t.Helper()
	d.svc.nextCode = func() domain.OrderCode { return code }
	d.gateway.EXPECT().CreatePaymentLink(gomock.Any(), gomock.Any()).Return(&ports.GatewayOrder{
		OrderCode:   code,
		CheckoutURL: "https://pay.test/" + code.String(),
		Status:      "PENDING",
	}, nil)
	order, err := d.svc.CreateOrder(context.Background(), user, amount, "")
	require.NoError(t, err)
	return order
}

func (d *paymentTestDeps) webhook(t *testing.T, code domain.OrderCode, status string, amount int64) ([]byte, string) {
	t.Helper()
	canonical := d.signer.CanonicalString(map[string]string{
		"amount":    strconv.FormatInt(amount, 10),
		"orderCode": code.String(),
		"status":    status,
	})
	raw, err := json.Marshal(domain.WebhookEvent{OrderCode: code.Ref(), Status: status, Amount: amount})
	require.NoError(t, err)
	return raw, d.signer.Sign(testChecksumKey, canonical)
}

func (d *paymentTestDeps) depositRow(t *testing.T, code domain.OrderCode) *domain.Transaction {
	t.Helper()
	var out *domain.Transaction
	for _, row := range d.rows(t, mustOrder(t, d, code).UserID) {
		if row.OrderCode != nil && *row.OrderCode == code {
			r := row
			out = &r
		}
	}
	require.NotNil(t, out, "deposit row for %s", code)
	return out
}

func mustOrder(t *testing.T, d *paymentTestDeps, code domain.OrderCode) *domain.PaymentOrder {
	t.Helper()
	o, err := d.store.PaymentOrders().GetByOrderCode(context.Background(), code)
	require.NoError(t, err)
	require.NotNil(t, o)
	return o
}

// ==================== CreateOrder Tests ====================

func TestPaymentService_CreateOrder_Success(t *testing.T) {
	d := setupPaymentService(t, paymentSetup{})
	code := domain.OrderCode(1700000000000123)
	d.svc.nextCode = func() domain.OrderCode { return code }

	d.gateway.EXPECT().CreatePaymentLink(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req ports.GatewayOrderRequest) (*ports.GatewayOrder, error) {
			assert.Equal(t, code, req.OrderCode)
			assert.Equal(t, int64(50000), req.Amount)
			assert.Equal(t, defaultDepositDescription, req.Description)
			assert.Equal(t, "https://artmarket.test/wallet/return", req.ReturnURL)
			return &ports.GatewayOrder{OrderCode: code, CheckoutURL: "https://pay.test/checkout"}, nil
		})

	order, err := d.svc.CreateOrder(context.Background(), "user-1", 50000, "  ")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, order.Status)
	assert.Equal(t, "https://pay.test/checkout", order.PaymentURL)
	assert.Equal(t, code, order.OrderCode)

	stored := mustOrder(t, d, code)
	assert.Equal(t, order.ID, stored.ID)

	row := d.depositRow(t, code)
	assert.Equal(t, domain.TransactionStatusPending, row.Status)
	assert.Equal(t, int64(50000), row.Amount)
	require.NotNil(t, row.ReferenceID)
	assert.Equal(t, string(order.ID), *row.ReferenceID)

	assert.Equal(t, int64(0), d.balance(t, "user-1"))
	d.assertConsistent(t, "user-1")
}

func TestPaymentService_CreateOrder_InvalidAmount(t *testing.T) {
	d := setupPaymentService(t, paymentSetup{})

	_, err := d.svc.CreateOrder(context.Background(), "user-1", 0, "")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = d.svc.CreateOrder(context.Background(), "user-1", -5, "")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestPaymentService_CreateOrder_GatewayError(t *testing.T) {
	d := setupPaymentService(t, paymentSetup{})
	d.svc.nextCode = func() domain.OrderCode { return 42 }
	d.gateway.EXPECT().CreatePaymentLink(gomock.Any(), gomock.Any()).Return(nil, errors.New("gateway down"))

	_, err := d.svc.CreateOrder(context.Background(), "user-1", 1000, "Top up")
	assert.True(t, apperror.HasCode(err, apperror.CodeGateway))

	o, err := d.store.PaymentOrders().GetByOrderCode(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, o)
}

func TestPaymentService_CreateOrder_DuplicateCode(t *testing.T) {
	d := setupPaymentService(t, paymentSetup{})
	d.createOrder(t, "user-1", 77, 1000)

	d.gateway.EXPECT().CreatePaymentLink(gomock.Any(), gomock.Any()).Return(&ports.GatewayOrder{OrderCode: 77}, nil)
	_, err := d.svc.CreateOrder(context.Background(), "user-2", 1000, "")
	assert.True(t, apperror.HasCode(err, apperror.CodeInternal))

	// The failed unit left no wallet or ledger row behind.
	w, err := d.store.Wallets().GetByOwner(context.Background(), "user-2")
	require.NoError(t, err)
	assert.Nil(t, w)
}

// ==================== HandleWebhook Tests ====================

func TestPaymentService_HandleWebhook_Settles(t *testing.T) {
	d := setupPaymentService(t, paymentSetup{})
	code := domain.OrderCode(1001)
	d.createOrder(t, "user-1", code, 50000)

	d.cache.EXPECT().Get(gomock.Any(), code).Return(domain.PaymentStatus(""), false, nil)
	d.cache.EXPECT().Set(gomock.Any(), code, domain.PaymentStatusPaid, time.Hour).Return(nil)
	d.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e domain.Event) error {
			assert.Equal(t, domain.EventPaymentSettled, e.Type)
			assert.Equal(t, domain.UserID("user-1"), e.UserID)
			assert.Equal(t, int64(50000), e.Amount)
			require.NotNil(t, e.OrderCode)
			assert.Equal(t, code, *e.OrderCode)
			return nil
		})

	raw, sig := d.webhook(t, code, "PAID", 50000)
	result, err := d.svc.HandleWebhook(context.Background(), raw, sig)
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookSettled, result.Outcome)
	assert.Equal(t, domain.PaymentStatusPaid, result.Status)

	assert.Equal(t, int64(50000), d.balance(t, "user-1"))
	assert.Equal(t, domain.PaymentStatusPaid, mustOrder(t, d, code).Status)
	assert.Equal(t, domain.TransactionStatusPaid, d.depositRow(t, code).Status)
	d.assertConsistent(t, "user-1")
}

func TestPaymentService_HandleWebhook_DuplicateFromCache(t *testing.T) {
	d := setupPaymentService(t, paymentSetup{})
	code := domain.OrderCode(1002)
	d.createOrder(t, "user-1", code, 50000)

	d.cache.EXPECT().Get(gomock.Any(), code).Return(domain.PaymentStatusPaid, true, nil)

	raw, sig := d.webhook(t, code, "PAID", 50000)
	result, err := d.svc.HandleWebhook(context.Background(), raw, sig)
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookDuplicate, result.Outcome)
	assert.Equal(t, int64(0), d.balance(t, "user-1"))
}

func TestPaymentService_HandleWebhook_CacheErrorFallsThrough(t *testing.T) {
	d := setupPaymentService(t, paymentSetup{noPublisher: true})
	code := domain.OrderCode(1003)
	d.createOrder(t, "user-1", code, 700)

	d.cache.EXPECT().Get(gomock.Any(), code).Return(domain.PaymentStatus(""), false, errors.New("redis down"))
	d.cache.EXPECT().Set(gomock.Any(), code, domain.PaymentStatusPaid, time.Hour).Return(errors.New("redis down"))

	raw, sig := d.webhook(t, code, "PAID", 700)
	result, err := d.svc.HandleWebhook(context.Background(), raw, sig)
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookSettled, result.Outcome)
	assert.Equal(t, int64(700), d.balance(t, "user-1"))
}

func TestPaymentService_HandleWebhook_DuplicateFromStore(t *testing.T) {
	d := setupPaymentService(t, paymentSetup{noCache: true, noPublisher: true})
	code := domain.OrderCode(1004)
	d.createOrder(t, "user-1", code, 50000)

	raw, sig := d.webhook(t, code, "PAID", 50000)
	first, err := d.svc.HandleWebhook(context.Background(), raw, sig)
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookSettled, first.Outcome)

	second, err := d.svc.HandleWebhook(context.Background(), raw, sig)
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookDuplicate, second.Outcome)
	assert.Equal(t, domain.PaymentStatusPaid, second.Status)

	assert.Equal(t, int64(50000), d.balance(t, "user-1"))
	d.assertConsistent(t, "user-1")
}

func TestPaymentService_HandleWebhook_ConcurrentDeliveriesCreditOnce(t *testing.T) {
	d := setupPaymentService(t, paymentSetup{noCache: true, noPublisher: true})
	code := domain.OrderCode(1005)
	d.createOrder(t, "user-1", code, 12345)
	raw, sig := d.webhook(t, code, "PAID", 12345)

	const deliveries = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes = map[domain.WebhookOutcome]int{}
	)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := d.svc.HandleWebhook(context.Background(), raw, sig)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			outcomes[result.Outcome]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, outcomes[domain.WebhookSettled])
	assert.Equal(t, deliveries-1, outcomes[domain.WebhookDuplicate])
	assert.Equal(t, int64(12345), d.balance(t, "user-1"))
	d.assertConsistent(t, "user-1")
}

func TestPaymentService_HandleWebhook_InvalidSignature(t *testing.T) {
	d := setupPaymentService(t, paymentSetup{})
	code := domain.OrderCode(1006)
	d.createOrder(t, "user-1", code, 50000)

	raw, sig := d.webhook(t, code, "PAID", 50000)

	t.Run("wrong signature", func(t *testing.T) {
		_, err := d.svc.HandleWebhook(context.Background(), raw, "deadbeef")
		assert.True(t, apperror.HasCode(err, apperror.CodeInvalidSignature))
	})

	t.Run("tampered amount", func(t *testing.T) {
		tampered, err := json.Marshal(domain.WebhookEvent{OrderCode: code.Ref(), Status: "PAID", Amount: 5000000})
		require.NoError(t, err)
		_, err = d.svc.HandleWebhook(context.Background(), tampered, sig)
		assert.True(t, apperror.HasCode(err, apperror.CodeInvalidSignature))
	})

	t.Run("missing signature", func(t *testing.T) {
		_, err := d.svc.HandleWebhook(context.Background(), raw, "")
		assert.True(t, apperror.HasCode(err, apperror.CodeInvalidSignature))
	})

	assert.Equal(t, int64(0), d.balance(t, "user-1"))
	assert.Equal(t, domain.PaymentStatusPending, mustOrder(t, d, code).Status)
}

func TestPaymentService_HandleWebhook_BodyChecksum(t *testing.T) {
	d := setupPaymentService(t, paymentSetup{noCache: true, noPublisher: true})
	code := domain.OrderCode(1007)
	d.createOrder(t, "user-1", code, 900)

	_, sig := d.webhook(t, code, "PAID", 900)
	raw, err := json.Marshal(domain.WebhookEvent{OrderCode: code.Ref(), Status: "PAID", Amount: 900, Checksum: sig})
	require.NoError(t, err)

	result, err := d.svc.HandleWebhook(context.Background(), raw, "")
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookSettled, result.Outcome)
}

func TestPaymentService_HandleWebhook_Malformed(t *testing.T) {
	d := setupPaymentService(t, paymentSetup{})

	_, err := d.svc.HandleWebhook(context.Background(), []byte("{not json"), "sig")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestPaymentService_HandleWebhook_UnknownOrder(t *testing.T) {
	d := setupPaymentService(t, paymentSetup{noCache: true, noPublisher: true})

	raw, sig := d.webhook(t, 999999, "PAID", 100)
	result, err := d.svc.HandleWebhook(context.Background(), raw, sig)
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookUnknownOrder, result.Outcome)
}

func TestPaymentService_HandleWebhook_NonNumericOrderCode(t *testing.T) {
	d := setupPaymentService(t, paymentSetup{noCache: true, noPublisher: true})
	d.createOrder(t, "user-1", 42, 10000)

	raw := []byte(`{"orderCode":"P42","status":"PAID","amount":10000}`)
	sig := d.signer.Sign(testChecksumKey, "amount=10000&orderCode=P42&status=PAID")

	result, err := d.svc.HandleWebhook(context.Background(), raw, sig)
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookUnknownOrder, result.Outcome)
	assert.Equal(t, domain.OrderRef("P42"), result.Reference)

	assert.Equal(t, int64(0), d.balance(t, "user-1"))
	assert.Equal(t, domain.PaymentStatusPending, mustOrder(t, d, 42).Status)

	t.Run("unsigned", func(t *testing.T) {
		_, err := d.svc.HandleWebhook(context.Background(), raw, "deadbeef")
		assert.True(t, apperror.HasCode(err, apperror.CodeInvalidSignature))
	})
}

func TestPaymentService_HandleWebhook_QuotedNumericOrderCode(t *testing.T) {
	d := setupPaymentService(t, paymentSetup{noCache: true, noPublisher: true})
	d.createOrder(t, "user-1", 1010, 7000)

	raw := []byte(`{"orderCode":"1010","status":"PAID","amount":7000}`)
	sig := d.signer.Sign(testChecksumKey, "amount=7000&orderCode=1010&status=PAID")

	result, err := d.svc.HandleWebhook(context.Background(), raw, sig)
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookSettled, result.Outcome)
	assert.Empty(t, result.Reference)
	assert.Equal(t, int64(7000), d.balance(t, "user-1"))
}

func TestPaymentService_HandleWebhook_AmountMismatch(t *testing.T) {
	d := setupPaymentService(t, paymentSetup{noCache: true, noPublisher: true})
	code := domain.OrderCode(1008)
	d.createOrder(t, "user-1", code, 50000)

	raw, sig := d.webhook(t, code, "PAID", 49999)
	result, err := d.svc.HandleWebhook(context.Background(), raw, sig)
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookAmountMismatch, result.Outcome)

	assert.Equal(t, int64(0), d.balance(t, "user-1"))
	assert.Equal(t, domain.PaymentStatusPending, mustOrder(t, d, code).Status)
	assert.Equal(t, domain.TransactionStatusPending, d.depositRow(t, code).Status)
}

func TestPaymentService_HandleWebhook_Cancelled(t *testing.T) {
	d := setupPaymentService(t, paymentSetup{noCache: true})
	code := domain.OrderCode(1009)
	d.createOrder(t, "user-1", code, 50000)

	d.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e domain.Event) error {
			assert.Equal(t, domain.EventPaymentFailed, e.Type)
			return errors.New("broker unavailable")
		})

	raw, sig := d.webhook(t, code, "CANCELLED", 50000)
	result, err := d.svc.HandleWebhook(context.Background(), raw, sig)
	require.NoError(t, err, "publish failures never fail settlement")
	assert.Equal(t, domain.WebhookFailed, result.Outcome)

	assert.Equal(t, int64(0), d.balance(t, "user-1"))
	assert.Equal(t, domain.PaymentStatusFailed, mustOrder(t, d, code).Status)
	assert.Equal(t, domain.TransactionStatusFailed, d.depositRow(t, code).Status)

	// A late PAID for a failed order changes nothing.
	raw, sig = d.webhook(t, code, "PAID", 50000)
	late, err := d.svc.HandleWebhook(context.Background(), raw, sig)
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookDuplicate, late.Outcome)
	assert.Equal(t, int64(0), d.balance(t, "user-1"))
}

func TestPaymentService_HandleWebhook_NonTerminalIgnored(t *testing.T) {
	d := setupPaymentService(t, paymentSetup{noCache: true, noPublisher: true})
	code := domain.OrderCode(1010)
	d.createOrder(t, "user-1", code, 50000)

	for _, status := range []string{"PENDING", "SOMETHING_NEW"} {
		raw, sig := d.webhook(t, code, status, 50000)
		result, err := d.svc.HandleWebhook(context.Background(), raw, sig)
		require.NoError(t, err)
		assert.Equal(t, domain.WebhookIgnored, result.Outcome, status)
	}
	assert.Equal(t, domain.PaymentStatusPending, mustOrder(t, d, code).Status)
}

// ==================== Verify Tests ====================

func TestPaymentService_Verify_SettlesFromGateway(t *testing.T) {
	d := setupPaymentService(t, paymentSetup{noCache: true, noPublisher: true})
	code := domain.OrderCode(2001)
	d.createOrder(t, "user-1", code, 30000)

	d.gateway.EXPECT().GetPaymentInfo(gomock.Any(), code).Return(&ports.GatewayPaymentInfo{
		OrderCode: code, Amount: 30000, AmountPaid: 30000, Status: "PAID",
	}, nil)

	order, err := d.svc.Verify(context.Background(), "user-1", code, "CANCELLED")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, order.Status)
	assert.Equal(t, int64(30000), d.balance(t, "user-1"))

	// Terminal orders are returned without asking the gateway again.
	again, err := d.svc.Verify(context.Background(), "user-1", code, "PAID")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, again.Status)
	assert.Equal(t, int64(30000), d.balance(t, "user-1"))
}

func TestPaymentService_Verify_StillPending(t *testing.T) {
	d := setupPaymentService(t, paymentSetup{noCache: true, noPublisher: true})
	code := domain.OrderCode(2002)
	d.createOrder(t, "user-1", code, 30000)

	d.gateway.EXPECT().GetPaymentInfo(gomock.Any(), code).Return(&ports.GatewayPaymentInfo{OrderCode: code, Status: "PENDING"}, nil)

	order, err := d.svc.Verify(context.Background(), "user-1", code, "PAID")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, order.Status)
	assert.Equal(t, int64(0), d.balance(t, "user-1"))
}

func TestPaymentService_Verify_FallsBackToOrderAmount(t *testing.T) {
	d := setupPaymentService(t, paymentSetup{noCache: true, noPublisher: true})
	code := domain.OrderCode(2003)
	d.createOrder(t, "user-1", code, 8000)

	d.gateway.EXPECT().GetPaymentInfo(gomock.Any(), code).Return(&ports.GatewayPaymentInfo{OrderCode: code, Status: "PAID"}, nil)

	order, err := d.svc.Verify(context.Background(), "user-1", code, "")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, order.Status)
	assert.Equal(t, int64(8000), d.balance(t, "user-1"))
}

func TestPaymentService_Verify_Errors(t *testing.T) {
	d := setupPaymentService(t, paymentSetup{noCache: true, noPublisher: true})
	code := domain.OrderCode(2004)
	d.createOrder(t, "user-1", code, 8000)

	_, err := d.svc.Verify(context.Background(), "user-2", code, "PAID")
	assert.True(t, apperror.HasCode(err, apperror.CodeNotFound))

	_, err = d.svc.Verify(context.Background(), "user-1", 404, "PAID")
	assert.True(t, apperror.HasCode(err, apperror.CodeNotFound))

	d.gateway.EXPECT().GetPaymentInfo(gomock.Any(), code).Return(nil, errors.New("timeout"))
	_, err = d.svc.Verify(context.Background(), "user-1", code, "PAID")
	assert.True(t, apperror.HasCode(err, apperror.CodeGateway))
}

// ==================== ListOrders Tests ====================

func TestPaymentService_ListOrders(t *testing.T) {
	d := setupPaymentService(t, paymentSetup{})
	for i := 0; i < 3; i++ {
		d.createOrder(t, "user-1", domain.OrderCode(3000+i), 1000)
	}
	d.createOrder(t, "user-2", 3999, 1000)

	page, err := d.svc.ListOrders(context.Background(), "user-1", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, domain.OrderCode(3002), page.Items[0].OrderCode)

	empty, err := d.svc.ListOrders(context.Background(), "user-3", 0, 0)
	require.NoError(t, err)
	assert.NotNil(t, empty.Items)
	assert.Equal(t, 20, empty.Size)
}
