package ports

//go:generate mockgen -source=gateway.go -destination=mocks/gateway.go -package=mocks

import (
	"context"
	"time"

	"artmarket-wallet/internal/core/domain"
)

// GatewayOrderRequest is what the engine asks the gateway to collect.
type GatewayOrderRequest struct {
	OrderCode   domain.OrderCode
	Amount      int64
	Description string
	ReturnURL   string
	CancelURL   string
}

// GatewayOrder is the gateway's answer to a payment link request.
type GatewayOrder struct {
	OrderCode     domain.OrderCode
	PaymentLinkID string
	CheckoutURL   string
	Status        string
}

// GatewayPaymentInfo is the gateway's view of an order.
type GatewayPaymentInfo struct {
	OrderCode  domain.OrderCode
	Amount     int64
	AmountPaid int64
	Status     string
}

// PaymentGateway is the external payment provider.
type PaymentGateway interface {
	CreatePaymentLink(ctx context.Context, req GatewayOrderRequest) (*GatewayOrder, error)
	GetPaymentInfo(ctx context.Context, code domain.OrderCode) (*GatewayPaymentInfo, error)
}

// EventPublisher announces committed money movements.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// OrderStatusCache remembers orders that reached a terminal status.
// It is a fast path only; the database decides.
type OrderStatusCache interface {
	Get(ctx context.Context, code domain.OrderCode) (domain.PaymentStatus, bool, error)
	Set(ctx context.Context, code domain.OrderCode, status domain.PaymentStatus, ttl time.Duration) error
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}

// RateLimitStore counts requests per key in fixed windows.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}
