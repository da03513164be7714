package handler

import (
	"io"

	"artmarket-wallet/internal/adapter/http/dto"
	"artmarket-wallet/internal/adapter/http/middleware"
	"artmarket-wallet/internal/core/domain"
	"artmarket-wallet/internal/core/ports"
	"artmarket-wallet/pkg/apperror"
	"artmarket-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// PaymentHandler handles deposit orders and the gateway webhook.
type PaymentHandler struct {
	paymentSvc ports.PaymentService
	log        zerolog.Logger
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentSvc ports.PaymentService, log zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc, log: log}
}

// CreateOrder handles POST /api/v1/payments.
func (h *PaymentHandler) CreateOrder(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	order, err := h.paymentSvc.CreateOrder(c.Request.Context(), user, req.Amount, req.Description)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, order)
}

// ListOrders handles GET /api/v1/payments.
func (h *PaymentHandler) ListOrders(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var q dto.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	page, size := q.Normalize()

	orders, err := h.paymentSvc.ListOrders(c.Request.Context(), user, page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	paginated(c, orders)
}

// Verify handles POST /api/v1/payments/:orderCode/verify. The body is optional.
func (h *PaymentHandler) Verify(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	code, err := domain.ParseOrderCode(c.Param("orderCode"))
	if err != nil || code <= 0 {
		response.Error(c, apperror.Validation("orderCode must be a positive integer"))
		return
	}

	var req dto.VerifyPaymentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, apperror.Validation(err.Error()))
			return
		}
	}

	order, err := h.paymentSvc.Verify(c.Request.Context(), user, code, req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, order)
}

// Webhook handles POST /api/v1/payments/webhook. It is not JWT protected;
// the payment service authenticates the raw body. Every authenticated
// delivery is acknowledged with 200 so the gateway stops retrying.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, apperror.Validation("cannot read request body"))
		return
	}

	result, err := h.paymentSvc.HandleWebhook(c.Request.Context(), payload, c.GetHeader(middleware.HeaderSignature))
	if err != nil {
		if apperror.HasCode(err, apperror.CodeInvalidSignature) {
			h.log.Warn().Str("client_ip", c.ClientIP()).Msg("webhook rejected: bad signature")
		}
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}
