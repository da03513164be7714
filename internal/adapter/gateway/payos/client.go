// Package payos is the HTTP client for the PayOS payment-link API.
package payos

import (
	"context"
	"fmt"
	"strconv"

	"artmarket-wallet/config"
	"artmarket-wallet/internal/core/domain"
	"artmarket-wallet/internal/core/ports"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

const codeSuccess = "00"

// Client implements ports.PaymentGateway.
type Client struct {
	http        *resty.Client
	signer      ports.SignatureService
	checksumKey string
	log         zerolog.Logger
}

type envelope[T any] struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
	Data *T     `json:"data"`
}

type createLinkRequest struct {
	OrderCode   int64  `json:"orderCode"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	CancelURL   string `json:"cancelUrl"`
	ReturnURL   string `json:"returnUrl"`
	Signature   string `json:"signature"`
}

type createLinkData struct {
	OrderCode     int64  `json:"orderCode"`
	PaymentLinkID string `json:"paymentLinkId"`
	CheckoutURL   string `json:"checkoutUrl"`
	Status        string `json:"status"`
}

type paymentInfoData struct {
	OrderCode  int64  `json:"orderCode"`
	Amount     int64  `json:"amount"`
	AmountPaid int64  `json:"amountPaid"`
	Status     string `json:"status"`
}

// NewClient creates a gateway client authenticated with the merchant credentials.
func NewClient(cfg config.GatewayConfig, signer ports.SignatureService, log zerolog.Logger) *Client {
	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("x-client-id", cfg.ClientID).
		SetHeader("x-api-key", cfg.APIKey).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:        http,
		signer:      signer,
		checksumKey: cfg.ChecksumKey,
		log:         log.With().Str("component", "payos").Logger(),
	}
}

// CreatePaymentLink asks the gateway for a checkout URL. The request body is
// signed over its sorted fields with the checksum key.
func (c *Client) CreatePaymentLink(ctx context.Context, req ports.GatewayOrderRequest) (*ports.GatewayOrder, error) {
	body := createLinkRequest{
		OrderCode:   int64(req.OrderCode),
		Amount:      req.Amount,
		Description: req.Description,
		CancelURL:   req.CancelURL,
		ReturnURL:   req.ReturnURL,
	}
	body.Signature = c.signer.Sign(c.checksumKey, c.signer.CanonicalString(map[string]string{
		"amount":      strconv.FormatInt(body.Amount, 10),
		"cancelUrl":   body.CancelURL,
		"description": body.Description,
		"orderCode":   strconv.FormatInt(body.OrderCode, 10),
		"returnUrl":   body.ReturnURL,
	}))

	var out envelope[createLinkData]
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/v2/payment-requests")
	if err := checkResponse(resp, err, out.Code, out.Desc, out.Data != nil); err != nil {
		c.log.Error().Err(err).Int64("order_code", body.OrderCode).Msg("create payment link failed")
		return nil, fmt.Errorf("create payment link: %w", err)
	}

	return &ports.GatewayOrder{
		OrderCode:     domain.OrderCode(out.Data.OrderCode),
		PaymentLinkID: out.Data.PaymentLinkID,
		CheckoutURL:   out.Data.CheckoutURL,
		Status:        out.Data.Status,
	}, nil
}

// GetPaymentInfo fetches the gateway's authoritative view of an order.
func (c *Client) GetPaymentInfo(ctx context.Context, code domain.OrderCode) (*ports.GatewayPaymentInfo, error) {
	var out envelope[paymentInfoData]
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("orderCode", code.String()).
		SetResult(&out).
		Get("/v2/payment-requests/{orderCode}")
	if err := checkResponse(resp, err, out.Code, out.Desc, out.Data != nil); err != nil {
		return nil, fmt.Errorf("get payment info %s: %w", code, err)
	}

	return &ports.GatewayPaymentInfo{
		OrderCode:  domain.OrderCode(out.Data.OrderCode),
		Amount:     out.Data.Amount,
		AmountPaid: out.Data.AmountPaid,
		Status:     out.Data.Status,
	}, nil
}

func checkResponse(resp *resty.Response, err error, code, desc string, hasData bool) error {
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("gateway returned HTTP %d", resp.StatusCode())
	}
	if code != codeSuccess {
		return fmt.Errorf("gateway error %s: %s", code, desc)
	}
	if !hasData {
		return fmt.Errorf("gateway response has no data")
	}
	return nil
}
