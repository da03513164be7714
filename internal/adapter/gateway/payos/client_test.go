package payos

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"artmarket-wallet/config"
	"artmarket-wallet/internal/core/ports"
	"artmarket-wallet/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testChecksumKey = "checksum-secret"

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.GatewayConfig{
		BaseURL:     srv.URL,
		ClientID:    "client-1",
		APIKey:      "api-key-1",
		ChecksumKey: testChecksumKey,
		Timeout:     2 * time.Second,
	}, service.NewHMACSignatureService(), zerolog.Nop())
}

func TestClient_CreatePaymentLink(t *testing.T) {
	signer := service.NewHMACSignatureService()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/payment-requests", r.URL.Path)
		assert.Equal(t, "client-1", r.Header.Get("x-client-id"))
		assert.Equal(t, "api-key-1", r.Header.Get("x-api-key"))

		var body createLinkRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(1712345678), body.OrderCode)
		assert.Equal(t, int64(50000), body.Amount)

		canonical := "amount=50000&cancelUrl=https://shop/cancel&description=Top up&orderCode=1712345678&returnUrl=https://shop/success"
		assert.True(t, signer.Verify(testChecksumKey, canonical, body.Signature))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":"00","desc":"success","data":{"orderCode":1712345678,"paymentLinkId":"pl-1","checkoutUrl":"https://pay.example.com/web/pl-1","status":"PENDING"}}`))
	})

	link, err := client.CreatePaymentLink(context.Background(), ports.GatewayOrderRequest{
		OrderCode:   1712345678,
		Amount:      50000,
		Description: "Top up",
		ReturnURL:   "https://shop/success",
		CancelURL:   "https://shop/cancel",
	})
	require.NoError(t, err)
	assert.Equal(t, "pl-1", link.PaymentLinkID)
	assert.Equal(t, "https://pay.example.com/web/pl-1", link.CheckoutURL)
	assert.EqualValues(t, 1712345678, link.OrderCode)
}

func TestClient_CreatePaymentLink_GatewayRejects(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":"231","desc":"Đơn thanh toán đã tồn tại","data":null}`))
	})

	_, err := client.CreatePaymentLink(context.Background(), ports.GatewayOrderRequest{OrderCode: 1, Amount: 1000})
	assert.ErrorContains(t, err, "gateway error 231")
}

func TestClient_GetPaymentInfo(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v2/payment-requests/1712345678", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":"00","desc":"success","data":{"orderCode":1712345678,"amount":50000,"amountPaid":50000,"status":"PAID"}}`))
	})

	info, err := client.GetPaymentInfo(context.Background(), 1712345678)
	require.NoError(t, err)
	assert.Equal(t, "PAID", info.Status)
	assert.Equal(t, int64(50000), info.AmountPaid)
}

func TestClient_GetPaymentInfo_HTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.GetPaymentInfo(context.Background(), 99)
	assert.ErrorContains(t, err, "HTTP 502")
}
