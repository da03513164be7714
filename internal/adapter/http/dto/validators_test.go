package dto

import (
	"testing"

	"artmarket-wallet/internal/core/domain"
	"artmarket-wallet/pkg/apperror"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- SanitizeStruct tests ---

func TestSanitizeStruct_TrimsWhitespace(t *testing.T) {
	req := WithdrawalRequest{
		Amount:        50000,
		BankName:      "  Vietcombank ",
		AccountName:   " NGUYEN VAN A  ",
		AccountNumber: " 0123456789 ",
	}
	SanitizeStruct(&req)

	assert.Equal(t, "Vietcombank", req.BankName)
	assert.Equal(t, "NGUYEN VAN A", req.AccountName)
	assert.Equal(t, "0123456789", req.AccountNumber)
	assert.Equal(t, int64(50000), req.Amount)
}

func TestSanitizeStruct_EscapesHTML(t *testing.T) {
	req := RejectWithdrawalRequest{Reason: "wrong account <script>alert('x')</script>"}
	SanitizeStruct(&req)

	assert.Contains(t, req.Reason, "&lt;script&gt;")
	assert.NotContains(t, req.Reason, "<script>")
}

func TestSanitizeStruct_HandlesPointerString(t *testing.T) {
	type withPointer struct {
		Note *string
	}
	note := "  keep  "
	v := withPointer{Note: &note}
	SanitizeStruct(&v)
	assert.Equal(t, "keep", *v.Note)

	empty := withPointer{}
	SanitizeStruct(&empty)
	assert.Nil(t, empty.Note)
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	req := CreatePaymentRequest{Amount: 1000, Description: "  top up "}
	SanitizeStruct(req)
	assert.Equal(t, "  top up ", req.Description)
}

// --- Validators ---

func TestSafeID(t *testing.T) {
	valid := []string{"art-1", "exhibition_2024", "64f1c2a9e1b2c3d4e5f60718", "a.b"}
	for _, id := range valid {
		assert.NoError(t, binding.Validator.ValidateStruct(IDParam{ID: id}), id)
	}
	invalid := []string{"", "../etc", "art 1", "id;drop", "<x>"}
	for _, id := range invalid {
		assert.Error(t, binding.Validator.ValidateStruct(IDParam{ID: id}), id)
	}
}

func TestBankAccount(t *testing.T) {
	base := WithdrawalRequest{Amount: 1000, BankName: "ACB", AccountName: "TRAN B"}

	for _, number := range []string{"123456", "012345678901234567890123456789"} {
		req := base
		req.AccountNumber = number
		assert.NoError(t, binding.Validator.ValidateStruct(req), number)
	}
	for _, number := range []string{"12345", "12-34-56", "abc123456", "0123456789012345678901234567890"} {
		req := base
		req.AccountNumber = number
		assert.Error(t, binding.Validator.ValidateStruct(req), number)
	}
}

// --- Query conversion ---

func TestTransactionQuery_Filter(t *testing.T) {
	q := TransactionQuery{
		PageQuery: PageQuery{Page: 2, Size: 500},
		Type:      "SALE",
		Status:    "PAID",
		From:      "2026-01-01",
		To:        "2026-01-31T23:59:59+07:00",
	}

	f, err := q.Filter()
	require.NoError(t, err)
	assert.Equal(t, 2, f.Page)
	assert.Equal(t, 100, f.Size)
	require.NotNil(t, f.Type)
	assert.Equal(t, domain.TransactionTypeSale, *f.Type)
	require.NotNil(t, f.Status)
	assert.Equal(t, domain.TransactionStatusPaid, *f.Status)
	require.NotNil(t, f.From)
	assert.Equal(t, "2026-01-01T00:00:00Z", f.From.Format("2006-01-02T15:04:05Z07:00"))
	require.NotNil(t, f.To)
	assert.Equal(t, "2026-01-31T16:59:59Z", f.To.Format("2006-01-02T15:04:05Z07:00"))
}

func TestTransactionQuery_BadTime(t *testing.T) {
	_, err := TransactionQuery{From: "last week"}.Filter()
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestStatisticsQuery_Defaults(t *testing.T) {
	p, err := StatisticsQuery{}.Params()
	require.NoError(t, err)
	assert.Equal(t, domain.GroupByDay, p.GroupBy)
	assert.Nil(t, p.From)
	assert.Nil(t, p.To)
	assert.Nil(t, p.Type)
	assert.Nil(t, p.Status)
}

func TestWithdrawalListQuery_StatusFilter(t *testing.T) {
	assert.Nil(t, WithdrawalListQuery{}.StatusFilter())

	s := WithdrawalListQuery{Status: "PENDING"}.StatusFilter()
	require.NotNil(t, s)
	assert.Equal(t, domain.WithdrawalStatusPending, *s)
}

func TestWithdrawalRequest_Bank(t *testing.T) {
	req := WithdrawalRequest{BankName: "ACB", AccountName: "TRAN B", AccountNumber: "99887766"}
	assert.Equal(t, domain.BankDetails{BankName: "ACB", AccountName: "TRAN B", AccountNumber: "99887766"}, req.Bank())
}
