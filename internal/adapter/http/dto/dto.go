package dto

import (
	"fmt"
	"time"

	"artmarket-wallet/internal/core/domain"
	"artmarket-wallet/internal/core/ports"
	"artmarket-wallet/pkg/apperror"
	"artmarket-wallet/pkg/pagination"
)

// ---- Payments ----

// CreatePaymentRequest is the body of POST /payments.
type CreatePaymentRequest struct {
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	Description string `json:"description" binding:"max=255"`
}

// VerifyPaymentRequest is the optional body of POST /payments/:orderCode/verify.
// Status is what the client saw on the gateway's return page.
type VerifyPaymentRequest struct {
	Status string `json:"status" binding:"omitempty,max=32"`
}

// ---- Withdrawals ----

// WithdrawalRequest is the body of POST /withdrawals.
type WithdrawalRequest struct {
	Amount        int64  `json:"amount" binding:"required,gt=0"`
	BankName      string `json:"bank_name" binding:"required,max=100"`
	AccountName   string `json:"account_name" binding:"required,max=100"`
	AccountNumber string `json:"account_number" binding:"required,bank_account"`
}

// Bank returns the payout destination carried by the request.
func (r WithdrawalRequest) Bank() domain.BankDetails {
	return domain.BankDetails{
		BankName:      r.BankName,
		AccountName:   r.AccountName,
		AccountNumber: r.AccountNumber,
	}
}

// RejectWithdrawalRequest is the body of POST /admin/withdrawals/:id/reject.
type RejectWithdrawalRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// ---- Path parameters ----

// IDParam binds the :id path segment.
type IDParam struct {
	ID string `uri:"id" binding:"required,max=64,safe_id"`
}

// ---- Query parameters ----

// PageQuery binds ?page=&size=.
type PageQuery struct {
	Page int `form:"page"`
	Size int `form:"size"`
}

// Normalize clamps the page to the shared pagination bounds.
func (q PageQuery) Normalize() (int, int) {
	return pagination.Normalize(q.Page, q.Size)
}

// TransactionQuery binds the ledger history filters.
type TransactionQuery struct {
	PageQuery
	Type   string `form:"type" binding:"omitempty,oneof=DEPOSIT WITHDRAWAL PAYMENT SALE COMMISSION"`
	Status string `form:"status" binding:"omitempty,oneof=PENDING PAID FAILED"`
	From   string `form:"from"`
	To     string `form:"to"`
}

// Filter converts the query into a ledger filter.
func (q TransactionQuery) Filter() (domain.TransactionFilter, error) {
	page, size := q.Normalize()
	f := domain.TransactionFilter{Page: page, Size: size}
	if q.Type != "" {
		t := domain.TransactionType(q.Type)
		f.Type = &t
	}
	if q.Status != "" {
		s := domain.TransactionStatus(q.Status)
		f.Status = &s
	}
	var err error
	if f.From, err = parseTime("from", q.From); err != nil {
		return f, err
	}
	if f.To, err = parseTime("to", q.To); err != nil {
		return f, err
	}
	return f, nil
}

// StatisticsQuery binds GET /wallet/statistics.
type StatisticsQuery struct {
	GroupBy string `form:"group_by" binding:"omitempty,oneof=day week month"`
	Type    string `form:"type" binding:"omitempty,oneof=DEPOSIT WITHDRAWAL PAYMENT SALE COMMISSION"`
	Status  string `form:"status" binding:"omitempty,oneof=PENDING PAID FAILED"`
	From    string `form:"from"`
	To      string `form:"to"`
}

// Params converts the query into service parameters. group_by defaults to day.
func (q StatisticsQuery) Params() (ports.StatisticsParams, error) {
	p := ports.StatisticsParams{GroupBy: domain.GroupByDay}
	if q.GroupBy != "" {
		p.GroupBy = domain.GroupBy(q.GroupBy)
	}
	if q.Type != "" {
		t := domain.TransactionType(q.Type)
		p.Type = &t
	}
	if q.Status != "" {
		s := domain.TransactionStatus(q.Status)
		p.Status = &s
	}
	var err error
	if p.From, err = parseTime("from", q.From); err != nil {
		return p, err
	}
	if p.To, err = parseTime("to", q.To); err != nil {
		return p, err
	}
	return p, nil
}

// WithdrawalListQuery binds GET /admin/withdrawals.
type WithdrawalListQuery struct {
	PageQuery
	Status string `form:"status" binding:"omitempty,oneof=PENDING APPROVED REJECTED"`
}

// StatusFilter returns nil when no status was requested.
func (q WithdrawalListQuery) StatusFilter() *domain.WithdrawalStatus {
	if q.Status == "" {
		return nil
	}
	s := domain.WithdrawalStatus(q.Status)
	return &s
}

// parseTime accepts RFC 3339 timestamps or plain dates (UTC midnight).
func parseTime(field, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, apperror.Validation(fmt.Sprintf("%s must be an RFC 3339 timestamp or YYYY-MM-DD date", field))
}

// ---- Responses ----

// AccessResponse answers GET /purchases/artworks/:id/access.
type AccessResponse struct {
	ArtworkID string `json:"artwork_id"`
	HasAccess bool   `json:"has_access"`
}

