package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// HasCode reports whether err is an *AppError carrying code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

const (
	CodeInvalidSignature  = "SEC_002"
	CodeInsufficientFunds = "PAY_001"
	CodeValidation        = "PAY_002"
	CodeDuplicatePurchase = "PAY_003"
	CodeNotFound          = "PAY_004"
	CodeLimitExceeded     = "PAY_005"
	CodeItemNotForSale    = "PAY_006"
	CodeSelfPurchase      = "PAY_007"
	CodeUnknownOrder      = "ORD_001"
	CodeStateConflict     = "STATE_001"
	CodeAlreadyTerminal   = "STATE_002"
	CodeInternal          = "SYS_001"
	CodeBusy              = "SYS_002"
	CodeGateway           = "SYS_004"
)

// ---- Security & Authentication (SEC / AUTH) ----

func ErrInvalidSignature() *AppError {
	return New(CodeInvalidSignature, "Invalid signature", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New("AUTH_005", "Insufficient permissions", http.StatusForbidden)
}

// ---- Wallet & Purchase Business Logic (PAY) ----

func ErrInsufficientFunds() *AppError {
	return New(CodeInsufficientFunds, "Insufficient balance in wallet", http.StatusPaymentRequired)
}

func ErrInvalidAmount() *AppError {
	return New(CodeValidation, "Invalid amount", http.StatusBadRequest)
}

func ErrDuplicatePurchase() *AppError {
	return New(CodeDuplicatePurchase, "Item has already been purchased", http.StatusConflict)
}

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrWithdrawalLimitExceeded() *AppError {
	return New(CodeLimitExceeded, "Daily withdrawal limit exceeded", http.StatusUnprocessableEntity)
}

func ErrItemNotForSale() *AppError {
	return New(CodeItemNotForSale, "Item is not available for purchase", http.StatusConflict)
}

func ErrSelfPurchase() *AppError {
	return New(CodeSelfPurchase, "Cannot purchase your own item", http.StatusBadRequest)
}

func ErrCapacityReached() *AppError {
	return New(CodeItemNotForSale, "No tickets left for this exhibition", http.StatusConflict)
}

// ---- Settlement state (ORD / STATE) ----

func ErrUnknownOrder() *AppError {
	return New(CodeUnknownOrder, "Payment order not found", http.StatusNotFound)
}

func ErrStateConflict(entity string) *AppError {
	return New(CodeStateConflict, fmt.Sprintf("%s is not in the expected state", entity), http.StatusConflict)
}

// ErrAlreadyTerminal is a no-op signal: the target already reached a final state.
func ErrAlreadyTerminal(entity string) *AppError {
	return New(CodeAlreadyTerminal, fmt.Sprintf("%s is already final", entity), http.StatusOK)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap(CodeInternal, "Internal database error", http.StatusInternalServerError, err)
}

// ErrBusy is transient: the operation lost too many concurrency races or timed out
// and can be retried safely.
func ErrBusy(err error) *AppError {
	return Wrap(CodeBusy, "Resource busy, retry later", http.StatusServiceUnavailable, err)
}

func ErrEncryptionFailure(err error) *AppError {
	return Wrap("SYS_003", "Encryption service failure", http.StatusInternalServerError, err)
}

func ErrGateway(err error) *AppError {
	return Wrap(CodeGateway, "Payment gateway unavailable", http.StatusBadGateway, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a PAY_002-style validation error.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}
