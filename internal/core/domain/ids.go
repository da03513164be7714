package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// UserID identifies an account owner. Users are managed by the identity service.
type UserID string

// WalletID identifies a wallet.
type WalletID string

// TransactionID identifies a ledger row.
type TransactionID string

// WithdrawalID identifies a withdrawal request.
type WithdrawalID string

// PaymentOrderID identifies a payment order row.
type PaymentOrderID string

// ItemID identifies a sellable catalog item (artwork or exhibition).
type ItemID string

// OrderCode is the gateway-wide unique key of a payment order.
type OrderCode int64

func (c OrderCode) String() string {
	return strconv.FormatInt(int64(c), 10)
}

// UnmarshalJSON accepts the code as a JSON number or as a quoted decimal string.
func (c *OrderCode) UnmarshalJSON(b []byte) error {
	var ref OrderRef
	if err := ref.UnmarshalJSON(b); err != nil {
		return err
	}
	code, err := ParseOrderCode(string(ref))
	if err != nil {
		return fmt.Errorf("order code %q is not a decimal integer", ref)
	}
	*c = code
	return nil
}

// Ref returns the code in the form gateway notifications carry it.
func (c OrderCode) Ref() OrderRef {
	return OrderRef(c.String())
}

// OrderRef is an order code exactly as a gateway notification carried it.
// Gateways send it as a JSON number or a JSON string. Signatures are computed
// over this text, so it is kept verbatim until it has been authenticated.
type OrderRef string

// UnmarshalJSON keeps the raw digits of a number or the content of a string.
func (r *OrderRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = OrderRef(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("order code must be a number or a string: %w", err)
	}
	*r = OrderRef(n.String())
	return nil
}

// MarshalJSON writes numeric references as JSON numbers and anything else as a string.
func (r OrderRef) MarshalJSON() ([]byte, error) {
	if _, ok := r.OrderCode(); ok {
		return []byte(r), nil
	}
	return json.Marshal(string(r))
}

// OrderCode converts the reference to a stored order code. ok is false for
// anything but a positive decimal integer.
func (r OrderRef) OrderCode() (OrderCode, bool) {
	code, err := ParseOrderCode(string(r))
	if err != nil || code <= 0 {
		return 0, false
	}
	return code, true
}

// ParseOrderCode parses a decimal order code.
func ParseOrderCode(s string) (OrderCode, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return OrderCode(v), nil
}

func NewWalletID() WalletID             { return WalletID(uuid.NewString()) }
func NewTransactionID() TransactionID   { return TransactionID(uuid.NewString()) }
func NewWithdrawalID() WithdrawalID     { return WithdrawalID(uuid.NewString()) }
func NewPaymentOrderID() PaymentOrderID { return PaymentOrderID(uuid.NewString()) }
