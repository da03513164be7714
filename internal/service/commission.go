package service

import (
	"github.com/shopspring/decimal"
)

// Commission splits a sale price between seller and platform.
type Commission struct {
	rate decimal.Decimal
}

// NewCommission creates a Commission for a rate in [0, 1).
func NewCommission(rate decimal.Decimal) Commission {
	return Commission{rate: rate}
}

// Rate returns the configured fraction.
func (c Commission) Rate() decimal.Decimal {
	return c.rate
}

// Split returns the seller share and the platform fee for price.
// The fee is rounded half-up to whole minor units; the seller gets the rest.
func (c Commission) Split(price int64) (sellerShare int64, fee int64) {
	if price <= 0 || c.rate.IsZero() {
		return price, 0
	}
	fee = decimal.NewFromInt(price).Mul(c.rate).Round(0).IntPart()
	return price - fee, fee
}
