package exchange

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned for conversion inputs that are not finite
// positive numbers.
var ErrInvalidAmount = errors.New("amount must be a positive number")

// UsdcPrecision is the number of fractional digits USDC carries (its smallest
// unit is 10^-6).
const UsdcPrecision = 6

// BobPrecision is the presentation precision for Boliviano amounts.
const BobPrecision = 2

// Converter performs directional BOB↔USDC conversions against the provider's
// configured rates. Conversions are pure decimal arithmetic; no float64 ever
// touches the money path.
type Converter struct {
	rates *Provider
}

// NewConverter returns a Converter backed by the given rate provider.
func NewConverter(rates *Provider) *Converter {
	return &Converter{rates: rates}
}

// BobToUsdc converts a Boliviano amount to USDC using the deposit rate.
// The result is formatted with exactly six fractional digits and returned as
// a string so downstream JSON never shows float display drift.
func (c *Converter) BobToUsdc(amountBob decimal.Decimal) (string, error) {
	if amountBob.LessThanOrEqual(decimal.Zero) {
		return "", ErrInvalidAmount
	}
	usdc := amountBob.DivRound(c.rates.DepositRate().BobPerUsdc, UsdcPrecision)
	return usdc.StringFixed(UsdcPrecision), nil
}

// UsdcToBob converts a USDC amount to Bolivianos using the withdrawal rate.
// The exact product is returned; callers round to two fractional digits at
// the presentation boundary via FormatBob.
func (c *Converter) UsdcToBob(amountUsdc decimal.Decimal) (decimal.Decimal, error) {
	if amountUsdc.LessThanOrEqual(decimal.Zero) {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	return amountUsdc.Mul(c.rates.WithdrawalRate().BobPerUsdc), nil
}

// FormatBob renders a Boliviano amount with two fixed fractional digits.
func FormatBob(amount decimal.Decimal) string {
	return amount.StringFixed(BobPrecision)
}
