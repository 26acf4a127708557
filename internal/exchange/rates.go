/**
 * @description
 * This file defines the exchange rate provider for the settlement-service.
 * The service quotes two independent BOB-per-USDC rates: one applied to bank
 * deposits (the operator sells USDC) and one applied to withdrawals (the
 * operator buys USDC back). The gap between the two is the operator's spread,
 * so the rates must never fall back to one another.
 *
 * @dependencies
 * - github.com/shopspring/decimal: Exact decimal arithmetic for money values.
 */

package exchange

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Direction identifies which side of the spread a rate applies to.
type Direction string

const (
	DirectionDeposit    Direction = "deposit"
	DirectionWithdrawal Direction = "withdrawal"
)

// Rate is an immutable BOB-per-USDC exchange rate for one direction.
type Rate struct {
	Direction  Direction
	BobPerUsdc decimal.Decimal
}

// Display renders the rate the way it is snapshotted into records and
// responses, e.g. "1 USDC = 12.6 BOB".
func (r Rate) Display() string {
	return fmt.Sprintf("1 USDC = %s BOB", r.BobPerUsdc.String())
}

// Provider supplies the two configured rates. Both are parsed once at startup;
// construction fails on any non-numeric or non-positive value so the process
// never starts serving with a mispriced rate.
type Provider struct {
	deposit    Rate
	withdrawal Rate
}

// NewProvider parses the two configured rate strings. The deposit and
// withdrawal values come from distinct configuration keys and are validated
// independently.
func NewProvider(depositRate, withdrawalRate string) (*Provider, error) {
	dep, err := parseRate(DirectionDeposit, depositRate)
	if err != nil {
		return nil, err
	}
	wd, err := parseRate(DirectionWithdrawal, withdrawalRate)
	if err != nil {
		return nil, err
	}
	return &Provider{deposit: dep, withdrawal: wd}, nil
}

func parseRate(direction Direction, value string) (Rate, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Rate{}, fmt.Errorf("%s rate %q is not a valid decimal: %w", direction, value, err)
	}
	if d.LessThanOrEqual(decimal.Zero) {
		return Rate{}, fmt.Errorf("%s rate must be positive, got %q", direction, value)
	}
	return Rate{Direction: direction, BobPerUsdc: d}, nil
}

// DepositRate returns the rate applied when converting bank deposits to USDC.
func (p *Provider) DepositRate() Rate { return p.deposit }

// WithdrawalRate returns the rate applied when converting USDC back to BOB.
func (p *Provider) WithdrawalRate() Rate { return p.withdrawal }
