/**
 * @description
 * This file contains the chain transfer dispatcher, the component that moves
 * USDC from the custodial operator account to a recipient. It validates the
 * recipient address and amount before any network call, scales the decimal
 * amount to the token's smallest integer unit, and submits the transfer
 * through the custody gateway client.
 *
 * Key behaviors:
 * - Fire-and-forget: SendTokenTransfer returns a pending result as soon as the
 *   gateway accepts the transaction; confirmation is observed separately via
 *   CheckReceipt.
 * - Amounts are floored (not rounded) when scaled to micro-USDC, so a transfer
 *   never settles more than the caller asked for.
 * - Gateway failures are classified structurally from the API error code into
 *   the package's sentinel errors; message text is never inspected.
 */

package chain

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/andinopay/settlement-service/internal/domain"
	"github.com/andinopay/settlement-service/pkg/chainclient"
)

var (
	ErrInvalidAddress      = errors.New("invalid recipient address")
	ErrInvalidAmount       = errors.New("invalid transfer amount")
	ErrInsufficientBalance = errors.New("insufficient operator balance")
	ErrNetworkUnavailable  = errors.New("chain network unavailable")
)

// usdcUnitScale is the number of fractional digits in one whole USDC.
const usdcUnitScale = 6

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ValidAddress reports whether s is a checksum-agnostic 20-byte hex account
// identifier (0x followed by 40 hex digits).
func ValidAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// GatewayClient is the subset of the custody gateway client the dispatcher
// needs. Declared here so tests can substitute a stub.
type GatewayClient interface {
	SubmitTokenTransfer(ctx context.Context, tokenAddress, recipient string, amount int64) (*chainclient.TransferResponse, error)
	GetTransactionReceipt(ctx context.Context, hash string) (*chainclient.ReceiptResponse, error)
}

// TransferResult is the pending handle returned for a submitted transfer.
type TransferResult struct {
	Hash       string
	Recipient  string
	AmountUsdc string
	Status     domain.Status
}

// TransferReceipt is the dispatcher's view of a mined transfer.
type TransferReceipt struct {
	Hash      string
	Confirmed bool
}

// Dispatcher validates and submits USDC transfers from the operator account.
type Dispatcher struct {
	client       GatewayClient
	tokenAddress string
}

// NewDispatcher returns a Dispatcher that transfers the token at tokenAddress
// through the given gateway client.
func NewDispatcher(client GatewayClient, tokenAddress string) *Dispatcher {
	return &Dispatcher{client: client, tokenAddress: tokenAddress}
}

// SendTokenTransfer submits a USDC transfer of amountUsdc (a decimal string)
// to recipient. Validation failures return before any gateway call, leaving no
// partial side effects. The returned result always carries StatusPending.
func (d *Dispatcher) SendTokenTransfer(ctx context.Context, recipient, amountUsdc string) (*TransferResult, error) {
	if !ValidAddress(recipient) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, recipient)
	}

	amount, err := decimal.NewFromString(amountUsdc)
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amountUsdc)
	}

	microUnits, err := toMicroUnits(amount)
	if err != nil {
		return nil, err
	}

	resp, err := d.client.SubmitTokenTransfer(ctx, d.tokenAddress, recipient, microUnits)
	if err != nil {
		return nil, classifyGatewayError(err)
	}

	return &TransferResult{
		Hash:       resp.Data.Hash,
		Recipient:  recipient,
		AmountUsdc: amountUsdc,
		Status:     domain.StatusPending,
	}, nil
}

// CheckReceipt fetches the receipt for a submitted transfer. A nil receipt
// with a nil error means the transaction has not been mined yet.
func (d *Dispatcher) CheckReceipt(ctx context.Context, hash string) (*TransferReceipt, error) {
	receipt, err := d.client.GetTransactionReceipt(ctx, hash)
	if err != nil {
		return nil, classifyGatewayError(err)
	}
	if receipt == nil {
		return nil, nil
	}
	return &TransferReceipt{
		Hash:      receipt.Data.Hash,
		Confirmed: receipt.Data.Status == chainclient.ReceiptStatusConfirmed,
	}, nil
}

// toMicroUnits scales a decimal USDC amount to the token's smallest integer
// unit using floor truncation. Floor, not round: rounding up would settle more
// than the converted amount at the margin.
func toMicroUnits(amount decimal.Decimal) (int64, error) {
	scaled := amount.Shift(usdcUnitScale).Floor()
	big := scaled.BigInt()
	if !big.IsInt64() || big.Int64() <= 0 {
		return 0, fmt.Errorf("%w: %s does not scale to a positive token amount", ErrInvalidAmount, amount)
	}
	return big.Int64(), nil
}

// classifyGatewayError maps gateway client failures onto the dispatcher's
// sentinel taxonomy. Structured API errors are classified by code; transport
// failures (timeouts, refused connections) count as network errors.
func classifyGatewayError(err error) error {
	var apiErr *chainclient.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code() {
		case chainclient.CodeInsufficientBalance:
			return fmt.Errorf("%w: %v", ErrInsufficientBalance, err)
		case chainclient.CodeInvalidRecipient:
			return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
		case chainclient.CodeRPCUnavailable:
			return fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
		default:
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
}
