/**
 * @description
 * This file defines the core domain models for the settlement-service.
 * These structs represent the main entities and data transfer objects (DTOs)
 * used throughout the service's business logic, ledger interactions, and API layers.
 *
 * @notes
 * - Monetary amounts cross package boundaries as decimal strings ("7.936508",
 *   "620.00") so that JSON responses never carry float drift. USDC amounts use
 *   6 fractional digits, BOB amounts 2.
 * - A withdrawal record's `transactionId` is immutable and unique once created;
 *   `status` only ever moves forward (see Status.CanTransitionTo).
 */

package domain

// Status is the lifecycle state of a withdrawal record.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// CanTransitionTo reports whether the state machine allows moving from s to
// next. Transitions are forward-only: pending → processing → completed, with
// failed reachable from any non-terminal state. Terminal states never change.
func (s Status) CanTransitionTo(next Status) bool {
	if !next.Valid() {
		return false
	}
	switch s {
	case StatusPending:
		return next == StatusProcessing || next == StatusCompleted || next == StatusFailed
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	default:
		// completed and failed are terminal
		return false
	}
}

// StoredTransaction is the ledger record created for every accepted
// withdrawal. Deposits are fire-and-forget credits and do not create records;
// withdrawals need a durable projection for bank-side reconciliation.
type StoredTransaction struct {
	TransactionID        string `json:"transactionId"`
	WithdrawalID         string `json:"withdrawalId"`
	AmountUsdc           string `json:"amountUsdc"`
	AmountBob            string `json:"amountBob"`
	ExchangeRate         string `json:"exchangeRate"`
	SenderAddress        string `json:"senderAddress"`
	RecipientBankAccount string `json:"recipientBankAccount"`
	RecipientName        string `json:"recipientName"`
	Status               Status `json:"status"`
	TxHash               string `json:"txHash,omitempty"`
	Timestamp            string `json:"timestamp"`
	ErrorMessage         string `json:"errorMessage,omitempty"`
}

// DepositRequest is the DTO for the inbound bank deposit webhook.
type DepositRequest struct {
	Amount           float64 `json:"amount"`
	RecipientAddress string  `json:"recipientAddress"`
}

// DepositReceipt is the success payload returned by the deposit webhook.
type DepositReceipt struct {
	TransactionHash  string  `json:"transactionHash"`
	AmountBob        float64 `json:"amountBob"`
	AmountUsdc       string  `json:"amountUsdc"`
	ExchangeRate     string  `json:"exchangeRate"`
	RecipientAddress string  `json:"recipientAddress"`
	Timestamp        string  `json:"timestamp"`
}

// WithdrawalRequest is the DTO for the inbound bank withdrawal webhook.
// TxHash is the user's USDC transfer as reported by the wallet frontend; it is
// recorded unverified and checked on-chain out-of-band (see VerifyWithdrawal).
type WithdrawalRequest struct {
	AmountUsdc           string `json:"amountUsdc"`
	SenderAddress        string `json:"senderAddress"`
	RecipientBankAccount string `json:"recipientBankAccount"`
	RecipientName        string `json:"recipientName"`
	TxHash               string `json:"txHash,omitempty"`
}
