package domain

// WithdrawalEvent is the payload published to the settlement events exchange
// whenever a withdrawal record is created or changes status. Downstream
// consumers (bank reconciliation, notifications) key off WithdrawalID.
type WithdrawalEvent struct {
	TransactionID string `json:"transaction_id"`
	WithdrawalID  string `json:"withdrawal_id"`
	AmountUsdc    string `json:"amount_usdc"`
	AmountBob     string `json:"amount_bob"`
	SenderAddress string `json:"sender_address"`
	Status        Status `json:"status"`
	TxHash        string `json:"tx_hash,omitempty"`
	Timestamp     string `json:"timestamp"`
}
