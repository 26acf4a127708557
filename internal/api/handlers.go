/**
 * @description
 * This file contains the HTTP handlers for the settlement-service's API
 * endpoints. Handlers are responsible for parsing incoming requests, calling
 * the appropriate methods on the application service, and writing the HTTP
 * response. They act as the bridge between the web layer and the business
 * logic layer.
 *
 * Error translation follows a fixed taxonomy: validation failures are 400,
 * insufficient operator balance is 402, chain network failures are 503, ledger
 * misses are 404, everything else is 500. Classification is structural
 * (errors.Is / errors.As); no handler ever inspects error message text.
 *
 * @dependencies
 * - encoding/json, errors, log, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - internal/app, internal/chain, internal/domain, internal/store: Service
 *   logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/andinopay/settlement-service/internal/app"
	"github.com/andinopay/settlement-service/internal/chain"
	"github.com/andinopay/settlement-service/internal/domain"
	"github.com/andinopay/settlement-service/internal/store"
)

// SettlementHandlers holds the application service that handlers will use.
type SettlementHandlers struct {
	service *app.Service
}

// NewSettlementHandlers creates a new instance of SettlementHandlers.
func NewSettlementHandlers(service *app.Service) *SettlementHandlers {
	return &SettlementHandlers{service: service}
}

// envelope is the JSON response shape shared by every endpoint.
type envelope struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
	StatusCode int         `json:"statusCode"`
}

// ratesResponse is the payload for the rates endpoint.
type ratesResponse struct {
	DepositRate    string `json:"depositRate"`
	WithdrawalRate string `json:"withdrawalRate"`
}

// DepositWebhookHandler handles inbound bank deposit notifications: BOB has
// arrived at the bank, so the equivalent USDC is dispatched on-chain.
func (h *SettlementHandlers) DepositWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if !h.allowWebhook(w, r, "deposit") {
		return
	}

	var req domain.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=deposit_webhook outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}

	receipt, err := h.service.ProcessDeposit(r.Context(), req)
	if err != nil {
		h.writeSettlementError(w, "deposit_webhook", err)
		return
	}

	log.Printf("level=info component=api endpoint=deposit_webhook outcome=accepted hash=%s amount_bob=%v", receipt.TransactionHash, receipt.AmountBob)
	h.writeJSON(w, http.StatusOK, envelope{Success: true, Data: receipt, StatusCode: http.StatusOK})
}

// MockBankDepositHandler simulates the bank side of a deposit. It validates
// the same payload as the webhook and replays it through the deposit flow,
// tagged as a mock source. Development and demo use only.
func (h *SettlementHandlers) MockBankDepositHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=mock_bank_deposit outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}

	log.Printf("level=info component=api endpoint=mock_bank_deposit source=mock-bank amount_bob=%v recipient=%s", req.Amount, req.RecipientAddress)

	receipt, err := h.service.ProcessDeposit(r.Context(), req)
	if err != nil {
		h.writeSettlementError(w, "mock_bank_deposit", err)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope{Success: true, Data: receipt, StatusCode: http.StatusOK})
}

// WithdrawalWebhookHandler handles inbound withdrawal requests: the user has
// sent USDC to the operator, and the bank pays out BOB. The record is
// acknowledged as processing before the transfer hash is verified on-chain;
// verification happens out-of-band via VerifyTransactionHandler.
func (h *SettlementHandlers) WithdrawalWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if !h.allowWebhook(w, r, "withdrawal") {
		return
	}

	var req domain.WithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=withdrawal_webhook outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}

	tx, err := h.service.ProcessWithdrawal(r.Context(), req)
	if err != nil {
		h.writeSettlementError(w, "withdrawal_webhook", err)
		return
	}

	log.Printf("level=info component=api endpoint=withdrawal_webhook outcome=accepted withdrawal_id=%s", tx.WithdrawalID)
	h.writeJSON(w, http.StatusOK, envelope{Success: true, Data: tx, StatusCode: http.StatusOK})
}

// RatesHandler returns the configured deposit and withdrawal exchange rates.
func (h *SettlementHandlers) RatesHandler(w http.ResponseWriter, r *http.Request) {
	deposit, withdrawal := h.service.RateStrings()
	h.writeJSON(w, http.StatusOK, ratesResponse{
		DepositRate:    deposit,
		WithdrawalRate: withdrawal,
	})
}

// GetTransactionsHandler serves ledger lookups: by id, by sender address, or
// the full listing when no filter is given.
func (h *SettlementHandlers) GetTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	id := query.Get("id")
	address := query.Get("address")

	switch {
	case id != "":
		tx, err := h.service.GetTransaction(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrTransactionNotFound) {
				h.writeError(w, http.StatusNotFound, "Transaction not found")
				return
			}
			log.Printf("level=error component=api endpoint=get_transactions outcome=failed id=%s err=%v", id, err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		h.writeJSON(w, http.StatusOK, envelope{Success: true, Data: tx, StatusCode: http.StatusOK})

	case address != "":
		txs, err := h.service.ListTransactionsByAddress(r.Context(), address)
		if err != nil {
			log.Printf("level=error component=api endpoint=get_transactions outcome=failed address=%s err=%v", address, err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		h.writeJSON(w, http.StatusOK, envelope{Success: true, Data: txs, StatusCode: http.StatusOK})

	default:
		txs, err := h.service.ListTransactions(r.Context())
		if err != nil {
			log.Printf("level=error component=api endpoint=get_transactions outcome=failed err=%v", err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		h.writeJSON(w, http.StatusOK, envelope{Success: true, Data: txs, StatusCode: http.StatusOK})
	}
}

// VerifyTransactionHandler checks a withdrawal's recorded transfer hash
// against the chain and advances the ledger record.
func (h *SettlementHandlers) VerifyTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "Transaction ID is required")
		return
	}

	tx, err := h.service.VerifyWithdrawal(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrTransactionNotFound):
			h.writeError(w, http.StatusNotFound, "Transaction not found")
		case errors.Is(err, app.ErrNoTransferHash):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, chain.ErrNetworkUnavailable):
			h.writeError(w, http.StatusServiceUnavailable, "Blockchain network error")
		default:
			log.Printf("level=error component=api endpoint=verify_transaction outcome=failed id=%s err=%v", id, err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, envelope{Success: true, Data: tx, StatusCode: http.StatusOK})
}

// ClearTransactionsHandler wipes the ledger. Guarded by the internal API key
// middleware; intended for test and demo resets only.
func (h *SettlementHandlers) ClearTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearTransactions(r.Context()); err != nil {
		log.Printf("level=error component=api endpoint=clear_transactions outcome=failed err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.writeJSON(w, http.StatusOK, envelope{Success: true, StatusCode: http.StatusOK})
}

// allowWebhook applies the optional per-source rate limit. The bank source is
// taken from the X-Bank-Source header, falling back to the remote address.
func (h *SettlementHandlers) allowWebhook(w http.ResponseWriter, r *http.Request, direction string) bool {
	source := r.Header.Get("X-Bank-Source")
	if source == "" {
		source = r.RemoteAddr
	}

	allowed, retryAfter := h.service.AllowWebhook(r.Context(), source)
	if allowed {
		return true
	}

	log.Printf("level=warn component=api endpoint=%s_webhook outcome=rate_limited source=%s retry_after=%d", direction, source, retryAfter)
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	h.writeError(w, http.StatusTooManyRequests, "Too many requests")
	return false
}

// writeSettlementError translates settlement-flow errors into the response
// taxonomy shared by the deposit and withdrawal paths.
func (h *SettlementHandlers) writeSettlementError(w http.ResponseWriter, endpoint string, err error) {
	var verr *app.ValidationError
	switch {
	case errors.As(err, &verr):
		log.Printf("level=warn component=api endpoint=%s outcome=reject reason=validation err=%v", endpoint, err)
		h.writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, chain.ErrInvalidAddress), errors.Is(err, chain.ErrInvalidAmount):
		log.Printf("level=warn component=api endpoint=%s outcome=reject reason=invalid_input err=%v", endpoint, err)
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chain.ErrInsufficientBalance):
		log.Printf("level=warn component=api endpoint=%s outcome=failed reason=insufficient_balance err=%v", endpoint, err)
		h.writeError(w, http.StatusPaymentRequired, "Insufficient USDC balance in operator account")
	case errors.Is(err, chain.ErrNetworkUnavailable):
		log.Printf("level=warn component=api endpoint=%s outcome=failed reason=network err=%v", endpoint, err)
		h.writeError(w, http.StatusServiceUnavailable, "Blockchain network error")
	default:
		log.Printf("level=error component=api endpoint=%s outcome=failed err=%v", endpoint, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// writeJSON is a helper for writing JSON responses.
func (h *SettlementHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing enveloped JSON error responses.
func (h *SettlementHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, envelope{Success: false, Error: message, StatusCode: status})
}
