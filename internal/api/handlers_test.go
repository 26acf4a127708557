package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andinopay/settlement-service/internal/app"
	"github.com/andinopay/settlement-service/internal/chain"
	"github.com/andinopay/settlement-service/internal/domain"
	"github.com/andinopay/settlement-service/internal/exchange"
	"github.com/andinopay/settlement-service/internal/store"
)

const (
	testRecipient = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"
	testSender    = "0x8ba1f109551bD432803012645Ac136ddd64DBa72"
)

// dispatcherStub satisfies app.TransferDispatcher for handler tests.
type dispatcherStub struct {
	sendErr    error
	receipt    *chain.TransferReceipt
	receiptErr error
	sendCalls  int
}

func (d *dispatcherStub) SendTokenTransfer(ctx context.Context, recipient, amountUsdc string) (*chain.TransferResult, error) {
	d.sendCalls++
	if d.sendErr != nil {
		return nil, d.sendErr
	}
	return &chain.TransferResult{
		Hash:       "0xabc123",
		Recipient:  recipient,
		AmountUsdc: amountUsdc,
		Status:     domain.StatusPending,
	}, nil
}

func (d *dispatcherStub) CheckReceipt(ctx context.Context, hash string) (*chain.TransferReceipt, error) {
	if d.receiptErr != nil {
		return nil, d.receiptErr
	}
	return d.receipt, nil
}

func newTestServer(t *testing.T, dispatcher *dispatcherStub, cfg RouterConfig) (http.Handler, *app.Service) {
	t.Helper()

	rates, err := exchange.NewProvider("12.60", "12.40")
	require.NoError(t, err)

	service, err := app.NewService(store.NewMemoryStore(), rates, dispatcher, nil, nil)
	require.NoError(t, err)

	return SettlementRoutes(NewSettlementHandlers(service), cfg), service
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()

	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func TestDepositWebhook_ConvertsAndDispatches(t *testing.T) {
	dispatcher := &dispatcherStub{}
	handler, _ := newTestServer(t, dispatcher, RouterConfig{})

	body := fmt.Sprintf(`{"amount": 100, "recipientAddress": %q}`, testRecipient)
	rec := doJSON(t, handler, http.MethodPost, "/webhooks/bank/deposit", body)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)

	data, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "7.936508", data["amountUsdc"])
	assert.Equal(t, float64(100), data["amountBob"])
	assert.Equal(t, "0xabc123", data["transactionHash"])
	assert.Equal(t, "1 USDC = 12.6 BOB", data["exchangeRate"])
	assert.Equal(t, 1, dispatcher.sendCalls)
}

func TestDepositWebhook_InvalidAddressRejectedBeforeDispatch(t *testing.T) {
	dispatcher := &dispatcherStub{}
	handler, _ := newTestServer(t, dispatcher, RouterConfig{})

	rec := doJSON(t, handler, http.MethodPost, "/webhooks/bank/deposit",
		`{"amount": 100, "recipientAddress": "not-an-address"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Contains(t, env.Error, "recipientAddress")
	assert.Equal(t, 0, dispatcher.sendCalls, "invalid requests must not reach the chain")
}

func TestDepositWebhook_InvalidJSON(t *testing.T) {
	handler, _ := newTestServer(t, &dispatcherStub{}, RouterConfig{})

	rec := doJSON(t, handler, http.MethodPost, "/webhooks/bank/deposit", `{"amount": `)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
}

func TestDepositWebhook_InsufficientBalance(t *testing.T) {
	dispatcher := &dispatcherStub{
		sendErr: fmt.Errorf("%w: operator account empty", chain.ErrInsufficientBalance),
	}
	handler, _ := newTestServer(t, dispatcher, RouterConfig{})

	body := fmt.Sprintf(`{"amount": 100, "recipientAddress": %q}`, testRecipient)
	rec := doJSON(t, handler, http.MethodPost, "/webhooks/bank/deposit", body)

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
}

func TestDepositWebhook_NetworkUnavailable(t *testing.T) {
	dispatcher := &dispatcherStub{
		sendErr: fmt.Errorf("%w: connection refused", chain.ErrNetworkUnavailable),
	}
	handler, _ := newTestServer(t, dispatcher, RouterConfig{})

	body := fmt.Sprintf(`{"amount": 100, "recipientAddress": %q}`, testRecipient)
	rec := doJSON(t, handler, http.MethodPost, "/webhooks/bank/deposit", body)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWithdrawalWebhook_RecordsProcessingTransaction(t *testing.T) {
	handler, service := newTestServer(t, &dispatcherStub{}, RouterConfig{})

	body := fmt.Sprintf(`{
		"amountUsdc": "50.00",
		"senderAddress": %q,
		"recipientBankAccount": "1234567890",
		"recipientName": "Maria Flores",
		"txHash": "0xdeadbeef"
	}`, testSender)
	rec := doJSON(t, handler, http.MethodPost, "/webhooks/bank/withdraw", body)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	require.True(t, env.Success)

	data, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "620.00", data["amountBob"])
	assert.Equal(t, "processing", data["status"])
	assert.True(t, strings.HasPrefix(data["withdrawalId"].(string), "WD"))

	// The record must also be queryable from the ledger.
	txs, err := service.ListTransactions(context.Background())
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, data["transactionId"], txs[0].TransactionID)
	assert.Equal(t, domain.StatusProcessing, txs[0].Status)
}

func TestWithdrawalWebhook_ValidationAggregatesFields(t *testing.T) {
	handler, _ := newTestServer(t, &dispatcherStub{}, RouterConfig{})

	rec := doJSON(t, handler, http.MethodPost, "/webhooks/bank/withdraw",
		`{"amountUsdc": "-5", "senderAddress": "bogus", "recipientBankAccount": "", "recipientName": ""}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Contains(t, env.Error, "amountUsdc")
	assert.Contains(t, env.Error, "senderAddress")
	assert.Contains(t, env.Error, "recipientBankAccount")
	assert.Contains(t, env.Error, "recipientName")
}

func TestRatesHandler(t *testing.T) {
	handler, _ := newTestServer(t, &dispatcherStub{}, RouterConfig{})

	rec := doJSON(t, handler, http.MethodGet, "/rates", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ratesResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "12.60", resp.DepositRate)
	assert.Equal(t, "12.40", resp.WithdrawalRate)
}

func TestGetTransactions_ByIDAndAddress(t *testing.T) {
	handler, service := newTestServer(t, &dispatcherStub{}, RouterConfig{})

	tx, err := service.ProcessWithdrawal(context.Background(), domain.WithdrawalRequest{
		AmountUsdc:           "10.00",
		SenderAddress:        testSender,
		RecipientBankAccount: "111",
		RecipientName:        "Ana",
	})
	require.NoError(t, err)

	rec := doJSON(t, handler, http.MethodGet, "/transactions?id="+tx.TransactionID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	// Address lookup is case-insensitive.
	rec = doJSON(t, handler, http.MethodGet, "/transactions?address="+strings.ToLower(testSender), "")
	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	list, ok := env.Data.([]interface{})
	require.True(t, ok)
	assert.Len(t, list, 1)

	rec = doJSON(t, handler, http.MethodGet, "/transactions?id=does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTransactions_ListAll(t *testing.T) {
	handler, service := newTestServer(t, &dispatcherStub{}, RouterConfig{})

	for i := 0; i < 3; i++ {
		_, err := service.ProcessWithdrawal(context.Background(), domain.WithdrawalRequest{
			AmountUsdc:           "1.00",
			SenderAddress:        testSender,
			RecipientBankAccount: "111",
			RecipientName:        "Ana",
		})
		require.NoError(t, err)
	}

	rec := doJSON(t, handler, http.MethodGet, "/transactions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	list, ok := env.Data.([]interface{})
	require.True(t, ok)
	assert.Len(t, list, 3)
}

func TestVerifyTransaction_Confirmed(t *testing.T) {
	dispatcher := &dispatcherStub{
		receipt: &chain.TransferReceipt{Hash: "0xdeadbeef", Confirmed: true},
	}
	handler, service := newTestServer(t, dispatcher, RouterConfig{})

	tx, err := service.ProcessWithdrawal(context.Background(), domain.WithdrawalRequest{
		AmountUsdc:           "5.00",
		SenderAddress:        testSender,
		RecipientBankAccount: "111",
		RecipientName:        "Ana",
		TxHash:               "0xdeadbeef",
	})
	require.NoError(t, err)

	rec := doJSON(t, handler, http.MethodPost, "/transactions/"+tx.TransactionID+"/verify", "")
	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	data, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "completed", data["status"])
}

func TestVerifyTransaction_NoHash(t *testing.T) {
	handler, service := newTestServer(t, &dispatcherStub{}, RouterConfig{})

	tx, err := service.ProcessWithdrawal(context.Background(), domain.WithdrawalRequest{
		AmountUsdc:           "5.00",
		SenderAddress:        testSender,
		RecipientBankAccount: "111",
		RecipientName:        "Ana",
	})
	require.NoError(t, err)

	rec := doJSON(t, handler, http.MethodPost, "/transactions/"+tx.TransactionID+"/verify", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyTransaction_UnknownID(t *testing.T) {
	handler, _ := newTestServer(t, &dispatcherStub{}, RouterConfig{})

	rec := doJSON(t, handler, http.MethodPost, "/transactions/nope/verify", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMockBankDeposit_ReplaysDepositFlow(t *testing.T) {
	dispatcher := &dispatcherStub{}
	handler, _ := newTestServer(t, dispatcher, RouterConfig{})

	body := fmt.Sprintf(`{"amount": 12.6, "recipientAddress": %q}`, testRecipient)
	rec := doJSON(t, handler, http.MethodPost, "/mock/bank-deposit", body)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	data, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "1.000000", data["amountUsdc"])
	assert.Equal(t, 1, dispatcher.sendCalls)
}

func TestWebhookSecret_Enforced(t *testing.T) {
	handler, _ := newTestServer(t, &dispatcherStub{}, RouterConfig{BankWebhookSecret: "s3cret"})

	body := fmt.Sprintf(`{"amount": 100, "recipientAddress": %q}`, testRecipient)

	rec := doJSON(t, handler, http.MethodPost, "/webhooks/bank/deposit", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/bank/deposit", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(bankWebhookSecretHeader, "s3cret")
	ok := httptest.NewRecorder()
	handler.ServeHTTP(ok, req)
	assert.Equal(t, http.StatusOK, ok.Code)
}

func TestClearTransactions_RequiresInternalKey(t *testing.T) {
	handler, service := newTestServer(t, &dispatcherStub{}, RouterConfig{InternalAPIKey: "admin-key"})

	_, err := service.ProcessWithdrawal(context.Background(), domain.WithdrawalRequest{
		AmountUsdc:           "5.00",
		SenderAddress:        testSender,
		RecipientBankAccount: "111",
		RecipientName:        "Ana",
	})
	require.NoError(t, err)

	rec := doJSON(t, handler, http.MethodDelete, "/transactions", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodDelete, "/transactions", nil)
	req.Header.Set(internalAPIKeyHeader, "admin-key")
	ok := httptest.NewRecorder()
	handler.ServeHTTP(ok, req)
	require.Equal(t, http.StatusOK, ok.Code)

	txs, err := service.ListTransactions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestClearTransactions_DisabledWithoutKey(t *testing.T) {
	handler, _ := newTestServer(t, &dispatcherStub{}, RouterConfig{})

	rec := doJSON(t, handler, http.MethodDelete, "/transactions", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
