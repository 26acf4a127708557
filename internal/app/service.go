/**
 * @description
 * This file contains the core business logic for the settlement-service. The
 * `Service` struct orchestrates the BOB↔USDC settlement flow, coordinating
 * between the currency converter, the chain transfer dispatcher, the
 * withdrawal ledger, and the message broker.
 *
 * Key features:
 * - Implements the two settlement paths: bank deposits (BOB in, USDC out) and
 *   withdrawals (USDC in, BOB out via the bank).
 * - Deposits are fire-and-forget credits and create no ledger record;
 *   withdrawals persist a record for bank-side reconciliation. The asymmetry
 *   is intentional.
 * - Publishes withdrawal lifecycle events to RabbitMQ for downstream services.
 *
 * @dependencies
 * - context, errors, fmt, log, math, time: Standard Go libraries.
 * - github.com/google/uuid: For transaction id generation.
 * - github.com/shopspring/decimal: Decimal money arithmetic.
 * - internal/chain, internal/domain, internal/exchange, internal/metrics,
 *   internal/store, pkg/rabbitmq: Internal packages and broker client.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/andinopay/settlement-service/internal/chain"
	"github.com/andinopay/settlement-service/internal/domain"
	"github.com/andinopay/settlement-service/internal/exchange"
	"github.com/andinopay/settlement-service/internal/metrics"
	"github.com/andinopay/settlement-service/internal/store"
	"github.com/andinopay/settlement-service/pkg/rabbitmq"
)

// ErrNoTransferHash is returned when a withdrawal cannot be verified because
// the record carries no on-chain transaction hash.
var ErrNoTransferHash = errors.New("withdrawal has no transfer hash to verify")

const withdrawalEventExchange = "settlement.events"

// TransferDispatcher is the subset of the chain dispatcher the service uses.
type TransferDispatcher interface {
	SendTokenTransfer(ctx context.Context, recipient, amountUsdc string) (*chain.TransferResult, error)
	CheckReceipt(ctx context.Context, hash string) (*chain.TransferReceipt, error)
}

// Service provides the core business logic for settlements.
type Service struct {
	repo            store.Repository
	rates           *exchange.Provider
	converter       *exchange.Converter
	dispatcher      TransferDispatcher
	eventProducer   rabbitmq.Publisher
	eventExchange   string
	metrics         *metrics.SettlementMetrics
	newWithdrawalID func() string

	webhookLimiter    WebhookRateLimiter
	webhookRatePerMin int
}

// NewService creates a new settlement service instance. producer and m may be
// nil; events and metrics degrade to no-ops.
func NewService(
	repo store.Repository,
	rates *exchange.Provider,
	dispatcher TransferDispatcher,
	producer rabbitmq.Publisher,
	m *metrics.SettlementMetrics,
) (*Service, error) {
	newWithdrawalID, err := NewWithdrawalIDGenerator()
	if err != nil {
		return nil, err
	}
	return &Service{
		repo:            repo,
		rates:           rates,
		converter:       exchange.NewConverter(rates),
		dispatcher:      dispatcher,
		eventProducer:   producer,
		eventExchange:   withdrawalEventExchange,
		metrics:         m,
		newWithdrawalID: newWithdrawalID,
	}, nil
}

// SetEventExchange overrides the exchange withdrawal events are published to.
func (s *Service) SetEventExchange(name string) {
	if name != "" {
		s.eventExchange = name
	}
}

// ProcessDeposit converts a BOB deposit to USDC and dispatches the on-chain
// transfer to the recipient. No ledger record is created: a deposit either
// settles in this call or fails visibly to the bank.
func (s *Service) ProcessDeposit(ctx context.Context, req domain.DepositRequest) (*domain.DepositReceipt, error) {
	if err := validateDeposit(req); err != nil {
		s.countSettlement("deposit", "validation_error")
		return nil, err
	}

	amountBob := decimal.NewFromFloat(req.Amount)
	amountUsdc, err := s.converter.BobToUsdc(amountBob)
	if err != nil {
		s.countSettlement("deposit", "validation_error")
		return nil, &ValidationError{Fields: []FieldError{{Field: "amount", Message: err.Error()}}}
	}

	rate := s.rates.DepositRate()
	log.Printf("level=info component=app flow=deposit msg=\"converted deposit\" amount_bob=%s amount_usdc=%s rate=%q",
		amountBob.String(), amountUsdc, rate.Display())

	started := time.Now()
	result, err := s.dispatcher.SendTokenTransfer(ctx, req.RecipientAddress, amountUsdc)
	s.observeDispatch(started, err)
	if err != nil {
		s.countSettlement("deposit", dispatchOutcome(err))
		return nil, err
	}

	log.Printf("level=info component=app flow=deposit outcome=dispatched hash=%s recipient=%s amount_usdc=%s",
		result.Hash, result.Recipient, result.AmountUsdc)
	s.countSettlement("deposit", "accepted")
	s.addSettledAmount("deposit", amountUsdc)

	return &domain.DepositReceipt{
		TransactionHash:  result.Hash,
		AmountBob:        req.Amount,
		AmountUsdc:       amountUsdc,
		ExchangeRate:     rate.Display(),
		RecipientAddress: req.RecipientAddress,
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// ProcessWithdrawal converts a USDC withdrawal to BOB and records it in the
// ledger with status processing. The supplied tx hash is stored unverified;
// VerifyWithdrawal closes that trust gap out-of-band against the chain.
func (s *Service) ProcessWithdrawal(ctx context.Context, req domain.WithdrawalRequest) (*domain.StoredTransaction, error) {
	if err := validateWithdrawal(req); err != nil {
		s.countSettlement("withdrawal", "validation_error")
		return nil, err
	}

	amountUsdc := decimal.RequireFromString(req.AmountUsdc)
	amountBob, err := s.converter.UsdcToBob(amountUsdc)
	if err != nil {
		s.countSettlement("withdrawal", "validation_error")
		return nil, &ValidationError{Fields: []FieldError{{Field: "amountUsdc", Message: err.Error()}}}
	}

	rate := s.rates.WithdrawalRate()
	tx := domain.StoredTransaction{
		TransactionID:        uuid.NewString(),
		WithdrawalID:         s.newWithdrawalID(),
		AmountUsdc:           req.AmountUsdc,
		AmountBob:            exchange.FormatBob(amountBob),
		ExchangeRate:         rate.Display(),
		SenderAddress:        req.SenderAddress,
		RecipientBankAccount: req.RecipientBankAccount,
		RecipientName:        req.RecipientName,
		Status:               domain.StatusProcessing,
		TxHash:               req.TxHash,
		Timestamp:            time.Now().UTC().Format(time.RFC3339),
	}

	if err := s.repo.Save(ctx, tx); err != nil {
		s.countSettlement("withdrawal", "internal_error")
		return nil, fmt.Errorf("failed to persist withdrawal record: %w", err)
	}

	log.Printf("level=info component=app flow=withdrawal outcome=recorded withdrawal_id=%s amount_usdc=%s amount_bob=%s sender=%s",
		tx.WithdrawalID, tx.AmountUsdc, tx.AmountBob, tx.SenderAddress)
	s.countSettlement("withdrawal", "accepted")
	s.addSettledAmount("withdrawal", req.AmountUsdc)
	s.publishWithdrawalEvent(ctx, "settlement.withdrawal.created", tx)

	return &tx, nil
}

// VerifyWithdrawal checks the recorded transfer hash against the chain and
// moves the record forward: processing → completed on a confirmed receipt,
// processing → failed on a reverted one. Terminal records are returned
// unchanged, and an unmined transfer leaves the record in processing.
func (s *Service) VerifyWithdrawal(ctx context.Context, transactionID string) (*domain.StoredTransaction, error) {
	tx, err := s.repo.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.TxHash == "" {
		return nil, ErrNoTransferHash
	}
	if !tx.Status.CanTransitionTo(domain.StatusCompleted) && !tx.Status.CanTransitionTo(domain.StatusFailed) {
		return tx, nil
	}

	receipt, err := s.dispatcher.CheckReceipt(ctx, tx.TxHash)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		log.Printf("level=info component=app flow=verify outcome=unmined transaction_id=%s hash=%s", transactionID, tx.TxHash)
		return tx, nil
	}

	update := store.StatusUpdate{Status: domain.StatusCompleted}
	if !receipt.Confirmed {
		update = store.StatusUpdate{
			Status:       domain.StatusFailed,
			ErrorMessage: "on-chain transfer reverted",
		}
	}

	updated, err := s.repo.UpdateStatus(ctx, transactionID, update)
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=app flow=verify outcome=%s transaction_id=%s hash=%s", updated.Status, transactionID, tx.TxHash)
	if s.metrics != nil {
		s.metrics.LedgerStatusTransitionsTotal.WithLabelValues(string(updated.Status)).Inc()
	}
	s.publishWithdrawalEvent(ctx, "settlement.withdrawal."+string(updated.Status), *updated)

	return updated, nil
}

// GetTransaction returns the ledger record for id.
func (s *Service) GetTransaction(ctx context.Context, id string) (*domain.StoredTransaction, error) {
	return s.repo.Get(ctx, id)
}

// ListTransactions returns every ledger record.
func (s *Service) ListTransactions(ctx context.Context) ([]domain.StoredTransaction, error) {
	return s.repo.GetAll(ctx)
}

// ListTransactionsByAddress returns the records for one sender address.
func (s *Service) ListTransactionsByAddress(ctx context.Context, address string) ([]domain.StoredTransaction, error) {
	return s.repo.GetByAddress(ctx, address)
}

// ClearTransactions wipes the ledger. Administrative reset only.
func (s *Service) ClearTransactions(ctx context.Context) error {
	log.Printf("level=warn component=app msg=\"clearing withdrawal ledger\"")
	return s.repo.Clear(ctx)
}

// RateStrings returns the two configured rates as display strings for the
// rates endpoint.
func (s *Service) RateStrings() (depositRate, withdrawalRate string) {
	return s.rates.DepositRate().BobPerUsdc.StringFixed(2),
		s.rates.WithdrawalRate().BobPerUsdc.StringFixed(2)
}

func validateDeposit(req domain.DepositRequest) error {
	verr := &ValidationError{}
	if req.Amount <= 0 || math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) {
		verr.add("amount", "must be a positive number")
	}
	if !chain.ValidAddress(req.RecipientAddress) {
		verr.add("recipientAddress", "must be a valid hex account address")
	}
	return verr.orNil()
}

func validateWithdrawal(req domain.WithdrawalRequest) error {
	verr := &ValidationError{}
	amount, err := decimal.NewFromString(req.AmountUsdc)
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		verr.add("amountUsdc", "must be a positive number")
	}
	if !chain.ValidAddress(req.SenderAddress) {
		verr.add("senderAddress", "must be a valid hex account address")
	}
	if req.RecipientBankAccount == "" {
		verr.add("recipientBankAccount", "is required")
	}
	if req.RecipientName == "" {
		verr.add("recipientName", "is required")
	}
	return verr.orNil()
}

func (s *Service) publishWithdrawalEvent(ctx context.Context, routingKey string, tx domain.StoredTransaction) {
	if s.eventProducer == nil {
		return
	}
	event := domain.WithdrawalEvent{
		TransactionID: tx.TransactionID,
		WithdrawalID:  tx.WithdrawalID,
		AmountUsdc:    tx.AmountUsdc,
		AmountBob:     tx.AmountBob,
		SenderAddress: tx.SenderAddress,
		Status:        tx.Status,
		TxHash:        tx.TxHash,
		Timestamp:     tx.Timestamp,
	}
	if err := s.eventProducer.Publish(ctx, s.eventExchange, routingKey, event); err != nil {
		// Events are best-effort; the ledger record is the source of truth.
		log.Printf("level=warn component=app msg=\"withdrawal event publish failed\" routing_key=%s withdrawal_id=%s err=%v",
			routingKey, tx.WithdrawalID, err)
	}
}

func (s *Service) countSettlement(direction, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.SettlementsTotal.WithLabelValues(direction, outcome).Inc()
}

func (s *Service) addSettledAmount(direction, amountUsdc string) {
	if s.metrics == nil {
		return
	}
	amount, err := decimal.NewFromString(amountUsdc)
	if err != nil {
		return
	}
	micro := amount.Shift(6).Floor()
	s.metrics.SettledMicroUsdcTotal.WithLabelValues(direction).Add(float64(micro.IntPart()))
}

func (s *Service) observeDispatch(started time.Time, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = dispatchOutcome(err)
	}
	s.metrics.ChainDispatchDuration.WithLabelValues(outcome).Observe(time.Since(started).Seconds())
}

// dispatchOutcome labels a dispatcher error for metrics.
func dispatchOutcome(err error) string {
	switch {
	case errors.Is(err, chain.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, chain.ErrNetworkUnavailable):
		return "network_error"
	case errors.Is(err, chain.ErrInvalidAddress), errors.Is(err, chain.ErrInvalidAmount):
		return "validation_error"
	default:
		return "internal_error"
	}
}
