/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract
 * for the withdrawal ledger used by the settlement-service. By defining an
 * interface, we decouple the application's business logic from the specific
 * storage implementation, making the code more modular and easier to test.
 *
 * The ledger is deliberately process-lifetime storage: records are lost on
 * restart. That durability gap is an accepted scope limitation of the current
 * bank integration, not something an implementation should silently fix here.
 */

package store

import (
	"context"
	"errors"

	"github.com/andinopay/settlement-service/internal/domain"
)

var ErrTransactionNotFound = errors.New("transaction not found")

// StatusUpdate carries the mutable fields of a withdrawal record. TxHash and
// ErrorMessage are applied only when non-empty; TxHash is set at most once.
type StatusUpdate struct {
	Status       domain.Status
	TxHash       string
	ErrorMessage string
}

// Repository defines the set of methods for interacting with the withdrawal
// ledger. Keys are transaction ids.
type Repository interface {
	// Save inserts or overwrites a record. Last write wins; the service is
	// the sole writer within one request's lifecycle.
	Save(ctx context.Context, tx domain.StoredTransaction) error

	// Get returns the record for id, or ErrTransactionNotFound.
	Get(ctx context.Context, id string) (*domain.StoredTransaction, error)

	// GetAll returns every record in insertion order.
	GetAll(ctx context.Context) ([]domain.StoredTransaction, error)

	// GetByAddress returns all records whose sender address matches address,
	// compared case-insensitively.
	GetByAddress(ctx context.Context, address string) ([]domain.StoredTransaction, error)

	// UpdateStatus applies update to the record for id and returns the updated
	// record, or ErrTransactionNotFound if the id is unknown.
	UpdateStatus(ctx context.Context, id string, update StatusUpdate) (*domain.StoredTransaction, error)

	// Clear removes every record. Reserved for administrative reset and tests.
	Clear(ctx context.Context) error
}
