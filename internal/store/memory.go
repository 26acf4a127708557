package store

import (
	"context"
	"strings"
	"sync"

	"github.com/andinopay/settlement-service/internal/domain"
)

// MemoryStore is the in-memory ledger implementation. Records live for the
// lifetime of the process and are shared by every concurrent webhook request,
// so all map access goes through the mutex.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]domain.StoredTransaction
	order   []string
}

// NewMemoryStore returns an empty ledger. Construct one per process (or per
// test) and inject it; there is no package-level singleton.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]domain.StoredTransaction),
	}
}

// Save inserts or overwrites the record keyed by its transaction id.
func (m *MemoryStore) Save(ctx context.Context, tx domain.StoredTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[tx.TransactionID]; !exists {
		m.order = append(m.order, tx.TransactionID)
	}
	m.records[tx.TransactionID] = tx
	return nil
}

// Get returns a copy of the record for id.
func (m *MemoryStore) Get(ctx context.Context, id string) (*domain.StoredTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tx, ok := m.records[id]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	return &tx, nil
}

// GetAll returns all records in insertion order.
func (m *MemoryStore) GetAll(ctx context.Context) ([]domain.StoredTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.StoredTransaction, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.records[id])
	}
	return out, nil
}

// GetByAddress returns records whose sender address equals address ignoring
// case, in insertion order.
func (m *MemoryStore) GetByAddress(ctx context.Context, address string) ([]domain.StoredTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.StoredTransaction, 0)
	for _, id := range m.order {
		tx := m.records[id]
		if strings.EqualFold(tx.SenderAddress, address) {
			out = append(out, tx)
		}
	}
	return out, nil
}

// UpdateStatus mutates the record for id. The tx hash is written at most once;
// a hash already on the record is never overwritten.
func (m *MemoryStore) UpdateStatus(ctx context.Context, id string, update StatusUpdate) (*domain.StoredTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.records[id]
	if !ok {
		return nil, ErrTransactionNotFound
	}

	tx.Status = update.Status
	if update.TxHash != "" && tx.TxHash == "" {
		tx.TxHash = update.TxHash
	}
	if update.ErrorMessage != "" {
		tx.ErrorMessage = update.ErrorMessage
	}

	m.records[id] = tx
	return &tx, nil
}

// Clear removes every record.
func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = make(map[string]domain.StoredTransaction)
	m.order = nil
	return nil
}
