package ledger

import (
	"context"
	"sync"
	"time"
)

type inMemoryRepository struct {
	mu      sync.RWMutex
	order   []string
	records map[string]Transaction
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit
// tests and database-less development runs. Insertion order doubles as the
// recency order.
func NewInMemory() Repository {
	return &inMemoryRepository{records: make(map[string]Transaction)}
}

func (r *inMemoryRepository) Append(_ context.Context, tx Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[tx.ID]; exists {
		return ErrDuplicateID
	}
	r.records[tx.ID] = tx
	r.order = append(r.order, tx.ID)
	return nil
}

func (r *inMemoryRepository) Get(_ context.Context, id string) (Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tx, ok := r.records[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return tx, nil
}

func (r *inMemoryRepository) Settle(_ context.Context, id string) (Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.records[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	if tx.State == StateSettled {
		return Transaction{}, ErrAlreadySettled
	}
	now := time.Now().UTC()
	tx.State = StateSettled
	tx.SettledAt = &now
	r.records[id] = tx
	return tx, nil
}

func (r *inMemoryRepository) Discard(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return ErrNotFound
	}
	delete(r.records, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *inMemoryRepository) ListAll(_ context.Context) ([]Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Transaction, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		out = append(out, r.records[r.order[i]])
	}
	return out, nil
}

func (r *inMemoryRepository) ListByPhone(_ context.Context, phone string) ([]Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Transaction
	for i := len(r.order) - 1; i >= 0; i-- {
		tx := r.records[r.order[i]]
		if tx.Involves(phone) {
			out = append(out, tx)
		}
	}
	return out, nil
}
