package account

import (
	"context"
	"sort"
	"sync"
)

type memoryRepository struct {
	mu       sync.RWMutex
	accounts map[string]Account
}

// NewMemoryRepository constructs a concurrency-safe in-memory repository,
// used in tests and when the service runs without a database.
func NewMemoryRepository() Repository {
	return &memoryRepository{accounts: make(map[string]Account)}
}

func (r *memoryRepository) Create(_ context.Context, acct Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.accounts[acct.Phone]; exists {
		return ErrDuplicate
	}
	for _, existing := range r.accounts {
		if acct.Email != "" && existing.Email == acct.Email {
			return ErrDuplicate
		}
	}
	r.accounts[acct.Phone] = acct
	return nil
}

func (r *memoryRepository) FindByPhone(_ context.Context, phone string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acct, ok := r.accounts[phone]
	if !ok {
		return Account{}, ErrNotFound
	}
	return acct, nil
}

func (r *memoryRepository) FindByEmail(_ context.Context, email string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, acct := range r.accounts {
		if acct.Email == email {
			return acct, nil
		}
	}
	return Account{}, ErrNotFound
}

func (r *memoryRepository) List(_ context.Context) ([]Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Account, 0, len(r.accounts))
	for _, acct := range r.accounts {
		out = append(out, acct)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Phone < out[j].Phone })
	return out, nil
}

func (r *memoryRepository) UpdateApproval(_ context.Context, phone string, approved bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	acct, ok := r.accounts[phone]
	if !ok {
		return ErrNotFound
	}
	acct.Approved = approved
	r.accounts[phone] = acct
	return nil
}

func (r *memoryRepository) UpdateStatus(_ context.Context, phone string, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	acct, ok := r.accounts[phone]
	if !ok {
		return ErrNotFound
	}
	acct.Status = status
	r.accounts[phone] = acct
	return nil
}

func (r *memoryRepository) UpdatePIN(_ context.Context, phone string, hash []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	acct, ok := r.accounts[phone]
	if !ok {
		return ErrNotFound
	}
	acct.PINHash = hash
	r.accounts[phone] = acct
	return nil
}

func (r *memoryRepository) UpdateRefreshToken(_ context.Context, phone, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	acct, ok := r.accounts[phone]
	if !ok {
		return ErrNotFound
	}
	acct.RefreshToken = token
	r.accounts[phone] = acct
	return nil
}

func (r *memoryRepository) ApplyBalanceDeltas(_ context.Context, first, second BalanceDelta) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Both deltas may target the same account, e.g. an agent cashing out to
	// itself. Apply them sequentially against one record so neither write is
	// lost, matching how the Postgres implementation re-reads the row.
	if first.Phone == second.Phone {
		acct, ok := r.accounts[first.Phone]
		if !ok {
			return ErrNotFound
		}
		for _, delta := range []BalanceDelta{first, second} {
			if acct.Balance+delta.Amount < 0 {
				return ErrInsufficientFunds
			}
			acct.Balance += delta.Amount
		}
		r.accounts[first.Phone] = acct
		return nil
	}

	a, ok := r.accounts[first.Phone]
	if !ok {
		return ErrNotFound
	}
	b, ok := r.accounts[second.Phone]
	if !ok {
		return ErrNotFound
	}

	if a.Balance+first.Amount < 0 || b.Balance+second.Amount < 0 {
		return ErrInsufficientFunds
	}

	a.Balance += first.Amount
	b.Balance += second.Amount
	r.accounts[first.Phone] = a
	r.accounts[second.Phone] = b
	return nil
}
