package account

// SeedBalance is a test helper that sets the balance for an account when
// using the in-memory repository.
func SeedBalance(r Repository, phone string, amount int64) {
	if mem, ok := r.(*memoryRepository); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		acct := mem.accounts[phone]
		acct.Balance = amount
		mem.accounts[phone] = acct
	}
}
