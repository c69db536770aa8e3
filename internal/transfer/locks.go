package transfer

import "sync"

// accountLocks serializes transfers per account. Both phones involved in an
// operation are locked in lexicographic order, so two operations touching the
// same pair can never deadlock, and the check-and-debit on each account is
// atomic with respect to every other operation in this process.
type accountLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *accountLocks) get(phone string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[phone]
	if !ok {
		m = &sync.Mutex{}
		l.locks[phone] = m
	}
	return m
}

// lockPair acquires both account locks in canonical order and returns the
// release function.
func (l *accountLocks) lockPair(a, b string) func() {
	if b < a {
		a, b = b, a
	}
	first := l.get(a)
	first.Lock()
	if a == b {
		return first.Unlock
	}
	second := l.get(b)
	second.Lock()
	return func() {
		second.Unlock()
		first.Unlock()
	}
}
