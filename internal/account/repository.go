package account

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates no account exists for the given phone or email.
	ErrNotFound = errors.New("account not found")

	// ErrDuplicate indicates the phone number or email is already registered.
	ErrDuplicate = errors.New("account already exists")

	// ErrInsufficientFunds occurs when a conditional balance write would take
	// the debited account below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrConflict indicates a concurrent mutation prevented the write after
	// the bounded number of retries.
	ErrConflict = errors.New("concurrent balance mutation")
)

// BalanceDelta describes one side of a balance mutation. A negative amount
// debits the account, a positive amount credits it.
type BalanceDelta struct {
	Phone  string
	Amount int64
}

// Negate returns the compensating delta.
func (d BalanceDelta) Negate() BalanceDelta {
	return BalanceDelta{Phone: d.Phone, Amount: -d.Amount}
}

// Repository persists accounts.
//
// ApplyBalanceDeltas must apply both deltas atomically: either both balances
// change or neither does, and no account may end up negative. That conditional
// write is the storage-level guard behind the engine's no-overdraft guarantee.
type Repository interface {
	Create(ctx context.Context, acct Account) error
	FindByPhone(ctx context.Context, phone string) (Account, error)
	FindByEmail(ctx context.Context, email string) (Account, error)
	List(ctx context.Context) ([]Account, error)
	UpdateApproval(ctx context.Context, phone string, approved bool) error
	UpdateStatus(ctx context.Context, phone string, status Status) error
	UpdatePIN(ctx context.Context, phone string, hash []byte) error
	UpdateRefreshToken(ctx context.Context, phone, token string) error
	ApplyBalanceDeltas(ctx context.Context, first, second BalanceDelta) error
}
