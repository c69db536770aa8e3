package ledger

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates no transaction exists with the given id.
	ErrNotFound = errors.New("transaction not found")

	// ErrAlreadySettled indicates a settle attempt on a transaction whose
	// balance effects were already applied. The flip is strictly one-way.
	ErrAlreadySettled = errors.New("transaction already settled")

	// ErrDuplicateID indicates an append reused an existing transaction id.
	ErrDuplicateID = errors.New("duplicate transaction id")
)

// Method identifies the kind of transfer a transaction records.
type Method string

const (
	MethodSendMoney Method = "sendMoney"
	MethodCashOut   Method = "cashOut"
	MethodCashIn    Method = "cashIn"
)

// State tracks the transaction lifecycle. Transactions move from pending to
// settled exactly once and are never deleted once settled.
type State string

const (
	StatePending State = "pending"
	StateSettled State = "settled"
)

// Transaction is one persisted transfer record. Everything except State is
// immutable after creation; Fee is fixed at creation time and never
// recomputed, even if the fee schedule changes before settlement.
type Transaction struct {
	ID            string
	SenderPhone   string
	ReceiverPhone string
	Method        Method
	Amount        int64
	Fee           int64
	State         State
	CreatedAt     time.Time
	SettledAt     *time.Time
}

// Pending reports whether the balance effects are still outstanding.
func (t Transaction) Pending() bool {
	return t.State == StatePending
}

// Involves reports whether the phone is either party of the transaction.
func (t Transaction) Involves(phone string) bool {
	return t.SenderPhone == phone || t.ReceiverPhone == phone
}
