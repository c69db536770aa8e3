package ledger

import "context"

// Repository is the audit trail of transfers. It is append-only apart from
// the one-way pending-to-settled flip performed by Settle; Discard exists
// solely so the engine can undo a record whose balance writes failed before
// anything became visible to callers.
type Repository interface {
	Append(ctx context.Context, tx Transaction) error
	Get(ctx context.Context, id string) (Transaction, error)

	// Settle flips the transaction to settled and returns the updated record.
	// A second call for the same id returns ErrAlreadySettled.
	Settle(ctx context.Context, id string) (Transaction, error)

	// Discard removes a record during engine rollback, before its balance
	// effects were ever applied.
	Discard(ctx context.Context, id string) error

	// ListAll returns every transaction, most recent first.
	ListAll(ctx context.Context) ([]Transaction, error)

	// ListByPhone returns transactions where the phone is sender or
	// receiver, most recent first.
	ListByPhone(ctx context.Context, phone string) ([]Transaction, error)
}
