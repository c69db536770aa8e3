package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository persists transactions in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository constructs a Postgres-backed ledger.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Append inserts a transaction record.
func (r *PostgresRepository) Append(ctx context.Context, tx Transaction) error {
	id, err := uuid.Parse(tx.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO transactions (id, sender_phone, receiver_phone, method, amount, fee, state, created_at, settled_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, tx.SenderPhone, tx.ReceiverPhone, string(tx.Method), tx.Amount, tx.Fee, string(tx.State), tx.CreatedAt.UTC(), settledAtUTC(tx.SettledAt))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateID
		}
		return err
	}
	return nil
}

const txColumns = `id, sender_phone, receiver_phone, method, amount, fee, state, created_at, settled_at`

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		tx        Transaction
		id        uuid.UUID
		method    string
		state     string
		createdAt time.Time
		settledAt *time.Time
	)
	if err := row.Scan(&id, &tx.SenderPhone, &tx.ReceiverPhone, &method, &tx.Amount, &tx.Fee, &state, &createdAt, &settledAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrNotFound
		}
		return Transaction{}, err
	}
	tx.ID = id.String()
	tx.Method = Method(method)
	tx.State = State(state)
	tx.CreatedAt = createdAt.UTC()
	if settledAt != nil {
		t := settledAt.UTC()
		tx.SettledAt = &t
	}
	return tx, nil
}

// Get fetches a transaction by id.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Transaction, error) {
	txID, err := uuid.Parse(id)
	if err != nil {
		return Transaction{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = $1`, txID)
	return scanTransaction(row)
}

// Settle flips a pending transaction to settled. The WHERE clause on state
// makes the flip atomic: a concurrent or repeated settle affects zero rows.
func (r *PostgresRepository) Settle(ctx context.Context, id string) (Transaction, error) {
	txID, err := uuid.Parse(id)
	if err != nil {
		return Transaction{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `UPDATE transactions SET state = $1, settled_at = $2
        WHERE id = $3 AND state = $4
        RETURNING `+txColumns,
		string(StateSettled), time.Now().UTC(), txID, string(StatePending))
	tx, err := scanTransaction(row)
	if errors.Is(err, ErrNotFound) {
		// Distinguish a missing record from an already settled one.
		existing, getErr := r.Get(ctx, id)
		if getErr != nil {
			return Transaction{}, getErr
		}
		if existing.State == StateSettled {
			return Transaction{}, ErrAlreadySettled
		}
		return Transaction{}, err
	}
	return tx, err
}

// Discard removes a record whose balance effects were never applied.
func (r *PostgresRepository) Discard(ctx context.Context, id string) error {
	txID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, txID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAll returns every transaction, most recent first.
func (r *PostgresRepository) ListAll(ctx context.Context) ([]Transaction, error) {
	rows, err := r.db.Query(ctx, `SELECT `+txColumns+` FROM transactions ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

// ListByPhone returns transactions involving the phone, most recent first.
func (r *PostgresRepository) ListByPhone(ctx context.Context, phone string) ([]Transaction, error) {
	rows, err := r.db.Query(ctx, `SELECT `+txColumns+` FROM transactions
        WHERE sender_phone = $1 OR receiver_phone = $1
        ORDER BY created_at DESC, id DESC`, phone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func collect(rows pgx.Rows) ([]Transaction, error) {
	var out []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func settledAtUTC(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
