package account

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const balanceWriteRetries = 3

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed account repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new account record.
func (r *PostgresRepository) Create(ctx context.Context, acct Account) error {
	_, err := r.db.Exec(ctx, `INSERT INTO accounts (phone, name, email, role, approved, status, balance, pin_hash, refresh_token, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		acct.Phone, acct.Name, acct.Email, string(acct.Role), acct.Approved, string(acct.Status),
		acct.Balance, acct.PINHash, acct.RefreshToken, acct.CreatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

const selectColumns = `phone, name, email, role, approved, status, balance, pin_hash, refresh_token, created_at`

func scanAccount(row pgx.Row) (Account, error) {
	var (
		acct      Account
		role      string
		status    string
		createdAt time.Time
	)
	if err := row.Scan(&acct.Phone, &acct.Name, &acct.Email, &role, &acct.Approved, &status,
		&acct.Balance, &acct.PINHash, &acct.RefreshToken, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	acct.Role = Role(role)
	acct.Status = Status(status)
	acct.CreatedAt = createdAt.UTC()
	return acct, nil
}

// FindByPhone fetches an account by phone number.
func (r *PostgresRepository) FindByPhone(ctx context.Context, phone string) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM accounts WHERE phone = $1`, phone)
	return scanAccount(row)
}

// FindByEmail fetches an account by email.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM accounts WHERE email = $1`, email)
	return scanAccount(row)
}

// List returns every account, ordered by phone.
func (r *PostgresRepository) List(ctx context.Context) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+selectColumns+` FROM accounts ORDER BY phone`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acct)
	}
	return out, rows.Err()
}

// UpdateApproval flips the admin approval flag.
func (r *PostgresRepository) UpdateApproval(ctx context.Context, phone string, approved bool) error {
	return r.exec(ctx, `UPDATE accounts SET approved = $1 WHERE phone = $2`, approved, phone)
}

// UpdateStatus sets the account status.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, phone string, status Status) error {
	return r.exec(ctx, `UPDATE accounts SET status = $1 WHERE phone = $2`, string(status), phone)
}

// UpdatePIN stores a new PIN hash.
func (r *PostgresRepository) UpdatePIN(ctx context.Context, phone string, hash []byte) error {
	return r.exec(ctx, `UPDATE accounts SET pin_hash = $1 WHERE phone = $2`, hash, phone)
}

// UpdateRefreshToken stores the rotating refresh token.
func (r *PostgresRepository) UpdateRefreshToken(ctx context.Context, phone, token string) error {
	return r.exec(ctx, `UPDATE accounts SET refresh_token = $1 WHERE phone = $2`, token, phone)
}

func (r *PostgresRepository) exec(ctx context.Context, sql string, args ...any) error {
	cmd, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyBalanceDeltas mutates both balances in a single transaction. Rows are
// locked in canonical phone order so two writers touching the same pair never
// deadlock, and the debit is conditional on the balance staying non-negative.
func (r *PostgresRepository) ApplyBalanceDeltas(ctx context.Context, first, second BalanceDelta) error {
	var lastErr error
	for attempt := 0; attempt < balanceWriteRetries; attempt++ {
		err := r.applyOnce(ctx, first, second)
		if err == nil || !isSerializationFailure(err) {
			return err
		}
		lastErr = err
	}
	return errors.Join(ErrConflict, lastErr)
}

func (r *PostgresRepository) applyOnce(ctx context.Context, first, second BalanceDelta) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	ordered := []BalanceDelta{first, second}
	if ordered[1].Phone < ordered[0].Phone {
		ordered[0], ordered[1] = ordered[1], ordered[0]
	}

	for _, delta := range ordered {
		var balance int64
		if err := tx.QueryRow(ctx, `SELECT balance FROM accounts WHERE phone = $1 FOR UPDATE`, delta.Phone).Scan(&balance); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if balance+delta.Amount < 0 {
			return ErrInsufficientFunds
		}
		if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = balance + $1 WHERE phone = $2`, delta.Amount, delta.Phone); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01")
}
