package account

import "time"

// Role partitions accounts by what they may do on the ledger.
type Role string

const (
	RoleUser  Role = "User"
	RoleAgent Role = "Agent"
	RoleAdmin Role = "Admin"
)

// Valid reports whether the role is one of the known account roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAgent, RoleAdmin:
		return true
	default:
		return false
	}
}

// Status is the admin-controlled account state.
type Status string

const (
	StatusActive  Status = "Active"
	StatusBlocked Status = "Blocked"
)

// Account is a wallet holder keyed by phone number. Balance is held in minor
// currency units and is mutated only by the transfer engine.
type Account struct {
	Phone        string
	Name         string
	Email        string
	Role         Role
	Approved     bool
	Status       Status
	Balance      int64
	PINHash      []byte
	RefreshToken string
	CreatedAt    time.Time
}

// CanTransact reports whether the account may take part in a transfer, as
// sender or receiver. Unapproved and blocked accounts are excluded.
func (a Account) CanTransact() bool {
	return a.Approved && a.Status == StatusActive
}
