package account

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidPIN indicates the supplied PIN did not match the stored hash.
	ErrInvalidPIN = errors.New("invalid PIN")

	// ErrNotAllowed indicates the account is unapproved or blocked by an admin.
	ErrNotAllowed = errors.New("account not approved or blocked")
)

// Service manages account lifecycle: registration, credential checks and
// the admin approval/status switches. Balances are never touched here.
type Service struct {
	repo Repository
}

// NewService creates an account service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// RegisterInput captures data required to open an account.
type RegisterInput struct {
	Name  string
	Email string
	Phone string
	PIN   string
	Role  Role
}

// Register creates an account with a hashed PIN. New accounts start with a
// zero balance and await admin approval before they can transact.
func (s *Service) Register(ctx context.Context, input RegisterInput) (Account, error) {
	if len(input.PIN) != 5 || !allDigits(input.PIN) {
		return Account{}, errors.New("PIN must be 5 digits")
	}
	if input.Phone == "" || !allDigits(input.Phone) {
		return Account{}, errors.New("phone must be a numeric string")
	}
	if !input.Role.Valid() {
		return Account{}, errors.New("unknown account role")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.PIN), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, err
	}

	acct := Account{
		Phone:     input.Phone,
		Name:      input.Name,
		Email:     input.Email,
		Role:      input.Role,
		Approved:  false,
		Status:    StatusActive,
		Balance:   0,
		PINHash:   hash,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, acct); err != nil {
		return Account{}, err
	}

	return acct, nil
}

// Authenticate looks the account up by phone or email and verifies the PIN.
// Unapproved or blocked accounts cannot log in.
func (s *Service) Authenticate(ctx context.Context, phoneOrEmail, pin string) (Account, error) {
	acct, err := s.repo.FindByPhone(ctx, phoneOrEmail)
	if errors.Is(err, ErrNotFound) {
		acct, err = s.repo.FindByEmail(ctx, phoneOrEmail)
	}
	if err != nil {
		return Account{}, err
	}

	if !VerifyPIN(acct, pin) {
		return Account{}, ErrInvalidPIN
	}

	if !acct.CanTransact() {
		return Account{}, ErrNotAllowed
	}

	return acct, nil
}

// ChangePIN verifies the old PIN before storing a hash of the new one.
func (s *Service) ChangePIN(ctx context.Context, phone, oldPIN, newPIN string) error {
	acct, err := s.repo.FindByPhone(ctx, phone)
	if err != nil {
		return err
	}
	if !VerifyPIN(acct, oldPIN) {
		return ErrInvalidPIN
	}
	if len(newPIN) != 5 || !allDigits(newPIN) {
		return errors.New("PIN must be 5 digits")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPIN), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.repo.UpdatePIN(ctx, phone, hash)
}

// Approve records the admin approval decision for an account.
func (s *Service) Approve(ctx context.Context, phone string, approved bool) error {
	return s.repo.UpdateApproval(ctx, phone, approved)
}

// SetStatus blocks or reactivates an account.
func (s *Service) SetStatus(ctx context.Context, phone string, status Status) error {
	if status != StatusActive && status != StatusBlocked {
		return errors.New("unknown account status")
	}
	return s.repo.UpdateStatus(ctx, phone, status)
}

// List returns every registered account.
func (s *Service) List(ctx context.Context) ([]Account, error) {
	return s.repo.List(ctx)
}

// Get fetches a single account by phone.
func (s *Service) Get(ctx context.Context, phone string) (Account, error) {
	return s.repo.FindByPhone(ctx, phone)
}

// VerifyPIN checks a plaintext PIN against the account's stored hash.
func VerifyPIN(acct Account, pin string) bool {
	return bcrypt.CompareHashAndPassword(acct.PINHash, []byte(pin)) == nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
