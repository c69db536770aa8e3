package transfer

import (
	"testing"

	"github.com/swift-pay/swift_pay/internal/account"
	"github.com/swift-pay/swift_pay/internal/ledger"
)

func testAccount(phone string, role account.Role, balance int64) account.Account {
	return account.Account{
		Phone:    phone,
		Role:     role,
		Approved: true,
		Status:   account.StatusActive,
		Balance:  balance,
	}
}

func TestValidateSendMoneyFeeSchedule(t *testing.T) {
	sender := testAccount("01711111111", account.RoleUser, 10_000)
	receiver := testAccount("01722222222", account.RoleUser, 0)

	cases := []struct {
		amount int64
		fee    int64
	}{
		{50, 0},
		{100, 0},
		{101, 5},
		{150, 5},
		{5_000, 5},
	}
	for _, tc := range cases {
		fee, err := Validate(ledger.MethodSendMoney, sender, receiver, tc.amount)
		if err != nil {
			t.Fatalf("amount %d: unexpected rejection: %v", tc.amount, err)
		}
		if fee != tc.fee {
			t.Fatalf("amount %d: expected fee %d, got %d", tc.amount, tc.fee, fee)
		}
	}
}

func TestValidateSendMoneyRejections(t *testing.T) {
	sender := testAccount("01711111111", account.RoleUser, 100)
	receiver := testAccount("01722222222", account.RoleUser, 0)

	cases := []struct {
		name     string
		mutate   func(s, r *account.Account)
		amount   int64
		wantKind Kind
	}{
		{"non-positive amount", nil, 0, KindInvalidInput},
		{"below minimum", nil, 49, KindInvalidInput},
		{"self transfer", func(s, r *account.Account) { r.Phone = s.Phone }, 50, KindInvalidInput},
		{"unapproved sender", func(s, r *account.Account) { s.Approved = false }, 50, KindUnauthorized},
		{"blocked receiver", func(s, r *account.Account) { r.Status = account.StatusBlocked }, 50, KindUnauthorized},
		{"agent receiver", func(s, r *account.Account) { r.Role = account.RoleAgent }, 50, KindUnauthorized},
		{"agent sender", func(s, r *account.Account) { s.Role = account.RoleAgent }, 50, KindUnauthorized},
		{"insufficient funds", nil, 150, KindInsufficientFunds},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, r := sender, receiver
			if tc.mutate != nil {
				tc.mutate(&s, &r)
			}
			_, err := Validate(ledger.MethodSendMoney, s, r, tc.amount)
			if !IsKind(err, tc.wantKind) {
				t.Fatalf("expected %s rejection, got %v", tc.wantKind, err)
			}
		})
	}
}

func TestValidateCashOutFee(t *testing.T) {
	cases := []struct {
		amount int64
		fee    int64
	}{
		{1_000, 15},
		{100, 2},  // 1.5 rounds up
		{200, 3},  // 3.0 exact
		{1, 1},    // 0.015 rounds up
		{10_000, 150},
	}
	for _, tc := range cases {
		if got := CashOutFee(tc.amount); got != tc.fee {
			t.Fatalf("amount %d: expected fee %d, got %d", tc.amount, tc.fee, got)
		}
	}

	sender := testAccount("01711111111", account.RoleUser, 1_015)
	agent := testAccount("01733333333", account.RoleAgent, 0)

	fee, err := Validate(ledger.MethodCashOut, sender, agent, 1_000)
	if err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
	if fee != 15 {
		t.Fatalf("expected fee 15, got %d", fee)
	}

	// Balance must cover amount plus fee.
	if _, err := Validate(ledger.MethodCashOut, sender, agent, 1_001); !IsKind(err, KindInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	// Receiver must be an agent.
	user := testAccount("01744444444", account.RoleUser, 0)
	if _, err := Validate(ledger.MethodCashOut, sender, user, 100); !IsKind(err, KindUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestValidateCashIn(t *testing.T) {
	sender := testAccount("01711111111", account.RoleUser, 0)
	agent := testAccount("01733333333", account.RoleAgent, 0)

	// No sender balance requirement: the deposit is physical cash.
	fee, err := Validate(ledger.MethodCashIn, sender, agent, 5_000)
	if err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
	if fee != 0 {
		t.Fatalf("cash in carries no fee, got %d", fee)
	}

	agentSender := testAccount("01755555555", account.RoleAgent, 0)
	if _, err := Validate(ledger.MethodCashIn, agentSender, agent, 100); !IsKind(err, KindUnauthorized) {
		t.Fatalf("expected unauthorized for agent sender, got %v", err)
	}
}

func TestValidateApproval(t *testing.T) {
	sender := testAccount("01711111111", account.RoleUser, 2_000)
	agent := testAccount("01733333333", account.RoleAgent, 500)
	tx := ledger.Transaction{
		ID:            "tx-1",
		SenderPhone:   sender.Phone,
		ReceiverPhone: agent.Phone,
		Method:        ledger.MethodCashOut,
		Amount:        1_000,
		Fee:           15,
		State:         ledger.StatePending,
	}

	if err := ValidateApproval(agent, sender, agent, tx); err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}

	// Only the named receiving agent may approve.
	other := testAccount("01766666666", account.RoleAgent, 0)
	if err := ValidateApproval(other, sender, agent, tx); !IsKind(err, KindUnauthorized) {
		t.Fatalf("expected unauthorized for wrong agent, got %v", err)
	}

	// A user cannot approve even if named as receiver.
	userReceiver := agent
	userReceiver.Role = account.RoleUser
	if err := ValidateApproval(userReceiver, sender, userReceiver, tx); !IsKind(err, KindUnauthorized) {
		t.Fatalf("expected unauthorized for user actor, got %v", err)
	}

	// Parties are re-validated at approval time.
	blockedSender := sender
	blockedSender.Status = account.StatusBlocked
	if err := ValidateApproval(agent, blockedSender, agent, tx); !IsKind(err, KindUnauthorized) {
		t.Fatalf("expected unauthorized for blocked sender, got %v", err)
	}
}
