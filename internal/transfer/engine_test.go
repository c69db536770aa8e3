package transfer

import (
	"context"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/swift-pay/swift_pay/internal/account"
	"github.com/swift-pay/swift_pay/internal/ledger"
	"github.com/swift-pay/swift_pay/internal/logging"
)

const testPIN = "12345"

func newTestEngine(t *testing.T) (*Engine, account.Repository, ledger.Repository) {
	t.Helper()
	accounts := account.NewMemoryRepository()
	transactions := ledger.NewInMemory()
	engine := NewEngine(accounts, transactions, nil, logging.Discard())
	return engine, accounts, transactions
}

func seedAccount(t *testing.T, repo account.Repository, phone string, role account.Role, balance int64) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPIN), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash pin: %v", err)
	}
	err = repo.Create(context.Background(), account.Account{
		Phone:     phone,
		Name:      "acct " + phone,
		Email:     phone + "@example.com",
		Role:      role,
		Approved:  true,
		Status:    account.StatusActive,
		PINHash:   hash,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create account %s: %v", phone, err)
	}
	account.SeedBalance(repo, phone, balance)
}

func balanceOf(t *testing.T, repo account.Repository, phone string) int64 {
	t.Helper()
	acct, err := repo.FindByPhone(context.Background(), phone)
	if err != nil {
		t.Fatalf("find %s: %v", phone, err)
	}
	return acct.Balance
}

func TestSendMoneyConservation(t *testing.T) {
	engine, accounts, _ := newTestEngine(t)
	seedAccount(t, accounts, "01711111111", account.RoleUser, 200)
	seedAccount(t, accounts, "01722222222", account.RoleUser, 0)

	tx, err := engine.SendMoney(context.Background(), Request{
		SenderPhone:   "01711111111",
		ReceiverPhone: "01722222222",
		PIN:           testPIN,
		Amount:        150,
	})
	if err != nil {
		t.Fatalf("send money failed: %v", err)
	}

	if tx.Fee != 5 {
		t.Fatalf("expected fee 5, got %d", tx.Fee)
	}
	if tx.Pending() {
		t.Fatal("send money must be created settled")
	}
	if got := balanceOf(t, accounts, "01711111111"); got != 45 {
		t.Fatalf("expected sender balance 45, got %d", got)
	}
	if got := balanceOf(t, accounts, "01722222222"); got != 150 {
		t.Fatalf("expected receiver balance 150, got %d", got)
	}
	// The pair's total drops by exactly the fee.
	if total := balanceOf(t, accounts, "01711111111") + balanceOf(t, accounts, "01722222222"); total != 195 {
		t.Fatalf("expected combined balance 195, got %d", total)
	}
}

func TestSendMoneyInvalidPIN(t *testing.T) {
	engine, accounts, transactions := newTestEngine(t)
	seedAccount(t, accounts, "01711111111", account.RoleUser, 1_000)
	seedAccount(t, accounts, "01722222222", account.RoleUser, 0)

	_, err := engine.SendMoney(context.Background(), Request{
		SenderPhone:   "01711111111",
		ReceiverPhone: "01722222222",
		PIN:           "99999",
		Amount:        100,
	})
	if !IsKind(err, KindUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	txs, _ := transactions.ListAll(context.Background())
	if len(txs) != 0 {
		t.Fatalf("no transaction should be recorded, got %d", len(txs))
	}
	if got := balanceOf(t, accounts, "01711111111"); got != 1_000 {
		t.Fatalf("balance must be untouched, got %d", got)
	}
}

func TestSendMoneyUnknownReceiver(t *testing.T) {
	engine, accounts, _ := newTestEngine(t)
	seedAccount(t, accounts, "01711111111", account.RoleUser, 1_000)

	_, err := engine.SendMoney(context.Background(), Request{
		SenderPhone:   "01711111111",
		ReceiverPhone: "01799999999",
		PIN:           testPIN,
		Amount:        100,
	})
	if !IsKind(err, KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCashOutPendingInvariant(t *testing.T) {
	engine, accounts, _ := newTestEngine(t)
	seedAccount(t, accounts, "01711111111", account.RoleUser, 2_000)
	seedAccount(t, accounts, "01733333333", account.RoleAgent, 0)

	tx, err := engine.CashOut(context.Background(), Request{
		SenderPhone:   "01711111111",
		ReceiverPhone: "01733333333",
		PIN:           testPIN,
		Amount:        1_000,
	})
	if err != nil {
		t.Fatalf("cash out failed: %v", err)
	}

	if !tx.Pending() {
		t.Fatal("cash out must be created pending")
	}
	if tx.Fee != 15 {
		t.Fatalf("expected fee 15, got %d", tx.Fee)
	}
	// No balance moves until the agent approves.
	if got := balanceOf(t, accounts, "01711111111"); got != 2_000 {
		t.Fatalf("sender balance must be unchanged, got %d", got)
	}
	if got := balanceOf(t, accounts, "01733333333"); got != 0 {
		t.Fatalf("agent balance must be unchanged, got %d", got)
	}
}

func TestApproveCashOut(t *testing.T) {
	engine, accounts, _ := newTestEngine(t)
	seedAccount(t, accounts, "01711111111", account.RoleUser, 2_000)
	seedAccount(t, accounts, "01733333333", account.RoleAgent, 500)

	ctx := context.Background()
	tx, err := engine.CashOut(ctx, Request{
		SenderPhone:   "01711111111",
		ReceiverPhone: "01733333333",
		PIN:           testPIN,
		Amount:        1_000,
	})
	if err != nil {
		t.Fatalf("cash out failed: %v", err)
	}

	settled, err := engine.Approve(ctx, "01733333333", tx.ID)
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if settled.Pending() {
		t.Fatal("approved transaction must be settled")
	}

	// Agent collects amount plus commission; the pair's total is conserved.
	if got := balanceOf(t, accounts, "01711111111"); got != 985 {
		t.Fatalf("expected sender balance 985, got %d", got)
	}
	if got := balanceOf(t, accounts, "01733333333"); got != 1_515 {
		t.Fatalf("expected agent balance 1515, got %d", got)
	}

	// A second approval settles nothing and moves no money.
	_, err = engine.Approve(ctx, "01733333333", tx.ID)
	if !IsKind(err, KindAlreadySettled) {
		t.Fatalf("expected already settled, got %v", err)
	}
	if got := balanceOf(t, accounts, "01733333333"); got != 1_515 {
		t.Fatalf("second approval must not double-credit, got %d", got)
	}
}

func TestApproveCashIn(t *testing.T) {
	engine, accounts, _ := newTestEngine(t)
	seedAccount(t, accounts, "01711111111", account.RoleUser, 0)
	seedAccount(t, accounts, "01733333333", account.RoleAgent, 5_000)

	ctx := context.Background()
	tx, err := engine.CashIn(ctx, Request{
		SenderPhone:   "01711111111",
		ReceiverPhone: "01733333333",
		PIN:           testPIN,
		Amount:        3_000,
	})
	if err != nil {
		t.Fatalf("cash in failed: %v", err)
	}
	if !tx.Pending() || tx.Fee != 0 {
		t.Fatalf("cash in must be pending with zero fee, got %+v", tx)
	}

	if _, err := engine.Approve(ctx, "01733333333", tx.ID); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	if got := balanceOf(t, accounts, "01711111111"); got != 3_000 {
		t.Fatalf("expected user balance 3000, got %d", got)
	}
	if got := balanceOf(t, accounts, "01733333333"); got != 2_000 {
		t.Fatalf("expected agent balance 2000, got %d", got)
	}
}

func TestSelfCashOutConservesBalance(t *testing.T) {
	engine, accounts, _ := newTestEngine(t)
	seedAccount(t, accounts, "01733333333", account.RoleAgent, 1_000)

	// An agent may cash out to itself: the debit and the commission credit
	// land on the same account and must cancel exactly.
	ctx := context.Background()
	tx, err := engine.CashOut(ctx, Request{
		SenderPhone:   "01733333333",
		ReceiverPhone: "01733333333",
		PIN:           testPIN,
		Amount:        100,
	})
	if err != nil {
		t.Fatalf("cash out failed: %v", err)
	}
	if tx.Fee != 2 {
		t.Fatalf("expected fee 2, got %d", tx.Fee)
	}

	settled, err := engine.Approve(ctx, "01733333333", tx.ID)
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if settled.Pending() {
		t.Fatal("approved transaction must be settled")
	}
	if got := balanceOf(t, accounts, "01733333333"); got != 1_000 {
		t.Fatalf("expected balance 1000, got %d", got)
	}
}

func TestApproveRequiresReceivingAgent(t *testing.T) {
	engine, accounts, _ := newTestEngine(t)
	seedAccount(t, accounts, "01711111111", account.RoleUser, 2_000)
	seedAccount(t, accounts, "01733333333", account.RoleAgent, 0)
	seedAccount(t, accounts, "01744444444", account.RoleAgent, 0)

	ctx := context.Background()
	tx, err := engine.CashOut(ctx, Request{
		SenderPhone:   "01711111111",
		ReceiverPhone: "01733333333",
		PIN:           testPIN,
		Amount:        500,
	})
	if err != nil {
		t.Fatalf("cash out failed: %v", err)
	}

	if _, err := engine.Approve(ctx, "01744444444", tx.ID); !IsKind(err, KindUnauthorized) {
		t.Fatalf("expected unauthorized for wrong agent, got %v", err)
	}
	if _, err := engine.Approve(ctx, "01711111111", tx.ID); !IsKind(err, KindUnauthorized) {
		t.Fatalf("expected unauthorized for sender, got %v", err)
	}
}

func TestApproveInsufficientFundsKeepsPending(t *testing.T) {
	engine, accounts, transactions := newTestEngine(t)
	seedAccount(t, accounts, "01711111111", account.RoleUser, 2_000)
	seedAccount(t, accounts, "01722222222", account.RoleUser, 0)
	seedAccount(t, accounts, "01733333333", account.RoleAgent, 0)

	ctx := context.Background()
	tx, err := engine.CashOut(ctx, Request{
		SenderPhone:   "01711111111",
		ReceiverPhone: "01733333333",
		PIN:           testPIN,
		Amount:        1_500,
	})
	if err != nil {
		t.Fatalf("cash out failed: %v", err)
	}

	// Drain the sender between request and approval.
	if _, err := engine.SendMoney(ctx, Request{
		SenderPhone:   "01711111111",
		ReceiverPhone: "01722222222",
		PIN:           testPIN,
		Amount:        1_900,
	}); err != nil {
		t.Fatalf("drain transfer failed: %v", err)
	}

	if _, err := engine.Approve(ctx, "01733333333", tx.ID); !IsKind(err, KindInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	// The request stays pending and can be retried once funds return.
	stored, err := transactions.Get(ctx, tx.ID)
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if !stored.Pending() {
		t.Fatal("transaction must remain pending after a failed approval")
	}

	account.SeedBalance(accounts, "01711111111", 2_000)
	if _, err := engine.Approve(ctx, "01733333333", tx.ID); err != nil {
		t.Fatalf("retried approval failed: %v", err)
	}
}

func TestApproveUnknownTransaction(t *testing.T) {
	engine, accounts, _ := newTestEngine(t)
	seedAccount(t, accounts, "01733333333", account.RoleAgent, 0)

	_, err := engine.Approve(context.Background(), "01733333333", "b2f7f2a8-1111-4e87-9c7b-000000000000")
	if !IsKind(err, KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConcurrentSendMoneyNoOverdraft(t *testing.T) {
	engine, accounts, transactions := newTestEngine(t)
	seedAccount(t, accounts, "01711111111", account.RoleUser, 1_000)
	seedAccount(t, accounts, "01722222222", account.RoleUser, 0)

	// Each transfer costs 205 (200 + fee 5); only four can fit in 1000.
	const workers = 10
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.SendMoney(context.Background(), Request{
				SenderPhone:   "01711111111",
				ReceiverPhone: "01722222222",
				PIN:           testPIN,
				Amount:        200,
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	accepted, rejected := 0, 0
	for err := range results {
		switch {
		case err == nil:
			accepted++
		case IsKind(err, KindInsufficientFunds):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if accepted != 4 || rejected != 6 {
		t.Fatalf("expected 4 accepted / 6 rejected, got %d / %d", accepted, rejected)
	}
	if got := balanceOf(t, accounts, "01711111111"); got != 180 {
		t.Fatalf("expected sender balance 180, got %d", got)
	}
	if got := balanceOf(t, accounts, "01722222222"); got != 800 {
		t.Fatalf("expected receiver balance 800, got %d", got)
	}

	txs, _ := transactions.ListAll(context.Background())
	if len(txs) != 4 {
		t.Fatalf("expected 4 ledger records, got %d", len(txs))
	}
}

func TestConcurrentApprovalSettlesOnce(t *testing.T) {
	engine, accounts, _ := newTestEngine(t)
	seedAccount(t, accounts, "01711111111", account.RoleUser, 5_000)
	seedAccount(t, accounts, "01733333333", account.RoleAgent, 0)

	ctx := context.Background()
	tx, err := engine.CashOut(ctx, Request{
		SenderPhone:   "01711111111",
		ReceiverPhone: "01733333333",
		PIN:           testPIN,
		Amount:        1_000,
	})
	if err != nil {
		t.Fatalf("cash out failed: %v", err)
	}

	const workers = 5
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Approve(ctx, "01733333333", tx.ID)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	settledOK := 0
	for err := range results {
		if err == nil {
			settledOK++
		} else if !IsKind(err, KindAlreadySettled) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if settledOK != 1 {
		t.Fatalf("exactly one approval must succeed, got %d", settledOK)
	}
	if got := balanceOf(t, accounts, "01733333333"); got != 1_015 {
		t.Fatalf("expected agent balance 1015, got %d", got)
	}
}
