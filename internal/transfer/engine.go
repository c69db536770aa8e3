package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/swift-pay/swift_pay/internal/account"
	"github.com/swift-pay/swift_pay/internal/ledger"
	"github.com/swift-pay/swift_pay/internal/metrics"
	"github.com/swift-pay/swift_pay/internal/notification"
)

const defaultStoreTimeout = 5 * time.Second

// Engine executes transfers as single logical units: it loads the account
// snapshots, asks the validator to approve, persists the ledger record and
// applies balance deltas. Per-account locks, acquired in canonical phone
// order, make the check-and-debit serializable against every concurrent
// operation touching either account.
type Engine struct {
	accounts     account.Repository
	transactions ledger.Repository
	notifier     notification.Notifier
	logger       *slog.Logger
	locks        *accountLocks
	storeTimeout time.Duration
}

// Option customizes engine construction.
type Option func(*Engine)

// WithStoreTimeout bounds every storage call made by the engine.
func WithStoreTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.storeTimeout = d
		}
	}
}

// NewEngine constructs a transfer engine.
func NewEngine(accounts account.Repository, transactions ledger.Repository, notifier notification.Notifier, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		accounts:     accounts,
		transactions: transactions,
		notifier:     notifier,
		logger:       logger,
		locks:        newAccountLocks(),
		storeTimeout: defaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Request carries the caller-supplied parameters of a transfer operation.
// The PIN re-authenticates the sender at the point of money movement, on top
// of the transport-level session the caller already holds.
type Request struct {
	SenderPhone   string
	ReceiverPhone string
	PIN           string
	Amount        int64
}

// SendMoney moves funds between two users immediately: the sender is debited
// amount plus fee, the receiver credited the amount, and the transaction is
// recorded already settled. The fee leaves the two-party system.
func (e *Engine) SendMoney(ctx context.Context, req Request) (ledger.Transaction, error) {
	return e.execute(ctx, ledger.MethodSendMoney, req)
}

// CashOut records a withdrawal request against an agent. Balances stay
// untouched until the agent approves, mirroring the physical cash handover.
func (e *Engine) CashOut(ctx context.Context, req Request) (ledger.Transaction, error) {
	return e.execute(ctx, ledger.MethodCashOut, req)
}

// CashIn records a deposit request against an agent. The user's balance is
// credited only when the agent confirms receipt of the physical cash.
func (e *Engine) CashIn(ctx context.Context, req Request) (ledger.Transaction, error) {
	return e.execute(ctx, ledger.MethodCashIn, req)
}

func (e *Engine) execute(ctx context.Context, method ledger.Method, req Request) (ledger.Transaction, error) {
	if req.SenderPhone == "" || req.ReceiverPhone == "" {
		return ledger.Transaction{}, reject(KindInvalidInput, "sender and receiver phone are required")
	}
	if req.Amount <= 0 {
		return ledger.Transaction{}, reject(KindInvalidInput, "amount must be a positive integer")
	}

	unlock := e.locks.lockPair(req.SenderPhone, req.ReceiverPhone)
	defer unlock()

	tx, err := e.executeLocked(ctx, method, req)
	outcome := "accepted"
	if err != nil {
		outcome = "rejected"
	}
	metrics.TransfersTotal.WithLabelValues(string(method), outcome).Inc()
	return tx, err
}

func (e *Engine) executeLocked(ctx context.Context, method ledger.Method, req Request) (ledger.Transaction, error) {
	sender, err := e.loadAccount(ctx, req.SenderPhone)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if !account.VerifyPIN(sender, req.PIN) {
		return ledger.Transaction{}, reject(KindUnauthorized, "invalid credentials")
	}
	receiver, err := e.loadAccount(ctx, req.ReceiverPhone)
	if err != nil {
		return ledger.Transaction{}, err
	}

	fee, err := Validate(method, sender, receiver, req.Amount)
	if err != nil {
		return ledger.Transaction{}, err
	}

	now := time.Now().UTC()
	tx := ledger.Transaction{
		ID:            uuid.NewString(),
		SenderPhone:   sender.Phone,
		ReceiverPhone: receiver.Phone,
		Method:        method,
		Amount:        req.Amount,
		Fee:           fee,
		State:         ledger.StatePending,
		CreatedAt:     now,
	}
	if method == ledger.MethodSendMoney {
		tx.State = ledger.StateSettled
		tx.SettledAt = &now
	}

	if err := e.withTimeout(ctx, func(ctx context.Context) error {
		return e.transactions.Append(ctx, tx)
	}); err != nil {
		return ledger.Transaction{}, e.storageRejection("append transaction", err)
	}

	if method == ledger.MethodSendMoney {
		if err := e.applyDeltas(ctx,
			account.BalanceDelta{Phone: sender.Phone, Amount: -(req.Amount + fee)},
			account.BalanceDelta{Phone: receiver.Phone, Amount: req.Amount},
		); err != nil {
			e.rollbackRecord(tx.ID)
			return ledger.Transaction{}, err
		}
	}

	e.notifyRequest(ctx, tx)
	return tx, nil
}

// Approve settles a pending cash-in or cash-out. Only the receiving agent may
// approve; both parties are re-validated and the debited side re-checked for
// funds, since balances may have moved since the request was created. On
// insufficient funds the transaction stays pending and can be retried.
func (e *Engine) Approve(ctx context.Context, actorPhone, transactionID string) (ledger.Transaction, error) {
	if actorPhone == "" || transactionID == "" {
		return ledger.Transaction{}, reject(KindInvalidInput, "actor phone and transaction id are required")
	}

	tx, err := e.loadTransaction(ctx, transactionID)
	if err != nil {
		return ledger.Transaction{}, err
	}

	unlock := e.locks.lockPair(tx.SenderPhone, tx.ReceiverPhone)
	defer unlock()

	// Re-read under the lock: another approval may have settled it already.
	tx, err = e.loadTransaction(ctx, transactionID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if !tx.Pending() {
		metrics.ApprovalsTotal.WithLabelValues("rejected").Inc()
		return ledger.Transaction{}, reject(KindAlreadySettled, "transaction %s is already settled", transactionID)
	}

	settled, err := e.approveLocked(ctx, actorPhone, tx)
	outcome := "accepted"
	if err != nil {
		outcome = "rejected"
	}
	metrics.ApprovalsTotal.WithLabelValues(outcome).Inc()
	return settled, err
}

func (e *Engine) approveLocked(ctx context.Context, actorPhone string, tx ledger.Transaction) (ledger.Transaction, error) {
	actor, err := e.loadAccount(ctx, actorPhone)
	if err != nil {
		return ledger.Transaction{}, err
	}
	sender, err := e.loadAccount(ctx, tx.SenderPhone)
	if err != nil {
		return ledger.Transaction{}, err
	}
	receiver, err := e.loadAccount(ctx, tx.ReceiverPhone)
	if err != nil {
		return ledger.Transaction{}, err
	}

	if err := ValidateApproval(actor, sender, receiver, tx); err != nil {
		return ledger.Transaction{}, err
	}

	var debit, credit account.BalanceDelta
	switch tx.Method {
	case ledger.MethodCashOut:
		// Commission policy: the agent collects amount plus fee. The user
		// pays the fee, the agent earns it; the pair's total is conserved.
		if sender.Balance < tx.Amount+tx.Fee {
			return ledger.Transaction{}, reject(KindInsufficientFunds, "sender balance %d cannot cover amount %d plus fee %d", sender.Balance, tx.Amount, tx.Fee)
		}
		debit = account.BalanceDelta{Phone: sender.Phone, Amount: -(tx.Amount + tx.Fee)}
		credit = account.BalanceDelta{Phone: receiver.Phone, Amount: tx.Amount + tx.Fee}

	case ledger.MethodCashIn:
		if receiver.Balance < tx.Amount {
			return ledger.Transaction{}, reject(KindInsufficientFunds, "agent balance %d cannot cover amount %d", receiver.Balance, tx.Amount)
		}
		debit = account.BalanceDelta{Phone: receiver.Phone, Amount: -tx.Amount}
		credit = account.BalanceDelta{Phone: sender.Phone, Amount: tx.Amount}

	default:
		return ledger.Transaction{}, reject(KindInvalidInput, "transaction %s does not require approval", tx.ID)
	}

	// Balances move before the state flip. A process crash between the two
	// writes leaves the transaction pending with its effects applied, and a
	// retried approval would apply them again; recovery from that window is
	// an operator concern, not handled here.
	if err := e.applyDeltas(ctx, debit, credit); err != nil {
		return ledger.Transaction{}, err
	}

	var settled ledger.Transaction
	err = e.withTimeout(ctx, func(ctx context.Context) error {
		var settleErr error
		settled, settleErr = e.transactions.Settle(ctx, tx.ID)
		return settleErr
	})
	if err != nil {
		// The balances moved but the state flip failed. Reverse the deltas so
		// no settled-looking money exists without a settled record.
		if compErr := e.applyDeltas(context.WithoutCancel(ctx), credit.Negate(), debit.Negate()); compErr != nil {
			e.logger.Error("settle compensation failed; transaction requires manual recovery",
				"transaction_id", tx.ID, "settle_error", err, "compensation_error", compErr)
		}
		if errors.Is(err, ledger.ErrAlreadySettled) {
			return ledger.Transaction{}, reject(KindAlreadySettled, "transaction %s is already settled", tx.ID)
		}
		return ledger.Transaction{}, e.storageRejection("settle transaction", err)
	}

	e.notifySettled(ctx, settled)
	return settled, nil
}

func (e *Engine) loadAccount(ctx context.Context, phone string) (account.Account, error) {
	var acct account.Account
	err := e.withTimeout(ctx, func(ctx context.Context) error {
		var findErr error
		acct, findErr = e.accounts.FindByPhone(ctx, phone)
		return findErr
	})
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return account.Account{}, reject(KindNotFound, "no account with phone %s", phone)
		}
		return account.Account{}, e.storageRejection("load account", err)
	}
	return acct, nil
}

func (e *Engine) loadTransaction(ctx context.Context, id string) (ledger.Transaction, error) {
	var tx ledger.Transaction
	err := e.withTimeout(ctx, func(ctx context.Context) error {
		var getErr error
		tx, getErr = e.transactions.Get(ctx, id)
		return getErr
	})
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return ledger.Transaction{}, reject(KindNotFound, "no transaction with id %s", id)
		}
		return ledger.Transaction{}, e.storageRejection("load transaction", err)
	}
	return tx, nil
}

func (e *Engine) applyDeltas(ctx context.Context, first, second account.BalanceDelta) error {
	err := e.withTimeout(ctx, func(ctx context.Context) error {
		return e.accounts.ApplyBalanceDeltas(ctx, first, second)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, account.ErrInsufficientFunds):
		return reject(KindInsufficientFunds, "insufficient balance")
	case errors.Is(err, account.ErrConflict):
		return reject(KindConflict, "concurrent balance mutation, retry the operation")
	case errors.Is(err, account.ErrNotFound):
		return reject(KindNotFound, "account disappeared during transfer")
	default:
		return e.storageRejection("apply balance deltas", err)
	}
}

// rollbackRecord undoes a ledger append whose balance writes failed. It runs
// on a fresh timeout because the operation context may already be dead.
func (e *Engine) rollbackRecord(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), e.storeTimeout)
	defer cancel()
	if err := e.transactions.Discard(ctx, id); err != nil && !errors.Is(err, ledger.ErrNotFound) {
		e.logger.Error("ledger rollback failed; transaction requires manual recovery",
			"transaction_id", id, "error", err)
	}
}

func (e *Engine) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	return fn(ctx)
}

func (e *Engine) storageRejection(op string, err error) error {
	e.logger.Error("storage failure", "op", op, "error", err)
	return Rejection{Kind: KindStorageUnavailable, Message: fmt.Sprintf("%s: storage unavailable, retry later", op)}
}

func (e *Engine) notifyRequest(ctx context.Context, tx ledger.Transaction) {
	if e.notifier == nil {
		return
	}
	var msg notification.Message
	switch tx.Method {
	case ledger.MethodSendMoney:
		msg = notification.Message{
			Kind:        notification.KindMoneyReceived,
			Destination: tx.ReceiverPhone,
			Body:        fmt.Sprintf("You received %d from %s", tx.Amount, tx.SenderPhone),
		}
	case ledger.MethodCashOut:
		msg = notification.Message{
			Kind:        notification.KindCashOutRequested,
			Destination: tx.ReceiverPhone,
			Body:        fmt.Sprintf("Cash out of %d requested by %s", tx.Amount, tx.SenderPhone),
		}
	case ledger.MethodCashIn:
		msg = notification.Message{
			Kind:        notification.KindCashInRequested,
			Destination: tx.ReceiverPhone,
			Body:        fmt.Sprintf("Cash in of %d requested by %s", tx.Amount, tx.SenderPhone),
		}
	}
	_ = e.notifier.Send(ctx, msg)
}

func (e *Engine) notifySettled(ctx context.Context, tx ledger.Transaction) {
	if e.notifier == nil {
		return
	}
	_ = e.notifier.Send(ctx, notification.Message{
		Kind:        notification.KindTransactionSettled,
		Destination: tx.SenderPhone,
		Body:        fmt.Sprintf("Your %s of %d was approved", tx.Method, tx.Amount),
	})
}
