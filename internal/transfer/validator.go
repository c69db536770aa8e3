package transfer

import (
	"github.com/shopspring/decimal"

	"github.com/swift-pay/swift_pay/internal/account"
	"github.com/swift-pay/swift_pay/internal/ledger"
)

const (
	// minSendAmount is the smallest send-money amount, in minor units.
	minSendAmount = 50
	// sendFeeThreshold is the amount above which send-money carries a flat fee.
	sendFeeThreshold = 100
	// sendFee is the flat send-money fee.
	sendFee = 5
)

// cashOutFeeRate is the agent commission rate on cash-out.
var cashOutFeeRate = decimal.New(15, -3) // 0.015

// Validate is the pure decision function for a requested transfer. Given the
// two account snapshots it either approves the operation and returns the fee,
// or returns a Rejection. It never mutates state and is safe to call
// concurrently; the engine is responsible for making the decision stick.
func Validate(method ledger.Method, sender, receiver account.Account, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, reject(KindInvalidInput, "amount must be a positive integer")
	}
	if !sender.CanTransact() {
		return 0, reject(KindUnauthorized, "sender %s is not approved or is blocked", sender.Phone)
	}
	if !receiver.CanTransact() {
		return 0, reject(KindUnauthorized, "receiver %s is not approved or is blocked", receiver.Phone)
	}

	var fee int64
	switch method {
	case ledger.MethodSendMoney:
		if sender.Phone == receiver.Phone {
			return 0, reject(KindInvalidInput, "cannot send money to your own number")
		}
		if sender.Role != account.RoleUser || receiver.Role != account.RoleUser {
			return 0, reject(KindUnauthorized, "send money moves funds between ordinary users only")
		}
		if amount < minSendAmount {
			return 0, reject(KindInvalidInput, "minimum send amount is %d", int64(minSendAmount))
		}
		if amount > sendFeeThreshold {
			fee = sendFee
		}

	case ledger.MethodCashOut:
		if receiver.Role != account.RoleAgent {
			return 0, reject(KindUnauthorized, "%s is not an agent", receiver.Phone)
		}
		fee = CashOutFee(amount)

	case ledger.MethodCashIn:
		if sender.Role != account.RoleUser {
			return 0, reject(KindUnauthorized, "only users can request cash in")
		}
		if receiver.Role != account.RoleAgent {
			return 0, reject(KindUnauthorized, "%s is not an agent", receiver.Phone)
		}

	default:
		return 0, reject(KindInvalidInput, "unknown transfer method %q", method)
	}

	// Cash-in does not debit the ledger balance at request time: the sender
	// hands physical cash to the agent, so there is nothing to reserve.
	if method != ledger.MethodCashIn && sender.Balance < amount+fee {
		return 0, reject(KindInsufficientFunds, "balance %d cannot cover amount %d plus fee %d", sender.Balance, amount, fee)
	}

	return fee, nil
}

// CashOutFee computes the agent commission on a cash-out, rounded up to a
// whole minor unit so the platform never undercollects on fractional fees.
func CashOutFee(amount int64) int64 {
	return decimal.NewFromInt(amount).Mul(cashOutFeeRate).Ceil().IntPart()
}

// ValidateApproval checks that the actor may settle the given pending
// transaction: the actor must be the transaction's receiving agent and, like
// both original parties, must still be approved and active at approval time.
func ValidateApproval(actor, sender, receiver account.Account, tx ledger.Transaction) error {
	if actor.Phone != tx.ReceiverPhone || actor.Role != account.RoleAgent {
		return reject(KindUnauthorized, "only the receiving agent can approve this transaction")
	}
	if !actor.CanTransact() {
		return reject(KindUnauthorized, "agent %s is not approved or is blocked", actor.Phone)
	}
	if !sender.CanTransact() || !receiver.CanTransact() {
		return reject(KindUnauthorized, "a party of the transaction is no longer approved or active")
	}
	return nil
}
