package transfer

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"time"

	"github.com/swift-pay/swift_pay/internal/account"
	"github.com/swift-pay/swift_pay/internal/ledger"
)

const (
	agentHistoryLimit = 20
	userHistoryLimit  = 10
)

// QueryService is the read-only, role-filtered view over the ledger.
type QueryService struct {
	accounts     account.Repository
	transactions ledger.Repository
	logger       *slog.Logger
	storeTimeout time.Duration
}

// NewQueryService constructs a query service.
func NewQueryService(accounts account.Repository, transactions ledger.Repository, logger *slog.Logger) *QueryService {
	return &QueryService{accounts: accounts, transactions: transactions, logger: logger, storeTimeout: defaultStoreTimeout}
}

// List returns the actor's transaction history, most recent first. Admins see
// everything; agents see transactions they are party to, capped at 20; users
// see only settled transactions they are party to, capped at 10. An empty
// sequence is a valid outcome; an unknown actor is a NotFound rejection.
func (q *QueryService) List(ctx context.Context, actorPhone string) (iter.Seq[ledger.Transaction], error) {
	ctx, cancel := context.WithTimeout(ctx, q.storeTimeout)
	defer cancel()

	actor, err := q.accounts.FindByPhone(ctx, actorPhone)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, reject(KindNotFound, "no account with phone %s", actorPhone)
		}
		q.logger.Error("storage failure", "op", "load actor", "error", err)
		return nil, reject(KindStorageUnavailable, "storage unavailable, retry later")
	}

	var txs []ledger.Transaction
	switch actor.Role {
	case account.RoleAdmin:
		txs, err = q.transactions.ListAll(ctx)
	default:
		txs, err = q.transactions.ListByPhone(ctx, actor.Phone)
	}
	if err != nil {
		q.logger.Error("storage failure", "op", "list transactions", "error", err)
		return nil, reject(KindStorageUnavailable, "storage unavailable, retry later")
	}

	switch actor.Role {
	case account.RoleAdmin:
		return sequence(txs, 0, nil), nil
	case account.RoleAgent:
		return sequence(txs, agentHistoryLimit, nil), nil
	default:
		// Users never see pending transactions, including their own.
		return sequence(txs, userHistoryLimit, func(tx ledger.Transaction) bool {
			return !tx.Pending()
		}), nil
	}
}

// sequence yields up to limit matching transactions lazily. A limit of zero
// means unlimited.
func sequence(txs []ledger.Transaction, limit int, keep func(ledger.Transaction) bool) iter.Seq[ledger.Transaction] {
	return func(yield func(ledger.Transaction) bool) {
		n := 0
		for _, tx := range txs {
			if keep != nil && !keep(tx) {
				continue
			}
			if !yield(tx) {
				return
			}
			n++
			if limit > 0 && n >= limit {
				return
			}
		}
	}
}
