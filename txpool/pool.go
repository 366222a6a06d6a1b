// Package txpool defines the read-only transaction pool capability the
// handlers consult, and an inert pool for deployments without one.
package txpool

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
)

// TransactionPool is the view of a transaction pool used for pending
// nonces, pending-transaction filters and subscriptions.
type TransactionPool interface {
	// Pending returns executable transactions grouped by sender, each
	// list sorted by nonce.
	Pending() map[common.Address][]*types.Transaction
	// Queued returns transactions waiting on a nonce gap.
	Queued() map[common.Address][]*types.Transaction
	// Get returns a pooled transaction or nil.
	Get(hash common.Hash) *types.Transaction
	Stats() (pending int, queued int)
	SubscribeTransactions(ch chan<- core.NewTxsEvent) event.Subscription
}

// NoopTransactionPool never holds a transaction.
type NoopTransactionPool struct{}

var _ TransactionPool = NoopTransactionPool{}

func (NoopTransactionPool) Pending() map[common.Address][]*types.Transaction { return nil }
func (NoopTransactionPool) Queued() map[common.Address][]*types.Transaction  { return nil }
func (NoopTransactionPool) Get(common.Hash) *types.Transaction               { return nil }
func (NoopTransactionPool) Stats() (int, int)                                { return 0, 0 }

// SubscribeTransactions returns a subscription that stays idle until it
// is unsubscribed.
func (NoopTransactionPool) SubscribeTransactions(chan<- core.NewTxsEvent) event.Subscription {
	return event.NewSubscription(func(quit <-chan struct{}) error {
		<-quit
		return nil
	})
}

// PendingNonce returns the next nonce for addr given the pool's pending
// set, or base when the pool has nothing for addr.
func PendingNonce(pool TransactionPool, addr common.Address, base uint64) uint64 {
	txs := pool.Pending()[addr]
	if len(txs) == 0 {
		return base
	}
	if next := txs[len(txs)-1].Nonce() + 1; next > base {
		return next
	}
	return base
}
