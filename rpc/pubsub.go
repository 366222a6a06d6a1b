// pubsub.go bridges canonical-state and pool events onto per-subscriber
// channels for newHeads, logs and pending transactions.
package rpc

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/eth2030/ethlayer/chain"
	"github.com/eth2030/ethlayer/log"
	"github.com/eth2030/ethlayer/metrics"
	"github.com/eth2030/ethlayer/network"
	"github.com/eth2030/ethlayer/tasks"
	"github.com/eth2030/ethlayer/txpool"
)

// Subscription is a live push subscription. Err delivers at most one error
// and is closed when the subscription ends; after Unsubscribe it is closed
// without an error.
type Subscription struct {
	ID string

	err      chan error
	quit     chan struct{}
	quitOnce sync.Once
}

func newSubscription() *Subscription {
	return &Subscription{
		ID:   newID(),
		err:  make(chan error, 1),
		quit: make(chan struct{}),
	}
}

// Err returns the channel that reports why the subscription ended.
func (s *Subscription) Err() <-chan error { return s.err }

// Unsubscribe stops delivery. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.quitOnce.Do(func() { close(s.quit) })
}

// PubSubAPI serves push subscriptions fed by the canonical-state stream
// and the transaction pool.
type PubSubAPI struct {
	reader  chain.BlockReader
	pool    txpool.TransactionPool
	events  chain.CanonStateSubscriptions
	network network.Network
	spawner tasks.TaskSpawner
	cfg     Config
	log     *log.Logger
}

// NewPubSubAPI creates the subscription handler.
func NewPubSubAPI(reader chain.BlockReader, pool txpool.TransactionPool, events chain.CanonStateSubscriptions, net network.Network, spawner tasks.TaskSpawner, cfg Config) *PubSubAPI {
	return &PubSubAPI{
		reader:  reader,
		pool:    pool,
		events:  events,
		network: net,
		spawner: spawner,
		cfg:     cfg,
		log:     log.Default().Module("rpc.pubsub"),
	}
}

// forward runs the delivery loop of s on the spawner. deliver handles one
// source value and returns false once s was unsubscribed. The loop ends
// when the caller's ctx is done, s is unsubscribed or the source closes.
func forward[T any](api *PubSubAPI, ctx context.Context, s *Subscription, ch <-chan T, src event.Subscription, deliver func(T) bool) {
	metrics.Subscriptions.Inc()
	api.spawner.Spawn(func(taskCtx context.Context) {
		defer metrics.Subscriptions.Dec()
		defer src.Unsubscribe()
		defer close(s.err)
		for {
			select {
			case v := <-ch:
				if !deliver(v) {
					return
				}
			case err := <-src.Err():
				// A nil error means the source shut down cleanly.
				if err == nil {
					err = ErrSubscriptionClosed
				}
				api.log.Debug("Subscription source closed", "id", s.ID, "err", err)
				s.err <- err
				return
			case <-s.quit:
				return
			case <-ctx.Done():
				s.err <- ctx.Err()
				return
			case <-taskCtx.Done():
				s.err <- taskCtx.Err()
				return
			}
		}
	})
}

// send pushes v to out unless s is unsubscribed first.
func send[T any](s *Subscription, out chan<- T, v T) bool {
	select {
	case out <- v:
		return true
	case <-s.quit:
		return false
	}
}

// SubscribeNewHeads delivers the header of every block that becomes
// canonical, in chain order.
func (api *PubSubAPI) SubscribeNewHeads(ctx context.Context, out chan<- *types.Header) (*Subscription, error) {
	ch := make(chan chain.CanonStateNotification, api.cfg.SubscriptionBuffer)
	src := api.events.SubscribeToCanonicalState(ch)
	s := newSubscription()
	forward(api, ctx, s, ch, src, func(n chain.CanonStateNotification) bool {
		seg := n.Committed()
		if seg == nil {
			return true
		}
		for _, b := range seg.Blocks {
			if !send(s, out, b.Header()) {
				return false
			}
		}
		return true
	})
	return s, nil
}

// SubscribeLogs delivers logs matching q from newly canonical blocks. On a
// reorg the logs of reverted blocks are delivered first with Removed set.
func (api *PubSubAPI) SubscribeLogs(ctx context.Context, q ethereum.FilterQuery, out chan<- types.Log) (*Subscription, error) {
	ch := make(chan chain.CanonStateNotification, api.cfg.SubscriptionBuffer)
	src := api.events.SubscribeToCanonicalState(ch)
	s := newSubscription()
	emit := func(seg *chain.Segment, removed bool) bool {
		if seg == nil {
			return true
		}
		for i, b := range seg.Blocks {
			if i >= len(seg.Receipts) || !bloomMatches(b.Bloom(), &q) {
				continue
			}
			for _, l := range filterLogs(seg.Receipts[i], &q, removed) {
				if !send(s, out, l) {
					return false
				}
			}
		}
		return true
	}
	forward(api, ctx, s, ch, src, func(n chain.CanonStateNotification) bool {
		return emit(n.Reverted(), true) && emit(n.Committed(), false)
	})
	return s, nil
}

// SubscribePendingTransactions delivers the hash of every transaction
// entering the pool.
func (api *PubSubAPI) SubscribePendingTransactions(ctx context.Context, out chan<- common.Hash) (*Subscription, error) {
	ch := make(chan core.NewTxsEvent, api.cfg.SubscriptionBuffer)
	src := api.pool.SubscribeTransactions(ch)
	s := newSubscription()
	forward(api, ctx, s, ch, src, func(ev core.NewTxsEvent) bool {
		for _, tx := range ev.Txs {
			if !send(s, out, tx.Hash()) {
				return false
			}
		}
		return true
	})
	return s, nil
}

// SyncStatus reports the node's sync progress, nil when in sync.
func (api *PubSubAPI) SyncStatus(ctx context.Context) (*SyncStatus, error) {
	if !api.network.IsSyncing() {
		return nil, nil
	}
	status := &SyncStatus{Initial: api.network.IsInitiallySyncing()}
	header, err := api.reader.HeaderByNumber(ctx, rpc.LatestBlockNumber)
	if err != nil {
		return nil, err
	}
	if header != nil {
		status.CurrentBlock = hexutil.Uint64(header.Number.Uint64())
	}
	return status, nil
}
