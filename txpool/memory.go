package txpool

import (
	"cmp"
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
)

// MemoryPool is a minimal in-memory pool. It performs no validation; a
// transaction is pending when its nonce continues the sender's sequence
// starting at the first nonce seen, and queued otherwise.
type MemoryPool struct {
	mu     sync.RWMutex
	bySend map[common.Address][]*types.Transaction
	byHash map[common.Hash]*types.Transaction
	feed   event.FeedOf[core.NewTxsEvent]
	scope  event.SubscriptionScope
}

var _ TransactionPool = (*MemoryPool)(nil)

func NewMemoryPool() *MemoryPool {
	return &MemoryPool{
		bySend: make(map[common.Address][]*types.Transaction),
		byHash: make(map[common.Hash]*types.Transaction),
	}
}

// Add inserts txs sent by from and announces the new ones. Known hashes
// are ignored.
func (p *MemoryPool) Add(from common.Address, txs ...*types.Transaction) {
	var added []*types.Transaction
	p.mu.Lock()
	for _, tx := range txs {
		if _, ok := p.byHash[tx.Hash()]; ok {
			continue
		}
		p.byHash[tx.Hash()] = tx
		list := append(p.bySend[from], tx)
		slices.SortFunc(list, func(a, b *types.Transaction) int {
			return cmp.Compare(a.Nonce(), b.Nonce())
		})
		p.bySend[from] = list
		added = append(added, tx)
	}
	p.mu.Unlock()
	if len(added) > 0 {
		p.feed.Send(core.NewTxsEvent{Txs: added})
	}
}

// Remove drops transactions by hash.
func (p *MemoryPool) Remove(hashes ...common.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, h := range hashes {
		if _, ok := p.byHash[h]; !ok {
			continue
		}
		delete(p.byHash, h)
		for addr, list := range p.bySend {
			list = slices.DeleteFunc(list, func(tx *types.Transaction) bool { return tx.Hash() == h })
			if len(list) == 0 {
				delete(p.bySend, addr)
			} else {
				p.bySend[addr] = list
			}
		}
	}
}

// split partitions a nonce-sorted list into its contiguous prefix and the
// rest.
func split(list []*types.Transaction) (pending, queued []*types.Transaction) {
	for i, tx := range list {
		if i > 0 && tx.Nonce() != list[i-1].Nonce()+1 {
			return list[:i], list[i:]
		}
	}
	return list, nil
}

func (p *MemoryPool) collect(pendingSide bool) map[common.Address][]*types.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[common.Address][]*types.Transaction)
	for addr, list := range p.bySend {
		pending, queued := split(list)
		pick := queued
		if pendingSide {
			pick = pending
		}
		if len(pick) > 0 {
			out[addr] = slices.Clone(pick)
		}
	}
	return out
}

func (p *MemoryPool) Pending() map[common.Address][]*types.Transaction { return p.collect(true) }
func (p *MemoryPool) Queued() map[common.Address][]*types.Transaction  { return p.collect(false) }

func (p *MemoryPool) Get(hash common.Hash) *types.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.byHash[hash]
}

func (p *MemoryPool) Stats() (int, int) {
	var pending, queued int
	for _, list := range p.Pending() {
		pending += len(list)
	}
	for _, list := range p.Queued() {
		queued += len(list)
	}
	return pending, queued
}

func (p *MemoryPool) SubscribeTransactions(ch chan<- core.NewTxsEvent) event.Subscription {
	return p.scope.Track(p.feed.Subscribe(ch))
}

// Close ends all subscriptions.
func (p *MemoryPool) Close() { p.scope.Close() }
