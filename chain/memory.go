package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/eth2030/ethlayer/log"
)

// ErrNonContiguous is returned when an inserted block does not attach to
// the canonical chain.
var ErrNonContiguous = errors.New("chain: block does not extend the canonical chain")

// MemoryChain keeps a canonical chain entirely in memory together with
// the post-state of every block. It implements StateReader and
// CanonStateSubscriptions and is meant for embedding and tests.
type MemoryChain struct {
	mu       sync.RWMutex
	config   *params.ChainConfig
	canon    []common.Hash
	blocks   map[common.Hash]*types.Block
	receipts map[common.Hash]types.Receipts
	states   map[common.Hash]*state.StateDB
	changes  map[common.Hash][]AccountChange
	heads    heads

	events CanonStateBroadcaster
	log    *log.Logger
}

// NewMemoryChain returns an empty chain using config.
func NewMemoryChain(config *params.ChainConfig) *MemoryChain {
	return &MemoryChain{
		config:   config,
		blocks:   make(map[common.Hash]*types.Block),
		receipts: make(map[common.Hash]types.Receipts),
		states:   make(map[common.Hash]*state.StateDB),
		changes:  make(map[common.Hash][]AccountChange),
		log:      log.Default().Module("chain"),
	}
}

// InsertBlock makes block the new head. The block must either extend the
// head or replace a canonical block at the same or a lower height, in
// which case the displaced blocks are reported as a reorg. statedb is the
// post-state of the block and is copied; changes is the block's account
// change set. Subscribers are notified after the chain is updated.
func (c *MemoryChain) InsertBlock(block *types.Block, receipts types.Receipts, statedb *state.StateDB, changes []AccountChange) error {
	number := block.NumberU64()
	deriveReceiptFields(block, receipts)

	c.mu.Lock()
	if number > uint64(len(c.canon)) {
		c.mu.Unlock()
		return fmt.Errorf("%w: have %d blocks, got number %d", ErrNonContiguous, len(c.canon), number)
	}
	if number > 0 && c.canon[number-1] != block.ParentHash() {
		c.mu.Unlock()
		return fmt.Errorf("%w: parent %x unknown", ErrNonContiguous, block.ParentHash())
	}
	var old *Segment
	if number < uint64(len(c.canon)) {
		old = new(Segment)
		for _, h := range c.canon[number:] {
			old.Blocks = append(old.Blocks, c.blocks[h])
			old.Receipts = append(old.Receipts, c.receipts[h])
		}
		c.canon = c.canon[:number]
	}
	hash := block.Hash()
	c.canon = append(c.canon, hash)
	c.blocks[hash] = block
	c.receipts[hash] = receipts
	if statedb != nil {
		c.states[hash] = statedb.Copy()
	}
	c.changes[hash] = changes
	c.heads.latest = number
	c.heads.safe = min(c.heads.safe, number)
	c.heads.finalized = min(c.heads.finalized, number)
	c.mu.Unlock()

	if old != nil {
		c.log.Info("Chain reorganised", "number", number, "dropped", len(old.Blocks), "hash", hash)
	}
	c.events.Send(CanonStateNotification{
		Old: old,
		New: &Segment{Blocks: []*types.Block{block}, Receipts: []types.Receipts{receipts}},
	})
	return nil
}

// SetFinalized moves the safe and finalized markers. Values above the head
// are clamped.
func (c *MemoryChain) SetFinalized(safe, finalized uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.heads.safe = min(safe, c.heads.latest)
	c.heads.finalized = min(finalized, c.heads.latest)
}

// Close ends all canonical-state subscriptions.
func (c *MemoryChain) Close() { c.events.Close() }

func (c *MemoryChain) SubscribeToCanonicalState(ch chan<- CanonStateNotification) event.Subscription {
	return c.events.SubscribeToCanonicalState(ch)
}

func (c *MemoryChain) ChainConfig() *params.ChainConfig { return c.config }

// blockByNumber must be called with the read lock held.
func (c *MemoryChain) blockByNumber(n rpc.BlockNumber) *types.Block {
	if len(c.canon) == 0 {
		return nil
	}
	num, ok := c.heads.resolve(n)
	if !ok {
		return nil
	}
	return c.blocks[c.canon[num]]
}

func (c *MemoryChain) HeaderByNumber(_ context.Context, n rpc.BlockNumber) (*types.Header, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if b := c.blockByNumber(n); b != nil {
		return b.Header(), nil
	}
	return nil, nil
}

func (c *MemoryChain) HeaderByHash(_ context.Context, hash common.Hash) (*types.Header, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if b := c.blocks[hash]; b != nil {
		return b.Header(), nil
	}
	return nil, nil
}

func (c *MemoryChain) BlockByNumber(_ context.Context, n rpc.BlockNumber) (*types.Block, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.blockByNumber(n), nil
}

func (c *MemoryChain) BlockByHash(_ context.Context, hash common.Hash) (*types.Block, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.blocks[hash], nil
}

func (c *MemoryChain) ReceiptsByHash(_ context.Context, hash common.Hash) (types.Receipts, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.receipts[hash], nil
}

func (c *MemoryChain) HeaderByID(ctx context.Context, id rpc.BlockNumberOrHash) (*types.Header, error) {
	b, err := c.BlockByID(ctx, id)
	if b == nil || err != nil {
		return nil, err
	}
	return b.Header(), nil
}

func (c *MemoryChain) BlockByID(_ context.Context, id rpc.BlockNumberOrHash) (*types.Block, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if hash, ok := id.Hash(); ok {
		b := c.blocks[hash]
		if b == nil {
			return nil, nil
		}
		if id.RequireCanonical && !c.isCanonical(b) {
			return nil, fmt.Errorf("%w: %x", ErrNotCanonical, hash)
		}
		return b, nil
	}
	if n, ok := id.Number(); ok {
		return c.blockByNumber(n), nil
	}
	return nil, nil
}

func (c *MemoryChain) isCanonical(b *types.Block) bool {
	n := b.NumberU64()
	return n < uint64(len(c.canon)) && c.canon[n] == b.Hash()
}

func (c *MemoryChain) BasicAccount(_ context.Context, addr common.Address) (*Account, error) {
	c.mu.RLock()
	head := c.blockByNumber(rpc.LatestBlockNumber)
	var st *state.StateDB
	if head != nil {
		st = c.states[head.Hash()]
	}
	c.mu.RUnlock()
	if st == nil {
		return nil, nil
	}
	return accountFromState(st.Copy(), addr), nil
}

func (c *MemoryChain) StateAt(_ context.Context, header *types.Header) (*state.StateDB, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.states[header.Hash()]
	if !ok {
		return nil, fmt.Errorf("%w: block %d (%x)", ErrStateNotFound, header.Number, header.Hash())
	}
	return st.Copy(), nil
}

func (c *MemoryChain) BlockContext(_ context.Context, header *types.Header) (vm.BlockContext, error) {
	return NewBlockContext(header, c.canonicalHash), nil
}

func (c *MemoryChain) canonicalHash(n uint64) common.Hash {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if n < uint64(len(c.canon)) {
		return c.canon[n]
	}
	return common.Hash{}
}

func (c *MemoryChain) AccountChangeSet(_ context.Context, number uint64) ([]AccountChange, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if number >= uint64(len(c.canon)) {
		return nil, nil
	}
	return c.changes[c.canon[number]], nil
}

// accountFromState reads the basic account of addr; nil when absent.
func accountFromState(st *state.StateDB, addr common.Address) *Account {
	if !st.Exist(addr) {
		return nil
	}
	return &Account{
		Nonce:    st.GetNonce(addr),
		Balance:  st.GetBalance(addr).Clone(),
		CodeHash: st.GetCodeHash(addr),
	}
}

// deriveReceiptFields fills the block-position fields that receipts and
// their logs carry when served over RPC.
func deriveReceiptFields(block *types.Block, receipts types.Receipts) {
	txs := block.Transactions()
	var logIndex uint
	for i, r := range receipts {
		r.BlockHash = block.Hash()
		r.BlockNumber = block.Number()
		r.TransactionIndex = uint(i)
		if i < len(txs) {
			r.TxHash = txs[i].Hash()
		}
		for _, l := range r.Logs {
			l.BlockHash = r.BlockHash
			l.BlockNumber = block.NumberU64()
			l.TxHash = r.TxHash
			l.TxIndex = uint(i)
			l.Index = logIndex
			logIndex++
		}
	}
}
