// filter_api.go serves log queries over block ranges and manages
// installable log, block and pending-transaction filters.
package rpc

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/eth2030/ethlayer/chain"
	"github.com/eth2030/ethlayer/log"
	"github.com/eth2030/ethlayer/metrics"
	"github.com/eth2030/ethlayer/tasks"
	"github.com/eth2030/ethlayer/txpool"
)

type filterKind int

const (
	logsFilter filterKind = iota
	blocksFilter
	pendingTxFilter
)

type installedFilter struct {
	kind     filterKind
	query    ethereum.FilterQuery
	next     uint64 // first block not yet reported
	lastPoll time.Time
	hashes   []common.Hash
	sub      event.Subscription
}

// FilterAPI serves log queries and installable polling filters.
type FilterAPI struct {
	reader  chain.BlockReaderIDExt
	pool    txpool.TransactionPool
	spawner tasks.TaskSpawner
	cfg     Config
	log     *log.Logger

	mu        sync.Mutex
	filters   map[string]*installedFilter
	evictOnce sync.Once
	quit      chan struct{}
	closeOnce sync.Once
}

// NewFilterAPI creates the log-filter handler. The eviction loop for
// installed filters is started on spawner when the first filter is
// installed.
func NewFilterAPI(reader chain.BlockReaderIDExt, pool txpool.TransactionPool, spawner tasks.TaskSpawner, cfg Config) *FilterAPI {
	return &FilterAPI{
		reader:  reader,
		pool:    pool,
		spawner: spawner,
		cfg:     cfg,
		log:     log.Default().Module("rpc.filter"),
		filters: make(map[string]*installedFilter),
		quit:    make(chan struct{}),
	}
}

// Logs returns the logs matching q. Either q.BlockHash or a block range
// is used; nil range bounds mean the head block.
func (api *FilterAPI) Logs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	metrics.LogQueries.Inc()
	if q.BlockHash != nil {
		header, err := api.reader.HeaderByHash(ctx, *q.BlockHash)
		if err != nil {
			return nil, err
		}
		if header == nil {
			return nil, fmt.Errorf("%w: %x", ErrUnknownBlock, *q.BlockHash)
		}
		return api.blockLogs(ctx, header, &q, nil)
	}
	head, err := api.reader.HeaderByNumber(ctx, rpc.LatestBlockNumber)
	if err != nil || head == nil {
		return nil, err
	}
	from, err := api.resolveBound(ctx, q.FromBlock, head.Number.Uint64())
	if err != nil {
		return nil, err
	}
	to, err := api.resolveBound(ctx, q.ToBlock, head.Number.Uint64())
	if err != nil {
		return nil, err
	}
	return api.rangeLogs(ctx, &q, from, to)
}

func (api *FilterAPI) resolveBound(ctx context.Context, b *big.Int, head uint64) (uint64, error) {
	switch {
	case b == nil:
		return head, nil
	case b.Sign() >= 0:
		if !b.IsUint64() || b.Uint64() > math.MaxInt64 {
			return 0, fmt.Errorf("%w: bound %s", ErrInvalidBlockRange, b)
		}
		return b.Uint64(), nil
	}
	if !b.IsInt64() {
		return 0, fmt.Errorf("%w: bound %s", ErrInvalidBlockRange, b)
	}
	header, err := api.reader.HeaderByNumber(ctx, rpc.BlockNumber(b.Int64()))
	if err != nil {
		return 0, err
	}
	if header == nil {
		return 0, fmt.Errorf("%w: %s", ErrHeaderNotFound, rpc.BlockNumber(b.Int64()))
	}
	return header.Number.Uint64(), nil
}

func (api *FilterAPI) rangeLogs(ctx context.Context, q *ethereum.FilterQuery, from, to uint64) ([]types.Log, error) {
	if from > to {
		return nil, fmt.Errorf("%w: from %d > to %d", ErrInvalidBlockRange, from, to)
	}
	if limit := api.cfg.MaxBlocksPerFilter; limit > 0 && to-from+1 > limit {
		return nil, fmt.Errorf("%w: %d blocks > %d", ErrQueryExceedsMaxBlocks, to-from+1, limit)
	}
	var out []types.Log
	for n := from; n <= to; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		header, err := api.reader.HeaderByNumber(ctx, rpc.BlockNumber(n))
		if err != nil {
			return nil, err
		}
		if header == nil {
			break
		}
		if out, err = api.blockLogs(ctx, header, q, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// blockLogs appends the matching logs of one block to out. Blocks whose
// bloom rules out a match are skipped without reading receipts.
func (api *FilterAPI) blockLogs(ctx context.Context, header *types.Header, q *ethereum.FilterQuery, out []types.Log) ([]types.Log, error) {
	if !bloomMatches(header.Bloom, q) {
		return out, nil
	}
	receipts, err := api.reader.ReceiptsByHash(ctx, header.Hash())
	if err != nil {
		return nil, err
	}
	out = append(out, filterLogs(receipts, q, false)...)
	if limit := api.cfg.MaxLogsPerResponse; limit > 0 && len(out) > limit {
		return nil, fmt.Errorf("%w: more than %d logs", ErrQueryExceedsMaxResults, limit)
	}
	return out, nil
}

func (api *FilterAPI) headNumber(ctx context.Context) (uint64, error) {
	head, err := api.reader.HeaderByNumber(ctx, rpc.LatestBlockNumber)
	if err != nil || head == nil {
		return 0, err
	}
	return head.Number.Uint64(), nil
}

func (api *FilterAPI) install(f *installedFilter) (string, error) {
	api.evictOnce.Do(func() { api.spawner.Spawn(api.evictLoop) })
	api.mu.Lock()
	defer api.mu.Unlock()
	if len(api.filters) >= api.cfg.MaxFilters {
		return "", fmt.Errorf("%w: limit %d", ErrTooManyFilters, api.cfg.MaxFilters)
	}
	id := newID()
	f.lastPoll = time.Now()
	api.filters[id] = f
	metrics.FiltersActive.Inc()
	return id, nil
}

// NewFilter installs a log filter. Polls report logs of blocks added after
// installation.
func (api *FilterAPI) NewFilter(ctx context.Context, q ethereum.FilterQuery) (string, error) {
	head, err := api.headNumber(ctx)
	if err != nil {
		return "", err
	}
	return api.install(&installedFilter{kind: logsFilter, query: q, next: head + 1})
}

// NewBlockFilter installs a filter reporting new canonical block hashes.
func (api *FilterAPI) NewBlockFilter(ctx context.Context) (string, error) {
	head, err := api.headNumber(ctx)
	if err != nil {
		return "", err
	}
	return api.install(&installedFilter{kind: blocksFilter, next: head + 1})
}

// NewPendingTransactionFilter installs a filter reporting hashes of
// transactions entering the pool.
func (api *FilterAPI) NewPendingTransactionFilter() (string, error) {
	f := &installedFilter{kind: pendingTxFilter}
	id, err := api.install(f)
	if err != nil {
		return "", err
	}
	ch := make(chan core.NewTxsEvent, api.cfg.SubscriptionBuffer)
	sub := api.pool.SubscribeTransactions(ch)
	api.mu.Lock()
	f.sub = sub
	api.mu.Unlock()
	api.spawner.Spawn(func(ctx context.Context) {
		for {
			select {
			case ev := <-ch:
				api.mu.Lock()
				for _, tx := range ev.Txs {
					f.hashes = append(f.hashes, tx.Hash())
				}
				api.mu.Unlock()
			case <-sub.Err():
				return
			case <-ctx.Done():
				sub.Unsubscribe()
				return
			}
		}
	})
	return id, nil
}

// FilterChanges returns what happened since the last poll: []types.Log for
// log filters, []common.Hash for block and pending-transaction filters.
func (api *FilterAPI) FilterChanges(ctx context.Context, id string) (any, error) {
	api.mu.Lock()
	f, ok := api.filters[id]
	if !ok {
		api.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrFilterNotFound, id)
	}
	f.lastPoll = time.Now()
	if f.kind == pendingTxFilter {
		hashes := f.hashes
		f.hashes = nil
		api.mu.Unlock()
		if hashes == nil {
			hashes = []common.Hash{}
		}
		return hashes, nil
	}
	kind, query, next := f.kind, f.query, f.next
	api.mu.Unlock()

	head, err := api.headNumber(ctx)
	if err != nil {
		return nil, err
	}
	if next > head {
		if kind == blocksFilter {
			return []common.Hash{}, nil
		}
		return []types.Log{}, nil
	}
	var result any
	switch kind {
	case blocksFilter:
		hashes := make([]common.Hash, 0, head-next+1)
		for n := next; n <= head; n++ {
			header, err := api.reader.HeaderByNumber(ctx, rpc.BlockNumber(n))
			if err != nil {
				return nil, err
			}
			if header != nil {
				hashes = append(hashes, header.Hash())
			}
		}
		result = hashes
	default:
		from, to := next, head
		if query.FromBlock != nil && query.FromBlock.Sign() >= 0 && query.FromBlock.Uint64() > from {
			from = query.FromBlock.Uint64()
		}
		if query.ToBlock != nil && query.ToBlock.Sign() >= 0 && query.ToBlock.Uint64() < to {
			to = query.ToBlock.Uint64()
		}
		logs := []types.Log{}
		if from <= to {
			if logs, err = api.rangeLogs(ctx, &query, from, to); err != nil {
				return nil, err
			}
		}
		result = logs
	}
	api.mu.Lock()
	if f, ok := api.filters[id]; ok {
		f.next = head + 1
	}
	api.mu.Unlock()
	return result, nil
}

// FilterLogs returns every log matching an installed log filter's query.
func (api *FilterAPI) FilterLogs(ctx context.Context, id string) ([]types.Log, error) {
	api.mu.Lock()
	f, ok := api.filters[id]
	if ok {
		f.lastPoll = time.Now()
	}
	api.mu.Unlock()
	if !ok || f.kind != logsFilter {
		return nil, fmt.Errorf("%w: %s", ErrFilterNotFound, id)
	}
	return api.Logs(ctx, f.query)
}

// UninstallFilter removes a filter and reports whether it existed.
func (api *FilterAPI) UninstallFilter(id string) bool {
	api.mu.Lock()
	f, ok := api.filters[id]
	delete(api.filters, id)
	api.mu.Unlock()
	if ok {
		metrics.FiltersActive.Dec()
		if f.sub != nil {
			f.sub.Unsubscribe()
		}
	}
	return ok
}

// evictLoop removes filters that were not polled within FilterTimeout.
func (api *FilterAPI) evictLoop(ctx context.Context) {
	ticker := time.NewTicker(max(api.cfg.FilterTimeout/4, 10*time.Millisecond))
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			api.evictStale(time.Now())
		case <-api.quit:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (api *FilterAPI) evictStale(now time.Time) {
	var stale []string
	api.mu.Lock()
	for id, f := range api.filters {
		if now.Sub(f.lastPoll) > api.cfg.FilterTimeout {
			stale = append(stale, id)
		}
	}
	api.mu.Unlock()
	for _, id := range stale {
		if api.UninstallFilter(id) {
			metrics.FiltersEvicted.Inc()
		}
	}
	if len(stale) > 0 {
		api.log.Info("Evicted stale filters", "count", len(stale))
	}
}

// Close stops the eviction loop and uninstalls every filter.
func (api *FilterAPI) Close() {
	api.closeOnce.Do(func() { close(api.quit) })
	api.mu.Lock()
	ids := make([]string, 0, len(api.filters))
	for id := range api.filters {
		ids = append(ids, id)
	}
	api.mu.Unlock()
	for _, id := range ids {
		api.UninstallFilter(id)
	}
}
