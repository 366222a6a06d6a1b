// eth_api.go provides the direct-call state query surface the handler
// bundle exposes: balances, storage, code, blocks and gas prices.
package rpc

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"

	"github.com/eth2030/ethlayer/chain"
	"github.com/eth2030/ethlayer/log"
	"github.com/eth2030/ethlayer/network"
	"github.com/eth2030/ethlayer/rpctypes"
	"github.com/eth2030/ethlayer/tasks"
	"github.com/eth2030/ethlayer/txpool"
)

// EthAPI answers eth-namespace state queries and simulated calls directly
// against a StateReader. Methods are safe for concurrent use.
type EthAPI struct {
	reader   chain.StateReader
	pool     txpool.TransactionPool
	network  network.Network
	blocking *tasks.BlockingTaskPool
	oracle   *gasOracle
	cfg      Config
	log      *log.Logger
}

// NewEthAPI creates the state-query handler.
func NewEthAPI(reader chain.StateReader, pool txpool.TransactionPool, net network.Network, blocking *tasks.BlockingTaskPool, cfg Config) *EthAPI {
	return &EthAPI{
		reader:   reader,
		pool:     pool,
		network:  net,
		blocking: blocking,
		oracle:   newGasOracle(reader),
		cfg:      cfg,
		log:      log.Default().Module("rpc.eth"),
	}
}

// latestID is used when the caller passes no block id.
var latestID = rpc.BlockNumberOrHashWithNumber(rpc.LatestBlockNumber)

func orLatest(id *rpc.BlockNumberOrHash) rpc.BlockNumberOrHash {
	if id == nil {
		return latestID
	}
	return *id
}

// ChainID returns the chain id from the chain configuration.
func (api *EthAPI) ChainID() *hexutil.Big {
	return (*hexutil.Big)(api.reader.ChainConfig().ChainID)
}

// ProtocolVersion reports the network protocol version of the node.
func (api *EthAPI) ProtocolVersion(ctx context.Context) (hexutil.Uint, error) {
	status, err := api.network.NetworkStatus(ctx)
	if err != nil {
		return 0, err
	}
	return hexutil.Uint(status.ProtocolVersion), nil
}

// BlockNumber returns the head block number, zero for an empty chain.
func (api *EthAPI) BlockNumber(ctx context.Context) (hexutil.Uint64, error) {
	header, err := api.reader.HeaderByNumber(ctx, rpc.LatestBlockNumber)
	if header == nil || err != nil {
		return 0, err
	}
	return hexutil.Uint64(header.Number.Uint64()), nil
}

// SyncStatus is returned by Syncing while the node is syncing.
type SyncStatus struct {
	CurrentBlock hexutil.Uint64 `json:"currentBlock"`
	Initial      bool           `json:"initialSync"`
}

// Syncing returns nil when the node is in sync.
func (api *EthAPI) Syncing(ctx context.Context) (*SyncStatus, error) {
	if !api.network.IsSyncing() {
		return nil, nil
	}
	current, err := api.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}
	return &SyncStatus{CurrentBlock: current, Initial: api.network.IsInitiallySyncing()}, nil
}

// PeerCount returns the number of connected peers.
func (api *EthAPI) PeerCount() hexutil.Uint {
	return hexutil.Uint(api.network.NumPeers())
}

// header resolves id and fails with ErrHeaderNotFound for unknown blocks.
func (api *EthAPI) header(ctx context.Context, id rpc.BlockNumberOrHash) (*types.Header, error) {
	header, err := api.reader.HeaderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if header == nil {
		return nil, fmt.Errorf("%w: %s", ErrHeaderNotFound, id.String())
	}
	return header, nil
}

func (api *EthAPI) stateAndHeader(ctx context.Context, id rpc.BlockNumberOrHash) (*state.StateDB, *types.Header, error) {
	header, err := api.header(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	st, err := api.reader.StateAt(ctx, header)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStateUnavailable, err)
	}
	return st, header, nil
}

// Balance returns the balance of addr at the given block.
func (api *EthAPI) Balance(ctx context.Context, addr common.Address, id *rpc.BlockNumberOrHash) (*uint256.Int, error) {
	st, _, err := api.stateAndHeader(ctx, orLatest(id))
	if err != nil {
		return nil, err
	}
	return st.GetBalance(addr).Clone(), nil
}

// StorageAt returns the raw value of a storage slot.
func (api *EthAPI) StorageAt(ctx context.Context, addr common.Address, slot common.Hash, id *rpc.BlockNumberOrHash) (common.Hash, error) {
	st, _, err := api.stateAndHeader(ctx, orLatest(id))
	if err != nil {
		return common.Hash{}, err
	}
	return st.GetState(addr, slot), nil
}

// Code returns the contract code of addr, empty for accounts without code.
func (api *EthAPI) Code(ctx context.Context, addr common.Address, id *rpc.BlockNumberOrHash) (hexutil.Bytes, error) {
	st, _, err := api.stateAndHeader(ctx, orLatest(id))
	if err != nil {
		return nil, err
	}
	return st.GetCode(addr), nil
}

// TransactionCount returns the account nonce. For the pending tag the
// pool's queued-up nonces are taken into account.
func (api *EthAPI) TransactionCount(ctx context.Context, addr common.Address, id *rpc.BlockNumberOrHash) (hexutil.Uint64, error) {
	bid := orLatest(id)
	st, _, err := api.stateAndHeader(ctx, bid)
	if err != nil {
		return 0, err
	}
	nonce := st.GetNonce(addr)
	if n, ok := bid.Number(); ok && n == rpc.PendingBlockNumber {
		nonce = txpool.PendingNonce(api.pool, addr, nonce)
	}
	return hexutil.Uint64(nonce), nil
}

// Account returns the basic account of addr, nil when it does not exist.
// Head queries are served by the account reader without opening a state.
func (api *EthAPI) Account(ctx context.Context, addr common.Address, id *rpc.BlockNumberOrHash) (*chain.Account, error) {
	bid := orLatest(id)
	if n, ok := bid.Number(); ok && n == rpc.LatestBlockNumber {
		return api.reader.BasicAccount(ctx, addr)
	}
	st, _, err := api.stateAndHeader(ctx, bid)
	if err != nil {
		return nil, err
	}
	if !st.Exist(addr) {
		return nil, nil
	}
	return &chain.Account{
		Nonce:    st.GetNonce(addr),
		Balance:  st.GetBalance(addr).Clone(),
		CodeHash: st.GetCodeHash(addr),
	}, nil
}

// AccountChanges returns the accounts a canonical block modified, with
// their values before the block.
func (api *EthAPI) AccountChanges(ctx context.Context, number uint64) ([]chain.AccountChange, error) {
	return api.reader.AccountChangeSet(ctx, number)
}

// HeaderByNumber returns a header or nil when unknown.
func (api *EthAPI) HeaderByNumber(ctx context.Context, number rpc.BlockNumber) (*types.Header, error) {
	return api.reader.HeaderByNumber(ctx, number)
}

// BlockByHash returns the RPC view of a block, nil when unknown.
func (api *EthAPI) BlockByHash(ctx context.Context, hash common.Hash, fullTx bool) (*rpctypes.Block, error) {
	block, err := api.reader.BlockByHash(ctx, hash)
	if block == nil || err != nil {
		return nil, err
	}
	return rpctypes.NewBlock(block, fullTx), nil
}

// BlockByNumber returns the RPC view of a block, nil when unknown.
func (api *EthAPI) BlockByNumber(ctx context.Context, number rpc.BlockNumber, fullTx bool) (*rpctypes.Block, error) {
	block, err := api.reader.BlockByNumber(ctx, number)
	if block == nil || err != nil {
		return nil, err
	}
	return rpctypes.NewBlock(block, fullTx), nil
}

// MaxPriorityFeePerGas suggests a priority fee from recent blocks.
func (api *EthAPI) MaxPriorityFeePerGas(ctx context.Context) (*hexutil.Big, error) {
	header, err := api.header(ctx, latestID)
	if err != nil {
		return nil, err
	}
	tip, err := api.oracle.suggestTip(ctx, header)
	if err != nil {
		return nil, err
	}
	return (*hexutil.Big)(tip), nil
}

// GasPrice suggests a legacy gas price: the head base fee plus the
// suggested priority fee.
func (api *EthAPI) GasPrice(ctx context.Context) (*hexutil.Big, error) {
	header, err := api.header(ctx, latestID)
	if err != nil {
		return nil, err
	}
	price, err := api.oracle.suggestTip(ctx, header)
	if err != nil {
		return nil, err
	}
	if header.BaseFee != nil {
		price.Add(price, header.BaseFee)
	}
	return (*hexutil.Big)(price), nil
}

// PoolStatus returns the pending and queued transaction counts.
func (api *EthAPI) PoolStatus() (pending, queued hexutil.Uint) {
	p, q := api.pool.Stats()
	return hexutil.Uint(p), hexutil.Uint(q)
}

// PendingTransaction returns a pooled transaction by hash, nil if absent.
func (api *EthAPI) PendingTransaction(hash common.Hash) *types.Transaction {
	return api.pool.Get(hash)
}
