// Package chain defines the read-side capabilities the handler bundle needs
// from a node's chain storage, the canonical-state notification stream, and
// two concrete backends: an in-memory chain and a read-only database view.
package chain

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
)

var (
	// ErrStateNotFound is returned when no state is retained for a block.
	ErrStateNotFound = errors.New("chain: state not available")
	// ErrNotCanonical is returned for hash lookups that require a
	// canonical block but hit a side-chain one.
	ErrNotCanonical = errors.New("chain: block is not canonical")
	// ErrChangeSetsUnavailable is returned by backends that keep no
	// per-block account history.
	ErrChangeSetsUnavailable = errors.New("chain: account change sets unavailable")
)

// BlockReader reads headers, blocks and receipts. Lookups of unknown
// items return nil with a nil error.
type BlockReader interface {
	HeaderByNumber(ctx context.Context, number rpc.BlockNumber) (*types.Header, error)
	HeaderByHash(ctx context.Context, hash common.Hash) (*types.Header, error)
	BlockByNumber(ctx context.Context, number rpc.BlockNumber) (*types.Block, error)
	BlockByHash(ctx context.Context, hash common.Hash) (*types.Block, error)
	ReceiptsByHash(ctx context.Context, hash common.Hash) (types.Receipts, error)
}

// BlockReaderIDExt adds lookups keyed by a number-or-hash block id.
type BlockReaderIDExt interface {
	BlockReader
	HeaderByID(ctx context.Context, id rpc.BlockNumberOrHash) (*types.Header, error)
	BlockByID(ctx context.Context, id rpc.BlockNumberOrHash) (*types.Block, error)
}

// Account is the basic account record: nonce, balance and code hash.
type Account struct {
	Nonce    uint64
	Balance  *uint256.Int
	CodeHash common.Hash
}

// AccountReader reads accounts from the head state. A missing account is
// nil with a nil error.
type AccountReader interface {
	BasicAccount(ctx context.Context, addr common.Address) (*Account, error)
}

// StateProviderFactory opens the state at a block. Each call returns a
// private copy the caller may mutate.
type StateProviderFactory interface {
	StateAt(ctx context.Context, header *types.Header) (*state.StateDB, error)
}

// EVMEnvProvider derives the execution environment of a block.
type EVMEnvProvider interface {
	BlockContext(ctx context.Context, header *types.Header) (vm.BlockContext, error)
}

// ChainSpecProvider exposes the chain configuration.
type ChainSpecProvider interface {
	ChainConfig() *params.ChainConfig
}

// AccountChange records an account touched by a block together with its
// value before the block. Before is nil for accounts the block created.
type AccountChange struct {
	Address common.Address
	Before  *Account
}

// ChangeSetReader reads per-block account change sets.
type ChangeSetReader interface {
	AccountChangeSet(ctx context.Context, number uint64) ([]AccountChange, error)
}

// StateReader is everything the handlers read from chain storage.
type StateReader interface {
	BlockReaderIDExt
	AccountReader
	StateProviderFactory
	EVMEnvProvider
	ChainSpecProvider
	ChangeSetReader
}
