// Package provider defines the network-provider contract the layer stack
// is built on, and the JSON-RPC transport root that terminates a stack.
package provider

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"

	"github.com/eth2030/ethlayer/rpctypes"
)

// BlockID selects a block by number, tag or hash.
type BlockID = rpc.BlockNumberOrHash

// Latest selects the head block.
var Latest = NumberID(rpc.LatestBlockNumber)

// NumberID selects a block by number or tag.
func NumberID(n rpc.BlockNumber) BlockID { return rpc.BlockNumberOrHashWithNumber(n) }

// HashID selects a block by hash.
func HashID(hash common.Hash) BlockID { return rpc.BlockNumberOrHashWithHash(hash, false) }

// Provider is the client-side view of an Ethereum node. Lookups of unknown
// blocks return nil with a nil error.
type Provider interface {
	// Root returns the transport root at the bottom of the stack.
	Root() *RootProvider

	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	GasPrice(ctx context.Context) (*big.Int, error)

	GetBalance(ctx context.Context, addr common.Address, block BlockID) (*uint256.Int, error)
	GetStorageAt(ctx context.Context, addr common.Address, key *uint256.Int, block BlockID) (*uint256.Int, error)
	GetCodeAt(ctx context.Context, addr common.Address, block BlockID) ([]byte, error)
	GetTransactionCount(ctx context.Context, addr common.Address, block BlockID) (uint64, error)

	GetBlock(ctx context.Context, id BlockID, full bool) (*rpctypes.Block, error)
	GetBlockByHash(ctx context.Context, hash common.Hash, full bool) (*rpctypes.Block, error)
	GetTransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	GetLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)

	Call(ctx context.Context, tx rpctypes.TransactionRequest, block BlockID) ([]byte, error)
	CallWithOverrides(ctx context.Context, tx rpctypes.TransactionRequest, block BlockID, state rpctypes.StateOverride) ([]byte, error)
	// CallMany runs txs in order on the state of block; each call sees the
	// effects of the previous ones.
	CallMany(ctx context.Context, txs []rpctypes.TransactionRequest, block BlockID) ([]rpctypes.CallOutcome, error)
	EstimateGas(ctx context.Context, tx rpctypes.TransactionRequest, block BlockID) (uint64, error)

	SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error)
}

// Layer wraps a provider in another one.
type Layer interface {
	Layer(inner Provider) Provider
}

// Stack applies layers to inner in order; the last layer is outermost.
func Stack(inner Provider, layers ...Layer) Provider {
	p := inner
	for _, l := range layers {
		p = l.Layer(p)
	}
	return p
}
