package provider

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"github.com/eth2030/ethlayer/rpctypes"
)

// ErrOffline is the cause of every error returned by Offline.
var ErrOffline = errors.New("no upstream node configured")

// Offline terminates a stack that has no node behind it. Every operation
// fails with a KindBackendGone error, and Root returns nil.
type Offline struct{}

var _ Provider = Offline{}

var errOffline = &TransportError{Kind: KindBackendGone, Err: ErrOffline}

func (Offline) Root() *RootProvider { return nil }

func (Offline) ChainID(context.Context) (*big.Int, error)   { return nil, errOffline }
func (Offline) BlockNumber(context.Context) (uint64, error) { return 0, errOffline }
func (Offline) GasPrice(context.Context) (*big.Int, error)  { return nil, errOffline }

func (Offline) GetBalance(context.Context, common.Address, BlockID) (*uint256.Int, error) {
	return nil, errOffline
}

func (Offline) GetStorageAt(context.Context, common.Address, *uint256.Int, BlockID) (*uint256.Int, error) {
	return nil, errOffline
}

func (Offline) GetCodeAt(context.Context, common.Address, BlockID) ([]byte, error) {
	return nil, errOffline
}

func (Offline) GetTransactionCount(context.Context, common.Address, BlockID) (uint64, error) {
	return 0, errOffline
}

func (Offline) GetBlock(context.Context, BlockID, bool) (*rpctypes.Block, error) {
	return nil, errOffline
}

func (Offline) GetBlockByHash(context.Context, common.Hash, bool) (*rpctypes.Block, error) {
	return nil, errOffline
}

func (Offline) GetTransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	return nil, errOffline
}

func (Offline) GetLogs(context.Context, ethereum.FilterQuery) ([]types.Log, error) {
	return nil, errOffline
}

func (Offline) Call(context.Context, rpctypes.TransactionRequest, BlockID) ([]byte, error) {
	return nil, errOffline
}

func (Offline) CallWithOverrides(context.Context, rpctypes.TransactionRequest, BlockID, rpctypes.StateOverride) ([]byte, error) {
	return nil, errOffline
}

func (Offline) CallMany(context.Context, []rpctypes.TransactionRequest, BlockID) ([]rpctypes.CallOutcome, error) {
	return nil, errOffline
}

func (Offline) EstimateGas(context.Context, rpctypes.TransactionRequest, BlockID) (uint64, error) {
	return 0, errOffline
}

func (Offline) SendRawTransaction(context.Context, []byte) (common.Hash, error) {
	return common.Hash{}, errOffline
}
