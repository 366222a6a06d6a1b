package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/rpc"
)

// NewBlockContext builds the EVM block environment of header. getHash
// serves BLOCKHASH lookups.
func NewBlockContext(header *types.Header, getHash vm.GetHashFunc) vm.BlockContext {
	bctx := vm.BlockContext{
		CanTransfer: core.CanTransfer,
		Transfer:    core.Transfer,
		GetHash:     getHash,
		Coinbase:    header.Coinbase,
		BlockNumber: new(big.Int).Set(header.Number),
		Time:        header.Time,
		Difficulty:  new(big.Int),
		GasLimit:    header.GasLimit,
		BaseFee:     new(big.Int),
		BlobBaseFee: new(big.Int),
	}
	if header.Difficulty != nil {
		bctx.Difficulty.Set(header.Difficulty)
	}
	if header.BaseFee != nil {
		bctx.BaseFee.Set(header.BaseFee)
	}
	// Post-merge headers carry prevrandao in the mix digest.
	if bctx.Difficulty.Sign() == 0 {
		random := header.MixDigest
		bctx.Random = &random
	}
	return bctx
}

// heads is the set of named block positions a reader tracks.
type heads struct {
	latest    uint64
	safe      uint64
	finalized uint64
}

// resolve maps a block number or tag onto a concrete height. ok is false
// for heights above the head.
func (h heads) resolve(n rpc.BlockNumber) (uint64, bool) {
	switch n {
	case rpc.LatestBlockNumber, rpc.PendingBlockNumber:
		return h.latest, true
	case rpc.SafeBlockNumber:
		return h.safe, true
	case rpc.FinalizedBlockNumber:
		return h.finalized, true
	case rpc.EarliestBlockNumber:
		return 0, true
	}
	if n < 0 || uint64(n) > h.latest {
		return 0, false
	}
	return uint64(n), true
}
