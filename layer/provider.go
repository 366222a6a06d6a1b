// provider.go implements the direct-call adapter: a provider.Provider that
// answers reads from an in-process handler bundle and forwards the rest.
package layer

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"

	"github.com/eth2030/ethlayer/log"
	"github.com/eth2030/ethlayer/metrics"
	"github.com/eth2030/ethlayer/provider"
	"github.com/eth2030/ethlayer/rpc"
	"github.com/eth2030/ethlayer/rpctypes"
)

// ErrNilStorageKey is returned by GetStorageAt for a nil slot key.
var ErrNilStorageKey = errors.New("layer: nil storage key")

// DirectProvider answers state, block, log and call queries from a handler
// bundle in the same process and forwards every other operation to the
// wrapped provider unchanged. Handler errors come back as
// *provider.TransportError of kind KindCustom.
type DirectProvider struct {
	inner    provider.Provider
	handlers func() *rpc.EthHandlers
	log      *log.Logger
}

var _ provider.Provider = (*DirectProvider)(nil)

// NewDirectProvider wraps inner with the given handler bundle.
func NewDirectProvider(inner provider.Provider, h *rpc.EthHandlers) *DirectProvider {
	return newDirectProvider(inner, func() *rpc.EthHandlers { return h })
}

func newDirectProvider(inner provider.Provider, handlers func() *rpc.EthHandlers) *DirectProvider {
	return &DirectProvider{inner: inner, handlers: handlers, log: log.Default().Module("layer")}
}

// Handlers returns the bundle queries are answered from, nil once the
// owning layer is closed.
func (p *DirectProvider) Handlers() *rpc.EthHandlers { return p.handlers() }

// Inner returns the wrapped provider.
func (p *DirectProvider) Inner() provider.Provider { return p.inner }

// direct runs fn against the bundle with call metrics and debug logging.
// Errors, including a closed layer, come back as KindCustom.
func direct[V any](p *DirectProvider, op string, fn func(h *rpc.EthHandlers) (V, error)) (V, error) {
	metrics.DirectCalls.Inc()
	timer := metrics.NewTimer(metrics.DirectCallLatency)
	var (
		v   V
		err error
	)
	if h := p.handlers(); h != nil {
		v, err = fn(h)
	} else {
		err = ErrLayerClosed
	}
	elapsed := timer.Stop()
	if err != nil {
		metrics.DirectCallErrors.Inc()
		p.log.Debug("Direct call failed", "op", op, "elapsed", elapsed, "err", err)
		var zero V
		return zero, provider.Custom(err)
	}
	p.log.Debug("Direct call", "op", op, "elapsed", elapsed)
	return v, nil
}

func (p *DirectProvider) forward() provider.Provider {
	metrics.ForwardedCalls.Inc()
	return p.inner
}

func (p *DirectProvider) Root() *provider.RootProvider { return p.inner.Root() }

func (p *DirectProvider) GetBalance(ctx context.Context, addr common.Address, block provider.BlockID) (*uint256.Int, error) {
	return direct(p, "getBalance", func(h *rpc.EthHandlers) (*uint256.Int, error) {
		return h.API.Balance(ctx, addr, &block)
	})
}

// GetStorageAt rejects a nil key rather than guessing a slot.
func (p *DirectProvider) GetStorageAt(ctx context.Context, addr common.Address, key *uint256.Int, block provider.BlockID) (*uint256.Int, error) {
	return direct(p, "getStorageAt", func(h *rpc.EthHandlers) (*uint256.Int, error) {
		if key == nil {
			return nil, ErrNilStorageKey
		}
		val, err := h.API.StorageAt(ctx, addr, common.Hash(key.Bytes32()), &block)
		if err != nil {
			return nil, err
		}
		return new(uint256.Int).SetBytes32(val[:]), nil
	})
}

func (p *DirectProvider) GetCodeAt(ctx context.Context, addr common.Address, block provider.BlockID) ([]byte, error) {
	return direct(p, "getCode", func(h *rpc.EthHandlers) ([]byte, error) {
		code, err := h.API.Code(ctx, addr, &block)
		return code, err
	})
}

// GetBlock takes the hash path for hash ids and the number path otherwise.
func (p *DirectProvider) GetBlock(ctx context.Context, id provider.BlockID, full bool) (*rpctypes.Block, error) {
	if hash, ok := id.Hash(); ok {
		return p.GetBlockByHash(ctx, hash, full)
	}
	n, ok := id.Number()
	if !ok {
		n = gethrpc.LatestBlockNumber
	}
	return direct(p, "getBlockByNumber", func(h *rpc.EthHandlers) (*rpctypes.Block, error) {
		return h.API.BlockByNumber(ctx, n, full)
	})
}

func (p *DirectProvider) GetBlockByHash(ctx context.Context, hash common.Hash, full bool) (*rpctypes.Block, error) {
	return direct(p, "getBlockByHash", func(h *rpc.EthHandlers) (*rpctypes.Block, error) {
		return h.API.BlockByHash(ctx, hash, full)
	})
}

func (p *DirectProvider) GetLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return direct(p, "getLogs", func(h *rpc.EthHandlers) ([]types.Log, error) {
		return h.Filter.Logs(ctx, q)
	})
}

func (p *DirectProvider) Call(ctx context.Context, tx rpctypes.TransactionRequest, block provider.BlockID) ([]byte, error) {
	return direct(p, "call", func(h *rpc.EthHandlers) ([]byte, error) {
		return h.API.Call(ctx, tx, &block, rpc.EVMOverrides{})
	})
}

func (p *DirectProvider) CallWithOverrides(ctx context.Context, tx rpctypes.TransactionRequest, block provider.BlockID, state rpctypes.StateOverride) ([]byte, error) {
	return direct(p, "callWithOverrides", func(h *rpc.EthHandlers) ([]byte, error) {
		return h.API.Call(ctx, tx, &block, rpc.EVMOverrides{State: state})
	})
}

// CallMany runs txs as a single bundle. A failing call is reported in its
// outcome and does not stop the calls after it.
func (p *DirectProvider) CallMany(ctx context.Context, txs []rpctypes.TransactionRequest, block provider.BlockID) ([]rpctypes.CallOutcome, error) {
	return direct(p, "callMany", func(h *rpc.EthHandlers) ([]rpctypes.CallOutcome, error) {
		res, err := h.API.CallMany(ctx, rpctypes.Bundle{Transactions: txs}, &rpctypes.StateContext{BlockNumber: &block}, nil)
		if err != nil {
			return nil, err
		}
		out := make([]rpctypes.CallOutcome, len(res))
		for i, r := range res {
			out[i] = r.Outcome()
		}
		return out, nil
	})
}

func (p *DirectProvider) ChainID(ctx context.Context) (*big.Int, error) {
	return p.forward().ChainID(ctx)
}

func (p *DirectProvider) BlockNumber(ctx context.Context) (uint64, error) {
	return p.forward().BlockNumber(ctx)
}

func (p *DirectProvider) GasPrice(ctx context.Context) (*big.Int, error) {
	return p.forward().GasPrice(ctx)
}

func (p *DirectProvider) GetTransactionCount(ctx context.Context, addr common.Address, block provider.BlockID) (uint64, error) {
	return p.forward().GetTransactionCount(ctx, addr, block)
}

func (p *DirectProvider) GetTransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return p.forward().GetTransactionReceipt(ctx, hash)
}

func (p *DirectProvider) EstimateGas(ctx context.Context, tx rpctypes.TransactionRequest, block provider.BlockID) (uint64, error) {
	return p.forward().EstimateGas(ctx, tx, block)
}

func (p *DirectProvider) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	return p.forward().SendRawTransaction(ctx, raw)
}
