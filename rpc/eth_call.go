// eth_call.go runs simulated calls, call bundles and gas estimation on a
// private copy of the block state, bounded by the configured gas cap and
// EVM timeout.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/eth2030/ethlayer/metrics"
	"github.com/eth2030/ethlayer/rpctypes"
	"github.com/eth2030/ethlayer/tasks"
)

// maxGasEstimateIterations caps the binary search in EstimateGas.
const maxGasEstimateIterations = 64

// EVMOverrides bundles the state and block overrides of a call. The zero
// value overrides nothing.
type EVMOverrides struct {
	State rpctypes.StateOverride
	Block *rpctypes.BlockOverrides
}

// Call executes args against the state of the given block without
// creating a transaction and returns the call output. A revert is
// reported as *RevertError.
func (api *EthAPI) Call(ctx context.Context, args rpctypes.TransactionRequest, id *rpc.BlockNumberOrHash, overrides EVMOverrides) (hexutil.Bytes, error) {
	st, header, err := api.stateAndHeader(ctx, orLatest(id))
	if err != nil {
		return nil, err
	}
	res, err := tasks.Run(ctx, api.blocking, func() (*core.ExecutionResult, error) {
		bctx, err := api.prepare(ctx, st, header, overrides)
		if err != nil {
			return nil, err
		}
		return api.execute(ctx, st, bctx, &args)
	})
	if err != nil {
		return nil, err
	}
	if res.Failed() {
		return nil, executionError(res)
	}
	return res.Return(), nil
}

// CallMany runs the bundle's calls in order on one state, so each call
// sees the effects of the ones before it. A failing call is reported in
// its own response and does not stop the rest. stateCtx selects the block
// and optionally a transaction position inside it to start from.
func (api *EthAPI) CallMany(ctx context.Context, bundle rpctypes.Bundle, stateCtx *rpctypes.StateContext, overrides rpctypes.StateOverride) ([]rpctypes.EthCallResponse, error) {
	if len(bundle.Transactions) == 0 {
		return nil, ErrEmptyBundle
	}
	if limit := api.cfg.MaxCallManyTxs; limit > 0 && len(bundle.Transactions) > limit {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyCalls, len(bundle.Transactions), limit)
	}
	id := latestID
	var txIndex *int
	if stateCtx != nil {
		if stateCtx.BlockNumber != nil {
			id = *stateCtx.BlockNumber
		}
		txIndex = stateCtx.TransactionIndex
	}
	header, err := api.header(ctx, id)
	if err != nil {
		return nil, err
	}

	return tasks.Run(ctx, api.blocking, func() ([]rpctypes.EthCallResponse, error) {
		st, err := api.stateAtIndex(ctx, header, txIndex)
		if err != nil {
			return nil, err
		}
		bctx, err := api.prepare(ctx, st, header, EVMOverrides{State: overrides, Block: bundle.BlockOverride})
		if err != nil {
			return nil, err
		}
		results := make([]rpctypes.EthCallResponse, len(bundle.Transactions))
		for i := range bundle.Transactions {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			res, err := api.execute(ctx, st, bctx, &bundle.Transactions[i])
			if err != nil && ctx.Err() != nil {
				return nil, ctx.Err()
			}
			switch {
			case err != nil:
				results[i].Error = err.Error()
			case res.Failed():
				results[i].Error = executionError(res).Error()
			default:
				results[i].Value = res.Return()
			}
			st.Finalise(true)
		}
		return results, nil
	})
}

// stateAtIndex returns the state of header's block, or, when index is set,
// the state after the block's first index transactions.
func (api *EthAPI) stateAtIndex(ctx context.Context, header *types.Header, index *int) (*state.StateDB, error) {
	if index == nil {
		st, err := api.reader.StateAt(ctx, header)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStateUnavailable, err)
		}
		return st, nil
	}
	block, err := api.reader.BlockByHash(ctx, header.Hash())
	if err != nil {
		return nil, err
	}
	if block == nil {
		return nil, fmt.Errorf("%w: %x", ErrUnknownBlock, header.Hash())
	}
	txs := block.Transactions()
	if *index < 0 || *index > len(txs) {
		return nil, fmt.Errorf("%w: %d (block has %d)", ErrTransactionIndexOutOfRange, *index, len(txs))
	}
	parent, err := api.reader.HeaderByHash(ctx, header.ParentHash)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, fmt.Errorf("%w: parent of block %d", ErrHeaderNotFound, header.Number)
	}
	st, err := api.reader.StateAt(ctx, parent)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStateUnavailable, err)
	}
	bctx, err := api.reader.BlockContext(ctx, header)
	if err != nil {
		return nil, err
	}
	config := api.reader.ChainConfig()
	signer := types.MakeSigner(config, header.Number, header.Time)
	gp := new(core.GasPool).AddGas(header.GasLimit)
	for i, tx := range txs[:*index] {
		msg, err := core.TransactionToMessage(tx, signer, header.BaseFee)
		if err != nil {
			return nil, fmt.Errorf("replay tx %d: %w", i, err)
		}
		st.SetTxContext(tx.Hash(), i)
		evm := vm.NewEVM(bctx, st, config, vm.Config{})
		evm.SetTxContext(core.NewEVMTxContext(msg))
		if _, err := core.ApplyMessage(evm, msg, gp); err != nil {
			return nil, fmt.Errorf("replay tx %d (%x): %w", i, tx.Hash(), err)
		}
		st.Finalise(config.IsByzantium(header.Number))
	}
	return st, nil
}

// prepare applies overrides to st and returns the block environment to
// execute in.
func (api *EthAPI) prepare(ctx context.Context, st *state.StateDB, header *types.Header, ov EVMOverrides) (vm.BlockContext, error) {
	bctx, err := api.reader.BlockContext(ctx, header)
	if err != nil {
		return vm.BlockContext{}, err
	}
	if err := applyStateOverrides(st, ov.State); err != nil {
		return vm.BlockContext{}, err
	}
	applyBlockOverrides(&bctx, ov.Block)
	return bctx, nil
}

// execute runs one message. It is bounded by the configured EVM timeout
// and by ctx.
func (api *EthAPI) execute(ctx context.Context, st *state.StateDB, bctx vm.BlockContext, args *rpctypes.TransactionRequest) (*core.ExecutionResult, error) {
	msg, err := toMessage(args, api.cfg.GasCap, bctx.BaseFee)
	if err != nil {
		return nil, err
	}
	var cancel context.CancelFunc
	if api.cfg.EVMTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, api.cfg.EVMTimeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	evm := vm.NewEVM(bctx, st, api.reader.ChainConfig(), vm.Config{NoBaseFee: true})
	go func() {
		<-ctx.Done()
		evm.Cancel()
	}()
	evm.SetTxContext(core.NewEVMTxContext(msg))
	res, err := core.ApplyMessage(evm, msg, new(core.GasPool).AddGas(math.MaxUint64))
	if evm.Cancelled() {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			metrics.EVMTimeouts.Inc()
			api.log.Warn("Call aborted", "timeout", api.cfg.EVMTimeout)
			return nil, fmt.Errorf("%w after %s", ErrEVMTimeout, api.cfg.EVMTimeout)
		}
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, fmt.Errorf("err: %w (supplied gas %d)", err, msg.GasLimit)
	}
	metrics.EVMExecutions.Inc()
	metrics.EVMGasUsed.Add(int64(res.UsedGas))
	return res, nil
}

// toMessage converts call arguments into a message. Gas defaults to the
// cap; fees default to zero, which the EVM accepts with NoBaseFee.
func toMessage(args *rpctypes.TransactionRequest, gasCap uint64, baseFee *big.Int) (*core.Message, error) {
	data, err := args.CallData()
	if err != nil {
		return nil, err
	}
	gas := gasCap
	if gas == 0 {
		gas = math.MaxUint64 / 2
	}
	if args.Gas != nil && uint64(*args.Gas) < gas {
		gas = uint64(*args.Gas)
	}
	var (
		gasPrice  = new(big.Int)
		gasFeeCap = new(big.Int)
		gasTipCap = new(big.Int)
	)
	switch {
	case args.GasPrice != nil:
		gasPrice = args.GasPrice.ToInt()
		gasFeeCap, gasTipCap = gasPrice, gasPrice
	case args.MaxFeePerGas != nil || args.MaxPriorityFeePerGas != nil:
		if args.MaxFeePerGas != nil {
			gasFeeCap = args.MaxFeePerGas.ToInt()
		}
		if args.MaxPriorityFeePerGas != nil {
			gasTipCap = args.MaxPriorityFeePerGas.ToInt()
		}
		if gasFeeCap.Sign() > 0 || gasTipCap.Sign() > 0 {
			gasPrice = new(big.Int).Add(gasTipCap, baseFeeOrZero(baseFee))
			if gasPrice.Cmp(gasFeeCap) > 0 {
				gasPrice = gasFeeCap
			}
		}
	}
	var accessList types.AccessList
	if args.AccessList != nil {
		accessList = *args.AccessList
	}
	var nonce uint64
	if args.Nonce != nil {
		nonce = uint64(*args.Nonce)
	}
	return &core.Message{
		From:                  args.Sender(),
		To:                    args.To,
		Nonce:                 nonce,
		Value:                 args.ValueOrZero(),
		GasLimit:              gas,
		GasPrice:              gasPrice,
		GasFeeCap:             gasFeeCap,
		GasTipCap:             gasTipCap,
		Data:                  data,
		AccessList:            accessList,
		SkipNonceChecks:       true,
		SkipTransactionChecks: true,
	}, nil
}

func baseFeeOrZero(b *big.Int) *big.Int {
	if b == nil {
		return new(big.Int)
	}
	return b
}

// EstimateGas finds the smallest gas limit with which args succeeds, by
// binary search between the intrinsic floor and the cap.
func (api *EthAPI) EstimateGas(ctx context.Context, args rpctypes.TransactionRequest, id *rpc.BlockNumberOrHash, overrides rpctypes.StateOverride) (hexutil.Uint64, error) {
	st, header, err := api.stateAndHeader(ctx, orLatest(id))
	if err != nil {
		return 0, err
	}
	return tasks.Run(ctx, api.blocking, func() (hexutil.Uint64, error) {
		bctx, err := api.prepare(ctx, st, header, EVMOverrides{State: overrides})
		if err != nil {
			return 0, err
		}
		hi := header.GasLimit
		if args.Gas != nil && uint64(*args.Gas) >= params.TxGas {
			hi = uint64(*args.Gas)
		}
		if api.cfg.GasCap != 0 && hi > api.cfg.GasCap {
			hi = api.cfg.GasCap
		}
		lo := params.TxGas - 1

		// failed reports whether the call fails at the given gas limit.
		failed := func(gas uint64) (bool, *core.ExecutionResult, error) {
			trial := args
			g := hexutil.Uint64(gas)
			trial.Gas = &g
			res, err := api.execute(ctx, st.Copy(), bctx, &trial)
			if err != nil {
				if errors.Is(err, core.ErrIntrinsicGas) {
					return true, nil, nil
				}
				return true, nil, err
			}
			return res.Failed(), res, nil
		}

		bad, res, err := failed(hi)
		if err != nil {
			return 0, err
		}
		if bad {
			if res != nil && !errors.Is(res.Err, vm.ErrOutOfGas) {
				return 0, executionError(res)
			}
			return 0, fmt.Errorf("%w (%d)", ErrGasRequiredExceedsAllowance, hi)
		}
		for i := 0; lo+1 < hi && i < maxGasEstimateIterations; i++ {
			mid := lo + (hi-lo)/2
			bad, _, err := failed(mid)
			if err != nil {
				return 0, err
			}
			if bad {
				lo = mid
			} else {
				hi = mid
			}
		}
		return hexutil.Uint64(hi), nil
	})
}
