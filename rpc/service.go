package rpc

import (
	"context"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/eth/filters"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/eth2030/ethlayer/rpctypes"
)

// EthService exposes a handler bundle under the JSON-RPC eth namespace.
// Method names follow the go-ethereum server convention: GetBalance is
// served as eth_getBalance.
type EthService struct {
	h *EthHandlers
}

// APIs returns the services to register on a go-ethereum rpc.Server.
func (h *EthHandlers) APIs() []rpc.API {
	return []rpc.API{{Namespace: "eth", Service: &EthService{h: h}}}
}

func (s *EthService) ChainId() *hexutil.Big { return s.h.API.ChainID() }

func (s *EthService) BlockNumber(ctx context.Context) (hexutil.Uint64, error) {
	return s.h.API.BlockNumber(ctx)
}

func (s *EthService) Syncing(ctx context.Context) (any, error) {
	status, err := s.h.API.Syncing(ctx)
	if status == nil || err != nil {
		return false, err
	}
	return status, nil
}

func (s *EthService) GasPrice(ctx context.Context) (*hexutil.Big, error) {
	return s.h.API.GasPrice(ctx)
}

func (s *EthService) MaxPriorityFeePerGas(ctx context.Context) (*hexutil.Big, error) {
	return s.h.API.MaxPriorityFeePerGas(ctx)
}

func (s *EthService) GetBalance(ctx context.Context, addr common.Address, id rpc.BlockNumberOrHash) (*hexutil.Big, error) {
	bal, err := s.h.API.Balance(ctx, addr, &id)
	if err != nil {
		return nil, err
	}
	return (*hexutil.Big)(bal.ToBig()), nil
}

func (s *EthService) GetStorageAt(ctx context.Context, addr common.Address, key common.Hash, id rpc.BlockNumberOrHash) (hexutil.Bytes, error) {
	val, err := s.h.API.StorageAt(ctx, addr, key, &id)
	if err != nil {
		return nil, err
	}
	return val[:], nil
}

func (s *EthService) GetCode(ctx context.Context, addr common.Address, id rpc.BlockNumberOrHash) (hexutil.Bytes, error) {
	return s.h.API.Code(ctx, addr, &id)
}

func (s *EthService) GetTransactionCount(ctx context.Context, addr common.Address, id rpc.BlockNumberOrHash) (hexutil.Uint64, error) {
	return s.h.API.TransactionCount(ctx, addr, &id)
}

func (s *EthService) GetBlockByNumber(ctx context.Context, number rpc.BlockNumber, fullTx bool) (*rpctypes.Block, error) {
	return s.h.API.BlockByNumber(ctx, number, fullTx)
}

func (s *EthService) GetBlockByHash(ctx context.Context, hash common.Hash, fullTx bool) (*rpctypes.Block, error) {
	return s.h.API.BlockByHash(ctx, hash, fullTx)
}

func (s *EthService) Call(ctx context.Context, args rpctypes.TransactionRequest, id *rpc.BlockNumberOrHash, state *rpctypes.StateOverride, block *rpctypes.BlockOverrides) (hexutil.Bytes, error) {
	ov := EVMOverrides{Block: block}
	if state != nil {
		ov.State = *state
	}
	return s.h.API.Call(ctx, args, id, ov)
}

// CallMany runs each bundle against the state selected by stateCtx.
// Bundles do not see each other's effects.
func (s *EthService) CallMany(ctx context.Context, bundles []rpctypes.Bundle, stateCtx *rpctypes.StateContext, state *rpctypes.StateOverride) ([][]rpctypes.EthCallResponse, error) {
	var ov rpctypes.StateOverride
	if state != nil {
		ov = *state
	}
	out := make([][]rpctypes.EthCallResponse, 0, len(bundles))
	for _, b := range bundles {
		res, err := s.h.API.CallMany(ctx, b, stateCtx, ov)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

func (s *EthService) EstimateGas(ctx context.Context, args rpctypes.TransactionRequest, id *rpc.BlockNumberOrHash, state *rpctypes.StateOverride) (hexutil.Uint64, error) {
	var ov rpctypes.StateOverride
	if state != nil {
		ov = *state
	}
	return s.h.API.EstimateGas(ctx, args, id, ov)
}

func (s *EthService) GetLogs(ctx context.Context, crit filters.FilterCriteria) ([]types.Log, error) {
	logs, err := s.h.Filter.Logs(ctx, ethereum.FilterQuery(crit))
	if logs == nil && err == nil {
		logs = []types.Log{}
	}
	return logs, err
}

func (s *EthService) NewFilter(ctx context.Context, crit filters.FilterCriteria) (string, error) {
	return s.h.Filter.NewFilter(ctx, ethereum.FilterQuery(crit))
}

func (s *EthService) NewBlockFilter(ctx context.Context) (string, error) {
	return s.h.Filter.NewBlockFilter(ctx)
}

func (s *EthService) NewPendingTransactionFilter() (string, error) {
	return s.h.Filter.NewPendingTransactionFilter()
}

func (s *EthService) GetFilterChanges(ctx context.Context, id string) (any, error) {
	return s.h.Filter.FilterChanges(ctx, id)
}

func (s *EthService) GetFilterLogs(ctx context.Context, id string) ([]types.Log, error) {
	return s.h.Filter.FilterLogs(ctx, id)
}

func (s *EthService) UninstallFilter(id string) bool {
	return s.h.Filter.UninstallFilter(id)
}

// notify bridges a handler subscription onto a JSON-RPC notifier.
func notify[T any](ctx context.Context, subscribe func(context.Context, chan<- T) (*Subscription, error)) (*rpc.Subscription, error) {
	notifier, supported := rpc.NotifierFromContext(ctx)
	if !supported {
		return &rpc.Subscription{}, rpc.ErrNotificationsUnsupported
	}
	// The handler subscription must outlive the subscribe request.
	subCtx, cancel := context.WithCancel(context.Background())
	ch := make(chan T)
	sub, err := subscribe(subCtx, ch)
	if err != nil {
		cancel()
		return nil, err
	}
	rpcSub := notifier.CreateSubscription()
	go func() {
		defer cancel()
		defer sub.Unsubscribe()
		for {
			select {
			case v := <-ch:
				notifier.Notify(rpcSub.ID, v)
			case <-sub.Err():
				return
			case <-rpcSub.Err():
				return
			}
		}
	}()
	return rpcSub, nil
}

// NewHeads is served as eth_subscribe("newHeads").
func (s *EthService) NewHeads(ctx context.Context) (*rpc.Subscription, error) {
	return notify(ctx, s.h.PubSub.SubscribeNewHeads)
}

// Logs is served as eth_subscribe("logs", criteria).
func (s *EthService) Logs(ctx context.Context, crit filters.FilterCriteria) (*rpc.Subscription, error) {
	return notify(ctx, func(ctx context.Context, ch chan<- types.Log) (*Subscription, error) {
		return s.h.PubSub.SubscribeLogs(ctx, ethereum.FilterQuery(crit), ch)
	})
}

// NewPendingTransactions is served as eth_subscribe("newPendingTransactions").
func (s *EthService) NewPendingTransactions(ctx context.Context) (*rpc.Subscription, error) {
	return notify(ctx, s.h.PubSub.SubscribePendingTransactions)
}
