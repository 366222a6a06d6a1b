package rpc

import (
	"github.com/eth2030/ethlayer/chain"
	"github.com/eth2030/ethlayer/network"
	"github.com/eth2030/ethlayer/tasks"
	"github.com/eth2030/ethlayer/txpool"
)

// Components are the capabilities a handler bundle is built from.
type Components struct {
	Provider chain.StateReader
	Pool     txpool.TransactionPool
	Network  network.Network
	Executor tasks.TaskSpawner
	Events   chain.CanonStateSubscriptions
}

// EthHandlers is the eth-namespace handler bundle. All handlers share one
// blocking pool for EVM work.
type EthHandlers struct {
	API          *EthAPI
	Filter       *FilterAPI
	PubSub       *PubSubAPI
	BlockingPool *tasks.BlockingTaskPool
}

// NewEthHandlers builds the handler bundle. Invalid configuration fields
// fall back to their defaults, so building never fails.
func NewEthHandlers(c Components, cfg Config) *EthHandlers {
	cfg = cfg.normalized()
	blocking := tasks.NewBlockingTaskPool(cfg.MaxBlockingTasks, c.Executor)
	return &EthHandlers{
		API:          NewEthAPI(c.Provider, c.Pool, c.Network, blocking, cfg),
		Filter:       NewFilterAPI(c.Provider, c.Pool, c.Executor, cfg),
		PubSub:       NewPubSubAPI(c.Provider, c.Pool, c.Events, c.Network, c.Executor, cfg),
		BlockingPool: blocking,
	}
}

// Close uninstalls all filters and stops accepting blocking work.
func (h *EthHandlers) Close() {
	h.Filter.Close()
	h.BlockingPool.Close()
}
