// Package layer assembles a handler bundle from five backend capabilities
// and exposes it as a provider.Layer that answers read queries in-process.
//
// A Builder tracks the type of every slot occupant. IntoLayer only accepts
// builders whose slots satisfy the capability interfaces, so a builder
// whose state reader was never supplied fails to compile:
//
//	l := layer.IntoLayer(layer.Default().WithProvider(reader))
//	p := provider.Stack(root, l)
package layer

import (
	"github.com/eth2030/ethlayer/chain"
	"github.com/eth2030/ethlayer/network"
	"github.com/eth2030/ethlayer/rpc"
	"github.com/eth2030/ethlayer/tasks"
	"github.com/eth2030/ethlayer/txpool"
)

// Unset marks a slot without an occupant. It implements no capability.
type Unset struct{}

// Builder holds one occupant per capability slot: state reader (R),
// transaction pool (P), network info (N), task executor (T) and event
// source (E). Every With method returns a new builder.
type Builder[R, P, N, T, E any] struct {
	provider R
	pool     P
	network  N
	executor T
	events   E
	cfg      rpc.Config
}

// DefaultBuilder is the type returned by Default.
type DefaultBuilder = Builder[Unset, txpool.NoopTransactionPool, network.NoopNetwork, tasks.GoExecutor, chain.NoopCanonStateSubscriptions]

// Default returns a builder with no state reader and inert stand-ins in
// every other slot.
func Default() DefaultBuilder {
	return DefaultBuilder{cfg: rpc.DefaultConfig()}
}

// NewBuilder returns a builder with the given occupants and the default
// handler configuration.
func NewBuilder[R, P, N, T, E any](provider R, pool P, net N, executor T, events E) Builder[R, P, N, T, E] {
	return Builder[R, P, N, T, E]{
		provider: provider,
		pool:     pool,
		network:  net,
		executor: executor,
		events:   events,
		cfg:      rpc.DefaultConfig(),
	}
}

// WithProvider sets the state reader.
func (b Builder[R, P, N, T, E]) WithProvider(provider chain.StateReader) Builder[chain.StateReader, P, N, T, E] {
	return Builder[chain.StateReader, P, N, T, E]{provider, b.pool, b.network, b.executor, b.events, b.cfg}
}

// WithPool sets the transaction pool.
func (b Builder[R, P, N, T, E]) WithPool(pool txpool.TransactionPool) Builder[R, txpool.TransactionPool, N, T, E] {
	return Builder[R, txpool.TransactionPool, N, T, E]{b.provider, pool, b.network, b.executor, b.events, b.cfg}
}

// WithNoopPool sets an always-empty transaction pool.
func (b Builder[R, P, N, T, E]) WithNoopPool() Builder[R, txpool.NoopTransactionPool, N, T, E] {
	return Builder[R, txpool.NoopTransactionPool, N, T, E]{b.provider, txpool.NoopTransactionPool{}, b.network, b.executor, b.events, b.cfg}
}

// WithNetwork sets the network info source.
func (b Builder[R, P, N, T, E]) WithNetwork(net network.Network) Builder[R, P, network.Network, T, E] {
	return Builder[R, P, network.Network, T, E]{b.provider, b.pool, net, b.executor, b.events, b.cfg}
}

// WithNoopNetwork sets a network source without peers.
func (b Builder[R, P, N, T, E]) WithNoopNetwork() Builder[R, P, network.NoopNetwork, T, E] {
	return Builder[R, P, network.NoopNetwork, T, E]{b.provider, b.pool, network.NoopNetwork{}, b.executor, b.events, b.cfg}
}

// WithExecutor sets the task executor.
func (b Builder[R, P, N, T, E]) WithExecutor(executor tasks.TaskSpawner) Builder[R, P, N, tasks.TaskSpawner, E] {
	return Builder[R, P, N, tasks.TaskSpawner, E]{b.provider, b.pool, b.network, executor, b.events, b.cfg}
}

// WithNoopExecutor runs tasks on plain goroutines.
func (b Builder[R, P, N, T, E]) WithNoopExecutor() Builder[R, P, N, tasks.GoExecutor, E] {
	return Builder[R, P, N, tasks.GoExecutor, E]{b.provider, b.pool, b.network, tasks.GoExecutor{}, b.events, b.cfg}
}

// WithEvents sets the canonical-state event source.
func (b Builder[R, P, N, T, E]) WithEvents(events chain.CanonStateSubscriptions) Builder[R, P, N, T, chain.CanonStateSubscriptions] {
	return Builder[R, P, N, T, chain.CanonStateSubscriptions]{b.provider, b.pool, b.network, b.executor, events, b.cfg}
}

// WithNoopEvents sets an event source that never publishes.
func (b Builder[R, P, N, T, E]) WithNoopEvents() Builder[R, P, N, T, chain.NoopCanonStateSubscriptions] {
	return Builder[R, P, N, T, chain.NoopCanonStateSubscriptions]{b.provider, b.pool, b.network, b.executor, chain.NoopCanonStateSubscriptions{}, b.cfg}
}

// WithConfig replaces the handler configuration.
func (b Builder[R, P, N, T, E]) WithConfig(cfg rpc.Config) Builder[R, P, N, T, E] {
	b.cfg = cfg
	return b
}

// Provider returns the state reader slot.
func (b Builder[R, P, N, T, E]) Provider() R { return b.provider }

// Pool returns the transaction pool slot.
func (b Builder[R, P, N, T, E]) Pool() P { return b.pool }

// Network returns the network slot.
func (b Builder[R, P, N, T, E]) Network() N { return b.network }

// Executor returns the executor slot.
func (b Builder[R, P, N, T, E]) Executor() T { return b.executor }

// Events returns the event source slot.
func (b Builder[R, P, N, T, E]) Events() E { return b.events }

// Config returns the handler configuration.
func (b Builder[R, P, N, T, E]) Config() rpc.Config { return b.cfg }
