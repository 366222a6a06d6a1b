// layer.go holds the finalized component set and the lazily built handler
// bundle shared by every provider the layer wraps.
package layer

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/eth2030/ethlayer/chain"
	"github.com/eth2030/ethlayer/log"
	"github.com/eth2030/ethlayer/metrics"
	"github.com/eth2030/ethlayer/network"
	"github.com/eth2030/ethlayer/provider"
	"github.com/eth2030/ethlayer/rpc"
	"github.com/eth2030/ethlayer/tasks"
	"github.com/eth2030/ethlayer/txpool"
)

// Layer owns the slot occupants and builds the handler bundle on first
// use. A Layer is safe for concurrent use.
type Layer[R chain.StateReader, P txpool.TransactionPool, N network.Network, T tasks.TaskSpawner, E chain.CanonStateSubscriptions] struct {
	provider R
	pool     P
	network  N
	executor T
	events   E
	cfg      rpc.Config

	once      sync.Once
	handlers  atomic.Pointer[rpc.EthHandlers]
	closed    atomic.Bool
	closeOnce sync.Once
}

// ErrLayerClosed is returned by direct calls made after the layer closed.
var ErrLayerClosed = errors.New("layer: closed")

var _ provider.Layer = (*Layer[chain.StateReader, txpool.TransactionPool, network.Network, tasks.TaskSpawner, chain.CanonStateSubscriptions])(nil)

// IntoLayer finalizes a builder. It only type-checks once every slot
// holds a value implementing its capability.
func IntoLayer[R chain.StateReader, P txpool.TransactionPool, N network.Network, T tasks.TaskSpawner, E chain.CanonStateSubscriptions](b Builder[R, P, N, T, E]) *Layer[R, P, N, T, E] {
	return newLayer(b.provider, b.pool, b.network, b.executor, b.events, b.cfg)
}

func newLayer[R chain.StateReader, P txpool.TransactionPool, N network.Network, T tasks.TaskSpawner, E chain.CanonStateSubscriptions](r R, p P, n N, t T, e E, cfg rpc.Config) *Layer[R, P, N, T, E] {
	return &Layer[R, P, N, T, E]{provider: r, pool: p, network: n, executor: t, events: e, cfg: cfg}
}

// Handlers returns the handler bundle, building it on the first call.
// Concurrent first callers wait for the single build. It returns nil once
// the layer is closed.
func (l *Layer[R, P, N, T, E]) Handlers() *rpc.EthHandlers {
	if l.closed.Load() {
		return nil
	}
	l.once.Do(func() {
		if l.closed.Load() {
			return
		}
		l.handlers.Store(rpc.NewEthHandlers(rpc.Components{
			Provider: l.provider,
			Pool:     l.pool,
			Network:  l.network,
			Executor: l.executor,
			Events:   l.events,
		}, l.cfg))
		metrics.HandlerBundlesBuilt.Inc()
		log.Default().Module("layer").Info("Built handler bundle",
			"gasCap", l.cfg.GasCap, "evmTimeout", l.cfg.EVMTimeout, "blockingTasks", l.cfg.MaxBlockingTasks)
	})
	if l.closed.Load() {
		return nil
	}
	return l.handlers.Load()
}

// Layer wraps inner with a DirectProvider answering reads from this
// layer's handler bundle.
func (l *Layer[R, P, N, T, E]) Layer(inner provider.Provider) provider.Provider {
	return newDirectProvider(inner, l.Handlers)
}

// Close is terminal: it releases the bundle if one was built and stops
// any later build. Direct calls through the layer then fail with
// ErrLayerClosed. Closing twice is a no-op.
func (l *Layer[R, P, N, T, E]) Close() {
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		// Wait out a build in flight so its bundle is released too.
		l.once.Do(func() {})
		if h := l.handlers.Load(); h != nil {
			h.Close()
		}
	})
}

func (l *Layer[R, P, N, T, E]) Provider() R        { return l.provider }
func (l *Layer[R, P, N, T, E]) Pool() P            { return l.pool }
func (l *Layer[R, P, N, T, E]) Network() N         { return l.network }
func (l *Layer[R, P, N, T, E]) Executor() T        { return l.executor }
func (l *Layer[R, P, N, T, E]) Events() E          { return l.events }
func (l *Layer[R, P, N, T, E]) Config() rpc.Config { return l.cfg }

// The With methods return a new layer with an unbuilt bundle. The
// receiver and its bundle are left as they are.

func (l *Layer[R, P, N, T, E]) WithProvider(r chain.StateReader) *Layer[chain.StateReader, P, N, T, E] {
	return newLayer(r, l.pool, l.network, l.executor, l.events, l.cfg)
}

func (l *Layer[R, P, N, T, E]) WithPool(p txpool.TransactionPool) *Layer[R, txpool.TransactionPool, N, T, E] {
	return newLayer(l.provider, p, l.network, l.executor, l.events, l.cfg)
}

func (l *Layer[R, P, N, T, E]) WithNoopPool() *Layer[R, txpool.NoopTransactionPool, N, T, E] {
	return newLayer(l.provider, txpool.NoopTransactionPool{}, l.network, l.executor, l.events, l.cfg)
}

func (l *Layer[R, P, N, T, E]) WithNetwork(n network.Network) *Layer[R, P, network.Network, T, E] {
	return newLayer(l.provider, l.pool, n, l.executor, l.events, l.cfg)
}

func (l *Layer[R, P, N, T, E]) WithNoopNetwork() *Layer[R, P, network.NoopNetwork, T, E] {
	return newLayer(l.provider, l.pool, network.NoopNetwork{}, l.executor, l.events, l.cfg)
}

func (l *Layer[R, P, N, T, E]) WithExecutor(t tasks.TaskSpawner) *Layer[R, P, N, tasks.TaskSpawner, E] {
	return newLayer(l.provider, l.pool, l.network, t, l.events, l.cfg)
}

func (l *Layer[R, P, N, T, E]) WithNoopExecutor() *Layer[R, P, N, tasks.GoExecutor, E] {
	return newLayer(l.provider, l.pool, l.network, tasks.GoExecutor{}, l.events, l.cfg)
}

func (l *Layer[R, P, N, T, E]) WithEvents(e chain.CanonStateSubscriptions) *Layer[R, P, N, T, chain.CanonStateSubscriptions] {
	return newLayer(l.provider, l.pool, l.network, l.executor, e, l.cfg)
}

func (l *Layer[R, P, N, T, E]) WithNoopEvents() *Layer[R, P, N, T, chain.NoopCanonStateSubscriptions] {
	return newLayer(l.provider, l.pool, l.network, l.executor, chain.NoopCanonStateSubscriptions{}, l.cfg)
}

func (l *Layer[R, P, N, T, E]) WithConfig(cfg rpc.Config) *Layer[R, P, N, T, E] {
	return newLayer(l.provider, l.pool, l.network, l.executor, l.events, cfg)
}
