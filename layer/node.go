package layer

import (
	"github.com/eth2030/ethlayer/chain"
	"github.com/eth2030/ethlayer/network"
	"github.com/eth2030/ethlayer/tasks"
	"github.com/eth2030/ethlayer/txpool"
)

// NodeChain is a chain provider that also publishes canonical-state
// changes, as a running node's provider does.
type NodeChain interface {
	chain.StateReader
	chain.CanonStateSubscriptions
}

// NodeComponents are the capabilities a running node hands to an
// in-process extension.
type NodeComponents[C NodeChain, P txpool.TransactionPool, T tasks.TaskSpawner] struct {
	Chain    C
	Pool     P
	Executor T
}

// NodeLayer serves queries from inside a running node. The node's chain
// provider doubles as the event source.
type NodeLayer[C NodeChain, P txpool.TransactionPool, T tasks.TaskSpawner] = Layer[C, P, network.NoopNetwork, T, C]

// NewLayerFromNode builds a layer over a node's components. Peer
// information is not available in this setting.
func NewLayerFromNode[C NodeChain, P txpool.TransactionPool, T tasks.TaskSpawner](c NodeComponents[C, P, T]) *NodeLayer[C, P, T] {
	b := NewBuilder(c.Chain, c.Pool, network.NoopNetwork{}, c.Executor, c.Chain)
	return IntoLayer(b)
}
