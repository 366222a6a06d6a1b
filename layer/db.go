package layer

import (
	"errors"
	"fmt"
	"os"

	"github.com/eth2030/ethlayer/chain"
	"github.com/eth2030/ethlayer/network"
	"github.com/eth2030/ethlayer/tasks"
	"github.com/eth2030/ethlayer/txpool"
)

// ErrDBPathUnset is returned when the database path variable is missing
// or empty.
var ErrDBPathUnset = errors.New("layer: database path not set")

// DBLayer answers queries from a node database opened read-only. It has
// no pool, no peers and no event stream.
type DBLayer = Layer[*chain.BlockchainProvider, txpool.NoopTransactionPool, network.NoopNetwork, tasks.GoExecutor, chain.NoopCanonStateSubscriptions]

// NewProviderFromDB opens the chain database whose directory is named by
// the environment variable envVar.
func NewProviderFromDB(envVar string) (*chain.BlockchainProvider, error) {
	path := os.Getenv(envVar)
	if path == "" {
		return nil, fmt.Errorf("%w: $%s", ErrDBPathUnset, envVar)
	}
	db, err := chain.OpenReadOnly(path)
	if err != nil {
		return nil, err
	}
	p, err := chain.NewBlockchainProvider(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

// NewLayerFromDB builds a DBLayer over the database named by envVar.
func NewLayerFromDB(envVar string) (*DBLayer, error) {
	p, err := NewProviderFromDB(envVar)
	if err != nil {
		return nil, err
	}
	b := NewBuilder(p, txpool.NoopTransactionPool{}, network.NoopNetwork{}, tasks.GoExecutor{}, chain.NoopCanonStateSubscriptions{})
	return IntoLayer(b), nil
}
