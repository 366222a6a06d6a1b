package chain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ethereum/go-ethereum/triedb"
	"github.com/ethereum/go-ethereum/triedb/pathdb"

	"github.com/eth2030/ethlayer/log"
)

var (
	// ErrNoDatabase is returned when no chain database exists at the path.
	ErrNoDatabase = errors.New("chain: no chain database found")
	// ErrUnsupportedDatabase is returned for key-value engines that cannot
	// be opened read-only here.
	ErrUnsupportedDatabase = errors.New("chain: unsupported database engine")
	// ErrNoGenesis is returned when the database has no block zero.
	ErrNoGenesis = errors.New("chain: genesis block missing")
)

const (
	dbCacheMB = 64
	dbHandles = 128
)

// OpenReadOnly opens the chain database under dir. It looks for the
// "chaindata" layout first, then "db", then dir itself. Only LevelDB
// stores are supported.
func OpenReadOnly(dir string) (ethdb.Database, error) {
	for _, candidate := range []string{filepath.Join(dir, "chaindata"), filepath.Join(dir, "db"), dir} {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		switch kind := rawdb.PreexistingDatabase(candidate); kind {
		case "":
			continue
		case rawdb.DBLeveldb:
			kv, err := leveldb.New(candidate, dbCacheMB, dbHandles, "ethlayer/db/", true)
			if err != nil {
				return nil, fmt.Errorf("chain: open leveldb %s: %w", candidate, err)
			}
			return rawdb.NewDatabase(kv), nil
		default:
			return nil, fmt.Errorf("%w: %s at %s", ErrUnsupportedDatabase, kind, candidate)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoDatabase, dir)
}

// BlockchainProvider serves StateReader from a go-ethereum chain database.
// It never writes to the database.
type BlockchainProvider struct {
	db      ethdb.Database
	sdb     state.Database
	tdb     *triedb.Database
	config  *params.ChainConfig
	genesis common.Hash
	log     *log.Logger
}

// NewBlockchainProvider wraps db. The chain configuration is read from the
// database, falling back to mainnet when absent.
func NewBlockchainProvider(db ethdb.Database) (*BlockchainProvider, error) {
	genesis := rawdb.ReadCanonicalHash(db, 0)
	if genesis == (common.Hash{}) {
		return nil, ErrNoGenesis
	}
	lg := log.Default().Module("chain")
	config := rawdb.ReadChainConfig(db, genesis)
	if config == nil {
		lg.Warn("No chain config stored, assuming mainnet", "genesis", genesis)
		config = params.MainnetChainConfig
	}
	tcfg := triedb.HashDefaults
	if rawdb.ReadStateScheme(db) == rawdb.PathScheme {
		tcfg = &triedb.Config{PathDB: pathdb.ReadOnly}
	}
	tdb := triedb.NewDatabase(db, tcfg)
	return &BlockchainProvider{
		db:      db,
		sdb:     state.NewDatabase(tdb, nil),
		tdb:     tdb,
		config:  config,
		genesis: genesis,
		log:     lg,
	}, nil
}

// Close releases the trie database and the key-value store.
func (p *BlockchainProvider) Close() error {
	p.tdb.Close()
	return p.db.Close()
}

func (p *BlockchainProvider) ChainConfig() *params.ChainConfig { return p.config }

// Genesis returns the hash of block zero.
func (p *BlockchainProvider) Genesis() common.Hash { return p.genesis }

func (p *BlockchainProvider) numberOf(hash common.Hash) (uint64, bool) {
	if hash == (common.Hash{}) {
		return 0, false
	}
	n, ok := rawdb.ReadHeaderNumber(p.db, hash)
	if !ok {
		return 0, false
	}
	return n, true
}

func (p *BlockchainProvider) heads() heads {
	latest, _ := p.numberOf(rawdb.ReadHeadBlockHash(p.db))
	finalized, _ := p.numberOf(rawdb.ReadFinalizedBlockHash(p.db))
	// Safe is not persisted; finalized is the conservative stand-in.
	return heads{latest: latest, safe: finalized, finalized: finalized}
}

func (p *BlockchainProvider) canonicalHash(n rpc.BlockNumber) (common.Hash, uint64, bool) {
	num, ok := p.heads().resolve(n)
	if !ok {
		return common.Hash{}, 0, false
	}
	hash := rawdb.ReadCanonicalHash(p.db, num)
	return hash, num, hash != (common.Hash{})
}

func (p *BlockchainProvider) HeaderByNumber(_ context.Context, n rpc.BlockNumber) (*types.Header, error) {
	hash, num, ok := p.canonicalHash(n)
	if !ok {
		return nil, nil
	}
	return rawdb.ReadHeader(p.db, hash, num), nil
}

func (p *BlockchainProvider) HeaderByHash(_ context.Context, hash common.Hash) (*types.Header, error) {
	num, ok := p.numberOf(hash)
	if !ok {
		return nil, nil
	}
	return rawdb.ReadHeader(p.db, hash, num), nil
}

func (p *BlockchainProvider) BlockByNumber(_ context.Context, n rpc.BlockNumber) (*types.Block, error) {
	hash, num, ok := p.canonicalHash(n)
	if !ok {
		return nil, nil
	}
	return rawdb.ReadBlock(p.db, hash, num), nil
}

func (p *BlockchainProvider) BlockByHash(_ context.Context, hash common.Hash) (*types.Block, error) {
	num, ok := p.numberOf(hash)
	if !ok {
		return nil, nil
	}
	return rawdb.ReadBlock(p.db, hash, num), nil
}

func (p *BlockchainProvider) ReceiptsByHash(_ context.Context, hash common.Hash) (types.Receipts, error) {
	num, ok := p.numberOf(hash)
	if !ok {
		return nil, nil
	}
	header := rawdb.ReadHeader(p.db, hash, num)
	if header == nil {
		return nil, nil
	}
	return rawdb.ReadReceipts(p.db, hash, num, header.Time, p.config), nil
}

func (p *BlockchainProvider) HeaderByID(ctx context.Context, id rpc.BlockNumberOrHash) (*types.Header, error) {
	if hash, ok := id.Hash(); ok {
		header, err := p.HeaderByHash(ctx, hash)
		if header == nil || err != nil {
			return nil, err
		}
		if id.RequireCanonical && rawdb.ReadCanonicalHash(p.db, header.Number.Uint64()) != hash {
			return nil, fmt.Errorf("%w: %x", ErrNotCanonical, hash)
		}
		return header, nil
	}
	if n, ok := id.Number(); ok {
		return p.HeaderByNumber(ctx, n)
	}
	return nil, nil
}

func (p *BlockchainProvider) BlockByID(ctx context.Context, id rpc.BlockNumberOrHash) (*types.Block, error) {
	header, err := p.HeaderByID(ctx, id)
	if header == nil || err != nil {
		return nil, err
	}
	return rawdb.ReadBlock(p.db, header.Hash(), header.Number.Uint64()), nil
}

func (p *BlockchainProvider) StateAt(_ context.Context, header *types.Header) (*state.StateDB, error) {
	st, err := state.New(header.Root, p.sdb)
	if err != nil {
		return nil, fmt.Errorf("%w: block %d: %v", ErrStateNotFound, header.Number, err)
	}
	return st, nil
}

func (p *BlockchainProvider) BasicAccount(ctx context.Context, addr common.Address) (*Account, error) {
	head, err := p.HeaderByNumber(ctx, rpc.LatestBlockNumber)
	if head == nil || err != nil {
		return nil, err
	}
	st, err := p.StateAt(ctx, head)
	if err != nil {
		return nil, err
	}
	return accountFromState(st, addr), nil
}

func (p *BlockchainProvider) BlockContext(_ context.Context, header *types.Header) (vm.BlockContext, error) {
	return NewBlockContext(header, func(n uint64) common.Hash {
		return rawdb.ReadCanonicalHash(p.db, n)
	}), nil
}

// AccountChangeSet is not served from a plain chain database.
func (p *BlockchainProvider) AccountChangeSet(context.Context, uint64) ([]AccountChange, error) {
	return nil, ErrChangeSetsUnavailable
}
