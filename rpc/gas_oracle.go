package rpc

import (
	"context"
	"math/big"
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/eth2030/ethlayer/chain"
)

// Tip sampling parameters.
const (
	oracleBlocks     = 20
	oraclePercentile = 60
)

var (
	// defaultGasTip is suggested when the sampled blocks carry no
	// transactions.
	defaultGasTip = big.NewInt(params.GWei)
	maxGasTip     = new(big.Int).Mul(big.NewInt(500), big.NewInt(params.GWei))
	// Tips below ignoreTip are left out of the sample.
	ignoreTip = big.NewInt(2)
)

// gasOracle suggests a priority fee from the tips paid in recent blocks.
// The last answer is cached per head.
type gasOracle struct {
	reader chain.BlockReader

	mu       sync.Mutex
	lastHead common.Hash
	lastTip  *big.Int
}

func newGasOracle(reader chain.BlockReader) *gasOracle {
	return &gasOracle{reader: reader}
}

// suggestTip returns the oraclePercentile-th tip over the oracleBlocks
// blocks ending at head, capped at maxGasTip.
func (o *gasOracle) suggestTip(ctx context.Context, head *types.Header) (*big.Int, error) {
	hash := head.Hash()
	o.mu.Lock()
	if o.lastHead == hash && o.lastTip != nil {
		tip := new(big.Int).Set(o.lastTip)
		o.mu.Unlock()
		return tip, nil
	}
	o.mu.Unlock()

	var tips []*big.Int
	for i, n := 0, head.Number.Int64(); i < oracleBlocks && n >= 0; i, n = i+1, n-1 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		block, err := o.reader.BlockByNumber(ctx, rpc.BlockNumber(n))
		if err != nil {
			return nil, err
		}
		if block == nil {
			break
		}
		for _, tx := range block.Transactions() {
			tip, err := tx.EffectiveGasTip(block.BaseFee())
			if err != nil || tip.Cmp(ignoreTip) < 0 {
				continue
			}
			tips = append(tips, tip)
		}
	}

	tip := new(big.Int).Set(defaultGasTip)
	if len(tips) > 0 {
		slices.SortFunc(tips, (*big.Int).Cmp)
		tip.Set(tips[(len(tips)-1)*oraclePercentile/100])
	}
	if tip.Cmp(maxGasTip) > 0 {
		tip.Set(maxGasTip)
	}

	o.mu.Lock()
	o.lastHead, o.lastTip = hash, new(big.Int).Set(tip)
	o.mu.Unlock()
	return tip, nil
}
