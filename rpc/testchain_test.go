package rpc

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"

	"github.com/eth2030/ethlayer/chain"
	"github.com/eth2030/ethlayer/network"
	"github.com/eth2030/ethlayer/tasks"
	"github.com/eth2030/ethlayer/txpool"
)

var (
	senderAddr   = common.HexToAddress("0x1000000000000000000000000000000000000001")
	counterAddr  = common.HexToAddress("0xc000000000000000000000000000000000000001")
	reverterAddr = common.HexToAddress("0xc000000000000000000000000000000000000002")
	readerAddr   = common.HexToAddress("0xc000000000000000000000000000000000000003")
	looperAddr   = common.HexToAddress("0xc000000000000000000000000000000000000004")

	transferTopic = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")
	otherTopic    = common.HexToHash("0x01")
)

var (
	// SLOAD(0)+1 is stored back into slot 0 and returned.
	counterCode = common.FromHex("0x6000546001018060005560005260206000f3")
	// Returns SLOAD(0).
	readerCode = common.FromHex("0x60005460005260206000f3")
	// Spins until the gas runs out.
	looperCode = common.FromHex("0x5b600056")
)

// reverterCode reverts with Error("nope").
func reverterCode() []byte {
	data := common.FromHex("0x08c379a0")
	data = append(data, common.LeftPadBytes([]byte{0x20}, 32)...)
	data = append(data, common.LeftPadBytes([]byte{4}, 32)...)
	data = append(data, common.RightPadBytes([]byte("nope"), 32)...)
	code := common.FromHex("0x6064600c600039" + "60646000fd")
	return append(code, data...)
}

func testChainConfig() *params.ChainConfig {
	zero := uint64(0)
	return &params.ChainConfig{
		ChainID:                 big.NewInt(1337),
		HomesteadBlock:          new(big.Int),
		EIP150Block:             new(big.Int),
		EIP155Block:             new(big.Int),
		EIP158Block:             new(big.Int),
		ByzantiumBlock:          new(big.Int),
		ConstantinopleBlock:     new(big.Int),
		PetersburgBlock:         new(big.Int),
		IstanbulBlock:           new(big.Int),
		MuirGlacierBlock:        new(big.Int),
		BerlinBlock:             new(big.Int),
		LondonBlock:             new(big.Int),
		TerminalTotalDifficulty: new(big.Int),
		ShanghaiTime:            &zero,
		CancunTime:              &zero,
		BlobScheduleConfig:      &params.BlobScheduleConfig{Cancun: params.DefaultCancunBlobConfig},
	}
}

// logBloom computes the bloom of the given logs.
func logBloom(logs ...*types.Log) types.Bloom {
	var b types.Bloom
	for _, l := range logs {
		b.Add(l.Address.Bytes())
		for _, topic := range l.Topics {
			b.Add(topic.Bytes())
		}
	}
	return b
}

func makeTestBlock(parent *types.Block, number int64, extra byte, receipts types.Receipts) *types.Block {
	var logs []*types.Log
	for _, r := range receipts {
		logs = append(logs, r.Logs...)
	}
	header := &types.Header{
		Number:     big.NewInt(number),
		GasLimit:   30_000_000,
		Time:       uint64(1700000000 + number*12),
		Difficulty: new(big.Int),
		BaseFee:    big.NewInt(1),
		Extra:      []byte{extra},
		Root:       types.EmptyRootHash,
		Bloom:      logBloom(logs...),
	}
	if parent != nil {
		header.ParentHash = parent.Hash()
	}
	return types.NewBlockWithHeader(header)
}

func logReceipt(addr common.Address, topics ...common.Hash) *types.Receipt {
	l := &types.Log{Address: addr, Topics: topics, Data: []byte{0x01}}
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, Logs: []*types.Log{l}, Bloom: logBloom(l)}
}

// testState returns a state holding the test contracts, with the counter
// at slot value counter and the sender holding balance wei.
func testState(t *testing.T, balance, counter uint64) *state.StateDB {
	t.Helper()
	st, err := state.New(types.EmptyRootHash, state.NewDatabaseForTesting())
	if err != nil {
		t.Fatalf("state.New: %v", err)
	}
	st.SetBalance(senderAddr, uint256.NewInt(balance), tracing.BalanceChangeUnspecified)
	st.SetNonce(senderAddr, 2, tracing.NonceChangeUnspecified)
	for addr, code := range map[common.Address][]byte{
		counterAddr:  counterCode,
		reverterAddr: reverterCode(),
		readerAddr:   readerCode,
		looperAddr:   looperCode,
	} {
		st.SetCode(addr, code, tracing.CodeChangeUnspecified)
	}
	slot := common.BigToHash(new(big.Int).SetUint64(counter))
	st.SetState(counterAddr, common.Hash{}, slot)
	st.SetState(readerAddr, common.Hash{}, slot)
	st.Finalise(true)
	return st
}

type testEnv struct {
	chain  *chain.MemoryChain
	blocks []*types.Block
	pool   *txpool.MemoryPool
	h      *EthHandlers
}

// newTestEnv builds a three block chain:
//
//	0: sender 1000 wei, counter 7, no logs
//	1: sender 900 wei, counter 8, one transfer log from the counter
//	2: sender 800 wei, counter 9, one other-topic log from the reader
func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	env := &testEnv{
		chain: chain.NewMemoryChain(testChainConfig()),
		pool:  txpool.NewMemoryPool(),
	}
	receipts := []types.Receipts{
		nil,
		{logReceipt(counterAddr, transferTopic)},
		{logReceipt(readerAddr, otherTopic)},
	}
	var parent *types.Block
	for i, rs := range receipts {
		b := makeTestBlock(parent, int64(i), 0, rs)
		if err := env.chain.InsertBlock(b, rs, testState(t, uint64(1000-100*i), uint64(7+i)), nil); err != nil {
			t.Fatalf("insert block %d: %v", i, err)
		}
		env.blocks = append(env.blocks, b)
		parent = b
	}
	env.h = NewEthHandlers(Components{
		Provider: env.chain,
		Pool:     env.pool,
		Network:  network.NoopNetwork{},
		Executor: tasks.GoExecutor{},
		Events:   env.chain,
	}, cfg)
	t.Cleanup(func() {
		env.h.Close()
		env.chain.Close()
		env.pool.Close()
	})
	return env
}

// extend appends a block carrying receipts on top of the head.
func (env *testEnv) extend(t *testing.T, receipts types.Receipts) *types.Block {
	t.Helper()
	parent := env.blocks[len(env.blocks)-1]
	n := int64(len(env.blocks))
	b := makeTestBlock(parent, n, 0, receipts)
	if err := env.chain.InsertBlock(b, receipts, testState(t, 500, uint64(7+n)), nil); err != nil {
		t.Fatalf("insert block %d: %v", n, err)
	}
	env.blocks = append(env.blocks, b)
	return b
}
