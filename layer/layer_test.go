package layer

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"

	"github.com/eth2030/ethlayer/chain"
	"github.com/eth2030/ethlayer/metrics"
	"github.com/eth2030/ethlayer/provider"
	"github.com/eth2030/ethlayer/rpc"
	"github.com/eth2030/ethlayer/rpctypes"
	"github.com/eth2030/ethlayer/tasks"
	"github.com/eth2030/ethlayer/txpool"
)

var (
	holder   = common.HexToAddress("0x1000000000000000000000000000000000000001")
	storeAt  = common.HexToAddress("0xc000000000000000000000000000000000000003")
	reverter = common.HexToAddress("0xc000000000000000000000000000000000000002")
	topic    = common.HexToHash("0x0f")

	// Returns SLOAD(0).
	storeCode  = common.FromHex("0x60005460005260206000f3")
	revertCode = common.FromHex("0x60006000fd")
)

func testConfig() *params.ChainConfig {
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
		BerlinBlock:             new(big.Int),
		LondonBlock:             new(big.Int),
		TerminalTotalDifficulty: new(big.Int),
		ShanghaiTime:            &zero,
	}
}

// newTestChain returns a two block chain. The holder has 1000 wei at
// block 0 and 1001 at block 1; slot 0 of storeAt holds 7 then 8.
func newTestChain(t *testing.T) (*chain.MemoryChain, []*types.Block) {
	t.Helper()
	mc := chain.NewMemoryChain(testConfig())
	t.Cleanup(mc.Close)
	var blocks []*types.Block
	var parent *types.Block
	for i := range 2 {
		st, err := state.New(types.EmptyRootHash, state.NewDatabaseForTesting())
		if err != nil {
			t.Fatal(err)
		}
		st.SetBalance(holder, uint256.NewInt(uint64(1000+i)), tracing.BalanceChangeUnspecified)
		st.SetCode(storeAt, storeCode, tracing.CodeChangeUnspecified)
		st.SetCode(reverter, revertCode, tracing.CodeChangeUnspecified)
		st.SetState(storeAt, common.Hash{}, common.BigToHash(big.NewInt(int64(7+i))))
		st.Finalise(true)

		var bloom types.Bloom
		bloom.Add(storeAt.Bytes())
		bloom.Add(topic.Bytes())
		l := &types.Log{Address: storeAt, Topics: []common.Hash{topic}}
		receipts := types.Receipts{{Status: types.ReceiptStatusSuccessful, Logs: []*types.Log{l}, Bloom: bloom}}
		header := &types.Header{
			Number:     big.NewInt(int64(i)),
			GasLimit:   30_000_000,
			Time:       uint64(1700000000 + i),
			Difficulty: new(big.Int),
			BaseFee:    big.NewInt(7),
			Root:       types.EmptyRootHash,
			Bloom:      bloom,
		}
		if parent != nil {
			header.ParentHash = parent.Hash()
		}
		b := types.NewBlockWithHeader(header)
		if err := mc.InsertBlock(b, receipts, st, nil); err != nil {
			t.Fatal(err)
		}
		blocks = append(blocks, b)
		parent = b
	}
	return mc, blocks
}

// recordingProvider counts calls per operation and answers with fixed
// values.
type recordingProvider struct {
	mu    sync.Mutex
	calls map[string]int
}

func newRecordingProvider() *recordingProvider {
	return &recordingProvider{calls: make(map[string]int)}
}

func (r *recordingProvider) record(op string) {
	r.mu.Lock()
	r.calls[op]++
	r.mu.Unlock()
}

func (r *recordingProvider) count(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[op]
}

func (r *recordingProvider) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		n += c
	}
	return n
}

func (r *recordingProvider) Root() *provider.RootProvider { r.record("Root"); return nil }
func (r *recordingProvider) ChainID(context.Context) (*big.Int, error) {
	r.record("ChainID")
	return big.NewInt(5), nil
}
func (r *recordingProvider) BlockNumber(context.Context) (uint64, error) {
	r.record("BlockNumber")
	return 99, nil
}
func (r *recordingProvider) GasPrice(context.Context) (*big.Int, error) {
	r.record("GasPrice")
	return big.NewInt(3), nil
}
func (r *recordingProvider) GetBalance(context.Context, common.Address, provider.BlockID) (*uint256.Int, error) {
	r.record("GetBalance")
	return uint256.NewInt(1), nil
}
func (r *recordingProvider) GetStorageAt(context.Context, common.Address, *uint256.Int, provider.BlockID) (*uint256.Int, error) {
	r.record("GetStorageAt")
	return uint256.NewInt(1), nil
}
func (r *recordingProvider) GetCodeAt(context.Context, common.Address, provider.BlockID) ([]byte, error) {
	r.record("GetCodeAt")
	return nil, nil
}
func (r *recordingProvider) GetTransactionCount(context.Context, common.Address, provider.BlockID) (uint64, error) {
	r.record("GetTransactionCount")
	return 42, nil
}
func (r *recordingProvider) GetBlock(context.Context, provider.BlockID, bool) (*rpctypes.Block, error) {
	r.record("GetBlock")
	return nil, nil
}
func (r *recordingProvider) GetBlockByHash(context.Context, common.Hash, bool) (*rpctypes.Block, error) {
	r.record("GetBlockByHash")
	return nil, nil
}
func (r *recordingProvider) GetTransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	r.record("GetTransactionReceipt")
	return &types.Receipt{Status: types.ReceiptStatusSuccessful}, nil
}
func (r *recordingProvider) GetLogs(context.Context, ethereum.FilterQuery) ([]types.Log, error) {
	r.record("GetLogs")
	return nil, nil
}
func (r *recordingProvider) Call(context.Context, rpctypes.TransactionRequest, provider.BlockID) ([]byte, error) {
	r.record("Call")
	return nil, nil
}
func (r *recordingProvider) CallWithOverrides(context.Context, rpctypes.TransactionRequest, provider.BlockID, rpctypes.StateOverride) ([]byte, error) {
	r.record("CallWithOverrides")
	return nil, nil
}
func (r *recordingProvider) CallMany(context.Context, []rpctypes.TransactionRequest, provider.BlockID) ([]rpctypes.CallOutcome, error) {
	r.record("CallMany")
	return nil, nil
}
func (r *recordingProvider) EstimateGas(context.Context, rpctypes.TransactionRequest, provider.BlockID) (uint64, error) {
	r.record("EstimateGas")
	return 21000, nil
}
func (r *recordingProvider) SendRawTransaction(context.Context, []byte) (common.Hash, error) {
	r.record("SendRawTransaction")
	return common.Hash{1}, nil
}

func to(addr common.Address) rpctypes.TransactionRequest {
	return rpctypes.TransactionRequest{To: &addr}
}

// Supplying a reader is enough to finalize the default builder.
func TestIntoLayer_DefaultStandIns(t *testing.T) {
	mc, _ := newTestChain(t)
	l := IntoLayer(Default().WithProvider(mc))

	if _, ok := any(l.Pool()).(txpool.NoopTransactionPool); !ok {
		t.Errorf("pool = %T, want NoopTransactionPool", l.Pool())
	}
	if _, ok := any(l.Executor()).(tasks.GoExecutor); !ok {
		t.Errorf("executor = %T, want GoExecutor", l.Executor())
	}
	if got := l.Network().NumPeers(); got != 0 {
		t.Errorf("noop network peers = %d", got)
	}
	if l.Config() != rpc.DefaultConfig() {
		t.Errorf("config = %+v, want defaults", l.Config())
	}
}

func TestBuilder_WithMethods(t *testing.T) {
	mc, _ := newTestChain(t)
	pool := txpool.NewMemoryPool()
	cfg := rpc.DefaultConfig()
	cfg.GasCap = 1_000_000

	b := NewBuilder(Unset{}, Unset{}, Unset{}, Unset{}, Unset{}).
		WithProvider(mc).
		WithPool(pool).
		WithNoopNetwork().
		WithExecutor(tasks.GoExecutor{}).
		WithEvents(mc).
		WithConfig(cfg)
	if b.Provider() != chain.StateReader(mc) || b.Events() != chain.CanonStateSubscriptions(mc) {
		t.Fatal("provider or events slot not set")
	}
	if b.Pool() != txpool.TransactionPool(pool) {
		t.Fatal("pool slot not set")
	}
	if b.Config().GasCap != 1_000_000 {
		t.Fatalf("GasCap = %d", b.Config().GasCap)
	}

	l := IntoLayer(b.WithNoopPool().WithNoopEvents())
	if _, ok := any(l.Pool()).(txpool.NoopTransactionPool); !ok {
		t.Errorf("pool = %T after WithNoopPool", l.Pool())
	}
	if _, ok := any(l.Events()).(chain.NoopCanonStateSubscriptions); !ok {
		t.Errorf("events = %T after WithNoopEvents", l.Events())
	}
	if l.Handlers().API.ChainID().ToInt().Int64() != 1337 {
		t.Fatal("bundle not built over the supplied reader")
	}
}

func TestLayer_HandlersBuiltOnce(t *testing.T) {
	mc, _ := newTestChain(t)
	l := IntoLayer(Default().WithProvider(mc))
	before := metrics.HandlerBundlesBuilt.Value()

	const n = 64
	got := make([]*rpc.EthHandlers, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got[i] = l.Handlers()
		}()
	}
	wg.Wait()

	for i, h := range got {
		if h == nil || h != got[0] {
			t.Fatalf("Handlers()[%d] = %p, want %p", i, h, got[0])
		}
	}
	if built := metrics.HandlerBundlesBuilt.Value() - before; built != 1 {
		t.Fatalf("bundles built = %d, want 1", built)
	}
	l.Close()
}

func TestLayer_WithResetsBundle(t *testing.T) {
	mc, _ := newTestChain(t)
	l := IntoLayer(Default().WithProvider(mc).WithPool(txpool.NewMemoryPool()))
	first := l.Handlers()
	before := metrics.HandlerBundlesBuilt.Value()

	derived := l.WithNoopPool()
	if derived.Handlers() == first {
		t.Fatal("derived layer reused the original bundle")
	}
	if built := metrics.HandlerBundlesBuilt.Value() - before; built != 1 {
		t.Fatalf("bundles built = %d, want 1", built)
	}
	if l.Handlers() != first {
		t.Fatal("original layer lost its bundle")
	}
	if derived.WithConfig(rpc.DefaultConfig()).Handlers() == derived.Handlers() {
		t.Fatal("WithConfig reused the bundle")
	}
}

func TestDirectProvider_Interception(t *testing.T) {
	mc, blocks := newTestChain(t)
	l := IntoLayer(Default().WithProvider(mc))
	inner := newRecordingProvider()
	p := provider.Stack(inner, l)
	ctx := context.Background()

	if _, err := p.GetBalance(ctx, holder, provider.Latest); err != nil {
		t.Fatal(err)
	}
	if _, err := p.GetStorageAt(ctx, storeAt, uint256.NewInt(0), provider.Latest); err != nil {
		t.Fatal(err)
	}
	if _, err := p.GetCodeAt(ctx, storeAt, provider.Latest); err != nil {
		t.Fatal(err)
	}
	if _, err := p.GetBlock(ctx, provider.NumberID(0), false); err != nil {
		t.Fatal(err)
	}
	if _, err := p.GetBlockByHash(ctx, blocks[1].Hash(), true); err != nil {
		t.Fatal(err)
	}
	if _, err := p.GetLogs(ctx, ethereum.FilterQuery{}); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Call(ctx, to(storeAt), provider.Latest); err != nil {
		t.Fatal(err)
	}
	if _, err := p.CallWithOverrides(ctx, to(storeAt), provider.Latest, rpctypes.StateOverride{}); err != nil {
		t.Fatal(err)
	}
	if _, err := p.CallMany(ctx, []rpctypes.TransactionRequest{to(storeAt)}, provider.Latest); err != nil {
		t.Fatal(err)
	}
	if n := inner.total(); n != 0 {
		t.Fatalf("intercepted calls reached the inner provider %d times: %v", n, inner.calls)
	}

	forwarded := metrics.ForwardedCalls.Value()
	if id, _ := p.ChainID(ctx); id.Int64() != 5 {
		t.Errorf("ChainID = %v, want inner's 5", id)
	}
	if n, _ := p.BlockNumber(ctx); n != 99 {
		t.Errorf("BlockNumber = %d, want inner's 99", n)
	}
	if price, _ := p.GasPrice(ctx); price.Int64() != 3 {
		t.Errorf("GasPrice = %v", price)
	}
	if n, _ := p.GetTransactionCount(ctx, holder, provider.Latest); n != 42 {
		t.Errorf("GetTransactionCount = %d", n)
	}
	if r, _ := p.GetTransactionReceipt(ctx, common.Hash{}); r == nil {
		t.Error("GetTransactionReceipt not forwarded")
	}
	if g, _ := p.EstimateGas(ctx, to(storeAt), provider.Latest); g != 21000 {
		t.Errorf("EstimateGas = %d", g)
	}
	if h, _ := p.SendRawTransaction(ctx, []byte{1}); h != (common.Hash{1}) {
		t.Errorf("SendRawTransaction = %x", h)
	}
	for _, op := range []string{"ChainID", "BlockNumber", "GasPrice", "GetTransactionCount", "GetTransactionReceipt", "EstimateGas", "SendRawTransaction"} {
		if inner.count(op) != 1 {
			t.Errorf("%s forwarded %d times, want 1", op, inner.count(op))
		}
	}
	if got := metrics.ForwardedCalls.Value() - forwarded; got != 7 {
		t.Errorf("ForwardedCalls grew by %d, want 7", got)
	}
}

func TestDirectProvider_RootSkipsBundle(t *testing.T) {
	mc, _ := newTestChain(t)
	l := IntoLayer(Default().WithProvider(mc))
	inner := newRecordingProvider()
	before := metrics.HandlerBundlesBuilt.Value()

	p := l.Layer(inner)
	if p.Root() != nil {
		t.Fatal("Root did not come from the inner provider")
	}
	if inner.count("Root") != 1 {
		t.Fatalf("inner Root calls = %d", inner.count("Root"))
	}
	if built := metrics.HandlerBundlesBuilt.Value() - before; built != 0 {
		t.Fatalf("Root built %d bundles", built)
	}
	dp := p.(*DirectProvider)
	if dp.Inner() != provider.Provider(inner) {
		t.Fatal("Inner() is not the wrapped provider")
	}
	if dp.Handlers() != l.Handlers() {
		t.Fatal("adapter does not share the layer's bundle")
	}
}

func TestDirectProvider_StateQueries(t *testing.T) {
	mc, _ := newTestChain(t)
	p := IntoLayer(Default().WithProvider(mc)).Layer(newRecordingProvider())
	ctx := context.Background()

	bal, err := p.GetBalance(ctx, holder, provider.NumberID(0))
	if err != nil || bal.Uint64() != 1000 {
		t.Fatalf("GetBalance(0) = %v, %v", bal, err)
	}
	bal, err = p.GetBalance(ctx, holder, provider.Latest)
	if err != nil || bal.Uint64() != 1001 {
		t.Fatalf("GetBalance(latest) = %v, %v", bal, err)
	}
	val, err := p.GetStorageAt(ctx, storeAt, uint256.NewInt(0), provider.NumberID(0))
	if err != nil || val.Uint64() != 7 {
		t.Fatalf("GetStorageAt = %v, %v", val, err)
	}
	val, err = p.GetStorageAt(ctx, storeAt, uint256.NewInt(1), provider.Latest)
	if err != nil || !val.IsZero() {
		t.Fatalf("GetStorageAt(empty slot) = %v, %v", val, err)
	}
	code, err := p.GetCodeAt(ctx, storeAt, provider.Latest)
	if err != nil || common.Bytes2Hex(code) != common.Bytes2Hex(storeCode) {
		t.Fatalf("GetCodeAt = %x, %v", code, err)
	}
	out, err := p.Call(ctx, to(storeAt), provider.Latest)
	if err != nil || new(big.Int).SetBytes(out).Int64() != 8 {
		t.Fatalf("Call = %x, %v", out, err)
	}
	out, err = p.CallWithOverrides(ctx, to(storeAt), provider.Latest, rpctypes.StateOverride{
		storeAt: {StateDiff: map[common.Hash]common.Hash{{}: common.BigToHash(big.NewInt(77))}},
	})
	if err != nil || new(big.Int).SetBytes(out).Int64() != 77 {
		t.Fatalf("CallWithOverrides = %x, %v", out, err)
	}
	logs, err := p.GetLogs(ctx, ethereum.FilterQuery{FromBlock: big.NewInt(0), Topics: [][]common.Hash{{topic}}})
	if err != nil || len(logs) != 2 {
		t.Fatalf("GetLogs = %d logs, %v", len(logs), err)
	}
}

func TestDirectProvider_CallMany(t *testing.T) {
	mc, _ := newTestChain(t)
	p := IntoLayer(Default().WithProvider(mc)).Layer(newRecordingProvider())

	txs := []rpctypes.TransactionRequest{to(storeAt), to(reverter), to(storeAt)}
	out, err := p.CallMany(context.Background(), txs, provider.NumberID(0))
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 {
		t.Fatalf("CallMany returned %d outcomes, want 3", len(out))
	}
	if out[0].Failed() || new(big.Int).SetBytes(out[0].Output).Int64() != 7 {
		t.Errorf("outcome 0 = %+v", out[0])
	}
	if !out[1].Failed() {
		t.Errorf("outcome 1 = %+v, want failure", out[1])
	}
	if out[2].Failed() {
		t.Errorf("outcome 2 = %+v", out[2])
	}

	_, err = p.CallMany(context.Background(), nil, provider.Latest)
	if !errors.Is(err, rpc.ErrEmptyBundle) || !provider.IsKind(err, provider.KindCustom) {
		t.Fatalf("empty CallMany err = %v", err)
	}
}

func TestDirectProvider_GetBlockRouting(t *testing.T) {
	mc, blocks := newTestChain(t)
	p := IntoLayer(Default().WithProvider(mc)).Layer(newRecordingProvider())
	ctx := context.Background()

	b, err := p.GetBlock(ctx, provider.HashID(blocks[0].Hash()), false)
	if err != nil || b == nil || b.Number() != 0 {
		t.Fatalf("GetBlock(hash) = %+v, %v", b, err)
	}
	b, err = p.GetBlock(ctx, provider.NumberID(1), false)
	if err != nil || b == nil || b.Hash != blocks[1].Hash() {
		t.Fatalf("GetBlock(1) = %+v, %v", b, err)
	}
	b, err = p.GetBlock(ctx, provider.Latest, false)
	if err != nil || b == nil || b.Hash != blocks[1].Hash() {
		t.Fatalf("GetBlock(latest) = %+v, %v", b, err)
	}

	b, err = p.GetBlock(ctx, provider.HashID(common.Hash{0xde, 0xad}), false)
	if b != nil || err != nil {
		t.Fatalf("GetBlock(unknown hash) = %+v, %v", b, err)
	}
	b, err = p.GetBlock(ctx, provider.NumberID(50), false)
	if b != nil || err != nil {
		t.Fatalf("GetBlock(50) = %+v, %v", b, err)
	}
	b, err = p.GetBlockByHash(ctx, common.Hash{0xbe, 0xef}, true)
	if b != nil || err != nil {
		t.Fatalf("GetBlockByHash(unknown) = %+v, %v", b, err)
	}
}

var errAccountNotFound = errors.New("account not found")

// failingReader fails every header lookup.
type failingReader struct {
	chain.StateReader
}

func (failingReader) HeaderByID(context.Context, gethrpc.BlockNumberOrHash) (*types.Header, error) {
	return nil, errAccountNotFound
}

func TestDirectProvider_Errors(t *testing.T) {
	mc, _ := newTestChain(t)
	p := IntoLayer(Default().WithProvider(failingReader{mc})).Layer(newRecordingProvider())
	errs := metrics.DirectCallErrors.Value()

	bal, err := p.GetBalance(context.Background(), holder, provider.Latest)
	if bal != nil {
		t.Fatalf("GetBalance = %v, want nil on error", bal)
	}
	var te *provider.TransportError
	if !errors.As(err, &te) || te.Kind != provider.KindCustom {
		t.Fatalf("err = %#v, want custom TransportError", err)
	}
	if !errors.Is(err, errAccountNotFound) {
		t.Fatalf("err = %v does not wrap the handler error", err)
	}
	if metrics.DirectCallErrors.Value()-errs != 1 {
		t.Fatal("DirectCallErrors not incremented")
	}

	// Unknown blocks are a handler error for state queries.
	p = IntoLayer(Default().WithProvider(mc)).Layer(newRecordingProvider())
	_, err = p.GetBalance(context.Background(), holder, provider.NumberID(50))
	if !errors.Is(err, rpc.ErrHeaderNotFound) {
		t.Fatalf("GetBalance(50) err = %v", err)
	}
}

func TestDirectProvider_NilStorageKey(t *testing.T) {
	mc, _ := newTestChain(t)
	inner := newRecordingProvider()
	p := IntoLayer(Default().WithProvider(mc)).Layer(inner)

	val, err := p.GetStorageAt(context.Background(), storeAt, nil, provider.Latest)
	if val != nil || !errors.Is(err, ErrNilStorageKey) {
		t.Fatalf("GetStorageAt(nil) = %v, %v, want ErrNilStorageKey", val, err)
	}
	if !provider.IsKind(err, provider.KindCustom) {
		t.Fatalf("err kind: %#v", err)
	}
	if inner.total() != 0 {
		t.Fatal("nil key reached the inner provider")
	}
}

func TestLayer_CloseIsTerminal(t *testing.T) {
	mc, _ := newTestChain(t)
	before := metrics.HandlerBundlesBuilt.Value()

	// Closed before first use: nothing is ever built.
	l := IntoLayer(Default().WithProvider(mc))
	p := l.Layer(newRecordingProvider())
	l.Close()
	if h := l.Handlers(); h != nil {
		t.Fatal("Handlers built a bundle after Close")
	}
	if _, err := p.GetBalance(context.Background(), holder, provider.Latest); !errors.Is(err, ErrLayerClosed) {
		t.Fatalf("GetBalance after Close err = %v, want ErrLayerClosed", err)
	}
	if built := metrics.HandlerBundlesBuilt.Value() - before; built != 0 {
		t.Fatalf("bundles built = %d, want 0", built)
	}

	// Closed after use: the bundle is released and no longer handed out.
	l = IntoLayer(Default().WithProvider(mc))
	p = l.Layer(newRecordingProvider())
	if _, err := p.GetBalance(context.Background(), holder, provider.Latest); err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	l.Close()
	l.Close()
	if l.Handlers() != nil {
		t.Fatal("closed bundle still handed out")
	}
	if _, err := p.GetCodeAt(context.Background(), storeAt, provider.Latest); !errors.Is(err, ErrLayerClosed) {
		t.Fatalf("GetCodeAt after Close err = %v, want ErrLayerClosed", err)
	}

	// Derived layers start open.
	derived := l.WithNoopPool()
	defer derived.Close()
	if derived.Handlers() == nil {
		t.Fatal("layer derived from a closed one is closed")
	}
}

func TestNewLayerFromNode(t *testing.T) {
	mc, _ := newTestChain(t)
	pool := txpool.NewMemoryPool()
	l := NewLayerFromNode(NodeComponents[*chain.MemoryChain, *txpool.MemoryPool, tasks.GoExecutor]{
		Chain: mc,
		Pool:  pool,
	})
	if l.Provider() != mc || l.Events() != mc {
		t.Fatal("chain must fill both the provider and events slots")
	}
	if l.Network().NumPeers() != 0 {
		t.Fatal("node layer network is not noop")
	}
	bal, err := l.Layer(newRecordingProvider()).GetBalance(context.Background(), holder, provider.Latest)
	if err != nil || bal.Uint64() != 1001 {
		t.Fatalf("GetBalance = %v, %v", bal, err)
	}
}

func TestNewLayerFromDB_Unset(t *testing.T) {
	t.Setenv("ETHLAYER_TEST_DB", "")
	if _, err := NewLayerFromDB("ETHLAYER_TEST_DB"); !errors.Is(err, ErrDBPathUnset) {
		t.Fatalf("err = %v, want ErrDBPathUnset", err)
	}
	t.Setenv("ETHLAYER_TEST_DB", t.TempDir())
	if _, err := NewLayerFromDB("ETHLAYER_TEST_DB"); !errors.Is(err, chain.ErrNoDatabase) {
		t.Fatalf("err = %v, want ErrNoDatabase", err)
	}
}
