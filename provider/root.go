package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"

	"github.com/eth2030/ethlayer/rpctypes"
)

// RootProvider talks JSON-RPC to a node. It is the bottom of every stack.
type RootProvider struct {
	client *rpc.Client
}

// Dial connects to a node at url (http, ws or ipc).
func Dial(ctx context.Context, url string) (*RootProvider, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return NewRootProvider(client), nil
}

// NewRootProvider wraps an existing client.
func NewRootProvider(client *rpc.Client) *RootProvider {
	return &RootProvider{client: client}
}

// Client returns the underlying client.
func (p *RootProvider) Client() *rpc.Client { return p.client }

// Close closes the connection.
func (p *RootProvider) Close() { p.client.Close() }

func (p *RootProvider) Root() *RootProvider { return p }

func (p *RootProvider) call(ctx context.Context, result any, method string, args ...any) error {
	return classify(p.client.CallContext(ctx, result, method, args...))
}

// toBlockArg encodes id the way eth_* methods take block parameters:
// a number or tag string, or an EIP-1898 object for hashes.
func toBlockArg(id BlockID) any {
	if hash, ok := id.Hash(); ok {
		return map[string]any{"blockHash": hash, "requireCanonical": id.RequireCanonical}
	}
	if n, ok := id.Number(); ok {
		return toBlockNumArg(n)
	}
	return "latest"
}

func toBlockNumArg(n rpc.BlockNumber) string {
	if n >= 0 {
		return hexutil.EncodeUint64(uint64(n))
	}
	return n.String()
}

func (p *RootProvider) ChainID(ctx context.Context) (*big.Int, error) {
	var id hexutil.Big
	if err := p.call(ctx, &id, "eth_chainId"); err != nil {
		return nil, err
	}
	return id.ToInt(), nil
}

func (p *RootProvider) BlockNumber(ctx context.Context) (uint64, error) {
	var n hexutil.Uint64
	err := p.call(ctx, &n, "eth_blockNumber")
	return uint64(n), err
}

func (p *RootProvider) GasPrice(ctx context.Context) (*big.Int, error) {
	var price hexutil.Big
	if err := p.call(ctx, &price, "eth_gasPrice"); err != nil {
		return nil, err
	}
	return price.ToInt(), nil
}

func (p *RootProvider) GetBalance(ctx context.Context, addr common.Address, block BlockID) (*uint256.Int, error) {
	var bal hexutil.Big
	if err := p.call(ctx, &bal, "eth_getBalance", addr, toBlockArg(block)); err != nil {
		return nil, err
	}
	v, overflow := uint256.FromBig(bal.ToInt())
	if overflow {
		return nil, &TransportError{Kind: KindDeserialization, Err: fmt.Errorf("balance %s overflows 256 bits", bal.ToInt())}
	}
	return v, nil
}

func (p *RootProvider) GetStorageAt(ctx context.Context, addr common.Address, key *uint256.Int, block BlockID) (*uint256.Int, error) {
	var val hexutil.Bytes
	slot := common.Hash(key.Bytes32())
	if err := p.call(ctx, &val, "eth_getStorageAt", addr, slot, toBlockArg(block)); err != nil {
		return nil, err
	}
	if len(val) > 32 {
		return nil, &TransportError{Kind: KindDeserialization, Err: fmt.Errorf("storage value of %d bytes", len(val))}
	}
	return new(uint256.Int).SetBytes(val), nil
}

func (p *RootProvider) GetCodeAt(ctx context.Context, addr common.Address, block BlockID) ([]byte, error) {
	var code hexutil.Bytes
	err := p.call(ctx, &code, "eth_getCode", addr, toBlockArg(block))
	return code, err
}

func (p *RootProvider) GetTransactionCount(ctx context.Context, addr common.Address, block BlockID) (uint64, error) {
	var n hexutil.Uint64
	err := p.call(ctx, &n, "eth_getTransactionCount", addr, toBlockArg(block))
	return uint64(n), err
}

// getBlock decodes a block response; a JSON null is a missing block.
func (p *RootProvider) getBlock(ctx context.Context, method string, args ...any) (*rpctypes.Block, error) {
	var raw json.RawMessage
	if err := p.call(ctx, &raw, method, args...); err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	block := new(rpctypes.Block)
	if err := json.Unmarshal(raw, block); err != nil {
		return nil, &TransportError{Kind: KindDeserialization, Err: err}
	}
	return block, nil
}

func (p *RootProvider) GetBlock(ctx context.Context, id BlockID, full bool) (*rpctypes.Block, error) {
	if hash, ok := id.Hash(); ok {
		return p.GetBlockByHash(ctx, hash, full)
	}
	n, ok := id.Number()
	if !ok {
		n = rpc.LatestBlockNumber
	}
	return p.getBlock(ctx, "eth_getBlockByNumber", toBlockNumArg(n), full)
}

func (p *RootProvider) GetBlockByHash(ctx context.Context, hash common.Hash, full bool) (*rpctypes.Block, error) {
	return p.getBlock(ctx, "eth_getBlockByHash", hash, full)
}

func (p *RootProvider) GetTransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	var r *types.Receipt
	if err := p.call(ctx, &r, "eth_getTransactionReceipt", hash); err != nil {
		return nil, err
	}
	return r, nil
}

func (p *RootProvider) GetLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	arg, err := toFilterArg(q)
	if err != nil {
		return nil, &TransportError{Kind: KindCustom, Err: err}
	}
	var logs []types.Log
	err = p.call(ctx, &logs, "eth_getLogs", arg)
	return logs, err
}

func toFilterArg(q ethereum.FilterQuery) (any, error) {
	arg := map[string]any{
		"address": q.Addresses,
		"topics":  q.Topics,
	}
	if q.BlockHash != nil {
		arg["blockHash"] = *q.BlockHash
		if q.FromBlock != nil || q.ToBlock != nil {
			return nil, errors.New("cannot specify both BlockHash and FromBlock/ToBlock")
		}
		return arg, nil
	}
	if q.FromBlock == nil {
		arg["fromBlock"] = "0x0"
	} else {
		arg["fromBlock"] = toBigBlockArg(q.FromBlock)
	}
	arg["toBlock"] = toBigBlockArg(q.ToBlock)
	return arg, nil
}

func toBigBlockArg(n *big.Int) string {
	if n == nil {
		return "latest"
	}
	if n.Sign() >= 0 {
		return hexutil.EncodeBig(n)
	}
	return rpc.BlockNumber(n.Int64()).String()
}

func (p *RootProvider) Call(ctx context.Context, tx rpctypes.TransactionRequest, block BlockID) ([]byte, error) {
	var out hexutil.Bytes
	err := p.call(ctx, &out, "eth_call", tx, toBlockArg(block))
	return out, err
}

func (p *RootProvider) CallWithOverrides(ctx context.Context, tx rpctypes.TransactionRequest, block BlockID, state rpctypes.StateOverride) ([]byte, error) {
	var out hexutil.Bytes
	err := p.call(ctx, &out, "eth_call", tx, toBlockArg(block), state)
	return out, err
}

func (p *RootProvider) CallMany(ctx context.Context, txs []rpctypes.TransactionRequest, block BlockID) ([]rpctypes.CallOutcome, error) {
	stateCtx := map[string]any{"blockNumber": toBlockArg(block)}
	var res [][]rpctypes.EthCallResponse
	if err := p.call(ctx, &res, "eth_callMany", []rpctypes.Bundle{{Transactions: txs}}, stateCtx); err != nil {
		return nil, err
	}
	if len(res) != 1 {
		return nil, &TransportError{Kind: KindDeserialization, Err: fmt.Errorf("eth_callMany returned %d bundles, want 1", len(res))}
	}
	out := make([]rpctypes.CallOutcome, len(res[0]))
	for i, r := range res[0] {
		out[i] = r.Outcome()
	}
	return out, nil
}

func (p *RootProvider) EstimateGas(ctx context.Context, tx rpctypes.TransactionRequest, block BlockID) (uint64, error) {
	var gas hexutil.Uint64
	err := p.call(ctx, &gas, "eth_estimateGas", tx, toBlockArg(block))
	return uint64(gas), err
}

func (p *RootProvider) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	var hash common.Hash
	err := p.call(ctx, &hash, "eth_sendRawTransaction", hexutil.Bytes(raw))
	return hash, err
}
