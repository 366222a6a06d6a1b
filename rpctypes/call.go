package rpctypes

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
)

// ErrBothInputAndData is returned when input and data disagree.
var ErrBothInputAndData = errors.New(`both "data" and "input" are set and not equal`)

// TransactionRequest is a call or transaction description. Every field is
// optional.
type TransactionRequest struct {
	From                 *common.Address   `json:"from,omitempty"`
	To                   *common.Address   `json:"to,omitempty"`
	Gas                  *hexutil.Uint64   `json:"gas,omitempty"`
	GasPrice             *hexutil.Big      `json:"gasPrice,omitempty"`
	MaxFeePerGas         *hexutil.Big      `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas *hexutil.Big      `json:"maxPriorityFeePerGas,omitempty"`
	Value                *hexutil.Big      `json:"value,omitempty"`
	Nonce                *hexutil.Uint64   `json:"nonce,omitempty"`
	Input                *hexutil.Bytes    `json:"input,omitempty"`
	Data                 *hexutil.Bytes    `json:"data,omitempty"`
	AccessList           *types.AccessList `json:"accessList,omitempty"`
	ChainID              *hexutil.Big      `json:"chainId,omitempty"`
}

// CallData returns input, falling back to the legacy data field.
func (r *TransactionRequest) CallData() ([]byte, error) {
	switch {
	case r.Input != nil && r.Data != nil && string(*r.Input) != string(*r.Data):
		return nil, ErrBothInputAndData
	case r.Input != nil:
		return *r.Input, nil
	case r.Data != nil:
		return *r.Data, nil
	}
	return nil, nil
}

// Sender returns From or the zero address.
func (r *TransactionRequest) Sender() common.Address {
	if r.From != nil {
		return *r.From
	}
	return common.Address{}
}

// ValueOrZero returns Value as a big.Int, zero when unset.
func (r *TransactionRequest) ValueOrZero() *big.Int {
	if r.Value != nil {
		return new(big.Int).Set(r.Value.ToInt())
	}
	return new(big.Int)
}

// AccountOverride replaces parts of one account for the duration of a call.
// State replaces the whole storage; StateDiff patches individual slots.
type AccountOverride struct {
	Nonce     *hexutil.Uint64             `json:"nonce,omitempty"`
	Code      *hexutil.Bytes              `json:"code,omitempty"`
	Balance   *hexutil.Big                `json:"balance,omitempty"`
	State     map[common.Hash]common.Hash `json:"state,omitempty"`
	StateDiff map[common.Hash]common.Hash `json:"stateDiff,omitempty"`
}

// StateOverride is a set of per-account overrides.
type StateOverride map[common.Address]AccountOverride

// BlockOverrides replaces block environment fields for a call.
type BlockOverrides struct {
	Number   *hexutil.Big    `json:"number,omitempty"`
	Time     *hexutil.Uint64 `json:"time,omitempty"`
	GasLimit *hexutil.Uint64 `json:"gasLimit,omitempty"`
	Coinbase *common.Address `json:"feeRecipient,omitempty"`
	Random   *common.Hash    `json:"prevRandao,omitempty"`
	BaseFee  *hexutil.Big    `json:"baseFeePerGas,omitempty"`
}

// Bundle is an ordered group of calls sharing one state, plus optional
// block overrides.
type Bundle struct {
	Transactions  []TransactionRequest `json:"transactions"`
	BlockOverride *BlockOverrides      `json:"blockOverride,omitempty"`
}

// StateContext pins where a bundle runs. A nil BlockNumber means latest;
// a nil TransactionIndex means after the whole block.
type StateContext struct {
	BlockNumber      *rpc.BlockNumberOrHash `json:"blockNumber,omitempty"`
	TransactionIndex *int                   `json:"transactionIndex,omitempty"`
}

// EthCallResponse is one entry of a callMany result.
type EthCallResponse struct {
	Value hexutil.Bytes `json:"value,omitempty"`
	Error string        `json:"error,omitempty"`
}

// Outcome converts the response into a CallOutcome.
func (r EthCallResponse) Outcome() CallOutcome {
	if r.Error != "" {
		return CallOutcome{Err: r.Error}
	}
	return CallOutcome{Output: r.Value}
}

// CallOutcome is the per-call result surfaced to provider users: either
// output bytes or an error message.
type CallOutcome struct {
	Output []byte
	Err    string
}

// Failed reports whether the call produced an error.
func (o CallOutcome) Failed() bool { return o.Err != "" }
