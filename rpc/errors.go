package rpc

import (
	"errors"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/vm"
)

var (
	ErrUnknownBlock                = errors.New("unknown block")
	ErrHeaderNotFound              = errors.New("header not found")
	ErrStateUnavailable            = errors.New("state unavailable")
	ErrEVMTimeout                  = errors.New("execution aborted (timeout)")
	ErrEmptyBundle                 = errors.New("bundle is empty")
	ErrTooManyCalls                = errors.New("too many calls in bundle")
	ErrTransactionIndexOutOfRange  = errors.New("transaction index out of range")
	ErrBothStateAndStateDiff       = errors.New("both state and stateDiff are set")
	ErrBalanceOverflow             = errors.New("balance override overflows 256 bits")
	ErrGasRequiredExceedsAllowance = errors.New("gas required exceeds allowance")
	ErrInvalidBlockRange           = errors.New("invalid block range")
	ErrQueryExceedsMaxBlocks       = errors.New("query exceeds max block range")
	ErrQueryExceedsMaxResults      = errors.New("query exceeds max results")
	ErrFilterNotFound              = errors.New("filter not found")
	ErrTooManyFilters              = errors.New("too many installed filters")
	ErrSubscriptionClosed          = errors.New("subscription source closed")
)

// errCodeReverted is the JSON-RPC error code geth uses for reverts.
const errCodeReverted = 3

// RevertError is an EVM revert, with the decoded reason when the return
// data is an Error(string) or Panic(uint256) payload.
type RevertError struct {
	Reason string
	Data   []byte
}

func (e *RevertError) Error() string {
	if e.Reason != "" {
		return "execution reverted: " + e.Reason
	}
	return "execution reverted"
}

// Unwrap lets errors.Is match vm.ErrExecutionReverted.
func (e *RevertError) Unwrap() error { return vm.ErrExecutionReverted }

func (e *RevertError) ErrorCode() int { return errCodeReverted }

func (e *RevertError) ErrorData() any { return hexutil.Encode(e.Data) }

func newRevertError(data []byte) *RevertError {
	reason, err := abi.UnpackRevert(data)
	if err != nil {
		reason = ""
	}
	return &RevertError{Reason: reason, Data: data}
}

// executionError converts a failed execution result into an error.
func executionError(res *core.ExecutionResult) error {
	if errors.Is(res.Err, vm.ErrExecutionReverted) {
		return newRevertError(res.Revert())
	}
	return res.Err
}
