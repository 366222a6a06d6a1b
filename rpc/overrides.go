package rpc

import (
	"fmt"
	"maps"

	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"

	"github.com/eth2030/ethlayer/rpctypes"
)

// applyStateOverrides writes ov into st. "state" replaces an account's
// whole storage, "stateDiff" patches single slots; an account may not use
// both.
func applyStateOverrides(st *state.StateDB, ov rpctypes.StateOverride) error {
	if len(ov) == 0 {
		return nil
	}
	for addr, acct := range ov {
		if acct.State != nil && acct.StateDiff != nil {
			return fmt.Errorf("%w: account %s", ErrBothStateAndStateDiff, addr.Hex())
		}
		if acct.Nonce != nil {
			st.SetNonce(addr, uint64(*acct.Nonce), tracing.NonceChangeUnspecified)
		}
		if acct.Code != nil {
			st.SetCode(addr, *acct.Code, tracing.CodeChangeUnspecified)
		}
		if acct.Balance != nil {
			bal, overflow := uint256.FromBig(acct.Balance.ToInt())
			if overflow {
				return fmt.Errorf("%w: account %s", ErrBalanceOverflow, addr.Hex())
			}
			st.SetBalance(addr, bal, tracing.BalanceChangeUnspecified)
		}
		if acct.State != nil {
			st.SetStorage(addr, maps.Clone(acct.State))
		}
		for key, value := range acct.StateDiff {
			st.SetState(addr, key, value)
		}
	}
	// Overrides behave as if applied by a transaction right before the call.
	st.Finalise(false)
	return nil
}

// applyBlockOverrides replaces fields of the block environment.
func applyBlockOverrides(bctx *vm.BlockContext, ov *rpctypes.BlockOverrides) {
	if ov == nil {
		return
	}
	if ov.Number != nil {
		bctx.BlockNumber = ov.Number.ToInt()
	}
	if ov.Time != nil {
		bctx.Time = uint64(*ov.Time)
	}
	if ov.GasLimit != nil {
		bctx.GasLimit = uint64(*ov.GasLimit)
	}
	if ov.Coinbase != nil {
		bctx.Coinbase = *ov.Coinbase
	}
	if ov.Random != nil {
		random := *ov.Random
		bctx.Random = &random
	}
	if ov.BaseFee != nil {
		bctx.BaseFee = ov.BaseFee.ToInt()
	}
}
