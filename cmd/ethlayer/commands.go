package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"

	"github.com/eth2030/ethlayer/provider"
	"github.com/eth2030/ethlayer/rpctypes"
)

// errUsage marks malformed command lines.
var errUsage = errors.New("usage")

func usagef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

// execute runs one query command against p and writes the result to out.
func execute(ctx context.Context, p provider.Provider, cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "balance":
		addr, block, err := addressAndBlock(args)
		if err != nil {
			return err
		}
		bal, err := p.GetBalance(ctx, addr, block)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, bal.Dec())

	case "code":
		addr, block, err := addressAndBlock(args)
		if err != nil {
			return err
		}
		code, err := p.GetCodeAt(ctx, addr, block)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, hexutil.Encode(code))

	case "storage":
		if len(args) < 2 {
			return usagef("storage <address> <slot> [block]")
		}
		slot, err := parseSlot(args[1])
		if err != nil {
			return err
		}
		addr, block, err := addressAndBlock(append(args[:1:1], args[2:]...))
		if err != nil {
			return err
		}
		val, err := p.GetStorageAt(ctx, addr, slot, block)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, common.Hash(val.Bytes32()).Hex())

	case "block":
		if len(args) > 1 {
			return usagef("block [block]")
		}
		id := provider.Latest
		if len(args) == 1 {
			var err error
			if id, err = parseBlockID(args[0]); err != nil {
				return err
			}
		}
		b, err := p.GetBlock(ctx, id, false)
		if err != nil {
			return err
		}
		if b == nil {
			return fmt.Errorf("block %s not found", id.String())
		}
		return writeJSON(out, b)

	case "call":
		if len(args) < 1 || len(args) > 3 {
			return usagef("call <to> [data] [block]")
		}
		to, err := parseAddress(args[0])
		if err != nil {
			return err
		}
		tx := rpctypes.TransactionRequest{To: &to}
		block := provider.Latest
		if len(args) > 1 {
			data, err := hexutil.Decode(args[1])
			if err != nil {
				return fmt.Errorf("invalid call data %q: %w", args[1], err)
			}
			input := hexutil.Bytes(data)
			tx.Input = &input
		}
		if len(args) > 2 {
			if block, err = parseBlockID(args[2]); err != nil {
				return err
			}
		}
		res, err := p.Call(ctx, tx, block)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, hexutil.Encode(res))

	case "logs":
		if len(args) < 2 || len(args) > 3 {
			return usagef("logs <from> <to> [address]")
		}
		q := ethereum.FilterQuery{}
		for i, dst := range []**big.Int{&q.FromBlock, &q.ToBlock} {
			n, err := strconv.ParseUint(args[i], 0, 63)
			if err != nil {
				return fmt.Errorf("invalid block number %q", args[i])
			}
			*dst = new(big.Int).SetUint64(n)
		}
		if len(args) == 3 {
			addr, err := parseAddress(args[2])
			if err != nil {
				return err
			}
			q.Addresses = []common.Address{addr}
		}
		logs, err := p.GetLogs(ctx, q)
		if err != nil {
			return err
		}
		if logs == nil {
			logs = []types.Log{}
		}
		return writeJSON(out, logs)

	case "chainid":
		id, err := p.ChainID(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, id)

	case "blocknumber":
		n, err := p.BlockNumber(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, n)

	default:
		return usagef("unknown command %q", cmd)
	}
	return nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// addressAndBlock parses "<address> [block]".
func addressAndBlock(args []string) (common.Address, provider.BlockID, error) {
	if len(args) < 1 || len(args) > 2 {
		return common.Address{}, provider.BlockID{}, usagef("expected <address> [block]")
	}
	addr, err := parseAddress(args[0])
	if err != nil {
		return common.Address{}, provider.BlockID{}, err
	}
	block := provider.Latest
	if len(args) == 2 {
		if block, err = parseBlockID(args[1]); err != nil {
			return common.Address{}, provider.BlockID{}, err
		}
	}
	return addr, block, nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// parseBlockID accepts a tag, a decimal or hex number, or a block hash.
func parseBlockID(s string) (provider.BlockID, error) {
	if strings.HasPrefix(s, "0x") && len(s) == 66 {
		h, err := hexutil.Decode(s)
		if err != nil {
			return provider.BlockID{}, fmt.Errorf("invalid block hash %q", s)
		}
		return provider.HashID(common.BytesToHash(h)), nil
	}
	if n, err := strconv.ParseUint(s, 10, 63); err == nil {
		return provider.NumberID(gethrpc.BlockNumber(n)), nil
	}
	var n gethrpc.BlockNumber
	if err := n.UnmarshalJSON([]byte(strconv.Quote(s))); err != nil {
		return provider.BlockID{}, fmt.Errorf("invalid block %q", s)
	}
	return provider.NumberID(n), nil
}

func parseSlot(s string) (*uint256.Int, error) {
	var (
		v   *uint256.Int
		err error
	)
	if strings.HasPrefix(s, "0x") {
		v, err = uint256.FromHex(s)
		if err != nil {
			// Left-padded 32-byte slots keep their leading zeros.
			b, herr := hexutil.Decode(s)
			if herr != nil || len(b) > 32 {
				return nil, fmt.Errorf("invalid slot %q", s)
			}
			return new(uint256.Int).SetBytes(b), nil
		}
		return v, nil
	}
	if v, err = uint256.FromDecimal(s); err != nil {
		return nil, fmt.Errorf("invalid slot %q", s)
	}
	return v, nil
}
