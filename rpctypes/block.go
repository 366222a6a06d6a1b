// Package rpctypes holds the value types shared by the handlers, the
// provider contract and the direct-call adapter.
package rpctypes

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// Block is the RPC view of a block: the header plus either transaction
// hashes or full transactions.
type Block struct {
	Header       *types.Header
	Hash         common.Hash
	Size         uint64
	Transactions BlockTransactions
	Uncles       []common.Hash
	Withdrawals  types.Withdrawals
}

// BlockTransactions carries hashes, or full bodies when Full is non-nil.
type BlockTransactions struct {
	Hashes []common.Hash
	Full   []*types.Transaction
}

// IsFull reports whether full transaction bodies are present.
func (t BlockTransactions) IsFull() bool { return t.Full != nil }

// Len is the number of transactions regardless of representation.
func (t BlockTransactions) Len() int {
	if t.IsFull() {
		return len(t.Full)
	}
	return len(t.Hashes)
}

// NewBlock converts a chain block into its RPC view.
func NewBlock(b *types.Block, fullTx bool) *Block {
	out := &Block{
		Header:      b.Header(),
		Hash:        b.Hash(),
		Size:        b.Size(),
		Withdrawals: b.Withdrawals(),
	}
	txs := b.Transactions()
	if fullTx {
		out.Transactions.Full = make([]*types.Transaction, len(txs))
		copy(out.Transactions.Full, txs)
	} else {
		out.Transactions.Hashes = make([]common.Hash, len(txs))
		for i, tx := range txs {
			out.Transactions.Hashes[i] = tx.Hash()
		}
	}
	uncles := b.Uncles()
	out.Uncles = make([]common.Hash, len(uncles))
	for i, u := range uncles {
		out.Uncles[i] = u.Hash()
	}
	return out
}

// Number is a convenience accessor for the header number.
func (b *Block) Number() uint64 {
	if b == nil || b.Header == nil || b.Header.Number == nil {
		return 0
	}
	return b.Header.Number.Uint64()
}

type blockExtra struct {
	Hash         common.Hash       `json:"hash"`
	Size         hexutil.Uint64    `json:"size"`
	Transactions []json.RawMessage `json:"transactions"`
	Uncles       []common.Hash     `json:"uncles"`
	Withdrawals  types.Withdrawals `json:"withdrawals,omitempty"`
}

// MarshalJSON flattens the header fields next to the block fields, the
// way eth_getBlockBy* responses look on the wire.
func (b *Block) MarshalJSON() ([]byte, error) {
	if b.Header == nil {
		return nil, errors.New("rpctypes: block without header")
	}
	head, err := json.Marshal(b.Header)
	if err != nil {
		return nil, err
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(head, &fields); err != nil {
		return nil, err
	}
	set := func(key string, v any) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		fields[key] = raw
		return nil
	}
	var txs any = b.Transactions.Hashes
	if b.Transactions.IsFull() {
		txs = b.Transactions.Full
	}
	if txs == nil {
		txs = []common.Hash{}
	}
	uncles := b.Uncles
	if uncles == nil {
		uncles = []common.Hash{}
	}
	for key, v := range map[string]any{
		"hash":         b.Hash,
		"size":         hexutil.Uint64(b.Size),
		"transactions": txs,
		"uncles":       uncles,
	} {
		if err := set(key, v); err != nil {
			return nil, err
		}
	}
	if b.Withdrawals != nil {
		if err := set("withdrawals", b.Withdrawals); err != nil {
			return nil, err
		}
	}
	return json.Marshal(fields)
}

// UnmarshalJSON accepts both hash-only and full-transaction responses.
func (b *Block) UnmarshalJSON(input []byte) error {
	var head types.Header
	if err := json.Unmarshal(input, &head); err != nil {
		return fmt.Errorf("rpctypes: decode header: %w", err)
	}
	var extra blockExtra
	if err := json.Unmarshal(input, &extra); err != nil {
		return fmt.Errorf("rpctypes: decode block: %w", err)
	}
	*b = Block{
		Header:      &head,
		Hash:        extra.Hash,
		Size:        uint64(extra.Size),
		Uncles:      extra.Uncles,
		Withdrawals: extra.Withdrawals,
	}
	if b.Hash == (common.Hash{}) {
		b.Hash = head.Hash()
	}
	if len(extra.Transactions) == 0 {
		b.Transactions.Hashes = []common.Hash{}
		return nil
	}
	// A quoted first element means the node returned hashes only.
	if len(extra.Transactions[0]) > 0 && extra.Transactions[0][0] == '"' {
		b.Transactions.Hashes = make([]common.Hash, len(extra.Transactions))
		for i, raw := range extra.Transactions {
			if err := json.Unmarshal(raw, &b.Transactions.Hashes[i]); err != nil {
				return fmt.Errorf("rpctypes: decode tx hash %d: %w", i, err)
			}
		}
		return nil
	}
	b.Transactions.Full = make([]*types.Transaction, len(extra.Transactions))
	for i, raw := range extra.Transactions {
		tx := new(types.Transaction)
		if err := tx.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("rpctypes: decode tx %d: %w", i, err)
		}
		b.Transactions.Full[i] = tx
	}
	return nil
}
