package rpc

import (
	"slices"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
)

// matchLog reports whether l satisfies q. Addresses are ORed. Topic
// positions are ANDed with alternatives ORed inside a position; an empty
// position matches anything.
func matchLog(l *types.Log, q *ethereum.FilterQuery) bool {
	if len(q.Addresses) > 0 && !slices.Contains(q.Addresses, l.Address) {
		return false
	}
	for i, alts := range q.Topics {
		if len(alts) == 0 {
			continue
		}
		if i >= len(l.Topics) || !slices.Contains(alts, l.Topics[i]) {
			return false
		}
	}
	return true
}

// bloomMatches reports whether a block with the given bloom may contain a
// log matching q. False positives are possible.
func bloomMatches(bloom types.Bloom, q *ethereum.FilterQuery) bool {
	if len(q.Addresses) > 0 {
		var hit bool
		for _, a := range q.Addresses {
			if bloom.Test(a.Bytes()) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	for _, alts := range q.Topics {
		if len(alts) == 0 {
			continue
		}
		var hit bool
		for _, t := range alts {
			if bloom.Test(t.Bytes()) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

// filterLogs copies the logs of receipts that match q. removed marks the
// copies as coming from a reverted block.
func filterLogs(receipts types.Receipts, q *ethereum.FilterQuery, removed bool) []types.Log {
	var out []types.Log
	for _, r := range receipts {
		for _, l := range r.Logs {
			if matchLog(l, q) {
				cp := *l
				cp.Removed = removed
				out = append(out, cp)
			}
		}
	}
	return out
}
