package rpc

import (
	"encoding/binary"
	"encoding/hex"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/sha3"
)

var idSeq atomic.Uint64

// newID returns a unique 16-byte hex identifier for filters and
// subscriptions, derived with keccak256 over a sequence number and the
// current time.
func newID() string {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], idSeq.Add(1))
	binary.LittleEndian.PutUint64(buf[8:], uint64(time.Now().UnixNano()))
	h := sha3.NewLegacyKeccak256()
	h.Write(buf[:])
	return "0x" + hex.EncodeToString(h.Sum(nil)[:16])
}
