// File: pool/bytepool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Size-classed []byte reuse for transient copies (outbound messages).

package pool

import (
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-net/api"
)

// Size classes, smallest first. Larger requests are allocated directly.
var byteClasses = [...]int{64, 256, 1 << 10, 4 << 10, 16 << 10, 64 << 10, 256 << 10, 1 << 20}

// BytePool keeps one sync.Pool per size class.
type BytePool struct {
	pools [len(byteClasses)]sync.Pool

	hits   atomic.Uint64
	misses atomic.Uint64
}

var _ api.BytePool = (*BytePool)(nil)

// NewBytePool builds an empty pool; buffers are created on demand.
func NewBytePool() *BytePool {
	bp := &BytePool{}
	for i := range bp.pools {
		size := byteClasses[i]
		bp.pools[i].New = func() any {
			b := make([]byte, size)
			return &b
		}
	}
	return bp
}

func classFor(n int) int {
	for i, size := range byteClasses {
		if n <= size {
			return i
		}
	}
	return -1
}

func classOf(capacity int) int {
	for i, size := range byteClasses {
		if capacity == size {
			return i
		}
	}
	return -1
}

// Acquire returns a slice of length n. Contents are not zeroed.
func (bp *BytePool) Acquire(n int) []byte {
	if n < 0 {
		n = 0
	}
	idx := classFor(n)
	if idx < 0 {
		bp.misses.Add(1)
		return make([]byte, n)
	}
	bp.hits.Add(1)
	b := bp.pools[idx].Get().(*[]byte)
	return (*b)[:n]
}

// Release returns buf for reuse. Slices whose capacity is not a class size
// are left to the GC.
func (bp *BytePool) Release(buf []byte) {
	idx := classOf(cap(buf))
	if idx < 0 {
		return
	}
	b := buf[:cap(buf)]
	bp.pools[idx].Put(&b)
}

// Hits reports acquires served from a size class.
func (bp *BytePool) Hits() uint64 { return bp.hits.Load() }

// Misses reports acquires too large for any class.
func (bp *BytePool) Misses() uint64 { return bp.misses.Load() }
