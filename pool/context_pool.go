// File: pool/context_pool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Fixed-capacity pool of reusable I/O contexts backed by one slab.
// Acquire never blocks: an empty pool fails fast with ErrResourceExhausted.

package pool

import (
	"fmt"
	"sync"

	"github.com/momentics/hioload-net/api"
)

// IOContext is a reusable I/O handle bound to one slab segment. It belongs to
// the pool until acquired and to exactly one owner until released.
type IOContext struct {
	index  int
	buf    []byte
	pool   *ContextPool
	pooled bool // guarded by pool.mu

	// Owner is the holder of an acquired context. Cleared on release.
	Owner any

	// Attachment is per-slot state built once with the pool (for example a
	// framer) that travels with the context across owners.
	Attachment any
}

// Index identifies the slot inside its pool.
func (c *IOContext) Index() int { return c.index }

// Buffer returns the whole segment.
func (c *IOContext) Buffer() []byte { return c.buf }

// Cap reports the segment size.
func (c *IOContext) Cap() int { return len(c.buf) }

// Window returns the first n bytes of the segment, the analogue of setting
// the transfer window before an operation is issued.
func (c *IOContext) Window(n int) []byte { return c.buf[:n] }

// ContextPool hands out IOContexts in O(1) under its own mutex.
type ContextPool struct {
	mu    sync.Mutex
	free  []*IOContext
	all   []*IOContext
	slab  *Slab
	stats api.PoolStats
}

// NewContextPool pre-builds capacity contexts of size bytes each. When init is
// non-nil it runs once per context before the pool is returned.
func NewContextPool(capacity, size int, init func(*IOContext)) (*ContextPool, error) {
	slab, err := NewSlab(capacity, size)
	if err != nil {
		return nil, err
	}
	p := &ContextPool{
		free: make([]*IOContext, 0, capacity),
		all:  make([]*IOContext, capacity),
		slab: slab,
	}
	p.stats.Capacity = capacity
	for i := 0; i < capacity; i++ {
		c := &IOContext{index: i, buf: slab.Segment(i), pool: p, pooled: true}
		if init != nil {
			init(c)
		}
		p.all[i] = c
	}
	// Push in reverse so the first Acquire hands out slot 0.
	for i := capacity - 1; i >= 0; i-- {
		p.free = append(p.free, p.all[i])
	}
	return p, nil
}

// Acquire removes and returns one context.
func (p *ContextPool) Acquire() (*IOContext, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.free)
	if n == 0 {
		p.stats.Exhausted++
		return nil, api.NewError(api.KindResourceExhausted, "pool acquire", nil).
			WithContext("capacity", p.stats.Capacity)
	}
	c := p.free[n-1]
	p.free[n-1] = nil
	p.free = p.free[:n-1]
	c.pooled = false
	p.stats.Acquired++
	return c, nil
}

// Release returns c to the pool. Nil, foreign and already pooled contexts
// are refused.
func (p *ContextPool) Release(c *IOContext) error {
	if c == nil {
		p.badRelease()
		return fmt.Errorf("pool release: nil context: %w", api.ErrInvalidArgument)
	}
	if c.pool != p {
		p.badRelease()
		return fmt.Errorf("pool release: context %d belongs to another pool: %w", c.index, api.ErrInvalidArgument)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if c.pooled {
		p.stats.BadReleases++
		return fmt.Errorf("pool release: context %d already pooled: %w", c.index, api.ErrInvalidArgument)
	}
	c.pooled = true
	c.Owner = nil
	p.free = append(p.free, c)
	return nil
}

func (p *ContextPool) badRelease() {
	p.mu.Lock()
	p.stats.BadReleases++
	p.mu.Unlock()
}

// Len reports how many contexts are available.
func (p *ContextPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// Cap reports the fixed capacity.
func (p *ContextPool) Cap() int { return len(p.all) }

// InUse reports how many contexts are currently acquired.
func (p *ContextPool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.all) - len(p.free)
}

// SegmentSize reports the buffer size of each context.
func (p *ContextPool) SegmentSize() int { return p.slab.SegmentSize() }

// Stats returns a snapshot of pool counters.
func (p *ContextPool) Stats() api.PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	s.Available = len(p.free)
	s.InUse = len(p.all) - len(p.free)
	return s
}
