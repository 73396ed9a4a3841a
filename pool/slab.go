// File: pool/slab.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Single pre-allocated region carved into equal, non-overlapping segments.

package pool

import "fmt"

// Slab is one contiguous []byte split into count segments of size bytes.
type Slab struct {
	buf   []byte
	size  int
	count int
}

// NewSlab allocates count*size bytes up front.
func NewSlab(count, size int) (*Slab, error) {
	if count <= 0 || size <= 0 {
		return nil, fmt.Errorf("slab: count and size must be positive (count=%d size=%d)", count, size)
	}
	if count > int(^uint(0)>>1)/size {
		return nil, fmt.Errorf("slab: %d segments of %d bytes overflow", count, size)
	}
	return &Slab{
		buf:   make([]byte, count*size),
		size:  size,
		count: count,
	}, nil
}

// Segment returns segment i. Its capacity is capped so appends cannot spill
// into the neighbouring segment.
func (s *Slab) Segment(i int) []byte {
	off := i * s.size
	return s.buf[off : off+s.size : off+s.size]
}

// SegmentSize reports the size of every segment.
func (s *Slab) SegmentSize() int { return s.size }

// Count reports the number of segments.
func (s *Slab) Count() int { return s.count }
