// File: protocol/framer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Stateful stream decoder: turns receives of arbitrary size into complete
// frames. Partial headers and bodies are carried across calls; several frames
// packed into one receive are all emitted before OnReceive returns.

package protocol

import (
	"fmt"

	"github.com/momentics/hioload-net/api"
)

// ProtocolError reports a header declaring a body larger than allowed.
type ProtocolError struct {
	Declared int
	Max      int
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("declared body length %d exceeds maximum %d", e.Declared, e.Max)
}

// Unwrap lets errors.Is match api.ErrProtocolViolation.
func (e *ProtocolError) Unwrap() error { return api.ErrProtocolViolation }

// Framer reassembles frames from a byte stream.
// Not safe for concurrent use; callers serialize OnReceive per connection.
type Framer struct {
	width   HeaderWidth
	maxBody int
	buf     []byte // width + maxBody, never written past

	current int // bytes accumulated for the frame being assembled
	target  int // position current must reach
	bodyLen int

	// per-call source cursor
	src       []byte
	srcPos    int
	remaining int

	err error
}

// NewFramer builds a framer whose working buffer holds exactly one frame of
// maxBody bytes. maxBody <= 0 selects w.DefaultMaxBody().
func NewFramer(w HeaderWidth, maxBody int) (*Framer, error) {
	if !w.Valid() {
		return nil, fmt.Errorf("new framer: header width %d: %w", int(w), api.ErrInvalidArgument)
	}
	if maxBody <= 0 {
		maxBody = w.DefaultMaxBody()
	}
	if maxBody > w.MaxBodyLen() {
		maxBody = w.MaxBodyLen()
	}
	return &Framer{
		width:   w,
		maxBody: maxBody,
		buf:     make([]byte, int(w)+maxBody),
	}, nil
}

// Width returns the header width.
func (f *Framer) Width() HeaderWidth { return f.width }

// MaxBody returns the largest accepted body length.
func (f *Framer) MaxBody() int { return f.maxBody }

// Buffered reports how many bytes of an incomplete frame are held.
func (f *Framer) Buffered() int { return f.current }

// Err returns the sticky protocol error, if any.
func (f *Framer) Err() error { return f.err }

// Reset drops partial state and any protocol error.
func (f *Framer) Reset() {
	f.current, f.target, f.bodyLen = 0, 0, 0
	f.src, f.srcPos, f.remaining = nil, 0, 0
	f.err = nil
}

// OnReceive consumes buf[offset:offset+length]. emit is called once per
// completed frame with the body; the slice is only valid during the call.
// A declared length above MaxBody poisons the framer: this and every later
// call return the *ProtocolError until Reset.
func (f *Framer) OnReceive(buf []byte, offset, length int, emit func(body []byte)) error {
	if f.err != nil {
		return f.err
	}
	if offset < 0 || length < 0 || offset+length > len(buf) {
		return fmt.Errorf("framer: window [%d:+%d] outside %d-byte buffer: %w",
			offset, length, len(buf), api.ErrInvalidArgument)
	}
	f.src, f.srcPos, f.remaining = buf, offset, length
	defer func() { f.src = nil }()

	hw := int(f.width)
	for f.remaining > 0 {
		if f.current < hw {
			f.target = hw
			if !f.readUntil() {
				return nil
			}
			f.bodyLen = BodyLen(f.buf[:hw], f.width)
			if f.bodyLen > f.maxBody {
				f.err = &ProtocolError{Declared: f.bodyLen, Max: f.maxBody}
				return f.err
			}
			f.target = hw + f.bodyLen
		}
		if !f.readUntil() {
			return nil
		}
		if emit != nil {
			emit(f.buf[hw:f.target])
		}
		f.current, f.target, f.bodyLen = 0, 0, 0
	}
	return nil
}

// readUntil copies min(target-current, remaining) bytes and reports whether
// the target was reached.
func (f *Framer) readUntil() bool {
	n := f.target - f.current
	if n > f.remaining {
		n = f.remaining
	}
	copy(f.buf[f.current:f.current+n], f.src[f.srcPos:f.srcPos+n])
	f.current += n
	f.srcPos += n
	f.remaining -= n
	return f.current == f.target
}
