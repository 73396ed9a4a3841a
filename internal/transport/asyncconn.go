// File: internal/transport/asyncconn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// AsyncConn issues receive and send operations that complete either inline or
// later through a Completion. There is exactly one completion per operation:
// the inline result when pending is false, the callback when it is true.

package transport

import (
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/momentics/hioload-net/api"
)

// Completion delivers the result of a parked operation.
type Completion func(n int, err error)

// AsyncConn wraps a stream connection. At most one receive and one send may
// be outstanding at a time; the caller enforces this.
type AsyncConn struct {
	conn net.Conn
	raw  syscall.RawConn // nil when conn exposes no descriptor
}

// NewAsyncConn wraps conn. Connections without a descriptor (net.Pipe, TLS)
// always complete through the parked path.
func NewAsyncConn(conn net.Conn) *AsyncConn {
	a := &AsyncConn{conn: conn}
	if sc, ok := conn.(syscall.Conn); ok {
		if raw, err := sc.SyscallConn(); err == nil {
			a.raw = raw
		}
	}
	return a
}

// ReceiveAsync reads into buf. If data or an error is available immediately
// it is returned with pending == false and done is never called. Otherwise
// the read is parked and done receives the result. A zero-byte read is
// reported as io.EOF.
func (a *AsyncConn) ReceiveAsync(buf []byte, done Completion) (n int, pending bool, err error) {
	if len(buf) == 0 || done == nil {
		return 0, false, fmt.Errorf("receive: empty buffer or nil completion: %w", api.ErrInvalidArgument)
	}
	if n, ok, err := a.tryRead(buf); ok {
		return n, false, err
	}
	go func() {
		n, err := a.conn.Read(buf)
		done(n, err)
	}()
	return 0, true, nil
}

// SendAsync writes all of buf. Inline completion means every byte was
// accepted by the kernel or an error occurred. A partial inline write parks
// the remainder; done then reports the total written.
func (a *AsyncConn) SendAsync(buf []byte, done Completion) (n int, pending bool, err error) {
	if done == nil {
		return 0, false, fmt.Errorf("send: nil completion: %w", api.ErrInvalidArgument)
	}
	if len(buf) == 0 {
		return 0, false, nil
	}
	n, ok, err := a.tryWrite(buf)
	if err != nil {
		return n, false, err
	}
	if ok {
		return n, false, nil
	}
	go func(off int) {
		m, err := a.conn.Write(buf[off:])
		done(off+m, err)
	}(n)
	return 0, true, nil
}

// SetReadDeadline bounds parked receives.
func (a *AsyncConn) SetReadDeadline(t time.Time) error { return a.conn.SetReadDeadline(t) }

// SetWriteDeadline bounds parked sends.
func (a *AsyncConn) SetWriteDeadline(t time.Time) error { return a.conn.SetWriteDeadline(t) }

// Close closes the socket; parked operations complete with an error.
func (a *AsyncConn) Close() error { return a.conn.Close() }

func (a *AsyncConn) RemoteAddr() net.Addr { return a.conn.RemoteAddr() }

func (a *AsyncConn) LocalAddr() net.Addr { return a.conn.LocalAddr() }

// Inline reports whether operations may complete without parking.
func (a *AsyncConn) Inline() bool { return inlineSupported && a.raw != nil }
