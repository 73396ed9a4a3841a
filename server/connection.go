// File: server/connection.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Connection session: socket, pooled receive/send contexts, framer and the
// FIFO send queue. Teardown is reference counted: every issued operation
// holds a reference until its completion has been handled, and the last
// release returns the contexts to their pools, so a buffer is never handed to
// another connection while an operation still uses it.
//
// Lock order: recvMu before sendMu (a frame handler may Send). Code holding
// sendMu always owns a reference, so a release under sendMu never finalizes.

package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/internal/transport"
	"github.com/momentics/hioload-net/pool"
	"github.com/momentics/hioload-net/protocol"
)

// outbound is one queued message: header slot followed by the body copy.
type outbound struct {
	buf []byte
}

// Connection is the live state of one accepted socket.
type Connection struct {
	id     uint64
	svc    *Service
	sock   *transport.AsyncConn
	remote net.Addr
	rx, tx *pool.IOContext
	framer *protocol.Framer
	width  protocol.HeaderWidth

	recvMu sync.Mutex // framer
	sendMu sync.Mutex // queue and the start-send decision
	queue  *queue.Queue

	refs      atomic.Int32
	closing   atomic.Bool
	state     atomic.Int32
	closeOnce sync.Once
	errMu     sync.Mutex
	cause     error
	done      chan struct{}

	ctx     context.Context
	endSpan func(error)

	// bound once to avoid a method value allocation per operation
	recvDone transport.Completion
	sendDone transport.Completion
	emit     func([]byte)
}

var _ api.Conn = (*Connection)(nil)

func newConnection(s *Service, id uint64, nc net.Conn, rx, tx *pool.IOContext) *Connection {
	c := &Connection{
		id:     id,
		svc:    s,
		sock:   transport.NewAsyncConn(nc),
		remote: nc.RemoteAddr(),
		rx:     rx,
		tx:     tx,
		framer: rx.Attachment.(*protocol.Framer),
		width:  s.cfg.HeaderWidth,
		queue:  queue.New(),
		done:   make(chan struct{}),
		ctx:    context.Background(),
	}
	c.refs.Store(1) // released by closeWith
	c.state.Store(int32(api.ConnOpen))
	rx.Owner = c
	tx.Owner = c
	c.recvDone = c.receiveCompleted
	c.sendDone = c.sendCompleted
	c.emit = c.deliver
	c.endSpan = func(error) {}
	return c
}

// ID is unique per service instance.
func (c *Connection) ID() uint64 { return c.id }

func (c *Connection) RemoteAddr() net.Addr { return c.remote }

func (c *Connection) LocalAddr() net.Addr { return c.sock.LocalAddr() }

func (c *Connection) State() api.ConnState { return api.ConnState(c.state.Load()) }

// Context carries the connection span.
func (c *Connection) Context() context.Context { return c.ctx }

// Done is closed after teardown completed and OnDisconnect returned.
func (c *Connection) Done() <-chan struct{} { return c.done }

// Err returns the close cause; nil while open or after a local Close.
func (c *Connection) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.cause
}

// Close starts teardown; safe to call any number of times from any
// goroutine, including handlers. It does not wait, see Done.
func (c *Connection) Close() error {
	c.closeWith(nil)
	return nil
}

func (c *Connection) fail(err error) { c.closeWith(err) }

func (c *Connection) closeWith(cause error) {
	c.closeOnce.Do(func() {
		c.errMu.Lock()
		c.cause = cause
		c.errMu.Unlock()
		c.closing.Store(true)
		c.state.Store(int32(api.ConnClosing))
		// Parked operations complete with an error and drop their refs.
		_ = c.sock.Close()
		c.release()
	})
}

func (c *Connection) retain() bool {
	for {
		n := c.refs.Load()
		if n <= 0 || c.closing.Load() {
			return false
		}
		if c.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (c *Connection) release() {
	if c.refs.Add(-1) == 0 {
		c.finalize()
	}
}

// finalize runs once, after the last operation retired.
func (c *Connection) finalize() {
	c.sendMu.Lock()
	for c.queue.Length() > 0 {
		ob := c.queue.Remove().(*outbound)
		c.svc.bytes.Release(ob.buf)
	}
	c.sendMu.Unlock()

	c.recvMu.Lock()
	c.framer.Reset()
	c.recvMu.Unlock()

	c.state.Store(int32(api.ConnClosed))
	c.svc.retire(c)
	close(c.done)
}

// receiveCompleted is the parked receive completion.
func (c *Connection) receiveCompleted(n int, err error) {
	ok := c.svc.processReceive(c, n, err)
	c.release()
	if ok {
		c.svc.beginReceive(c)
	}
}

func (c *Connection) deliver(body []byte) {
	c.svc.metrics.FrameReceived()
	c.svc.handler.OnFrame(c, body)
}

// Send frames a copy of body and queues it. The caller keeps ownership of
// body. Messages are written in call order, one write at a time.
func (c *Connection) Send(body []byte) error {
	if len(body) > c.svc.cfg.MaxBodySize {
		return fmt.Errorf("send %d bytes on conn %d (max %d): %w",
			len(body), c.id, c.svc.cfg.MaxBodySize, api.ErrMessageTooLarge)
	}
	if !c.retain() {
		return fmt.Errorf("send on conn %d: %w", c.id, api.ErrConnectionClosed)
	}
	defer c.release()

	hw := int(c.width)
	buf := c.svc.bytes.Acquire(hw + len(body))
	copy(buf[hw:], body)

	c.sendMu.Lock()
	if c.closing.Load() {
		c.sendMu.Unlock()
		c.svc.bytes.Release(buf)
		return fmt.Errorf("send on conn %d: %w", c.id, api.ErrConnectionClosed)
	}
	if limit := c.svc.cfg.MaxSendQueue; limit > 0 && c.queue.Length() >= limit {
		c.sendMu.Unlock()
		c.svc.bytes.Release(buf)
		return fmt.Errorf("send on conn %d: %d queued: %w", c.id, limit, api.ErrSendQueueFull)
	}
	c.queue.Add(&outbound{buf: buf})
	var err error
	if c.queue.Length() == 1 {
		// Started inside the lock so a concurrent Send sees a busy queue.
		err = c.startSendLocked()
	}
	c.sendMu.Unlock()

	if err != nil {
		c.fail(err)
		return err
	}
	return nil
}

// startSendLocked writes queue heads until one parks or the queue drains.
func (c *Connection) startSendLocked() error {
	hw := int(c.width)
	for c.queue.Length() > 0 {
		if !c.retain() {
			return nil
		}
		ob := c.queue.Peek().(*outbound)
		if err := protocol.PutHeader(ob.buf, c.width, len(ob.buf)-hw); err != nil {
			c.release()
			return err
		}
		win := c.tx.Window(len(ob.buf))
		copy(win, ob.buf)
		if wt := c.svc.cfg.WriteTimeout; wt > 0 {
			_ = c.sock.SetWriteDeadline(time.Now().Add(wt))
		}
		n, pending, err := c.sock.SendAsync(win, c.sendDone)
		if pending {
			return nil
		}
		err = c.completeSendLocked(n, err)
		c.release()
		if err != nil {
			return err
		}
	}
	return nil
}

// completeSendLocked retires the head after a finished write.
func (c *Connection) completeSendLocked(n int, err error) error {
	ob := c.queue.Peek().(*outbound)
	if err == nil && n != len(ob.buf) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return api.NewError(api.KindConnectionIO, "send", err)
	}
	c.queue.Remove()
	c.svc.bytes.Release(ob.buf)
	c.svc.metrics.FrameSent(n)
	return nil
}

// sendCompleted is the parked send completion.
func (c *Connection) sendCompleted(n int, err error) {
	c.sendMu.Lock()
	err = c.completeSendLocked(n, err)
	if err == nil {
		err = c.startSendLocked()
	}
	c.sendMu.Unlock()
	if err != nil {
		c.fail(err)
	}
	c.release()
}

// Queued reports messages waiting or in flight.
func (c *Connection) Queued() int {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.queue.Length()
}

func (c *Connection) String() string {
	return fmt.Sprintf("conn(%d, %v, %s)", c.id, c.remote, c.State())
}
