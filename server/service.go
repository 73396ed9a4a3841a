// File: server/service.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Network service: owns the context pools, turns accepted sockets into
// Connections and drives their receive cycle.

package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/control"
	"github.com/momentics/hioload-net/pool"
	"github.com/momentics/hioload-net/protocol"
)

var errServiceShutdown = fmt.Errorf("service shutdown: %w", api.ErrConnectionClosed)

// Service accepts connections and dispatches their frames to a Handler.
type Service struct {
	cfg     Config
	handler api.Handler
	log     *slog.Logger
	metrics *control.Metrics
	tracer  *control.Tracer
	bytes   api.BytePool
	probes  *control.DebugProbes

	rxPool   *pool.ContextPool
	txPool   *pool.ContextPool
	acceptor *Acceptor

	mu           sync.Mutex
	conns        map[uint64]*Connection
	nextID       uint64
	shuttingDown bool
	wg           sync.WaitGroup
}

// New sizes both context pools to cfg.MaxConnections. No context memory is
// allocated after New returns.
func New(cfg Config, handler api.Handler, opts ...Option) (*Service, error) {
	if handler == nil {
		return nil, fmt.Errorf("new service: nil handler: %w", api.ErrInvalidArgument)
	}
	cfg = cfg.normalized()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Service{
		cfg:     cfg,
		handler: handler,
		log:     slog.Default(),
		conns:   make(map[uint64]*Connection, cfg.MaxConnections),
	}
	for _, o := range opts {
		o(s)
	}
	if s.bytes == nil {
		s.bytes = pool.NewBytePool()
	}

	var framerErr error
	rx, err := pool.NewContextPool(cfg.MaxConnections, cfg.ReceiveBufferSize, func(c *pool.IOContext) {
		f, err := protocol.NewFramer(cfg.HeaderWidth, cfg.MaxBodySize)
		if err != nil {
			framerErr = err
			return
		}
		c.Attachment = f
	})
	if err != nil {
		return nil, fmt.Errorf("new service: receive pool: %w", err)
	}
	if framerErr != nil {
		return nil, fmt.Errorf("new service: %w", framerErr)
	}
	tx, err := pool.NewContextPool(cfg.MaxConnections, cfg.sendBufferSize(), nil)
	if err != nil {
		return nil, fmt.Errorf("new service: send pool: %w", err)
	}
	s.rxPool, s.txPool = rx, tx
	s.acceptor = NewAcceptor(s.onNewClient, s.log.With("component", "acceptor"), s.metrics)

	if s.probes != nil {
		s.probes.RegisterProbe("connections", func() any { return s.Connections() })
		s.probes.RegisterProbe("pool.receive", func() any { return s.rxPool.Stats() })
		s.probes.RegisterProbe("pool.send", func() any { return s.txPool.Stats() })
		s.probes.RegisterProbe("acceptor", func() any { return s.acceptor.State().String() })
	}
	return s, nil
}

// Listen binds host:port with backlog and starts accepting. Failures are
// fatal startup errors matching api.ErrStartup.
func (s *Service) Listen(host string, port, backlog int) error {
	return s.acceptor.Start(host, port, backlog)
}

// Start listens on the configured address.
func (s *Service) Start() error {
	return s.Listen(s.cfg.Host, s.cfg.Port, s.cfg.Backlog)
}

// Serve accepts on an existing listener.
func (s *Service) Serve(ln net.Listener) error {
	return s.acceptor.StartListener(ln)
}

// ListenAndServe starts the service and blocks until ctx ends, then shuts
// down within Config.ShutdownTimeout.
func (s *Service) ListenAndServe(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	sctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Shutdown(sctx)
}

// Addr returns the listening address, nil before Listen.
func (s *Service) Addr() net.Addr { return s.acceptor.Addr() }

// Config returns the normalized configuration.
func (s *Service) Config() Config { return s.cfg }

// Connections reports the number of live connections.
func (s *Service) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Range calls fn for each live connection until fn returns false.
func (s *Service) Range(fn func(api.Conn) bool) {
	s.mu.Lock()
	snapshot := make([]*Connection, 0, len(s.conns))
	for _, c := range s.conns {
		snapshot = append(snapshot, c)
	}
	s.mu.Unlock()
	for _, c := range snapshot {
		if !fn(c) {
			return
		}
	}
}

// PoolStats returns receive and send pool counters.
func (s *Service) PoolStats() (rx, tx api.PoolStats) {
	return s.rxPool.Stats(), s.txPool.Stats()
}

// Shutdown stops accepting, closes every connection and waits for their
// teardown or ctx. Safe to call more than once.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shuttingDown = true
	conns := make([]*Connection, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	_ = s.acceptor.Close()
	for _, c := range conns {
		c.closeWith(errServiceShutdown)
	}

	done := make(chan struct{})
	go func() {
		<-s.acceptor.Done()
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("service stopped", "closed", len(conns))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown: %w", ctx.Err())
	}
}

// onNewClient admits nc or rejects it without blocking the accept loop.
func (s *Service) onNewClient(nc net.Conn) {
	rx, err := s.rxPool.Acquire()
	if err != nil {
		s.reject(nc, "resource_exhausted", err)
		return
	}
	tx, err := s.txPool.Acquire()
	if err != nil {
		s.releaseContexts(rx, nil)
		s.reject(nc, "resource_exhausted", err)
		return
	}

	s.mu.Lock()
	if s.shuttingDown {
		s.mu.Unlock()
		s.releaseContexts(rx, tx)
		s.reject(nc, "shutting_down", api.ErrNotRunning)
		return
	}
	s.nextID++
	c := newConnection(s, s.nextID, nc, rx, tx)
	c.retain() // keeps teardown behind OnNewConnection
	c.ctx, c.endSpan = s.tracer.StartConnection(context.Background(), c.id, c.remote)
	s.conns[c.id] = c
	s.wg.Add(1)
	s.mu.Unlock()

	s.metrics.Accepted()
	s.publishPools()
	s.log.Debug("connection opened", "conn_id", c.id, "remote", c.remote)

	s.handler.OnNewConnection(c)
	go s.beginReceive(c)
	c.release()
}

func (s *Service) reject(nc net.Conn, reason string, err error) {
	remote := nc.RemoteAddr()
	_ = nc.Close()
	s.metrics.Rejected(reason)
	s.log.Warn("connection rejected", "remote", remote, "reason", reason, "err", err)
}

func (s *Service) releaseContexts(rx, tx *pool.IOContext) {
	if rx != nil {
		if err := s.rxPool.Release(rx); err != nil {
			s.log.Error("receive context release", "err", err)
		}
	}
	if tx != nil {
		if err := s.txPool.Release(tx); err != nil {
			s.log.Error("send context release", "err", err)
		}
	}
}

func (s *Service) publishPools() {
	s.metrics.PoolInUse("receive", s.rxPool.InUse())
	s.metrics.PoolInUse("send", s.txPool.InUse())
}

// beginReceive issues receives until one parks. Inline completions are
// handled here, on the same stack.
func (s *Service) beginReceive(c *Connection) {
	for {
		if !c.retain() {
			return
		}
		if idle := s.cfg.IdleTimeout; idle > 0 {
			_ = c.sock.SetReadDeadline(time.Now().Add(idle))
		}
		n, pending, err := c.sock.ReceiveAsync(c.rx.Buffer(), c.recvDone)
		if pending {
			return
		}
		ok := s.processReceive(c, n, err)
		c.release()
		if !ok {
			return
		}
	}
}

// processReceive feeds the framer and reports whether to re-arm.
func (s *Service) processReceive(c *Connection, n int, err error) bool {
	if err == nil && n <= 0 {
		err = io.EOF
	}
	if err != nil {
		c.fail(api.NewError(api.KindConnectionIO, "receive", err))
		return false
	}
	s.metrics.Received(n)

	c.recvMu.Lock()
	ferr := c.framer.OnReceive(c.rx.Buffer(), 0, n, c.emit)
	c.recvMu.Unlock()
	if ferr != nil {
		s.metrics.ProtocolViolation()
		s.log.Warn("protocol violation", "conn_id", c.id, "remote", c.remote, "err", ferr)
		c.fail(api.NewError(api.KindProtocolViolation, "receive", ferr))
		return false
	}
	return !c.closing.Load()
}

// retire runs from Connection.finalize exactly once per connection.
func (s *Service) retire(c *Connection) {
	s.mu.Lock()
	delete(s.conns, c.id)
	s.mu.Unlock()

	cause := c.Err()
	s.releaseContexts(c.rx, c.tx)
	s.publishPools()

	reason := closeReason(cause)
	s.metrics.Closed(reason)
	c.endSpan(cause)
	s.log.Debug("connection closed", "conn_id", c.id, "remote", c.remote, "reason", reason, "err", cause)

	s.handler.OnDisconnect(c, cause)
	s.wg.Done()
}

// closeReason is the metric label for a teardown cause.
func closeReason(cause error) string {
	switch {
	case cause == nil:
		return "local"
	case errors.Is(cause, api.ErrConnectionClosed):
		return "shutdown"
	case errors.Is(cause, os.ErrDeadlineExceeded):
		return "timeout"
	case errors.Is(cause, io.EOF):
		return "peer_closed"
	}
	return api.Classify(cause).String()
}
