// File: server/acceptor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Connection acceptor: binds, listens with the configured backlog and runs a
// sequential accept loop. Exactly one accept is outstanding at a time and the
// next one is issued only after the previous completion was handled.

package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/control"
	"github.com/momentics/hioload-net/internal/transport"
)

// AcceptorState is the acceptor lifecycle position.
type AcceptorState int32

const (
	AcceptorIdle AcceptorState = iota
	AcceptorBound
	AcceptorAccepting
	AcceptorClosed
)

func (s AcceptorState) String() string {
	switch s {
	case AcceptorIdle:
		return "idle"
	case AcceptorBound:
		return "bound"
	case AcceptorAccepting:
		return "accepting"
	case AcceptorClosed:
		return "closed"
	}
	return "unknown"
}

// Backoff bounds for transient accept failures.
const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// Acceptor hands every accepted socket to onNewClient. A failing connection
// never stops the loop; only Close does.
type Acceptor struct {
	onNewClient func(net.Conn)
	log         *slog.Logger
	metrics     *control.Metrics

	state    atomic.Int32
	mu       sync.Mutex // guards ln
	ln       net.Listener
	done     chan struct{}
	loopDone chan struct{}
	once     sync.Once
}

// NewAcceptor creates an idle acceptor. onNewClient runs on the accept
// goroutine and must not block for long.
func NewAcceptor(onNewClient func(net.Conn), log *slog.Logger, m *control.Metrics) *Acceptor {
	if log == nil {
		log = slog.Default()
	}
	return &Acceptor{
		onNewClient: onNewClient,
		log:         log,
		metrics:     m,
		done:        make(chan struct{}),
		loopDone:    make(chan struct{}),
	}
}

// Start binds host:port, listens with backlog and launches the accept loop.
// Bind or listen failures are returned wrapped as api.ErrStartup.
func (a *Acceptor) Start(host string, port, backlog int) error {
	if a.State() != AcceptorIdle {
		return api.NewError(api.KindStartup, "acceptor start", api.ErrAlreadyRunning)
	}
	ln, err := transport.Listen(host, port, backlog)
	if err != nil {
		return api.NewError(api.KindStartup, "acceptor start", err).
			WithContext("host", host).
			WithContext("port", port)
	}
	if err := a.StartListener(ln); err != nil {
		ln.Close()
		return err
	}
	if !transport.BacklogHonored {
		a.log.Debug("listen backlog is advisory on this platform", "backlog", backlog)
	}
	return nil
}

// StartListener runs the accept loop over an already bound listener.
func (a *Acceptor) StartListener(ln net.Listener) error {
	if a.onNewClient == nil || ln == nil {
		return api.NewError(api.KindStartup, "acceptor start", api.ErrInvalidArgument)
	}
	a.mu.Lock()
	if !a.state.CompareAndSwap(int32(AcceptorIdle), int32(AcceptorBound)) {
		a.mu.Unlock()
		return api.NewError(api.KindStartup, "acceptor start", api.ErrAlreadyRunning)
	}
	a.ln = ln
	a.mu.Unlock()
	a.log.Info("listening", "addr", ln.Addr().String())
	go a.loop(ln)
	return nil
}

func (a *Acceptor) loop(ln net.Listener) {
	defer close(a.loopDone)
	a.state.CompareAndSwap(int32(AcceptorBound), int32(AcceptorAccepting))
	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if !a.completeAccept(conn, err, &delay) {
			return
		}
	}
}

// completeAccept handles one accept result and reports whether to re-arm.
func (a *Acceptor) completeAccept(conn net.Conn, err error, delay *time.Duration) bool {
	if err != nil {
		if a.closed() || errors.Is(err, net.ErrClosed) {
			return false
		}
		switch {
		case *delay == 0:
			*delay = minAcceptDelay
		case *delay*2 > maxAcceptDelay:
			*delay = maxAcceptDelay
		default:
			*delay *= 2
		}
		a.metrics.AcceptError()
		a.log.Warn("accept failed; retrying",
			"err", api.NewError(api.KindTransientAccept, "accept", err),
			"delay", *delay)
		t := time.NewTimer(*delay)
		defer t.Stop()
		select {
		case <-a.done:
			return false
		case <-t.C:
			return true
		}
	}
	*delay = 0
	if a.closed() {
		conn.Close()
		return false
	}
	a.onNewClient(conn)
	return true
}

func (a *Acceptor) closed() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}

// Close stops the loop and closes the listener. It does not wait; use Done.
func (a *Acceptor) Close() error {
	var err error
	a.once.Do(func() {
		a.mu.Lock()
		prev := AcceptorState(a.state.Swap(int32(AcceptorClosed)))
		close(a.done)
		ln := a.ln
		a.mu.Unlock()
		if ln != nil {
			err = ln.Close()
		}
		if prev == AcceptorIdle {
			close(a.loopDone)
		}
	})
	return err
}

// Done is closed once the accept loop has exited.
func (a *Acceptor) Done() <-chan struct{} { return a.loopDone }

// Addr returns the bound address, or nil before Start.
func (a *Acceptor) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ln == nil {
		return nil
	}
	return a.ln.Addr()
}

// State reports the lifecycle position.
func (a *Acceptor) State() AcceptorState { return AcceptorState(a.state.Load()) }

func (a *Acceptor) String() string {
	return fmt.Sprintf("acceptor(%s, %v)", a.State(), a.Addr())
}
