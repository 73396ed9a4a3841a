// File: api/handler.go
// Package api defines the callback surface between the connection core and
// the session layer.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "net"

// Conn is the handle the session layer holds for one live connection.
type Conn interface {
	// ID is unique for the lifetime of the owning service.
	ID() uint64

	// Send frames body and queues it for delivery. The caller keeps
	// ownership of body; it is copied before Send returns.
	Send(body []byte) error

	// Close tears the connection down. Safe to call more than once.
	Close() error

	RemoteAddr() net.Addr
	State() ConnState
}

// Handler receives connection lifecycle and frame notifications.
//
// OnFrame runs on the connection's receive path; body is only valid for the
// duration of the call and must be copied if retained. OnDisconnect fires
// exactly once per connection with the close cause (nil for a local Close).
type Handler interface {
	OnNewConnection(c Conn)
	OnFrame(c Conn, body []byte)
	OnDisconnect(c Conn, cause error)
}

// HandlerFuncs adapts plain functions to Handler. Nil fields are skipped.
type HandlerFuncs struct {
	NewConnection func(c Conn)
	Frame         func(c Conn, body []byte)
	Disconnect    func(c Conn, cause error)
}

func (h HandlerFuncs) OnNewConnection(c Conn) {
	if h.NewConnection != nil {
		h.NewConnection(c)
	}
}

func (h HandlerFuncs) OnFrame(c Conn, body []byte) {
	if h.Frame != nil {
		h.Frame(c, body)
	}
}

func (h HandlerFuncs) OnDisconnect(c Conn, cause error) {
	if h.Disconnect != nil {
		h.Disconnect(c, cause)
	}
}

var _ Handler = HandlerFuncs{}
