// File: server/config.go
// Package server implements the connection core: acceptor, network service
// and per-connection sessions.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/protocol"
)

// Config holds all server-side configuration parameters.
type Config struct {
	Host           string               // bind host; "", "0.0.0.0", "*" or "::" for all interfaces
	Port           int                  // TCP port, 0 picks an ephemeral one
	Backlog        int                  // listen(2) backlog, <= 0 uses the system maximum
	MaxConnections int                  // capacity of the receive and send context pools
	HeaderWidth    protocol.HeaderWidth // wire length prefix in bytes (1, 2 or 4)
	MaxBodySize    int                  // largest frame body; 0 derives it from HeaderWidth

	ReceiveBufferSize int // receive context segment size
	MaxSendQueue      int // queued outbound messages per connection, 0 = unbounded

	IdleTimeout     time.Duration // read deadline refreshed before each receive, 0 = none
	WriteTimeout    time.Duration // deadline per outbound write, 0 = none
	ShutdownTimeout time.Duration // used by ListenAndServe when its context ends
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Host:              "0.0.0.0",
		Port:              7979,
		Backlog:           128,
		MaxConnections:    256,
		HeaderWidth:       protocol.DefaultHeaderWidth,
		ReceiveBufferSize: 4096,
		ShutdownTimeout:   30 * time.Second,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.Port < 0 || c.Port > 65535:
		return fmt.Errorf("config: port %d out of range: %w", c.Port, api.ErrInvalidConfig)
	case c.MaxConnections <= 0:
		return fmt.Errorf("config: max connections must be positive, got %d: %w", c.MaxConnections, api.ErrInvalidConfig)
	case !c.HeaderWidth.Valid():
		return fmt.Errorf("config: header width %d not in {1,2,4}: %w", int(c.HeaderWidth), api.ErrInvalidConfig)
	case c.MaxBodySize < 0 || c.MaxBodySize > c.HeaderWidth.MaxBodyLen():
		return fmt.Errorf("config: max body %d outside [0,%d]: %w", c.MaxBodySize, c.HeaderWidth.MaxBodyLen(), api.ErrInvalidConfig)
	case c.ReceiveBufferSize < 0:
		return fmt.Errorf("config: receive buffer %d: %w", c.ReceiveBufferSize, api.ErrInvalidConfig)
	case c.MaxSendQueue < 0:
		return fmt.Errorf("config: send queue bound %d: %w", c.MaxSendQueue, api.ErrInvalidConfig)
	case c.IdleTimeout < 0 || c.WriteTimeout < 0 || c.ShutdownTimeout < 0:
		return fmt.Errorf("config: negative timeout: %w", api.ErrInvalidConfig)
	}
	return nil
}

// Addr returns host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// normalized fills derived fields.
func (c Config) normalized() Config {
	if c.HeaderWidth == 0 {
		c.HeaderWidth = protocol.DefaultHeaderWidth
	}
	if c.MaxBodySize == 0 {
		c.MaxBodySize = c.HeaderWidth.DefaultMaxBody()
	}
	if c.ReceiveBufferSize == 0 {
		c.ReceiveBufferSize = 4096
	}
	return c
}

// sendBufferSize is the send context segment size: one whole frame.
func (c Config) sendBufferSize() int {
	return int(c.HeaderWidth) + c.MaxBodySize
}
