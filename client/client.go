// File: client/client.go
// Package client provides a framing TCP client for hioload-net servers.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Send and SendBatch encode length-prefixed frames; Receive reassembles them
// with the same Framer the server uses. Send and Receive may be called from
// different goroutines.

package client

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/protocol"
)

// ClientConfig holds all configurable parameters for the client.
type ClientConfig struct {
	Addr         string               // host:port
	HeaderWidth  protocol.HeaderWidth // must match the server
	MaxBodySize  int                  // 0 derives it from HeaderWidth
	ReadTimeout  time.Duration        // per Receive, 0 = none
	WriteTimeout time.Duration        // per Send, 0 = none
	DialTimeout  time.Duration
	BufferSize   int // socket read chunk
}

// DefaultConfig returns the settings matching server.DefaultConfig.
func DefaultConfig(addr string) ClientConfig {
	return ClientConfig{
		Addr:        addr,
		HeaderWidth: protocol.DefaultHeaderWidth,
		DialTimeout: 5 * time.Second,
		BufferSize:  4096,
	}
}

// Client is one framed connection.
type Client struct {
	cfg  ClientConfig
	conn net.Conn

	writeMu sync.Mutex

	readMu  sync.Mutex
	framer  *protocol.Framer
	buf     []byte
	pending [][]byte

	closeOnce sync.Once
}

// Dial connects to cfg.Addr.
func Dial(ctx context.Context, cfg ClientConfig) (*Client, error) {
	d := net.Dialer{Timeout: cfg.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.Addr, err)
	}
	c, err := New(conn, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// New wraps an established connection.
func New(conn net.Conn, cfg ClientConfig) (*Client, error) {
	if cfg.HeaderWidth == 0 {
		cfg.HeaderWidth = protocol.DefaultHeaderWidth
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 4096
	}
	f, err := protocol.NewFramer(cfg.HeaderWidth, cfg.MaxBodySize)
	if err != nil {
		return nil, err
	}
	return &Client{
		cfg:    cfg,
		conn:   conn,
		framer: f,
		buf:    make([]byte, cfg.BufferSize),
	}, nil
}

// Send writes one frame.
func (c *Client) Send(body []byte) error {
	return c.SendBatch([][]byte{body})
}

// SendBatch writes all bodies as back-to-back frames in a single write.
func (c *Client) SendBatch(bodies [][]byte) error {
	size := 0
	for _, b := range bodies {
		if len(b) > c.framer.MaxBody() {
			return fmt.Errorf("send %d bytes (max %d): %w", len(b), c.framer.MaxBody(), api.ErrMessageTooLarge)
		}
		size += int(c.cfg.HeaderWidth) + len(b)
	}
	wire := make([]byte, 0, size)
	for _, b := range bodies {
		var err error
		if wire, err = protocol.AppendFrame(wire, c.cfg.HeaderWidth, b); err != nil {
			return err
		}
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.cfg.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	if _, err := c.conn.Write(wire); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// Receive returns the next frame body. The slice is owned by the caller.
func (c *Client) Receive() ([]byte, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()
	if c.cfg.ReadTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	}
	for len(c.pending) == 0 {
		n, err := c.conn.Read(c.buf)
		if n > 0 {
			if ferr := c.framer.OnReceive(c.buf, 0, n, c.collect); ferr != nil {
				return nil, ferr
			}
		}
		if err != nil && len(c.pending) == 0 {
			return nil, fmt.Errorf("receive: %w", err)
		}
	}
	body := c.pending[0]
	c.pending[0] = nil
	c.pending = c.pending[1:]
	return body, nil
}

func (c *Client) collect(body []byte) {
	c.pending = append(c.pending, append([]byte(nil), body...))
}

// SetDeadline sets both read and write deadlines on the socket.
func (c *Client) SetDeadline(t time.Time) error { return c.conn.SetDeadline(t) }

func (c *Client) LocalAddr() net.Addr { return c.conn.LocalAddr() }

// Close is idempotent.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() { err = c.conn.Close() })
	return err
}
