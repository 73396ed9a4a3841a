package client

import (
	"bytes"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/protocol"
)

func pipeClient(t *testing.T, cfg ClientConfig) (*Client, net.Conn) {
	t.Helper()
	local, remote := net.Pipe()
	c, err := New(local, cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		c.Close()
		remote.Close()
	})
	return c, remote
}

func TestReceiveFragmentedAndCoalesced(t *testing.T) {
	c, remote := pipeClient(t, ClientConfig{ReadTimeout: 2 * time.Second})

	go func() {
		remote.Write([]byte{0x00, 0x04, 'P'})
		remote.Write([]byte{'I', 'N', 'G', 0x00, 0x02, 'A', 'B', 0x00})
		remote.Write([]byte{0x03, 'C', 'D', 'E'})
	}()

	for _, want := range []string{"PING", "AB", "CDE"} {
		got, err := c.Receive()
		if err != nil {
			t.Fatalf("Receive: %v", err)
		}
		if string(got) != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}
}

func TestSendBatchSingleWrite(t *testing.T) {
	c, remote := pipeClient(t, ClientConfig{})

	done := make(chan error, 1)
	go func() { done <- c.SendBatch([][]byte{[]byte("AB"), []byte("CDE")}) }()

	want := []byte{0x00, 0x02, 'A', 'B', 0x00, 0x03, 'C', 'D', 'E'}
	got := make([]byte, len(want))
	if _, err := io.ReadFull(remote, got); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("wire % x, want % x", got, want)
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}

func TestSendTooLarge(t *testing.T) {
	c, _ := pipeClient(t, ClientConfig{HeaderWidth: protocol.Width1})
	err := c.Send(make([]byte, 256))
	if !errors.Is(err, api.ErrMessageTooLarge) {
		t.Errorf("got %v", err)
	}
}

func TestReceiveProtocolViolation(t *testing.T) {
	c, remote := pipeClient(t, ClientConfig{MaxBodySize: 4})
	go remote.Write([]byte{0x00, 0x05, 1, 2, 3, 4, 5})
	if _, err := c.Receive(); !errors.Is(err, api.ErrProtocolViolation) {
		t.Errorf("got %v", err)
	}
}

func TestReceivePeerClosed(t *testing.T) {
	c, remote := pipeClient(t, ClientConfig{})
	remote.Close()
	if _, err := c.Receive(); !errors.Is(err, io.EOF) {
		t.Errorf("got %v, want EOF", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}
