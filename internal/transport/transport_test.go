package transport

import (
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/momentics/hioload-net/api"
)

func tcpPair(t *testing.T) (server, client net.Conn) {
	t.Helper()
	ln, err := Listen("127.0.0.1", 0, 8)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			accepted <- nil
			return
		}
		accepted <- c
	}()
	client, err = net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	server = <-accepted
	if server == nil {
		t.Fatal("accept failed")
	}
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	return server, client
}

type result struct {
	n   int
	err error
}

// receive runs one ReceiveAsync and converges inline and parked results.
func receive(t *testing.T, a *AsyncConn, buf []byte) (int, error) {
	t.Helper()
	ch := make(chan result, 1)
	n, pending, err := a.ReceiveAsync(buf, func(n int, err error) { ch <- result{n, err} })
	if !pending {
		return n, err
	}
	select {
	case r := <-ch:
		return r.n, r.err
	case <-time.After(5 * time.Second):
		t.Fatal("receive completion never delivered")
	}
	return 0, nil
}

func TestResolveHost(t *testing.T) {
	tests := []struct {
		host string
		want string
		ok   bool
	}{
		{"", "0.0.0.0", true},
		{"0.0.0.0", "0.0.0.0", true},
		{"*", "0.0.0.0", true},
		{"ANY", "0.0.0.0", true},
		{"::", "::", true},
		{"localhost", "127.0.0.1", true},
		{"10.1.2.3", "10.1.2.3", true},
		{"[::1]", "::1", true},
		{"not a host", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			ip, err := ResolveHost(tt.host)
			if !tt.ok {
				if !errors.Is(err, api.ErrInvalidArgument) {
					t.Fatalf("got %v, want ErrInvalidArgument", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if ip.String() != tt.want {
				t.Errorf("got %s, want %s", ip, tt.want)
			}
		})
	}
}

func TestListenEphemeralPort(t *testing.T) {
	ln, err := Listen("127.0.0.1", 0, 4)
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	addr, ok := ln.Addr().(*net.TCPAddr)
	if !ok || addr.Port == 0 {
		t.Fatalf("unexpected addr %v", ln.Addr())
	}
	c, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	c.Close()
}

func TestListenAddressInUse(t *testing.T) {
	first, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer first.Close()
	port := first.Addr().(*net.TCPAddr).Port

	ln, err := Listen("127.0.0.1", port, 4)
	if err == nil {
		ln.Close()
		t.Fatalf("second listen on %d succeeded", port)
	}
}

func TestListenInvalid(t *testing.T) {
	if _, err := Listen("127.0.0.1", 70000, 1); !errors.Is(err, api.ErrInvalidArgument) {
		t.Errorf("port: got %v", err)
	}
	if _, err := Listen("bogus host", 0, 1); !errors.Is(err, api.ErrInvalidArgument) {
		t.Errorf("host: got %v", err)
	}
}

func TestReceiveAsyncTCP(t *testing.T) {
	srv, cli := tcpPair(t)
	a := NewAsyncConn(srv)
	if a.Inline() != inlineSupported {
		t.Errorf("Inline = %v on a TCP socket", a.Inline())
	}

	want := "hello, async"
	if _, err := cli.Write([]byte(want)); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 64)
	var got []byte
	for len(got) < len(want) {
		n, err := receive(t, a, buf)
		if err != nil {
			t.Fatalf("receive: %v", err)
		}
		got = append(got, buf[:n]...)
	}
	if string(got) != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestReceiveAsyncPeerClose(t *testing.T) {
	srv, cli := tcpPair(t)
	a := NewAsyncConn(srv)
	cli.Close()
	_, err := receive(t, a, make([]byte, 8))
	if !errors.Is(err, io.EOF) {
		t.Errorf("got %v, want io.EOF", err)
	}
}

func TestSendAsyncTCP(t *testing.T) {
	srv, cli := tcpPair(t)
	a := NewAsyncConn(srv)
	payload := make([]byte, 1<<20) // larger than a socket buffer: forces a parked remainder
	for i := range payload {
		payload[i] = byte(i)
	}

	ch := make(chan result, 1)
	read := make(chan []byte, 1)
	go func() {
		b, _ := io.ReadAll(io.LimitReader(cli, int64(len(payload))))
		read <- b
	}()
	n, pending, err := a.SendAsync(payload, func(n int, err error) { ch <- result{n, err} })
	if pending {
		r := <-ch
		n, err = r.n, r.err
	}
	if err != nil || n != len(payload) {
		t.Fatalf("send: n=%d err=%v", n, err)
	}
	got := <-read
	if len(got) != len(payload) || got[12345] != payload[12345] {
		t.Error("payload corrupted")
	}
}

func TestAsyncConnPipeParks(t *testing.T) {
	left, right := net.Pipe()
	defer left.Close()
	defer right.Close()
	a := NewAsyncConn(left)
	if a.Inline() {
		t.Fatal("pipe must not report inline support")
	}

	ch := make(chan result, 1)
	buf := make([]byte, 4)
	_, pending, err := a.ReceiveAsync(buf, func(n int, err error) { ch <- result{n, err} })
	if err != nil || !pending {
		t.Fatalf("pending=%v err=%v", pending, err)
	}
	go right.Write([]byte("ok"))
	r := <-ch
	if r.err != nil || string(buf[:r.n]) != "ok" {
		t.Errorf("completion n=%d err=%v", r.n, r.err)
	}

	wch := make(chan result, 1)
	_, pending, err = a.SendAsync([]byte("back"), func(n int, err error) { wch <- result{n, err} })
	if err != nil || !pending {
		t.Fatalf("send pending=%v err=%v", pending, err)
	}
	rb := make([]byte, 4)
	if _, err := io.ReadFull(right, rb); err != nil {
		t.Fatal(err)
	}
	if w := <-wch; w.n != 4 || w.err != nil {
		t.Errorf("send completion %+v", w)
	}
}

func TestAsyncConnDeadline(t *testing.T) {
	left, right := net.Pipe()
	defer right.Close()
	a := NewAsyncConn(left)
	defer a.Close()
	_ = a.SetReadDeadline(time.Now().Add(20 * time.Millisecond))
	_, err := receive(t, a, make([]byte, 1))
	var ne net.Error
	if !errors.As(err, &ne) || !ne.Timeout() {
		t.Errorf("got %v, want timeout", err)
	}
}

func TestAsyncConnInvalidArgs(t *testing.T) {
	left, right := net.Pipe()
	defer left.Close()
	defer right.Close()
	a := NewAsyncConn(left)
	if _, _, err := a.ReceiveAsync(nil, func(int, error) {}); !errors.Is(err, api.ErrInvalidArgument) {
		t.Errorf("empty buffer: %v", err)
	}
	if _, _, err := a.SendAsync([]byte("x"), nil); !errors.Is(err, api.ErrInvalidArgument) {
		t.Errorf("nil completion: %v", err)
	}
	if n, pending, err := a.SendAsync(nil, func(int, error) {}); n != 0 || pending || err != nil {
		t.Errorf("empty send: %d %v %v", n, pending, err)
	}
}
