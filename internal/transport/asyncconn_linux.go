// internal/transport/asyncconn_linux.go
//go:build linux
// +build linux

//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Inline attempts through the raw descriptor. The runtime keeps sockets in
// non-blocking mode, so EAGAIN means the operation has to be parked.

package transport

import (
	"io"

	"golang.org/x/sys/unix"
)

const inlineSupported = true

func wouldBlock(err error) bool {
	return err == unix.EAGAIN || err == unix.EINTR
}

// tryRead returns ok == false when nothing is available yet.
func (a *AsyncConn) tryRead(buf []byte) (n int, ok bool, err error) {
	if a.raw == nil {
		return 0, false, nil
	}
	var serr error
	cerr := a.raw.Read(func(fd uintptr) bool {
		n, serr = unix.Read(int(fd), buf)
		return true
	})
	switch {
	case cerr != nil:
		return 0, true, cerr
	case serr != nil && wouldBlock(serr):
		return 0, false, nil
	case serr != nil:
		return 0, true, serr
	case n == 0:
		return 0, true, io.EOF
	}
	return n, true, nil
}

// tryWrite returns ok == false when some bytes are still unwritten; n is the
// number already accepted.
func (a *AsyncConn) tryWrite(buf []byte) (n int, ok bool, err error) {
	if a.raw == nil {
		return 0, false, nil
	}
	var serr error
	cerr := a.raw.Write(func(fd uintptr) bool {
		n, serr = unix.Write(int(fd), buf)
		return true
	})
	if n < 0 {
		n = 0
	}
	switch {
	case cerr != nil:
		return 0, true, cerr
	case serr != nil && wouldBlock(serr):
		return 0, false, nil
	case serr != nil:
		return 0, true, serr
	}
	return n, n == len(buf), nil
}
