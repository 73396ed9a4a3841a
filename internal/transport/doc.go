// File: internal/transport/doc.go
// Package transport
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Socket layer for hioload-net: TCP listeners that honor an explicit backlog
// and AsyncConn, the single asynchronous operation abstraction used for
// receive and send. An operation either completes inline (the result is
// returned to the caller) or is parked and its completion is delivered later
// on another goroutine. Linux builds attempt the inline path with a
// non-blocking syscall; other platforms always park, keeping call sites free
// of platform branches.

package transport
