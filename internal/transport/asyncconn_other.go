// internal/transport/asyncconn_other.go
//go:build !linux
// +build !linux

//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// No inline attempt: every operation parks on the runtime poller.

package transport

const inlineSupported = false

func (a *AsyncConn) tryRead(_ []byte) (int, bool, error) { return 0, false, nil }

func (a *AsyncConn) tryWrite(_ []byte) (int, bool, error) { return 0, false, nil }
