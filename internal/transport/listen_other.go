// internal/transport/listen_other.go
//go:build !linux
// +build !linux

//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Portable listener. The runtime picks the backlog; the configured value is
// advisory on these platforms.

package transport

import (
	"context"
	"net"
	"strconv"
)

// BacklogHonored reports whether Listen passes backlog to the kernel.
const BacklogHonored = false

func listenTCP(ip net.IP, port, _ int) (net.Listener, error) {
	var lc net.ListenConfig
	network := "tcp4"
	if ip.To4() == nil {
		network = "tcp6"
	}
	return lc.Listen(context.Background(), network, net.JoinHostPort(ip.String(), strconv.Itoa(port)))
}
