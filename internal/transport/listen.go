// File: internal/transport/listen.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Host resolution and the platform-neutral entry point for listeners.

package transport

import (
	"fmt"
	"net"
	"strings"

	"github.com/momentics/hioload-net/api"
)

// ResolveHost maps a configured host to the IP to bind. Wildcard spellings
// ("", "0.0.0.0", "*", "any") bind every IPv4 interface and "::" every IPv6
// interface.
func ResolveHost(host string) (net.IP, error) {
	switch strings.ToLower(strings.TrimSpace(host)) {
	case "", "0.0.0.0", "*", "any":
		return net.IPv4zero, nil
	case "::", "[::]":
		return net.IPv6unspecified, nil
	case "localhost":
		return net.IPv4(127, 0, 0, 1), nil
	}
	ip := net.ParseIP(strings.Trim(host, "[]"))
	if ip == nil {
		return nil, fmt.Errorf("resolve host %q: not an IP address: %w", host, api.ErrInvalidArgument)
	}
	return ip, nil
}

// Listen binds host:port and starts listening with the given backlog.
// backlog <= 0 selects the system maximum.
func Listen(host string, port, backlog int) (net.Listener, error) {
	if port < 0 || port > 65535 {
		return nil, fmt.Errorf("listen: port %d out of range: %w", port, api.ErrInvalidArgument)
	}
	ip, err := ResolveHost(host)
	if err != nil {
		return nil, err
	}
	ln, err := listenTCP(ip, port, backlog)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", net.JoinHostPort(ip.String(), fmt.Sprint(port)), err)
	}
	return ln, nil
}
