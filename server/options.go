// File: server/options.go
// Package server defines functional options for the Service.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"log/slog"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/control"
)

// Option customizes service initialization.
type Option func(*Service)

// WithLogger sets the structured logger. Default slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *control.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTracer attaches the connection tracer.
func WithTracer(t *control.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithBytePool overrides the pool used for outbound message copies.
func WithBytePool(p api.BytePool) Option {
	return func(s *Service) {
		if p != nil {
			s.bytes = p
		}
	}
}

// WithProbes registers service state probes into dp.
func WithProbes(dp *control.DebugProbes) Option {
	return func(s *Service) {
		s.probes = dp
	}
}
