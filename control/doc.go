// Package control
// Author: momentics <momentics@gmail.com>
//
// Observability and operator controls for hioload-net:
//   - Prometheus collectors for admission, teardown, frames and pools
//   - OpenTelemetry connection spans
//   - slog construction from CLI flags
//   - environment fallbacks and debug state probes
//
// Every collector type tolerates a nil receiver so callers may run without
// metrics or tracing configured.
package control
