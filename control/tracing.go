// control/tracing.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// OpenTelemetry span per connection lifetime.

package control

import (
	"context"
	"errors"
	"io"
	"net"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/momentics/hioload-net/api"
)

// TracerName identifies spans emitted by this module.
const TracerName = "github.com/momentics/hioload-net"

// Tracer starts connection spans. A nil *Tracer is a no-op.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer uses tp, or the global provider when tp is nil.
func NewTracer(tp trace.TracerProvider) *Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Tracer{tracer: tp.Tracer(TracerName)}
}

// StartConnection opens the span for connection id. The returned func ends it
// with the teardown cause; a peer close is not recorded as an error.
func (t *Tracer) StartConnection(ctx context.Context, id uint64, remote net.Addr) (context.Context, func(cause error)) {
	if t == nil {
		return ctx, func(error) {}
	}
	attrs := []attribute.KeyValue{attribute.Int64("net.conn.id", int64(id))}
	if remote != nil {
		attrs = append(attrs, attribute.String("net.peer.addr", remote.String()))
	}
	ctx, span := t.tracer.Start(ctx, "hioload.connection",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attrs...),
	)
	return ctx, func(cause error) {
		kind := api.Classify(cause)
		span.SetAttributes(attribute.String("hioload.close.reason", kind.String()))
		if cause != nil && !errors.Is(cause, io.EOF) && !errors.Is(cause, api.ErrConnectionClosed) {
			span.RecordError(cause)
			span.SetStatus(codes.Error, kind.String())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}
