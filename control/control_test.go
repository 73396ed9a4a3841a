package control

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/momentics/hioload-net/api"
)

func TestMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "test")

	m.Accepted()
	m.Accepted()
	m.Closed("connection_io")
	m.Rejected("resource_exhausted")
	m.AcceptError()
	m.ProtocolViolation()
	m.Received(10)
	m.Received(0)
	m.FrameReceived()
	m.FrameSent(6)
	m.PoolInUse("receive", 3)

	checks := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"accepted", m.accepted, 2},
		{"active", m.active, 1},
		{"closed", m.closed.WithLabelValues("connection_io"), 1},
		{"rejected", m.rejected.WithLabelValues("resource_exhausted"), 1},
		{"accept errors", m.acceptErrors, 1},
		{"violations", m.protocolViolations, 1},
		{"bytes in", m.bytesIn, 10},
		{"frames in", m.framesIn, 1},
		{"frames out", m.framesOut, 1},
		{"bytes out", m.bytesOut, 6},
		{"pool", m.poolInUse.WithLabelValues("receive"), 3},
	}
	for _, c := range checks {
		if got := testutil.ToFloat64(c.c); got != c.want {
			t.Errorf("%s = %v, want %v", c.name, got, c.want)
		}
	}

	n, err := testutil.GatherAndCount(reg, "test_connections_accepted_total")
	if err != nil || n != 1 {
		t.Errorf("gather: n=%d err=%v", n, err)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.Accepted()
	m.Rejected("x")
	m.Closed("x")
	m.AcceptError()
	m.ProtocolViolation()
	m.Received(1)
	m.FrameReceived()
	m.FrameSent(1)
	m.PoolInUse("p", 1)
}

func TestTracerCloseCauses(t *testing.T) {
	tr := NewTracer(noop.NewTracerProvider())
	for _, cause := range []error{
		nil,
		io.EOF,
		api.NewError(api.KindProtocolViolation, "receive", errors.New("too big")),
	} {
		ctx, end := tr.StartConnection(context.Background(), 7, nil)
		if ctx == nil {
			t.Fatal("nil context")
		}
		end(cause)
	}

	var nilTracer *Tracer
	ctx := context.Background()
	got, end := nilTracer.StartConnection(ctx, 1, nil)
	if got != ctx {
		t.Error("nil tracer must return the parent context")
	}
	end(nil)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, "info", "json").Info("listening", "port", 7979)
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("json output: %v (%s)", err, buf.String())
	}
	if rec["msg"] != "listening" {
		t.Errorf("msg = %v", rec["msg"])
	}

	buf.Reset()
	l := NewLogger(&buf, "warn", "text")
	l.Info("hidden")
	l.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("level filtering broken: %q", buf.String())
	}
}

func TestEnvFallbacks(t *testing.T) {
	t.Setenv("HIOLOAD_PORT", "9000")
	t.Setenv("HIOLOAD_BAD", "x")
	t.Setenv("HIOLOAD_IDLE", "250ms")
	t.Setenv("HIOLOAD_HOST", "")

	if got := EnvIntOr("PORT", 1); got != 9000 {
		t.Errorf("EnvIntOr = %d", got)
	}
	if got := EnvIntOr("BAD", 1); got != 1 {
		t.Errorf("malformed int: %d", got)
	}
	if got := EnvDurationOr("IDLE", time.Second); got != 250*time.Millisecond {
		t.Errorf("EnvDurationOr = %v", got)
	}
	if got := EnvOr("HOST", "0.0.0.0"); got != "0.0.0.0" {
		t.Errorf("empty var must fall back, got %q", got)
	}
}

func TestDebugProbes(t *testing.T) {
	dp := NewDebugProbes()
	dp.RegisterProbe("b", func() any { return 2 })
	dp.RegisterProbe("a", func() any { return "one" })
	dp.RegisterProbe("nil", nil)

	if names := dp.Names(); len(names) != 2 || names[0] != "a" {
		t.Errorf("Names = %v", names)
	}

	rec := httptest.NewRecorder()
	dp.ServeHTTP(rec, httptest.NewRequest("GET", "/debug/state", nil))
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["a"] != "one" || got["b"] != float64(2) {
		t.Errorf("dump = %v", got)
	}
}
