// File: cmd/hioload-net/serve.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/control"
	"github.com/momentics/hioload-net/protocol"
	"github.com/momentics/hioload-net/server"
)

type serveOptions struct {
	cfg         server.Config
	headerWidth int
	metricsAddr string
	logLevel    string
	logFormat   string
}

func serveCmd() *cobra.Command {
	def := server.DefaultConfig()
	opts := serveOptions{cfg: def}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the echo server",
		Long: `Run a server that echoes every received frame back to its sender.

Flags fall back to HIOLOAD_* environment variables (HIOLOAD_PORT,
HIOLOAD_MAX_CONNS, HIOLOAD_METRICS_ADDR, ...).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.cfg.HeaderWidth = protocol.HeaderWidth(opts.headerWidth)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.cfg.Host, "host", control.EnvOr("HOST", def.Host), "bind host, 0.0.0.0 or :: for all interfaces")
	f.IntVarP(&opts.cfg.Port, "port", "p", control.EnvIntOr("PORT", def.Port), "TCP port")
	f.IntVar(&opts.cfg.Backlog, "backlog", control.EnvIntOr("BACKLOG", def.Backlog), "listen backlog")
	f.IntVar(&opts.cfg.MaxConnections, "max-conns", control.EnvIntOr("MAX_CONNS", def.MaxConnections), "maximum concurrent connections")
	f.IntVar(&opts.headerWidth, "header-width", control.EnvIntOr("HEADER_WIDTH", int(def.HeaderWidth)), "length prefix size in bytes (1, 2 or 4)")
	f.IntVar(&opts.cfg.MaxBodySize, "max-body", control.EnvIntOr("MAX_BODY", def.MaxBodySize), "largest frame body, 0 derives it from the header width")
	f.IntVar(&opts.cfg.MaxSendQueue, "max-send-queue", control.EnvIntOr("MAX_SEND_QUEUE", def.MaxSendQueue), "queued messages per connection, 0 = unbounded")
	f.DurationVar(&opts.cfg.IdleTimeout, "idle-timeout", control.EnvDurationOr("IDLE_TIMEOUT", def.IdleTimeout), "close connections idle this long, 0 = never")
	f.DurationVar(&opts.cfg.WriteTimeout, "write-timeout", control.EnvDurationOr("WRITE_TIMEOUT", def.WriteTimeout), "per-write deadline, 0 = none")
	f.StringVar(&opts.metricsAddr, "metrics-addr", control.EnvOr("METRICS_ADDR", ""), "serve /metrics and /debug/state on this address")
	f.StringVar(&opts.logLevel, "log-level", control.EnvOr("LOG_LEVEL", "info"), "debug, info, warn or error")
	f.StringVar(&opts.logFormat, "log-format", control.EnvOr("LOG_FORMAT", "text"), "text or json")

	return cmd
}

func runServe(ctx context.Context, opts serveOptions) error {
	log := control.NewLogger(os.Stderr, opts.logLevel, opts.logFormat)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	probes := control.NewDebugProbes()

	svc, err := server.New(opts.cfg, echoHandler(log),
		server.WithLogger(log.With("component", "service")),
		server.WithMetrics(control.NewMetrics(reg, control.DefaultNamespace)),
		server.WithTracer(control.NewTracer(nil)),
		server.WithProbes(probes),
	)
	if err != nil {
		return err
	}

	if opts.metricsAddr != "" {
		hs := &http.Server{Addr: opts.metricsAddr, Handler: adminRouter(reg, probes), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics endpoint failed", "addr", opts.metricsAddr, "err", err)
			}
		}()
		defer hs.Close()
		log.Info("metrics endpoint", "addr", opts.metricsAddr)
	}

	return svc.ListenAndServe(ctx)
}

// adminRouter serves the scrape endpoint and the debug probe dump.
func adminRouter(reg *prometheus.Registry, probes *control.DebugProbes) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Method(http.MethodGet, "/debug/state", probes)
	return r
}

func echoHandler(log *slog.Logger) api.Handler {
	return api.HandlerFuncs{
		NewConnection: func(c api.Conn) {
			log.Info("client connected", "conn_id", c.ID(), "remote", c.RemoteAddr())
		},
		Frame: func(c api.Conn, body []byte) {
			if err := c.Send(body); err != nil {
				log.Warn("echo failed", "conn_id", c.ID(), "err", err)
			}
		},
		Disconnect: func(c api.Conn, err error) {
			log.Info("client disconnected", "conn_id", c.ID(), "err", err)
		},
	}
}
