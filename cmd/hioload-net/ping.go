// File: cmd/hioload-net/ping.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/momentics/hioload-net/client"
	"github.com/momentics/hioload-net/control"
	"github.com/momentics/hioload-net/protocol"
)

func pingCmd() *cobra.Command {
	var (
		addr        string
		count       int
		headerWidth int
		timeout     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "ping [message]",
		Short: "Send frames to a server and print the replies",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg := "PING"
			if len(args) == 1 {
				msg = args[0]
			}
			cfg := client.DefaultConfig(addr)
			cfg.HeaderWidth = protocol.HeaderWidth(headerWidth)
			cfg.ReadTimeout = timeout
			cfg.WriteTimeout = timeout
			cfg.DialTimeout = timeout

			c, err := client.Dial(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer c.Close()

			out := cmd.OutOrStdout()
			for i := 0; i < count; i++ {
				start := time.Now()
				if err := c.Send([]byte(msg)); err != nil {
					return err
				}
				reply, err := c.Receive()
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%d bytes from %s: seq=%d time=%s %q\n",
					len(reply), addr, i, time.Since(start).Round(time.Microsecond), reply)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&addr, "addr", "a", control.EnvOr("ADDR", "127.0.0.1:7979"), "server address")
	f.IntVarP(&count, "count", "c", 1, "frames to send")
	f.IntVar(&headerWidth, "header-width", control.EnvIntOr("HEADER_WIDTH", int(protocol.DefaultHeaderWidth)), "length prefix size in bytes")
	f.DurationVar(&timeout, "timeout", 5*time.Second, "dial and per-frame timeout")

	return cmd
}
