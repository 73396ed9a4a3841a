// File: cmd/hioload-net/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// hioload-net command: echo server and framing probe.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hioload-net",
		Short: "Length-prefixed TCP connection core",
		Long: `hioload-net accepts TCP connections and exchanges length-prefixed
binary frames over them.

  serve  run an echo server with Prometheus metrics
  ping   send frames to a server and print the replies`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		pingCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hioload-net %s (%s)\n", version, commit)
		},
	}
}
