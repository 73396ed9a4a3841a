// control/env.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Environment fallbacks for command-line defaults.

package control

import (
	"os"
	"strconv"
	"time"
)

// EnvPrefix is prepended to every variable name looked up here.
const EnvPrefix = "HIOLOAD_"

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// EnvOr returns $HIOLOAD_<name> or def.
func EnvOr(name, def string) string {
	if v, ok := lookup(name); ok {
		return v
	}
	return def
}

// EnvIntOr returns $HIOLOAD_<name> parsed as int, or def when unset or
// malformed.
func EnvIntOr(name string, def int) int {
	v, ok := lookup(name)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// EnvDurationOr returns $HIOLOAD_<name> parsed with time.ParseDuration, or def.
func EnvDurationOr(name string, def time.Duration) time.Duration {
	v, ok := lookup(name)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
