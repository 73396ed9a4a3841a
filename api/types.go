// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations, DTOs, and constants.

package api

// ConnState enumerates the lifecycle of a connection.
type ConnState int32

const (
	ConnUnknown ConnState = iota
	ConnOpen
	ConnClosing
	ConnClosed
)

func (s ConnState) String() string {
	switch s {
	case ConnOpen:
		return "open"
	case ConnClosing:
		return "closing"
	case ConnClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// PoolStats is a point-in-time view of a fixed-capacity context pool.
type PoolStats struct {
	Capacity    int
	Available   int
	InUse       int
	Acquired    uint64 // successful acquires since creation
	Exhausted   uint64 // acquires refused because the pool was empty
	BadReleases uint64 // releases refused (nil, foreign or double release)
}
