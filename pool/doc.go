// Package pool
// Author: momentics <momentics@gmail.com>
//
// Memory layer for hioload-net.
// Implements the fixed-capacity I/O context pool that backs every accepted
// connection, the slab those contexts are carved from, and size-classed byte
// reuse for outbound copies. Context pools are sized once at startup and
// never grow; exhaustion is reported, not waited on.
package pool
