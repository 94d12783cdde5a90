// Package supervisor starts the zxingd decoder server on a loopback port and
// owns its lifetime.
//
// Ensure reuses any server already answering on the port, otherwise spawns
// the decoder binary with the port as its only argument and blocks until the
// server accepts connections. The wait is bounded: it backs off between
// probes, fails fast when the child exits, and gives up after the startup
// timeout. Spawns are serialized per port with a lock file so host processes
// sharing a pinned port do not race each other.
//
// The returned Process is a scoped handle. Release interrupts the child,
// waits for the shutdown grace period and kills it if it is still alive.
// Reused servers are not owned and Release leaves them alone.
package supervisor
