// Package process answers questions about running processes by image
// name: presence, owning PIDs, and live TCP connections. The VPN client
// is controlled and observed purely through its image names, so this is
// the only process-level surface the rest of the system needs.
package process

import "context"

// Query is the read-only process table interface. Implementations fail
// closed: any enumeration error reads as "not running".
type Query interface {
	// ImageRunning reports whether any process with the given image
	// name exists. Comparison is case-insensitive.
	ImageRunning(ctx context.Context, image string) bool
	// PIDsOf returns the PIDs of all processes with the given image name.
	PIDsOf(ctx context.Context, image string) []int32
	// HasEstablishedTCP reports whether the PID owns at least one
	// TCP connection in the ESTABLISHED state.
	HasEstablishedTCP(ctx context.Context, pid int32) bool
}
