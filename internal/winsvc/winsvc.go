// Package winsvc runs the headless daemon under the Windows Service
// Control Manager and manages its registration. On other platforms
// every entry point reports the platform as unsupported and the daemon
// falls back to plain signal handling.
package winsvc

const (
	// Name is the SCM service name, shared by registration, control
	// and runtime detection.
	Name = "NetSentry"

	displayName = "NetSentry Connectivity Service"
	description = "Keeps Wi-Fi, internet and VPN connectivity converged on the configured posture."
)
