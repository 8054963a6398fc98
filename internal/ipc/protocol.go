// Package ipc carries control traffic between the netsentry daemon and
// the netsentry-ctl client over a Windows named pipe. Framing is
// newline-delimited JSON: every request and every response is a single
// JSON object on its own line, and one connection may carry any number
// of request/response pairs.
package ipc

import "netsentry/internal/core"

// PipeName is the named pipe path of the daemon's control server.
const PipeName = `\\.\pipe\netsentry`

// Control operations understood by the daemon.
const (
	OpPing           = "ping"
	OpStatus         = "status"
	OpReconcile      = "reconcile"
	OpAutoStart      = "auto.start"
	OpAutoStop       = "auto.stop"
	OpWifiConnect    = "wifi.connect"
	OpWifiDisconnect = "wifi.disconnect"
	OpVPNStart       = "vpn.start"
	OpVPNStop        = "vpn.stop"
	OpProfileList    = "profiles.list"
	OpProfileSave    = "profiles.save"
	OpProfileDelete  = "profiles.delete"
	OpProfileImport  = "profiles.import"
	OpLogTail        = "log.tail"
)

// Request is one control operation. Only the fields the op reads need
// to be set.
type Request struct {
	Op string `json:"op"`

	// Wi-Fi and profile arguments.
	SSID     string                `json:"ssid,omitempty"`
	Password string                `json:"password,omitempty"`
	Profiles []core.WifiCredential `json:"profiles,omitempty"`

	// Resolve picks the duplicate handling for profiles.import:
	// "replace" or "skip" (the default).
	Resolve string `json:"resolve,omitempty"`

	// Reconciliation arguments. UseVPN nil means use the configured
	// posture; Interval is a duration string such as "20s".
	UseVPN   *bool  `json:"use_vpn,omitempty"`
	Interval string `json:"interval,omitempty"`

	// Fix asks the status op to run a corrective sweep before
	// answering.
	Fix bool `json:"fix,omitempty"`

	// Lines bounds log.tail output; zero means everything buffered.
	Lines int `json:"lines,omitempty"`
}

// Status is the daemon's connectivity snapshot plus auto-mode state.
type Status struct {
	core.ConnectivityState
	AutoRunning bool   `json:"auto_running"`
	Interval    string `json:"interval,omitempty"`
}

// ReconcileOutcome summarizes one reconciliation pass.
type ReconcileOutcome struct {
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
	Took    string `json:"took"`
}

// Conflict reports an imported credential whose SSID already exists
// with a different password.
type Conflict struct {
	SSID     string `json:"ssid"`
	Stored   string `json:"stored"`
	Incoming string `json:"incoming"`
}

// ImportSummary reports what a profiles.import did.
type ImportSummary struct {
	Added     int        `json:"added"`
	Skipped   int        `json:"skipped"`
	Replaced  int        `json:"replaced"`
	Conflicts []Conflict `json:"conflicts,omitempty"`
}

// Response answers one Request. OK false carries the reason in Error;
// the remaining fields are filled per op.
type Response struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`

	Status   *Status               `json:"status,omitempty"`
	Result   *ReconcileOutcome     `json:"result,omitempty"`
	Profiles []core.WifiCredential `json:"profiles,omitempty"`
	Import   *ImportSummary        `json:"import,omitempty"`
	Lines    []string              `json:"lines,omitempty"`
}
