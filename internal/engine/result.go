package engine

import (
	"context"
	"errors"
	"time"

	"netsentry/internal/core"
)

// Outcome classifies a reconciliation pass.
type Outcome int

const (
	// OutcomeOK means the desired posture was reached (or already held).
	OutcomeOK Outcome = iota
	// OutcomeDegraded means everything but the VPN converged; the VPN
	// client would not start. The pass is complete.
	OutcomeDegraded
	// OutcomeWifiFailed means the Wi-Fi stage failed and the pass aborted
	// before probing the internet or touching the VPN.
	OutcomeWifiFailed
	// OutcomeInternetFailed means the internet stage failed and the pass
	// aborted before touching the VPN.
	OutcomeInternetFailed
	// OutcomeUnexpected means the pass was cut short by a fault in a
	// collaborator; Err carries the cause.
	OutcomeUnexpected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeDegraded:
		return "degraded"
	case OutcomeWifiFailed:
		return "wifi failed"
	case OutcomeInternetFailed:
		return "internet failed"
	case OutcomeUnexpected:
		return "unexpected"
	default:
		return "unknown"
	}
}

// Fatal reports whether the pass aborted before completing all stages.
func (o Outcome) Fatal() bool {
	return o == OutcomeWifiFailed || o == OutcomeInternetFailed || o == OutcomeUnexpected
}

// Result is the structured record of one reconciliation pass. It is also
// the payload of core.EventReconcileResult.
type Result struct {
	Outcome Outcome
	Err     error
	State   core.ConnectivityState
	Started time.Time
	Took    time.Duration
}

// Engine errors. The first three surface inside Result.Err; the last two
// reject bad auto-mode calls synchronously.
var (
	ErrWifiConnect         = errors.New("failed to connect to Wi-Fi")
	ErrInternetUnreachable = errors.New("failed to restore internet connection")
	ErrVPNStart            = errors.New("failed to start VPN client")
	ErrInvalidInterval     = errors.New("check interval must be greater than zero")
	ErrAlreadyRunning      = errors.New("auto-configuration already running")
)

// Action identifies a corrective step that frontends may gate behind a
// confirmation.
type Action int

const (
	// ActionResetWifi asks to disconnect and reconnect Wi-Fi because the
	// internet is unreachable through the current association.
	ActionResetWifi Action = iota
	// ActionStartVPN asks to launch the VPN client.
	ActionStartVPN
)

func (a Action) String() string {
	switch a {
	case ActionResetWifi:
		return "reset Wi-Fi"
	case ActionStartVPN:
		return "start VPN"
	default:
		return "unknown"
	}
}

// ConfirmFunc decides whether a corrective action may proceed.
// Interactive frontends show a timed yes/no prompt; headless callers
// auto-approve or auto-deny. A nil ConfirmFunc approves everything.
type ConfirmFunc func(ctx context.Context, action Action) bool
