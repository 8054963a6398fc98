// Package probe is the system boundary: every interrogation or mutation
// of OS networking state lives here. Wireless profiles, association,
// scanning, internet reachability, and the external VPN client's process
// lifecycle are wrapped behind methods that never leak raw OS errors;
// callers get booleans, safe defaults, and status strings, with causes
// logged. Mutations follow act, settle, reverify and report the
// reverified truth, not the command's exit status.
package probe

import (
	"context"
	"net/http"
	"sync"
	"time"

	"netsentry/internal/core"
	"netsentry/internal/process"
)

const logTag = "Probe"

// Config carries the probe's tunables. Zero values are not defaulted
// here; build it with ConfigFrom.
type Config struct {
	CheckURL     string
	CheckTimeout time.Duration

	ConnectSettle    time.Duration
	DisconnectSettle time.Duration
	VPNStartSettle   time.Duration
	VPNStopSettle    time.Duration

	VPNPath     string
	UIImage     string
	TunnelImage string
}

// ConfigFrom maps the application config onto probe tunables.
func ConfigFrom(app core.Config) Config {
	return Config{
		CheckURL:         app.Probe.CheckURLOrDefault(),
		CheckTimeout:     app.Probe.CheckTimeoutDuration(),
		ConnectSettle:    app.Probe.ConnectSettleDuration(),
		DisconnectSettle: app.Probe.DisconnectSettleDuration(),
		VPNStartSettle:   app.Probe.VPNStartSettleDuration(),
		VPNStopSettle:    app.Probe.VPNStopSettleDuration(),
		VPNPath:          app.VPN.ClientPathOrDefault(),
		UIImage:          app.VPN.UIImageOrDefault(),
		TunnelImage:      app.VPN.TunnelImageOrDefault(),
	}
}

// CommandRunner executes one external command and returns its stdout.
// A non-zero exit comes back as an error; callers decide whether that
// matters or whether reverification is the authority.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// CredentialSource supplies known credentials for auto-selection, in
// insertion order.
type CredentialSource interface {
	All(ctx context.Context) ([]core.WifiCredential, error)
}

// Error describes a failed probe operation.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return "probe " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Prober implements the system probe. All seams are injectable so the
// full surface runs under test without a Windows host: the command
// runner, the process table, the credential source, the HTTP client,
// the VPN launcher, and the settle sleep.
type Prober struct {
	cfg    Config
	runner CommandRunner
	procs  process.Query
	creds  CredentialSource
	http   *http.Client
	log    *core.Logger

	launch func(path string) error
	sleep  func(ctx context.Context, d time.Duration)

	mu       sync.Mutex
	ssid     string
	password string
}

// Option overrides a Prober seam.
type Option func(*Prober)

// WithHTTPClient replaces the reachability client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Prober) { p.http = c }
}

// WithLauncher replaces the VPN client spawner.
func WithLauncher(launch func(path string) error) Option {
	return func(p *Prober) { p.launch = launch }
}

// WithSleep replaces the settle wait. Tests pass a no-op.
func WithSleep(sleep func(ctx context.Context, d time.Duration)) Option {
	return func(p *Prober) { p.sleep = sleep }
}

// New creates a Prober. creds may be nil when no profile store is wired;
// auto-selection then has nothing to choose from.
func New(cfg Config, runner CommandRunner, procs process.Query, creds CredentialSource, log *core.Logger, opts ...Option) *Prober {
	p := &Prober{
		cfg:    cfg,
		runner: runner,
		procs:  procs,
		creds:  creds,
		log:    log,
		http:   &http.Client{Timeout: cfg.CheckTimeout},
		launch: launchDetached,
		sleep:  sleepCtx,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetCredentials remembers the target network for later connects and
// status checks.
func (p *Prober) SetCredentials(ssid, password string) {
	p.mu.Lock()
	p.ssid = ssid
	p.password = password
	p.mu.Unlock()
	p.log.Infof(logTag, "Wi-Fi credentials set for SSID: %s", ssid)
}

// Target returns the remembered network, if any.
func (p *Prober) Target() (ssid, password string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ssid, p.password
}

// sleepCtx waits for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
