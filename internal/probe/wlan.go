package probe

import (
	"context"
	"regexp"
	"strings"

	"netsentry/internal/core"
)

// Sentinel passwords reported for profiles whose key cannot be read.
// They travel through the store like any other value.
const (
	PasswordNotAvailable = "Not Available"
	PasswordError        = "Error"
)

// Wi-Fi status messages surfaced to frontends.
const (
	StatusNotSelected  = "Wi-Fi not selected"
	StatusNotConnected = "Not Connected"
	StatusError        = "Error"
)

var (
	profileNameRe = regexp.MustCompile(`All User Profile\s*:\s*(.+)`)
	keyContentRe  = regexp.MustCompile(`Key Content\s*:\s*(.+)`)
	// Line-anchored so BSSID rows never match.
	interfaceSSIDRe = regexp.MustCompile(`(?m)^\s*SSID\s*:\s*(.+)$`)
)

// SavedProfiles enumerates the system's wireless profiles with their keys
// in clear text. Profiles whose key cannot be read carry a sentinel
// password. A failure of the top-level listing returns an empty slice and
// a probe error; per-profile failures degrade to sentinels.
func (p *Prober) SavedProfiles(ctx context.Context) ([]core.WifiCredential, error) {
	out, err := p.runner.Run(ctx, "netsh", "wlan", "show", "profiles")
	if err != nil {
		p.log.Errorf(logTag, "Listing wireless profiles failed: %v", err)
		return nil, &Error{Op: "list profiles", Err: err}
	}

	var creds []core.WifiCredential
	for _, m := range profileNameRe.FindAllStringSubmatch(out, -1) {
		ssid := strings.TrimSpace(m[1])
		if ssid == "" {
			continue
		}
		creds = append(creds, core.WifiCredential{
			SSID:     ssid,
			Password: p.profileKey(ctx, ssid),
		})
	}
	p.log.Infof(logTag, "Found %d wireless profiles", len(creds))
	return creds, nil
}

// profileKey reads one profile's key in clear text.
func (p *Prober) profileKey(ctx context.Context, ssid string) string {
	out, err := p.runner.Run(ctx, "netsh", "wlan", "show", "profile", "name="+ssid, "key=clear")
	if err != nil {
		p.log.Warnf(logTag, "Reading key for %q failed: %v", ssid, err)
		return PasswordError
	}
	if m := keyContentRe.FindStringSubmatch(out); m != nil {
		return strings.TrimSpace(m[1])
	}
	return PasswordNotAvailable
}

// CurrentSSID returns the associated network, or "" when not associated.
func (p *Prober) CurrentSSID(ctx context.Context) (string, error) {
	out, err := p.runner.Run(ctx, "netsh", "wlan", "show", "interfaces")
	if err != nil {
		p.log.Errorf(logTag, "Checking current Wi-Fi failed: %v", err)
		return "", &Error{Op: "current ssid", Err: err}
	}
	if m := interfaceSSIDRe.FindStringSubmatch(out); m != nil {
		ssid := strings.TrimSpace(m[1])
		p.log.Debugf(logTag, "Currently connected to: %s", ssid)
		return ssid, nil
	}
	p.log.Debugf(logTag, "Not connected to any Wi-Fi network")
	return "", nil
}

// WifiStatus reports whether the interface is associated to target.
// It fails closed: with no target it answers (false, "Wi-Fi not
// selected"), and on probe failure (false, "Error").
func (p *Prober) WifiStatus(ctx context.Context, target string) (bool, string) {
	if target == "" {
		p.log.Warnf(logTag, "Wi-Fi credentials not set, cannot check status")
		return false, StatusNotSelected
	}
	out, err := p.runner.Run(ctx, "netsh", "wlan", "show", "interfaces")
	if err != nil {
		p.log.Errorf(logTag, "Checking Wi-Fi status failed: %v", err)
		return false, StatusError
	}
	if strings.Contains(out, target) {
		return true, "Connected to " + target
	}
	return false, StatusNotConnected
}

// ScanNetworks returns the set of SSIDs currently in the air. Failures
// yield an empty set and a probe error.
func (p *Prober) ScanNetworks(ctx context.Context) (map[string]struct{}, error) {
	out, err := p.runner.Run(ctx, "netsh", "wlan", "show", "networks")
	if err != nil {
		p.log.Errorf(logTag, "Scanning for Wi-Fi networks failed: %v", err)
		return map[string]struct{}{}, &Error{Op: "scan networks", Err: err}
	}
	found := parseScanSSIDs(out)
	p.log.Infof(logTag, "Found %d available Wi-Fi networks", len(found))
	return found, nil
}

// parseScanSSIDs extracts SSIDs from `netsh wlan show networks` output:
// every SSID row that is not a BSSID row, value after the first colon.
func parseScanSSIDs(out string) map[string]struct{} {
	found := make(map[string]struct{})
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, "SSID") || strings.Contains(line, "BSSID") {
			continue
		}
		_, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if ssid := strings.TrimSpace(value); ssid != "" {
			found[ssid] = struct{}{}
		}
	}
	return found
}

// ConnectWifi converges the interface onto a network. Explicit
// credentials become the remembered target; with none remembered it
// auto-selects the first known credential (store insertion order) seen in
// a live scan. A missing system profile is created before connecting.
// Already associated returns true without touching the interface.
func (p *Prober) ConnectWifi(ctx context.Context, ssid, password string) bool {
	if ssid != "" {
		p.SetCredentials(ssid, password)
	}

	target, _ := p.Target()
	if ok, _ := p.WifiStatus(ctx, target); ok {
		p.log.Infof(logTag, "Wi-Fi is already connected")
		return true
	}

	target, key := p.Target()
	if target == "" || key == "" {
		p.autoSelect(ctx)
		target, key = p.Target()
	}
	if target == "" {
		p.log.Errorf(logTag, "No Wi-Fi network selected for connection")
		return false
	}

	out, err := p.runner.Run(ctx, "netsh", "wlan", "show", "profiles")
	if err != nil {
		p.log.Errorf(logTag, "Listing profiles before connect failed: %v", err)
		return false
	}
	if !strings.Contains(out, target) {
		p.log.Infof(logTag, "Creating Wi-Fi profile for: %s", target)
		p.createProfile(ctx, target, key)
	}

	p.log.Infof(logTag, "Attempting to connect to Wi-Fi: %s", target)
	if _, err := p.runner.Run(ctx, "netsh", "wlan", "connect", "name="+target); err != nil {
		// The exit status lies often enough that reverification decides.
		p.log.Debugf(logTag, "Connect command: %v", err)
	}
	p.sleep(ctx, p.cfg.ConnectSettle)

	ok, msg := p.WifiStatus(ctx, target)
	if ok {
		p.log.Infof(logTag, "Wi-Fi connected successfully")
	} else {
		p.log.Warnf(logTag, "Failed to connect to Wi-Fi: %s", msg)
	}
	return ok
}

// autoSelect picks the first known credential present in a live scan.
func (p *Prober) autoSelect(ctx context.Context) {
	p.log.Warnf(logTag, "Wi-Fi credentials missing, trying to auto-select from known profiles")
	if p.creds == nil {
		return
	}
	available, err := p.ScanNetworks(ctx)
	if err != nil {
		return
	}
	known, err := p.creds.All(ctx)
	if err != nil {
		p.log.Errorf(logTag, "Loading known profiles failed: %v", err)
		return
	}
	for _, c := range known {
		if _, ok := available[c.SSID]; ok {
			p.SetCredentials(c.SSID, c.Password)
			p.log.Infof(logTag, "Auto-selected known network: %s", c.SSID)
			return
		}
	}
}

// DisconnectWifi drops the current association. Already disconnected
// returns true without touching the interface.
func (p *Prober) DisconnectWifi(ctx context.Context) bool {
	target, _ := p.Target()
	if ok, _ := p.WifiStatus(ctx, target); !ok {
		p.log.Infof(logTag, "Wi-Fi is already disconnected")
		return true
	}

	p.log.Infof(logTag, "Disconnecting from Wi-Fi")
	if _, err := p.runner.Run(ctx, "netsh", "wlan", "disconnect"); err != nil {
		p.log.Debugf(logTag, "Disconnect command: %v", err)
	}
	p.sleep(ctx, p.cfg.DisconnectSettle)

	ok, _ := p.WifiStatus(ctx, target)
	if !ok {
		p.log.Infof(logTag, "Wi-Fi disconnected successfully")
	} else {
		p.log.Warnf(logTag, "Failed to disconnect from Wi-Fi")
	}
	return !ok
}
