package probe

import "context"

// VPNUIRunning reports whether the VPN client's frontend process exists.
// This is the probe's (and the engine's) definition of "the VPN is
// running"; the tunnel's health is the monitor's business.
func (p *Prober) VPNUIRunning(ctx context.Context) bool {
	running := p.procs.ImageRunning(ctx, p.cfg.UIImage)
	p.log.Debugf(logTag, "VPN client running: %v", running)
	return running
}

// StartVPN launches the external VPN client and reverifies its presence
// after the settle wait. Already running returns true immediately.
func (p *Prober) StartVPN(ctx context.Context) bool {
	if p.VPNUIRunning(ctx) {
		p.log.Infof(logTag, "VPN client is already running")
		return true
	}

	p.log.Infof(logTag, "Starting VPN client: %s", p.cfg.VPNPath)
	if err := p.launch(p.cfg.VPNPath); err != nil {
		p.log.Errorf(logTag, "Starting VPN client failed: %v", err)
		return false
	}
	p.sleep(ctx, p.cfg.VPNStartSettle)

	if p.VPNUIRunning(ctx) {
		p.log.Infof(logTag, "VPN client started successfully")
		return true
	}
	p.log.Warnf(logTag, "VPN client failed to start")
	return false
}

// StopVPN force-kills the VPN client by image name, the tunnel core
// included so nothing lingers after the frontend dies, then reverifies.
// Not running returns true immediately.
func (p *Prober) StopVPN(ctx context.Context) bool {
	if !p.VPNUIRunning(ctx) {
		p.log.Infof(logTag, "VPN client is already stopped")
		return true
	}

	p.log.Infof(logTag, "Stopping VPN client")
	if _, err := p.runner.Run(ctx, "taskkill", "/IM", p.cfg.UIImage, "/F"); err != nil {
		p.log.Debugf(logTag, "Kill %s: %v", p.cfg.UIImage, err)
	}
	if _, err := p.runner.Run(ctx, "taskkill", "/IM", p.cfg.TunnelImage, "/F"); err != nil {
		p.log.Debugf(logTag, "Kill %s: %v", p.cfg.TunnelImage, err)
	}
	p.sleep(ctx, p.cfg.VPNStopSettle)

	if p.VPNUIRunning(ctx) {
		p.log.Warnf(logTag, "VPN client failed to stop")
		return false
	}
	p.log.Infof(logTag, "VPN client stopped successfully")
	return true
}
